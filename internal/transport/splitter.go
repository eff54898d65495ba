package transport

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"pipecopy/internal/failure"
)

// MaxRecordLength bounds a single record. Longer input is rejected up to the
// next newline.
const MaxRecordLength = 64 * 1024

// Splitter rebuilds newline-terminated records from arbitrarily sized chunks.
// It is not safe for concurrent use.
type Splitter struct {
	pending    []byte
	discarding bool
	dropped    int

	// Reject, when set, is called for each record that fails validation.
	Reject func(record []byte, err error)
}

// Feed appends chunk to the pending partial record and returns every record
// completed by it. A trailing carriage return is stripped; blank records are
// dropped.
func (s *Splitter) Feed(chunk []byte) []string {
	var records []string
	for len(chunk) > 0 {
		idx := bytes.IndexByte(chunk, '\n')
		if idx < 0 {
			s.buffer(chunk)
			break
		}
		s.buffer(chunk[:idx])
		chunk = chunk[idx+1:]

		if s.discarding {
			s.discarding = false
			s.pending = s.pending[:0]
			continue
		}
		if record, ok := s.complete(); ok {
			records = append(records, record)
		}
	}
	return records
}

// Pending returns the undelimited tail carried into the next Feed.
func (s *Splitter) Pending() string {
	return string(s.pending)
}

// Dropped reports how many blank records have been discarded.
func (s *Splitter) Dropped() int {
	return s.dropped
}

// Reset discards any partial record.
func (s *Splitter) Reset() {
	s.pending = s.pending[:0]
	s.discarding = false
}

func (s *Splitter) buffer(part []byte) {
	if s.discarding {
		return
	}
	if len(s.pending)+len(part) > MaxRecordLength {
		s.reject(append(s.pending, part...), fmt.Errorf("%w: record exceeds %d bytes", failure.ErrMalformedRecord, MaxRecordLength))
		s.pending = s.pending[:0]
		s.discarding = true
		return
	}
	s.pending = append(s.pending, part...)
}

func (s *Splitter) complete() (string, bool) {
	line := bytes.TrimSuffix(s.pending, []byte{'\r'})
	defer func() { s.pending = s.pending[:0] }()

	if len(bytes.TrimSpace(line)) == 0 {
		s.dropped++
		return "", false
	}
	if !utf8.Valid(line) {
		s.reject(line, fmt.Errorf("%w: invalid UTF-8", failure.ErrMalformedRecord))
		return "", false
	}
	if bytes.IndexByte(line, 0) >= 0 {
		s.reject(line, fmt.Errorf("%w: contains NUL byte", failure.ErrMalformedRecord))
		return "", false
	}
	return string(line), true
}

func (s *Splitter) reject(record []byte, err error) {
	if s.Reject != nil {
		s.Reject(record, err)
	}
}
