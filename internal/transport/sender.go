package transport

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/unix"

	"pipecopy/internal/failure"
)

// ErrNoListener reports that nothing holds the read side of the pipe.
var ErrNoListener = errors.New("no listener attached to transport")

// Send writes records to the FIFO at path as one writer session. Each record
// is validated and terminated with a newline. Send fails fast with
// ErrNoListener instead of blocking when no listener is running.
func Send(path string, records []string) (int, error) {
	var b strings.Builder
	for _, record := range records {
		if err := validateRecord(record); err != nil {
			return 0, err
		}
		b.WriteString(record)
		b.WriteByte('\n')
	}
	if b.Len() == 0 {
		return 0, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, fmt.Errorf("%w: %s does not exist", ErrNoListener, path)
		}
		return 0, err
	}
	if info.Mode()&os.ModeNamedPipe == 0 {
		return 0, fmt.Errorf("%s is not a named pipe", path)
	}

	fd, err := unix.Open(path, unix.O_WRONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		if errors.Is(err, unix.ENXIO) {
			return 0, fmt.Errorf("%w: %s", ErrNoListener, path)
		}
		return 0, fmt.Errorf("open %s for writing: %w", path, err)
	}
	// Blocking writes from here on so large batches wait for the reader.
	if err := unix.SetNonblock(fd, false); err != nil {
		_ = unix.Close(fd)
		return 0, fmt.Errorf("set blocking: %w", err)
	}
	f := os.NewFile(uintptr(fd), path)
	defer f.Close()

	if _, err := f.WriteString(b.String()); err != nil {
		return 0, fmt.Errorf("write %s: %w", path, err)
	}
	return len(records), nil
}

func validateRecord(record string) error {
	switch {
	case strings.TrimSpace(record) == "":
		return fmt.Errorf("%w: empty record", failure.ErrMalformedRecord)
	case strings.ContainsAny(record, "\n\r"):
		return fmt.Errorf("%w: %q contains a line break", failure.ErrMalformedRecord, record)
	case strings.ContainsRune(record, 0):
		return fmt.Errorf("%w: %q contains NUL", failure.ErrMalformedRecord, record)
	case len(record) >= MaxRecordLength:
		return fmt.Errorf("%w: record exceeds %d bytes", failure.ErrMalformedRecord, MaxRecordLength)
	}
	return nil
}
