package transport

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"pipecopy/internal/failure"
	"pipecopy/internal/logging"
)

// DefaultReadBufferSize is the number of bytes requested per read.
const DefaultReadBufferSize = 4096

// Sink receives complete records. Put returns false once the sink no longer
// accepts input, which ends the listener.
type Sink interface {
	Put(record string) bool
}

// Observer is notified about record outcomes. Implementations must be safe
// for concurrent use.
type Observer interface {
	RecordAccepted()
	RecordDropped(reason string)
}

// Drop reasons reported to Observer.
const (
	DropBlank      = "blank"
	DropMalformed  = "malformed"
	DropIncomplete = "incomplete"
	DropShutdown   = "shutdown"
)

var errSinkClosed = errors.New("sink closed")

// ListenerOption customises a Listener.
type ListenerOption func(*Listener)

// WithLogger sets the listener logger.
func WithLogger(logger *slog.Logger) ListenerOption {
	return func(l *Listener) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithReadBufferSize sets the maximum bytes per read.
func WithReadBufferSize(size int) ListenerOption {
	return func(l *Listener) {
		if size > 0 {
			l.bufSize = size
		}
	}
}

// WithBOMDetection decodes each writer session according to its byte order
// mark. UTF-16 input is transcoded to UTF-8 and a UTF-8 BOM is stripped.
func WithBOMDetection(enabled bool) ListenerOption {
	return func(l *Listener) {
		l.detectBOM = enabled
	}
}

// WithObserver reports record outcomes to obs.
func WithObserver(obs Observer) ListenerOption {
	return func(l *Listener) {
		if obs != nil {
			l.observer = obs
		}
	}
}

// Listener reads records from a named pipe and forwards them to a Sink.
type Listener struct {
	path      string
	sink      Sink
	logger    *slog.Logger
	bufSize   int
	detectBOM bool
	observer  Observer

	stopping atomic.Bool
	done     chan struct{}

	mu       sync.Mutex
	fd       int
	opened   bool
	closed   bool
	splitter Splitter
}

// NewListener constructs a listener for the FIFO at path.
func NewListener(path string, sink Sink, opts ...ListenerOption) *Listener {
	l := &Listener{
		path:     path,
		sink:     sink,
		logger:   logging.NewNop(),
		bufSize:  DefaultReadBufferSize,
		observer: nopObserver{},
		done:     make(chan struct{}),
		fd:       -1,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With(logging.String(logging.FieldTransport, path))
	l.splitter.Reject = func(record []byte, err error) {
		l.observer.RecordDropped(DropMalformed)
		logging.WarnWithContext(l.logger, "transport record rejected", "record_rejected",
			logging.Error(err),
			logging.Int("record_bytes", len(record)),
			logging.String(logging.FieldErrorHint, "send UTF-8 paths terminated by a newline"),
			logging.String(logging.FieldImpact, "record was not queued for copying"),
		)
	}
	return l
}

// Path returns the FIFO location.
func (l *Listener) Path() string {
	return l.path
}

// Open creates the FIFO and attaches a reader. Failures are returned as
// *failure.TransportCreationError.
func (l *Listener) Open() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.opened {
		return nil
	}
	created, err := ensureFIFO(l.path)
	if err != nil {
		return &failure.TransportCreationError{Path: l.path, Err: err}
	}
	fd, err := openReader(l.path)
	if err != nil {
		// A pipe that was already there belongs to someone else.
		if created {
			_ = os.Remove(l.path)
		}
		return &failure.TransportCreationError{Path: l.path, Err: err}
	}
	l.fd = fd
	l.opened = true
	l.logger.Info("transport ready", logging.String(logging.FieldEventType, "transport_ready"))
	return nil
}

// Run reads writer sessions until the listener is poked, the sink stops
// accepting records, or a read fails. The FIFO is closed and removed before
// Run returns.
func (l *Listener) Run() error {
	defer close(l.done)
	defer func() {
		if err := l.Close(); err != nil {
			l.logger.Debug("transport close failed", logging.Error(err))
		}
	}()

	l.mu.Lock()
	fd, opened := l.fd, l.opened
	l.mu.Unlock()
	if !opened {
		return &failure.TransportCreationError{Path: l.path, Err: errors.New("listener not opened")}
	}

	buf := make([]byte, l.bufSize)
	for {
		err := l.readSession(l.sessionReader(fd), buf)
		switch {
		case errors.Is(err, errStopped):
			l.logger.Info("transport stopped", logging.String(logging.FieldEventType, "transport_stopped"))
			return nil
		case errors.Is(err, errSinkClosed):
			l.logger.Info("transport sink closed; listener exiting",
				logging.String(logging.FieldEventType, "transport_sink_closed"))
			return nil
		case errors.Is(err, io.EOF):
			l.endSession()
			next, reopenErr := l.reopen(fd)
			if errors.Is(reopenErr, errStopped) {
				return nil
			}
			if reopenErr != nil {
				logging.ErrorWithContext(l.logger, "transport reopen failed", "transport_reopen_failed",
					logging.Error(reopenErr),
					logging.String(logging.FieldErrorHint, "check that the pipe was not removed while running"))
				return reopenErr
			}
			fd = next
		default:
			logging.ErrorWithContext(l.logger, "transport read failed", "transport_read_failed",
				logging.Error(err))
			return err
		}
	}
}

// Poke unblocks a listener waiting for input. It must be called after the
// sink has been finished; the listener exits on its next wakeup.
func (l *Listener) Poke() error {
	l.stopping.Store(true)
	return pokeFIFO(l.path)
}

// Close releases the reader and removes the FIFO. It is idempotent and safe
// to call before Open.
func (l *Listener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	l.stopping.Store(true)

	var errs []error
	if l.fd >= 0 {
		if err := closeFD(l.fd); err != nil {
			errs = append(errs, err)
		}
		l.fd = -1
	}
	if l.opened {
		if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Done is closed when Run returns.
func (l *Listener) Done() <-chan struct{} {
	return l.done
}

func (l *Listener) sessionReader(fd int) io.Reader {
	var r io.Reader = &fifoReader{fd: fd, stopping: &l.stopping}
	if l.detectBOM {
		r = transform.NewReader(r, unicode.BOMOverride(transform.Nop))
	}
	return r
}

func (l *Listener) readSession(r io.Reader, buf []byte) error {
	for {
		n, err := r.Read(buf)
		if n > 0 {
			blankBefore := l.splitter.Dropped()
			records := l.splitter.Feed(buf[:n])
			for i, record := range records {
				if !l.sink.Put(record) {
					l.discard(len(records) - i)
					return errSinkClosed
				}
				l.observer.RecordAccepted()
				l.logger.Debug("record queued", logging.String(logging.FieldSource, record))
			}
			for i := blankBefore; i < l.splitter.Dropped(); i++ {
				l.observer.RecordDropped(DropBlank)
			}
		}
		if err != nil {
			return err
		}
	}
}

// discard reports n records that arrived after the sink stopped accepting.
func (l *Listener) discard(n int) {
	for range n {
		l.observer.RecordDropped(DropShutdown)
	}
	logging.WarnWithContext(l.logger, "records arrived after shutdown began; discarded", "records_discarded",
		logging.Int("records", n),
		logging.String(logging.FieldImpact, "discarded paths were not copied"),
		logging.String(logging.FieldErrorHint, "send them again once pipecopy is running"),
	)
}

func (l *Listener) endSession() {
	if pending := l.splitter.Pending(); pending != "" {
		l.observer.RecordDropped(DropIncomplete)
		logging.WarnWithContext(l.logger, "writer closed mid-record; partial record discarded", "record_incomplete",
			logging.Int("record_bytes", len(pending)),
			logging.String(logging.FieldErrorHint, "terminate every path with a newline"),
			logging.String(logging.FieldImpact, "partial path was not queued for copying"),
		)
	}
	l.splitter.Reset()
	l.logger.Debug("writer session ended")
}

// reopen swaps in a fresh read descriptor. The new one is opened before the
// old one is closed so the pipe never loses its reader.
func (l *Listener) reopen(old int) (int, error) {
	next, err := openReader(l.path)
	if err != nil {
		return -1, err
	}
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		_ = closeFD(next)
		return -1, errStopped
	}
	l.fd = next
	l.mu.Unlock()
	_ = closeFD(old)
	return next, nil
}

type nopObserver struct{}

func (nopObserver) RecordAccepted()      {}
func (nopObserver) RecordDropped(string) {}
