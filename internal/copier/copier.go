package copier

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"pipecopy/internal/failure"
	"pipecopy/internal/fileutil"
	"pipecopy/internal/ledger"
	"pipecopy/internal/logging"
)

// Source yields paths until it is finished and drained.
type Source interface {
	Take() (string, bool)
}

// Recorder persists copy outcomes.
type Recorder interface {
	Record(ctx context.Context, entry ledger.Entry) error
}

// Observer is notified about copy outcomes.
type Observer interface {
	CopySucceeded(bytes int64, elapsed time.Duration)
	CopyFailed(kind string, elapsed time.Duration)
}

// Option customises a Copier.
type Option func(*Copier)

// WithCopyFunc replaces the byte-level copy routine.
func WithCopyFunc(fn fileutil.CopyFunc) Option {
	return func(c *Copier) {
		if fn != nil {
			c.copy = fn
		}
	}
}

// WithVerify switches to SHA-256 verified copies.
func WithVerify(enabled bool) Option {
	return func(c *Copier) {
		if enabled {
			c.copy = fileutil.CopyFileVerified
		}
	}
}

// WithFileMode sets the permissions applied to destination files.
func WithFileMode(mode os.FileMode) Option {
	return func(c *Copier) {
		c.mode = mode
	}
}

// WithRecorder records every outcome in rec.
func WithRecorder(rec Recorder) Option {
	return func(c *Copier) {
		c.recorder = rec
	}
}

// WithObserver reports outcomes to obs.
func WithObserver(obs Observer) Option {
	return func(c *Copier) {
		if obs != nil {
			c.observer = obs
		}
	}
}

// WithLogger sets the copier logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Copier) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRunID tags recorded outcomes with the run identifier.
func WithRunID(id string) Option {
	return func(c *Copier) {
		c.runID = id
	}
}

// Copier consumes paths from a Source and copies them into destDir.
type Copier struct {
	source   Source
	destDir  string
	copy     fileutil.CopyFunc
	mode     os.FileMode
	recorder Recorder
	observer Observer
	logger   *slog.Logger
	runID    string
	done     chan struct{}
}

// New constructs a copier.
func New(source Source, destDir string, opts ...Option) *Copier {
	c := &Copier{
		source:   source,
		destDir:  destDir,
		copy:     fileutil.CopyFileMode,
		mode:     0o644,
		observer: nopObserver{},
		logger:   logging.NewNop(),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run copies paths until the source is finished and empty. ctx bounds ledger
// writes only; cancelling it does not abandon queued paths.
func (c *Copier) Run(ctx context.Context) {
	defer close(c.done)
	var copied, failed int
	for {
		src, ok := c.source.Take()
		if !ok {
			break
		}
		if c.copyOne(ctx, src) {
			copied++
		} else {
			failed++
		}
	}
	c.logger.Info("copier drained",
		logging.String(logging.FieldEventType, "copier_drained"),
		logging.Int("copied", copied),
		logging.Int("failed", failed),
	)
}

// Done is closed when Run returns.
func (c *Copier) Done() <-chan struct{} {
	return c.done
}

func (c *Copier) copyOne(ctx context.Context, src string) bool {
	start := time.Now()
	dst, err := fileutil.DestinationPath(c.destDir, src)
	var written int64
	if err == nil {
		written, err = c.copy(src, dst, c.mode)
	}
	elapsed := time.Since(start)

	entry := ledger.Entry{
		RunID:       c.runID,
		Source:      src,
		Destination: dst,
		Bytes:       written,
		Duration:    elapsed,
	}

	if err != nil {
		copyErr := &failure.CopyError{Source: src, Destination: dst, Err: err}
		kind := classify(err)
		entry.Outcome = ledger.OutcomeFailed
		entry.Error = err.Error()
		entry.ErrorKind = kind
		c.observer.CopyFailed(kind, elapsed)
		logging.WarnWithContext(c.logger, "copy failed; continuing with next path", "copy_failed",
			logging.String(logging.FieldSource, src),
			logging.String(logging.FieldDestination, dst),
			logging.Error(copyErr),
			logging.String(logging.FieldErrorKind, kind),
			logging.String(logging.FieldErrorHint, "check that the source exists and the destination is writable"),
			logging.String(logging.FieldImpact, "file was not copied"),
		)
		c.record(ctx, entry)
		return false
	}

	entry.Outcome = ledger.OutcomeCopied
	c.observer.CopySucceeded(written, elapsed)
	c.logger.Info("file copied",
		logging.String(logging.FieldEventType, "file_copied"),
		logging.String(logging.FieldSource, src),
		logging.String(logging.FieldDestination, dst),
		logging.String("size", humanize.IBytes(uint64(written))),
		logging.Duration("elapsed", elapsed),
	)
	c.record(ctx, entry)
	return true
}

func (c *Copier) record(ctx context.Context, entry ledger.Entry) {
	if c.recorder == nil {
		return
	}
	if err := c.recorder.Record(ctx, entry); err != nil {
		logging.WarnWithContext(c.logger, "copy history write failed", "ledger_write_failed",
			logging.String(logging.FieldSource, entry.Source),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check ledger.path permissions and free disk space"),
			logging.String(logging.FieldImpact, "copy outcome missing from history"),
		)
	}
}

type nopObserver struct{}

func (nopObserver) CopySucceeded(int64, time.Duration) {}
func (nopObserver) CopyFailed(string, time.Duration)   {}

// classify labels a copy failure for metrics and the ledger.
func classify(err error) string {
	switch {
	case errors.Is(err, os.ErrNotExist):
		return "not_found"
	case errors.Is(err, os.ErrPermission):
		return "permission"
	case errors.Is(err, fileutil.ErrNotRegular):
		return "not_regular"
	default:
		return "io"
	}
}
