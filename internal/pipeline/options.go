package pipeline

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"pipecopy/internal/config"
	"pipecopy/internal/copier"
	"pipecopy/internal/failure"
	"pipecopy/internal/fileutil"
	"pipecopy/internal/metrics"
)

// DefaultExitToken is the command that triggers shutdown when none is configured.
const DefaultExitToken = "exit"

// maxCommandBytes bounds a single command line; longer lines are ignored.
const maxCommandBytes = 4096

// Settings holds the startup parameters of a pipeline.
type Settings struct {
	TransportPath  string
	DestinationDir string
	QueueCapacity  int
	ExitToken      string
	ReadBufferSize int
	DetectBOM      bool
	Verify         bool
	FileMode       os.FileMode
	RunID          string
}

// SettingsFromConfig derives pipeline settings from a loaded configuration.
func SettingsFromConfig(cfg *config.Config, runID string) Settings {
	return Settings{
		TransportPath:  cfg.Transport.Path,
		DestinationDir: cfg.Copy.DestinationDir,
		QueueCapacity:  cfg.Queue.Capacity,
		ExitToken:      cfg.Control.ExitToken,
		ReadBufferSize: cfg.Transport.ReadBufferSize,
		DetectBOM:      cfg.Transport.DetectBOM,
		Verify:         cfg.Copy.Verify,
		FileMode:       cfg.CopyFileMode(),
		RunID:          runID,
	}
}

func (s *Settings) validate() error {
	s.TransportPath = strings.TrimSpace(s.TransportPath)
	s.DestinationDir = strings.TrimSpace(s.DestinationDir)
	if s.TransportPath == "" {
		return failure.Configuration("transport.path", "is required")
	}
	if s.DestinationDir == "" {
		return failure.Configuration("copy.destination_dir", "is required")
	}
	if s.QueueCapacity < 1 {
		return failure.Configuration("queue.capacity", "must be at least 1")
	}
	if strings.TrimSpace(s.ExitToken) == "" {
		s.ExitToken = DefaultExitToken
	}
	s.ExitToken = strings.TrimSpace(s.ExitToken)
	if s.FileMode == 0 {
		s.FileMode = 0o644
	}
	return nil
}

// Option customises a Controller's collaborators.
type Option func(*Controller)

// WithLogger sets the base logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRecorder records copy outcomes, typically in the ledger.
func WithRecorder(rec copier.Recorder) Option {
	return func(c *Controller) {
		c.recorder = rec
	}
}

// WithMetrics reports counters to m instead of a private collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithCopyFunc replaces the byte-level copy routine.
func WithCopyFunc(fn fileutil.CopyFunc) Option {
	return func(c *Controller) {
		c.copyFunc = fn
	}
}

// WithPrompt writes a prompt to w before each command is read.
func WithPrompt(w io.Writer) Option {
	return func(c *Controller) {
		c.prompt = w
	}
}
