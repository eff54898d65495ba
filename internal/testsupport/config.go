package testsupport

import (
	"path/filepath"
	"testing"

	"pipecopy/internal/config"
)

// ConfigOption adjusts a generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig returns a valid configuration rooted in a fresh temp directory.
// The FIFO and destination sit beside a state dir that holds the socket,
// lock, pid file, logs, and ledger. Console logging is kept at error level.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	state := filepath.Join(base, "state")

	cfg := config.Default()
	cfg.Paths.StateDir = state
	cfg.Paths.LogDir = filepath.Join(state, "logs")
	cfg.Ledger.Path = filepath.Join(state, "ledger.db")
	cfg.Transport.Path = filepath.Join(base, "pipecopy.fifo")
	cfg.Copy.DestinationDir = filepath.Join(base, "dest")
	cfg.Logging.Level = "error"
	cfg.Metrics.Bind = ""

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithQueueCapacity sets the handoff queue capacity.
func WithQueueCapacity(capacity int) ConfigOption {
	return func(cfg *config.Config) { cfg.Queue.Capacity = capacity }
}

// WithoutLedger turns the copy ledger off.
func WithoutLedger() ConfigOption {
	return func(cfg *config.Config) { cfg.Ledger.Enabled = false }
}

// WithoutStdin turns the stdin command loop off.
func WithoutStdin() ConfigOption {
	return func(cfg *config.Config) { cfg.Control.Stdin = false }
}

// WithExitToken replaces the command that stops the pipeline.
func WithExitToken(token string) ConfigOption {
	return func(cfg *config.Config) { cfg.Control.ExitToken = token }
}

// BaseDir is the temp directory NewConfig placed everything under.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
