package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Transport contains configuration for the named pipe that feeds paths in.
type Transport struct {
	Path           string `toml:"path"`
	ReadBufferSize int    `toml:"read_buffer_size"`
	DetectBOM      bool   `toml:"detect_bom"`
}

// Copy contains configuration for the file copier.
type Copy struct {
	DestinationDir string `toml:"destination_dir"`
	Verify         bool   `toml:"verify"`
	FileMode       string `toml:"file_mode"`
}

// Queue contains configuration for the handoff queue.
type Queue struct {
	Capacity int `toml:"capacity"`
}

// Control contains configuration for the interactive command loop.
type Control struct {
	ExitToken string `toml:"exit_token"`
	Stdin     bool   `toml:"stdin"`
}

// Paths contains directories used for runtime state.
type Paths struct {
	StateDir string `toml:"state_dir"`
	LogDir   string `toml:"log_dir"`
}

// Ledger contains configuration for the copy history database.
type Ledger struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
	// RetentionDays prunes older rows at startup. Zero keeps everything.
	RetentionDays int `toml:"retention_days"`
}

// Metrics contains configuration for Prometheus exposition. An empty Bind
// disables the HTTP endpoint.
type Metrics struct {
	Bind string `toml:"bind"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for pipecopy.
//
// Configuration sections by subsystem:
//   - Transport: FIFO path and read behaviour
//   - Copy: destination directory and copy mode
//   - Queue: handoff capacity
//   - Control: command loop exit token
//   - Paths: state (socket, lock, pid) and log directories
//   - Ledger: copy history database
//   - Metrics: Prometheus endpoint
//   - Logging: log format, level, and retention
type Config struct {
	Transport Transport `toml:"transport"`
	Copy      Copy      `toml:"copy"`
	Queue     Queue     `toml:"queue"`
	Control   Control   `toml:"control"`
	Paths     Paths     `toml:"paths"`
	Ledger    Ledger    `toml:"ledger"`
	Metrics   Metrics   `toml:"metrics"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates and parses a configuration file and normalizes the result.
// Validation is left to the caller because the transport and destination may
// still arrive as command-line arguments.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("pipecopy.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// ApplyArgs overrides the transport path and destination directory with
// positional command-line values. Empty values leave the config untouched.
func (c *Config) ApplyArgs(transportPath, destinationDir string) error {
	var err error
	if strings.TrimSpace(transportPath) != "" {
		if c.Transport.Path, err = expandPath(strings.TrimSpace(transportPath)); err != nil {
			return fmt.Errorf("transport path: %w", err)
		}
	}
	if strings.TrimSpace(destinationDir) != "" {
		if c.Copy.DestinationDir, err = expandPath(strings.TrimSpace(destinationDir)); err != nil {
			return fmt.Errorf("destination dir: %w", err)
		}
	}
	return nil
}

// EnsureDirectories creates the directories required for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Copy.DestinationDir) != "" {
		if err := os.MkdirAll(c.Copy.DestinationDir, 0o755); err != nil {
			return fmt.Errorf("create destination directory %q: %w", c.Copy.DestinationDir, err)
		}
	}
	return nil
}

// SocketPath returns the control socket location.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.StateDir, "pipecopy.sock")
}

// LockPath returns the single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "pipecopy.lock")
}

// PIDPath returns the daemon pid file location.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.StateDir, "pipecopy.pid")
}

// CopyFileMode returns the parsed destination file mode.
func (c *Config) CopyFileMode() os.FileMode {
	mode, err := parseFileMode(c.Copy.FileMode)
	if err != nil {
		return defaultCopyFileMode
	}
	return mode
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
