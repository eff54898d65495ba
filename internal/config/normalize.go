package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeTransport(); err != nil {
		return err
	}
	if err := c.normalizeCopy(); err != nil {
		return err
	}
	if err := c.normalizeLedger(); err != nil {
		return err
	}
	c.normalizeControl()
	c.Metrics.Bind = strings.TrimSpace(c.Metrics.Bind)
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = filepath.Join(c.Paths.StateDir, "logs")
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeTransport() error {
	if c.Transport.Path == "" {
		if value, ok := os.LookupEnv("PIPECOPY_TRANSPORT"); ok {
			c.Transport.Path = strings.TrimSpace(value)
		}
	}
	var err error
	if c.Transport.Path, err = expandPath(strings.TrimSpace(c.Transport.Path)); err != nil {
		return fmt.Errorf("transport.path: %w", err)
	}
	if c.Transport.ReadBufferSize <= 0 {
		c.Transport.ReadBufferSize = defaultReadBufferSize
	}
	return nil
}

func (c *Config) normalizeCopy() error {
	if c.Copy.DestinationDir == "" {
		if value, ok := os.LookupEnv("PIPECOPY_DESTINATION"); ok {
			c.Copy.DestinationDir = strings.TrimSpace(value)
		}
	}
	var err error
	if c.Copy.DestinationDir, err = expandPath(strings.TrimSpace(c.Copy.DestinationDir)); err != nil {
		return fmt.Errorf("copy.destination_dir: %w", err)
	}
	c.Copy.FileMode = strings.TrimSpace(c.Copy.FileMode)
	if c.Copy.FileMode == "" {
		c.Copy.FileMode = defaultCopyFileModeText
	}
	return nil
}

func (c *Config) normalizeLedger() error {
	if strings.TrimSpace(c.Ledger.Path) == "" {
		c.Ledger.Path = filepath.Join(c.Paths.StateDir, defaultLedgerFile)
	}
	var err error
	if c.Ledger.Path, err = expandPath(strings.TrimSpace(c.Ledger.Path)); err != nil {
		return fmt.Errorf("ledger.path: %w", err)
	}
	return nil
}

func (c *Config) normalizeControl() {
	c.Control.ExitToken = strings.TrimSpace(c.Control.ExitToken)
	if c.Control.ExitToken == "" {
		c.Control.ExitToken = defaultExitToken
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	if value, ok := os.LookupEnv("PIPECOPY_LOG_LEVEL"); ok && strings.TrimSpace(value) != "" {
		c.Logging.Level = value
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}

func parseFileMode(value string) (os.FileMode, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(value), "0o")
	parsed, err := strconv.ParseUint(trimmed, 8, 32)
	if err != nil {
		return 0, fmt.Errorf("parse file mode %q: %w", value, err)
	}
	return os.FileMode(parsed) & os.ModePerm, nil
}
