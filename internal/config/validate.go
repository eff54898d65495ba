package config

import (
	"fmt"
	"net"
	"os"
	"strings"

	"pipecopy/internal/failure"
)

// Validate ensures the configuration is usable. Every failure is a
// *failure.ConfigurationError.
func (c *Config) Validate() error {
	if err := c.validateTransport(); err != nil {
		return err
	}
	if err := c.validateCopy(); err != nil {
		return err
	}
	if err := c.validateQueue(); err != nil {
		return err
	}
	if c.Ledger.RetentionDays < 0 {
		return failure.Configuration("ledger.retention_days", "must not be negative")
	}
	if err := c.validateMetrics(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateTransport() error {
	if strings.TrimSpace(c.Transport.Path) == "" {
		return failure.Configuration("transport.path", "is required (pass it as the first argument or set PIPECOPY_TRANSPORT)")
	}
	if c.Transport.ReadBufferSize < minReadBufferSize || c.Transport.ReadBufferSize > maxReadBufferSize {
		return failure.Configuration("transport.read_buffer_size",
			fmt.Sprintf("must be between %d and %d", minReadBufferSize, maxReadBufferSize))
	}
	return nil
}

func (c *Config) validateCopy() error {
	dest := strings.TrimSpace(c.Copy.DestinationDir)
	if dest == "" {
		return failure.Configuration("copy.destination_dir", "is required (pass it as the second argument or set PIPECOPY_DESTINATION)")
	}
	if info, err := os.Stat(dest); err == nil && !info.IsDir() {
		return failure.Configuration("copy.destination_dir", fmt.Sprintf("%q is not a directory", dest))
	}
	if dest == c.Transport.Path {
		return failure.Configuration("copy.destination_dir", "must differ from transport.path")
	}
	if _, err := parseFileMode(c.Copy.FileMode); err != nil {
		return failure.Configuration("copy.file_mode", err.Error())
	}
	return nil
}

func (c *Config) validateQueue() error {
	if c.Queue.Capacity < 1 {
		return failure.Configuration("queue.capacity", "must be at least 1")
	}
	return nil
}

func (c *Config) validateMetrics() error {
	if c.Metrics.Bind == "" {
		return nil
	}
	if _, _, err := net.SplitHostPort(c.Metrics.Bind); err != nil {
		return failure.Configuration("metrics.bind", fmt.Sprintf("must be host:port (%v)", err))
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return failure.Configuration("logging.level", fmt.Sprintf("unsupported value %q", c.Logging.Level))
	}
}
