package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"pipecopy/internal/config"
	"pipecopy/internal/failure"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantState := filepath.Join(tempHome, ".local", "state", "pipecopy")
	if cfg.Paths.StateDir != wantState {
		t.Fatalf("unexpected state dir: got %q want %q", cfg.Paths.StateDir, wantState)
	}
	if cfg.Ledger.Path != filepath.Join(wantState, "ledger.db") {
		t.Fatalf("unexpected ledger path: %q", cfg.Ledger.Path)
	}
	if cfg.Queue.Capacity != 10 {
		t.Fatalf("expected default capacity 10, got %d", cfg.Queue.Capacity)
	}
	if cfg.Control.ExitToken != "exit" {
		t.Fatalf("unexpected exit token: %q", cfg.Control.ExitToken)
	}
	if cfg.SocketPath() != filepath.Join(wantState, "pipecopy.sock") {
		t.Fatalf("unexpected socket path: %q", cfg.SocketPath())
	}
}

func TestLoadReadsProjectFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	project := t.TempDir()
	t.Chdir(project)

	contents := `
[transport]
path = "in.fifo"

[copy]
destination_dir = "out"

[queue]
capacity = 3

[logging]
format = "JSON"
level = "DEBUG"
`
	if err := os.WriteFile(filepath.Join(project, "pipecopy.toml"), []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || !strings.HasSuffix(resolved, "pipecopy.toml") {
		t.Fatalf("expected project config to be used, got %q exists=%v", resolved, exists)
	}
	if cfg.Transport.Path != filepath.Join(project, "in.fifo") {
		t.Fatalf("unexpected transport path: %q", cfg.Transport.Path)
	}
	if cfg.Copy.DestinationDir != filepath.Join(project, "out") {
		t.Fatalf("unexpected destination: %q", cfg.Copy.DestinationDir)
	}
	if cfg.Queue.Capacity != 3 {
		t.Fatalf("unexpected capacity: %d", cfg.Queue.Capacity)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("expected normalized logging, got %q/%q", cfg.Logging.Format, cfg.Logging.Level)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[queue]\nsize = 4\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected unknown field to be rejected")
	}
}

func TestEnvironmentFallbacks(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())
	base := t.TempDir()
	t.Setenv("PIPECOPY_TRANSPORT", filepath.Join(base, "env.fifo"))
	t.Setenv("PIPECOPY_DESTINATION", filepath.Join(base, "dest"))
	t.Setenv("PIPECOPY_LOG_LEVEL", "warn")

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Transport.Path != filepath.Join(base, "env.fifo") {
		t.Fatalf("expected env transport, got %q", cfg.Transport.Path)
	}
	if cfg.Copy.DestinationDir != filepath.Join(base, "dest") {
		t.Fatalf("expected env destination, got %q", cfg.Copy.DestinationDir)
	}
	if cfg.Logging.Level != "warn" {
		t.Fatalf("expected env log level, got %q", cfg.Logging.Level)
	}
}

func TestApplyArgsOverridesConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Transport.Path = "/tmp/from-config.fifo"
	base := t.TempDir()

	if err := cfg.ApplyArgs(filepath.Join(base, "arg.fifo"), ""); err != nil {
		t.Fatalf("ApplyArgs returned error: %v", err)
	}
	if cfg.Transport.Path != filepath.Join(base, "arg.fifo") {
		t.Fatalf("expected argument to win, got %q", cfg.Transport.Path)
	}
	if cfg.Copy.DestinationDir != "" {
		t.Fatalf("expected empty destination untouched, got %q", cfg.Copy.DestinationDir)
	}
}

func TestValidateReportsConfigurationErrors(t *testing.T) {
	base := t.TempDir()
	valid := func() config.Config {
		cfg := config.Default()
		cfg.Transport.Path = filepath.Join(base, "in.fifo")
		cfg.Copy.DestinationDir = filepath.Join(base, "out")
		return cfg
	}

	cases := []struct {
		name   string
		mutate func(*config.Config)
		field  string
	}{
		{"missing transport", func(c *config.Config) { c.Transport.Path = "" }, "transport.path"},
		{"missing destination", func(c *config.Config) { c.Copy.DestinationDir = "" }, "copy.destination_dir"},
		{"zero capacity", func(c *config.Config) { c.Queue.Capacity = 0 }, "queue.capacity"},
		{"tiny read buffer", func(c *config.Config) { c.Transport.ReadBufferSize = 1 }, "transport.read_buffer_size"},
		{"bad file mode", func(c *config.Config) { c.Copy.FileMode = "rw-r--r--" }, "copy.file_mode"},
		{"bad metrics bind", func(c *config.Config) { c.Metrics.Bind = "9464" }, "metrics.bind"},
		{"bad log level", func(c *config.Config) { c.Logging.Level = "loud" }, "logging.level"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, failure.ErrConfiguration) {
				t.Fatalf("expected configuration error, got %v", err)
			}
			var cfgErr *failure.ConfigurationError
			if !errors.As(err, &cfgErr) || cfgErr.Field != tc.field {
				t.Fatalf("expected field %q, got %v", tc.field, err)
			}
		})
	}

	cfg := valid()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestValidateRejectsFileDestination(t *testing.T) {
	base := t.TempDir()
	file := filepath.Join(base, "not-a-dir")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	cfg := config.Default()
	cfg.Transport.Path = filepath.Join(base, "in.fifo")
	cfg.Copy.DestinationDir = file
	if err := cfg.Validate(); !errors.Is(err, failure.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestCreateSampleProducesLoadableConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		t.Fatalf("sample is not valid TOML: %v", err)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("sample config should validate: %v", err)
	}
}

func TestEnsureDirectoriesCreatesStateAndDestination(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Paths.LogDir = filepath.Join(base, "state", "logs")
	cfg.Copy.DestinationDir = filepath.Join(base, "dest")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories returned error: %v", err)
	}
	for _, dir := range []string{cfg.Paths.StateDir, cfg.Paths.LogDir, cfg.Copy.DestinationDir} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Fatalf("expected directory %q, err=%v", dir, err)
		}
	}
}

func TestCopyFileModeParsesOctal(t *testing.T) {
	cfg := config.Default()
	cfg.Copy.FileMode = "0600"
	if got := cfg.CopyFileMode(); got != 0o600 {
		t.Fatalf("unexpected mode: %v", got)
	}
	cfg.Copy.FileMode = "garbage"
	if got := cfg.CopyFileMode(); got != 0o644 {
		t.Fatalf("expected fallback mode, got %v", got)
	}
}
