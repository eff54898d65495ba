package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"pipecopy/internal/config"
	"pipecopy/internal/failure"
	"pipecopy/internal/ipc"
	"pipecopy/internal/ledger"
	"pipecopy/internal/logging"
	"pipecopy/internal/metrics"
	"pipecopy/internal/pipeline"
)

// ErrAlreadyRunning reports that another process holds the state directory lock.
var ErrAlreadyRunning = errors.New("pipecopy is already running for this state directory")

// Options configures process runtime behavior.
type Options struct {
	// Stdin supplies command lines. Nil disables the command loop.
	Stdin io.Reader
	// Prompt receives "> " before each command when Stdin is a terminal.
	Prompt io.Writer
	// RunID overrides the generated run identifier.
	RunID string
}

// Run starts the pipeline and blocks until it has stopped. Configuration and
// transport failures are returned before any path is copied.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return failure.Wrap(failure.ErrConfiguration, "daemon", "prepare directories",
			"state, log, or destination directory is unusable", err)
	}

	lock := flock.New(cfg.LockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("%w (lock %s)", ErrAlreadyRunning, cfg.LockPath())
	}
	defer func() { _ = lock.Unlock() }()

	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	logPath := filepath.Join(cfg.Paths.LogDir,
		fmt.Sprintf("pipecopy-%s.log", time.Now().UTC().Format("20060102T150405.000Z")))
	baseLogger, err := logging.NewFromConfig(cfg, logPath)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	// The controller tags its own records with the run id.
	logger := baseLogger.With(logging.String(logging.FieldRunID, runID))
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update pipecopy.log link: %v\n", err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays, cfg.Paths.LogDir, "pipecopy-*.log", logPath)

	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	ctrlOpts := []pipeline.Option{pipeline.WithLogger(baseLogger)}

	store := openLedger(signalCtx, cfg, logger)
	if store != nil {
		defer store.Close()
		ctrlOpts = append(ctrlOpts, pipeline.WithRecorder(store))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	ctrlOpts = append(ctrlOpts, pipeline.WithMetrics(metrics.New(registry)))
	if cfg.Metrics.Bind != "" {
		srv, err := metrics.NewServer(cfg.Metrics.Bind, registry, logger)
		if err != nil {
			return fmt.Errorf("start metrics endpoint: %w", err)
		}
		go func() {
			if err := srv.Serve(signalCtx); err != nil {
				logging.WarnWithContext(logger, "metrics endpoint stopped", "metrics_serve_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "Prometheus scrapes will fail"))
			}
		}()
	}

	commands := opts.Stdin
	if !cfg.Control.Stdin {
		commands = nil
	}
	if commands != nil && opts.Prompt != nil && isTerminal(commands) {
		ctrlOpts = append(ctrlOpts, pipeline.WithPrompt(opts.Prompt))
	}

	ctrl, err := pipeline.New(pipeline.SettingsFromConfig(cfg, runID), ctrlOpts...)
	if err != nil {
		return err
	}

	ledgerPath := ""
	if store != nil {
		ledgerPath = store.Path()
	}
	ipcServer, err := ipc.NewServer(signalCtx, cfg.SocketPath(), ctrl,
		ipc.Info{PID: os.Getpid(), LedgerPath: ledgerPath, LogPath: logPath}, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := ctrl.Start(signalCtx); err != nil {
		return err
	}
	logger.Info("pipecopy started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String(logging.FieldTransport, cfg.Transport.Path),
		logging.String(logging.FieldDestination, cfg.Copy.DestinationDir),
		logging.Bool("commands_enabled", commands != nil),
		logging.String("exit_token", cfg.Control.ExitToken),
		logging.String("socket", cfg.SocketPath()),
	)

	if commands != nil {
		if err := ctrl.RunCommands(signalCtx, commands); err != nil {
			return err
		}
	} else {
		select {
		case <-signalCtx.Done():
			ctrl.Shutdown()
		case <-ctrl.Stopped():
		}
	}
	<-ctrl.Stopped()

	snap := ctrl.Snapshot()
	logger.Info("pipecopy exiting",
		logging.String(logging.FieldEventType, "daemon_stopped"),
		logging.Int64("copied", snap.Counts.CopiesSucceeded),
		logging.Int64("failed", snap.Counts.CopiesFailed),
		logging.String("bytes", humanize.IBytes(uint64(snap.Counts.BytesCopied))),
	)
	return ctrl.Err()
}

func openLedger(ctx context.Context, cfg *config.Config, logger *slog.Logger) *ledger.Store {
	if !cfg.Ledger.Enabled {
		return nil
	}
	store, err := ledger.Open(cfg.Ledger.Path)
	if err != nil {
		logging.WarnWithContext(logger, "copy ledger unavailable; continuing without history", "ledger_open_failed",
			logging.String("path", cfg.Ledger.Path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "copy outcomes will not appear in 'pipecopy history'"),
			logging.String(logging.FieldErrorHint, "check ledger.path or delete a ledger with an old schema"),
		)
		return nil
	}
	if days := cfg.Ledger.RetentionDays; days > 0 {
		cutoff := time.Now().AddDate(0, 0, -days)
		removed, err := store.Prune(ctx, cutoff)
		switch {
		case err != nil:
			logging.WarnWithContext(logger, "ledger prune failed", "ledger_prune_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "old copy history is kept"))
		case removed > 0:
			logger.Info("pruned copy ledger",
				logging.String(logging.FieldEventType, "ledger_pruned"),
				logging.Int64("removed", removed),
				logging.Int("retention_days", days))
		}
	}
	return store
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "pipecopy.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

// ReadPID returns the pid recorded by a running daemon.
func ReadPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(string(trimNewline(data)))
}

func trimNewline(b []byte) []byte {
	for len(b) > 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r') {
		b = b[:len(b)-1]
	}
	return b
}
