package pipeline

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"pipecopy/internal/copier"
	"pipecopy/internal/failure"
	"pipecopy/internal/fileutil"
	"pipecopy/internal/logging"
	"pipecopy/internal/metrics"
	"pipecopy/internal/queue"
	"pipecopy/internal/transport"
)

// Snapshot describes a running pipeline for status reporting.
type Snapshot struct {
	State         string         `json:"state"`
	RunID         string         `json:"run_id"`
	Transport     string         `json:"transport"`
	Destination   string         `json:"destination"`
	QueueDepth    int            `json:"queue_depth"`
	QueueCapacity int            `json:"queue_capacity"`
	StartedAt     time.Time      `json:"started_at"`
	Counts        metrics.Counts `json:"counts"`
}

// Controller owns the queue and the two workers of one pipeline run.
type Controller struct {
	settings Settings
	base     *slog.Logger
	logger   *slog.Logger
	recorder copier.Recorder
	metrics  *metrics.Metrics
	copyFunc fileutil.CopyFunc
	prompt   io.Writer

	state atomic.Int32

	mu        sync.Mutex
	queue     *queue.Bounded[string]
	listener  *transport.Listener
	copier    *copier.Copier
	startedAt time.Time
	runErr    error

	shutdownOnce sync.Once
	stopped      chan struct{}
}

// New validates settings and prepares a controller. No goroutine starts
// until Start.
func New(settings Settings, opts ...Option) (*Controller, error) {
	if err := settings.validate(); err != nil {
		return nil, err
	}
	c := &Controller{
		settings: settings,
		logger:   logging.NewNop(),
		stopped:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = metrics.New(nil)
	}
	c.base = c.logger
	if settings.RunID != "" {
		c.base = c.base.With(logging.String(logging.FieldRunID, settings.RunID))
	}
	c.logger = logging.NewComponentLogger(c.base, "pipeline")
	return c, nil
}

// Start creates the queue, opens the transport, and launches the copier and
// listener. A transport failure leaves the controller Stopped and is returned
// as a *failure.TransportCreationError.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if State(c.state.Load()) != StateIdle {
		return fmt.Errorf("pipeline start: already %s", State(c.state.Load()))
	}

	q, err := queue.New[string](c.settings.QueueCapacity)
	if err != nil {
		return err
	}

	listener := transport.NewListener(c.settings.TransportPath, q,
		transport.WithLogger(logging.NewComponentLogger(c.baseLogger(), "transport")),
		transport.WithReadBufferSize(c.settings.ReadBufferSize),
		transport.WithBOMDetection(c.settings.DetectBOM),
		transport.WithObserver(c.metrics),
	)
	if err := listener.Open(); err != nil {
		q.Finish()
		c.setState(StateStopped)
		c.shutdownOnce.Do(func() { close(c.stopped) })
		logging.ErrorWithContext(c.logger, "transport creation failed", "transport_create_failed",
			logging.String(logging.FieldTransport, c.settings.TransportPath),
			logging.Error(err),
			logging.ErrorKind(err),
			logging.String(logging.FieldErrorHint, "check that the pipe directory exists and is writable"),
		)
		return err
	}

	copyOpts := []copier.Option{
		copier.WithLogger(logging.NewComponentLogger(c.baseLogger(), "copier")),
		copier.WithVerify(c.settings.Verify),
		copier.WithFileMode(c.settings.FileMode),
		copier.WithObserver(c.metrics),
		copier.WithRunID(c.settings.RunID),
	}
	if c.recorder != nil {
		copyOpts = append(copyOpts, copier.WithRecorder(c.recorder))
	}
	if c.copyFunc != nil {
		copyOpts = append(copyOpts, copier.WithCopyFunc(c.copyFunc))
	}
	cp := copier.New(q, c.settings.DestinationDir, copyOpts...)

	c.queue = q
	c.listener = listener
	c.copier = cp
	c.startedAt = time.Now()
	c.metrics.SetQueueProbe(func() (int, int) { return q.Len(), q.Cap() })
	c.setState(StateRunning)

	go cp.Run(context.WithoutCancel(ctx))
	go c.runListener(listener)

	c.logger.Info("pipeline running",
		logging.String(logging.FieldEventType, "pipeline_running"),
		logging.String(logging.FieldTransport, c.settings.TransportPath),
		logging.String(logging.FieldDestination, c.settings.DestinationDir),
		logging.Int("queue_capacity", q.Cap()),
	)
	return nil
}

func (c *Controller) runListener(l *transport.Listener) {
	err := l.Run()
	if err == nil {
		return
	}
	logging.ErrorWithContext(c.logger, "transport listener failed; stopping pipeline", "transport_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "restart pipecopy once the pipe is available again"),
	)
	c.mu.Lock()
	c.runErr = failure.Wrap(failure.ErrTransportCreation, "transport", "listen",
		"pipe "+l.Path()+" became unusable while running", err)
	c.mu.Unlock()
	c.RequestStop()
}

// Err reports why the pipeline stopped on its own. It is nil after a
// requested shutdown.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runErr
}

// RunCommands reads command lines from r until the exit token arrives, ctx is
// cancelled, or the pipeline stops for another reason. End of input does not
// stop the pipeline. Other lines are ignored.
func (c *Controller) RunCommands(ctx context.Context, r io.Reader) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		readErr <- c.readCommands(r, lines)
	}()

	c.writePrompt()
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("shutdown requested by context", logging.String(logging.FieldEventType, "shutdown_requested"))
			c.Shutdown()
			return nil
		case <-c.stopped:
			return nil
		case err := <-readErr:
			readErr = nil
			if err != nil {
				logging.WarnWithContext(c.logger, "command input failed; waiting for other stop requests", "command_input_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "exit token can no longer be entered"),
					logging.String(logging.FieldErrorHint, "use 'pipecopy stop' or send SIGTERM"),
				)
			} else {
				c.logger.Debug("command input closed")
			}
		case line := <-lines:
			command := strings.TrimSpace(line)
			if command == c.settings.ExitToken {
				c.logger.Info("exit command received", logging.String(logging.FieldEventType, "shutdown_requested"))
				c.Shutdown()
				return nil
			}
			if command != "" {
				c.logger.Debug("ignoring unknown command", logging.String("command", command))
			}
			c.writePrompt()
		}
	}
}

// readCommands delivers each line of r to lines. Lines longer than
// maxCommandBytes are skipped whole so later commands still arrive.
func (c *Controller) readCommands(r io.Reader, lines chan<- string) error {
	br := bufio.NewReaderSize(r, maxCommandBytes)
	oversized := false
	for {
		chunk, err := br.ReadSlice('\n')
		if errors.Is(err, bufio.ErrBufferFull) {
			oversized = true
			continue
		}
		if oversized {
			oversized = false
			c.logger.Debug("ignoring oversized command line")
		} else if len(chunk) > 0 {
			select {
			case lines <- strings.TrimRight(string(chunk), "\r\n"):
			case <-c.stopped:
				return nil
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// RequestStop begins shutdown without waiting for it to complete.
func (c *Controller) RequestStop() {
	go c.Shutdown()
}

// Shutdown stops the pipeline and blocks until both workers have exited.
// Paths already queued are copied before it returns. Calling it more than
// once, or concurrently, is safe.
func (c *Controller) Shutdown() {
	c.shutdownOnce.Do(func() {
		defer close(c.stopped)

		c.mu.Lock()
		q, listener, cp := c.queue, c.listener, c.copier
		c.mu.Unlock()
		if q == nil {
			c.setState(StateStopped)
			return
		}

		c.setState(StateShuttingDown)
		c.logger.Info("pipeline shutting down",
			logging.String(logging.FieldEventType, "pipeline_shutting_down"),
			logging.Int("queued", q.Len()),
		)

		q.Finish()
		<-cp.Done()

		if err := listener.Poke(); err != nil {
			logging.WarnWithContext(c.logger, "transport poke failed; waiting for next writer", "transport_poke_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "shutdown completes when a writer next connects"),
				logging.String(logging.FieldErrorHint, "write a newline into the pipe to finish shutdown"),
			)
		}
		<-listener.Done()
		if err := listener.Close(); err != nil {
			c.logger.Debug("transport close failed", logging.Error(err))
		}

		c.mu.Lock()
		c.queue = nil
		c.mu.Unlock()
		c.metrics.SetQueueProbe(nil)
		c.setState(StateStopped)

		counts := c.metrics.Snapshot()
		c.logger.Info("pipeline stopped",
			logging.String(logging.FieldEventType, "pipeline_stopped"),
			logging.Int64("copied", counts.CopiesSucceeded),
			logging.Int64("failed", counts.CopiesFailed),
		)
	})
	<-c.stopped
}

// Stopped is closed once shutdown has completed.
func (c *Controller) Stopped() <-chan struct{} {
	return c.stopped
}

// State reports the lifecycle position.
func (c *Controller) State() State {
	return State(c.state.Load())
}

// Snapshot reports the current state, queue occupancy, and counters.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	q, started := c.queue, c.startedAt
	c.mu.Unlock()

	snap := Snapshot{
		State:         c.State().String(),
		RunID:         c.settings.RunID,
		Transport:     c.settings.TransportPath,
		Destination:   c.settings.DestinationDir,
		QueueCapacity: c.settings.QueueCapacity,
		StartedAt:     started,
		Counts:        c.metrics.Snapshot(),
	}
	if q != nil {
		snap.QueueDepth = q.Len()
	}
	return snap
}

// IsStartupError reports whether err came from validating settings or
// creating the transport, both of which abort a run before any copy. A
// transport that fails later, reported by Err, is not a startup error.
func IsStartupError(err error) bool {
	var transportErr *failure.TransportCreationError
	return errors.Is(err, failure.ErrConfiguration) || errors.As(err, &transportErr)
}

func (c *Controller) setState(s State) {
	prev := State(c.state.Swap(int32(s)))
	if prev != s {
		c.logger.Debug("pipeline state changed",
			logging.String(logging.FieldState, s.String()),
			logging.String("previous", prev.String()),
		)
	}
}

func (c *Controller) baseLogger() *slog.Logger {
	return c.base
}

func (c *Controller) writePrompt() {
	if c.prompt != nil {
		fmt.Fprint(c.prompt, "> ")
	}
}
