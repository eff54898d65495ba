package pipeline_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pipecopy/internal/failure"
	"pipecopy/internal/pipeline"
)

const waitTimeout = 5 * time.Second

type fixture struct {
	srcDir  string
	destDir string
	fifo    string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	base := t.TempDir()
	f := fixture{
		srcDir:  filepath.Join(base, "src"),
		destDir: filepath.Join(base, "dest"),
		fifo:    filepath.Join(base, "in.fifo"),
	}
	require.NoError(t, os.MkdirAll(f.srcDir, 0o755))
	require.NoError(t, os.MkdirAll(f.destDir, 0o755))
	return f
}

func (f fixture) settings(capacity int) pipeline.Settings {
	return pipeline.Settings{
		TransportPath:  f.fifo,
		DestinationDir: f.destDir,
		QueueCapacity:  capacity,
		RunID:          "test-run",
	}
}

func (f fixture) source(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(f.srcDir, name)
	require.NoError(t, os.WriteFile(path, []byte("content of "+name), 0o644))
	return path
}

func (f fixture) send(t *testing.T, records ...string) {
	t.Helper()
	w, err := os.OpenFile(f.fifo, os.O_WRONLY, 0)
	require.NoError(t, err)
	defer w.Close()
	_, err = w.Write([]byte(strings.Join(records, "\n") + "\n"))
	require.NoError(t, err)
}

func startController(t *testing.T, settings pipeline.Settings, opts ...pipeline.Option) *pipeline.Controller {
	t.Helper()
	c, err := pipeline.New(settings, opts...)
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(c.Shutdown)
	return c
}

func waitStopped(t *testing.T, c *pipeline.Controller) {
	t.Helper()
	select {
	case <-c.Stopped():
	case <-time.After(waitTimeout):
		t.Fatalf("pipeline did not stop; state %s", c.State())
	}
}

func TestNewRejectsMissingParameters(t *testing.T) {
	f := newFixture(t)
	cases := map[string]func(*pipeline.Settings){
		"transport.path":       func(s *pipeline.Settings) { s.TransportPath = " " },
		"copy.destination_dir": func(s *pipeline.Settings) { s.DestinationDir = "" },
		"queue.capacity":       func(s *pipeline.Settings) { s.QueueCapacity = 0 },
	}
	for field, mutate := range cases {
		t.Run(field, func(t *testing.T) {
			s := f.settings(2)
			mutate(&s)
			_, err := pipeline.New(s)
			require.Error(t, err)
			var cfgErr *failure.ConfigurationError
			require.True(t, errors.As(err, &cfgErr), "unexpected error %v", err)
			assert.Equal(t, field, cfgErr.Field)
			assert.True(t, pipeline.IsStartupError(err))
		})
	}
}

func TestStartFailsCleanlyWhenTransportCannotBeCreated(t *testing.T) {
	f := newFixture(t)
	s := f.settings(2)
	s.TransportPath = filepath.Join(f.srcDir, "missing", "in.fifo")

	c, err := pipeline.New(s)
	require.NoError(t, err)

	err = c.Start(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, failure.ErrTransportCreation))
	assert.True(t, pipeline.IsStartupError(err))
	assert.Equal(t, pipeline.StateStopped, c.State())
	waitStopped(t, c)

	c.Shutdown()
	assert.Equal(t, pipeline.StateStopped, c.State())
}

func TestStartTwiceFails(t *testing.T) {
	f := newFixture(t)
	c := startController(t, f.settings(2))
	assert.Error(t, c.Start(context.Background()))
}

func TestExitTokenStopsPipelineAfterCopying(t *testing.T) {
	f := newFixture(t)
	c := startController(t, f.settings(2))
	assert.Equal(t, pipeline.StateRunning, c.State())

	names := []string{"a.txt", "b.txt", "c.txt", "d.txt"}
	var records []string
	for _, name := range names {
		records = append(records, f.source(t, name))
	}
	f.send(t, records...)

	require.Eventually(t, func() bool {
		return c.Snapshot().Counts.CopiesSucceeded == int64(len(names))
	}, waitTimeout, 10*time.Millisecond)

	err := c.RunCommands(context.Background(), strings.NewReader("status\n\n  exit  \nignored\n"))
	require.NoError(t, err)

	assert.Equal(t, pipeline.StateStopped, c.State())
	for _, name := range names {
		got, err := os.ReadFile(filepath.Join(f.destDir, name))
		require.NoError(t, err)
		assert.Equal(t, "content of "+name, string(got))
	}
	_, err = os.Stat(f.fifo)
	assert.True(t, os.IsNotExist(err), "pipe should be removed")
}

func TestShutdownDrainsBufferedPaths(t *testing.T) {
	f := newFixture(t)
	gate := make(chan struct{})
	var mu sync.Mutex
	var copied []string
	slowCopy := func(src, dst string, _ os.FileMode) (int64, error) {
		<-gate
		mu.Lock()
		defer mu.Unlock()
		copied = append(copied, filepath.Base(dst))
		return 1, nil
	}

	c := startController(t, f.settings(3), pipeline.WithCopyFunc(slowCopy))
	f.send(t, "/x/1", "/x/2", "/x/3")
	require.Eventually(t, func() bool {
		return c.Snapshot().Counts.RecordsAccepted == 3
	}, waitTimeout, 10*time.Millisecond)

	done := make(chan struct{})
	go func() {
		c.Shutdown()
		close(done)
	}()

	require.Eventually(t, func() bool {
		return c.State() == pipeline.StateShuttingDown
	}, waitTimeout, 5*time.Millisecond)
	select {
	case <-done:
		t.Fatal("shutdown finished before buffered paths were copied")
	case <-time.After(50 * time.Millisecond):
	}

	close(gate)
	select {
	case <-done:
	case <-time.After(waitTimeout):
		t.Fatal("shutdown did not complete")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"1", "2", "3"}, copied)
	assert.Equal(t, pipeline.StateStopped, c.State())
	assert.Equal(t, 0, c.Snapshot().QueueDepth)
}

func TestShutdownWhileListenerBlockedWithoutWriters(t *testing.T) {
	f := newFixture(t)
	c := startController(t, f.settings(1))
	time.Sleep(50 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		c.Shutdown()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(waitTimeout):
		t.Fatal("shutdown hung on blocked listener")
	}
	_, err := os.Stat(f.fifo)
	assert.True(t, os.IsNotExist(err))
}

func TestCommandEOFKeepsRunningUntilContextCancelled(t *testing.T) {
	f := newFixture(t)
	c := startController(t, f.settings(2))

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() { result <- c.RunCommands(ctx, strings.NewReader("hello\n")) }()

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, pipeline.StateRunning, c.State(), "EOF on commands must not stop the pipeline")

	cancel()
	select {
	case err := <-result:
		require.NoError(t, err)
	case <-time.After(waitTimeout):
		t.Fatal("RunCommands did not return after cancel")
	}
	assert.Equal(t, pipeline.StateStopped, c.State())
}

func TestOversizedCommandLineDoesNotDisableExit(t *testing.T) {
	f := newFixture(t)
	c := startController(t, f.settings(2))

	input := strings.Repeat("x", 70*1024) + "\nexit\n"
	result := make(chan error, 1)
	go func() { result <- c.RunCommands(context.Background(), strings.NewReader(input)) }()

	select {
	case err := <-result:
		require.NoError(t, err)
	case <-time.After(waitTimeout):
		t.Fatalf("exit after a long line was ignored; state %s", c.State())
	}
	assert.Equal(t, pipeline.StateStopped, c.State())
}

func TestCommandWithoutTrailingNewlineIsHonoured(t *testing.T) {
	f := newFixture(t)
	c := startController(t, f.settings(2))

	require.NoError(t, c.RunCommands(context.Background(), strings.NewReader("status\r\nexit")))
	assert.Equal(t, pipeline.StateStopped, c.State())
}

func TestListenerFailureIsReportedByErr(t *testing.T) {
	f := newFixture(t)
	c := startController(t, f.settings(2))

	w, err := os.OpenFile(f.fifo, os.O_WRONLY, 0)
	require.NoError(t, err)
	require.NoError(t, os.Remove(f.fifo))
	require.NoError(t, w.Close())

	waitStopped(t, c)
	err = c.Err()
	require.Error(t, err)
	assert.True(t, errors.Is(err, failure.ErrTransportCreation), "unexpected error %v", err)
	assert.True(t, errors.Is(err, os.ErrNotExist), "unexpected error %v", err)
	assert.False(t, pipeline.IsStartupError(err))
}

func TestRequestedShutdownLeavesErrNil(t *testing.T) {
	f := newFixture(t)
	c := startController(t, f.settings(2))
	c.Shutdown()
	assert.NoError(t, c.Err())
}

func TestRequestStopEndsCommandLoop(t *testing.T) {
	f := newFixture(t)
	c := startController(t, f.settings(2))

	pr, pw := io.Pipe()
	defer pw.Close()
	result := make(chan error, 1)
	go func() { result <- c.RunCommands(context.Background(), pr) }()

	c.RequestStop()
	waitStopped(t, c)
	select {
	case err := <-result:
		require.NoError(t, err)
	case <-time.After(waitTimeout):
		t.Fatal("RunCommands did not observe stop")
	}
}

func TestCustomExitTokenAndPrompt(t *testing.T) {
	f := newFixture(t)
	s := f.settings(2)
	s.ExitToken = "quit"
	var prompt strings.Builder
	c, err := pipeline.New(s, pipeline.WithPrompt(&prompt))
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))

	require.NoError(t, c.RunCommands(context.Background(), strings.NewReader("exit\nquit\n")))
	assert.Equal(t, pipeline.StateStopped, c.State())
	assert.Equal(t, "> > ", prompt.String())
}

func TestConcurrentShutdownIsIdempotent(t *testing.T) {
	f := newFixture(t)
	c := startController(t, f.settings(2))

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Shutdown()
		}()
	}
	wg.Wait()
	assert.Equal(t, pipeline.StateStopped, c.State())
}

func TestSnapshotReportsSettings(t *testing.T) {
	f := newFixture(t)
	c, err := pipeline.New(f.settings(7))
	require.NoError(t, err)
	assert.Equal(t, "idle", c.Snapshot().State)

	require.NoError(t, c.Start(context.Background()))
	defer c.Shutdown()

	snap := c.Snapshot()
	assert.Equal(t, "running", snap.State)
	assert.Equal(t, "test-run", snap.RunID)
	assert.Equal(t, f.fifo, snap.Transport)
	assert.Equal(t, f.destDir, snap.Destination)
	assert.Equal(t, 7, snap.QueueCapacity)
	assert.False(t, snap.StartedAt.IsZero())
}
