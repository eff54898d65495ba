package transport_test

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/unicode"

	"pipecopy/internal/failure"
	"pipecopy/internal/queue"
	"pipecopy/internal/transport"
)

const waitTimeout = 5 * time.Second

type countingObserver struct {
	mu       sync.Mutex
	accepted int
	dropped  map[string]int
}

func (o *countingObserver) RecordAccepted() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.accepted++
}

func (o *countingObserver) RecordDropped(reason string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.dropped == nil {
		o.dropped = map[string]int{}
	}
	o.dropped[reason]++
}

func (o *countingObserver) droppedFor(reason string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.dropped[reason]
}

type runningListener struct {
	*transport.Listener
	errCh chan error
}

func startListener(t *testing.T, q *queue.Bounded[string], opts ...transport.ListenerOption) *runningListener {
	t.Helper()
	path := filepath.Join(t.TempDir(), "in.fifo")
	l := transport.NewListener(path, q, opts...)
	require.NoError(t, l.Open())

	rl := &runningListener{Listener: l, errCh: make(chan error, 1)}
	go func() { rl.errCh <- l.Run() }()
	t.Cleanup(func() {
		q.Finish()
		_ = l.Poke()
		select {
		case <-l.Done():
		case <-time.After(waitTimeout):
			t.Error("listener did not stop during cleanup")
		}
	})
	return rl
}

func (rl *runningListener) waitExit(t *testing.T) error {
	t.Helper()
	select {
	case <-rl.Done():
		return <-rl.errCh
	case <-time.After(waitTimeout):
		t.Fatal("listener did not exit")
		return nil
	}
}

func openWriter(t *testing.T, path string) *os.File {
	t.Helper()
	w, err := os.OpenFile(path, os.O_WRONLY, 0)
	require.NoError(t, err)
	return w
}

func takeWithin(t *testing.T, q *queue.Bounded[string]) string {
	t.Helper()
	got := make(chan string, 1)
	go func() {
		item, ok := q.Take()
		if ok {
			got <- item
		}
	}()
	select {
	case item := <-got:
		return item
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for record")
		return ""
	}
}

func TestOpenCreatesNamedPipe(t *testing.T) {
	q, err := queue.New[string](1)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "in.fifo")
	l := transport.NewListener(path, q)

	require.NoError(t, l.Open())
	t.Cleanup(func() { _ = l.Close() })

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.NotZero(t, info.Mode()&os.ModeNamedPipe)
}

func TestOpenReusesExistingPipe(t *testing.T) {
	q, err := queue.New[string](1)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "in.fifo")

	first := transport.NewListener(path, q)
	require.NoError(t, first.Open())
	require.NoError(t, first.Close())
	_, err = os.Stat(path)
	require.True(t, os.IsNotExist(err), "Close should remove the pipe")

	second := transport.NewListener(path, q)
	require.NoError(t, second.Open())
	require.NoError(t, second.Open())
	require.NoError(t, second.Close())
}

func TestOpenFailsForRegularFileAndMissingDirectory(t *testing.T) {
	q, err := queue.New[string](1)
	require.NoError(t, err)

	regular := filepath.Join(t.TempDir(), "plain")
	require.NoError(t, os.WriteFile(regular, []byte("x"), 0o644))

	for _, path := range []string{regular, filepath.Join(t.TempDir(), "missing", "in.fifo")} {
		err := transport.NewListener(path, q).Open()
		require.Error(t, err)
		assert.True(t, errors.Is(err, failure.ErrTransportCreation), "unexpected error %v", err)
		var tcErr *failure.TransportCreationError
		require.True(t, errors.As(err, &tcErr))
		assert.Equal(t, path, tcErr.Path)
	}

	content, err := os.ReadFile(regular)
	require.NoError(t, err)
	assert.Equal(t, "x", string(content), "existing file must not be replaced")
}

func TestRecordSplitAcrossWritesIsDeliveredOnce(t *testing.T) {
	q, err := queue.New[string](4)
	require.NoError(t, err)
	rl := startListener(t, q)

	w := openWriter(t, rl.Path())
	_, err = w.Write([]byte("fi"))
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)
	_, err = w.Write([]byte("le.txt\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	assert.Equal(t, "file.txt", takeWithin(t, q))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, q.Len())
}

func TestListenerSurvivesWriterReconnects(t *testing.T) {
	q, err := queue.New[string](4)
	require.NoError(t, err)
	obs := &countingObserver{}
	rl := startListener(t, q, transport.WithObserver(obs))

	for _, payload := range []string{"a.txt\n", "dangling", "b.txt\n"} {
		w := openWriter(t, rl.Path())
		_, err := w.Write([]byte(payload))
		require.NoError(t, err)
		require.NoError(t, w.Close())
		time.Sleep(50 * time.Millisecond)
	}

	assert.Equal(t, "a.txt", takeWithin(t, q))
	assert.Equal(t, "b.txt", takeWithin(t, q))
	assert.Equal(t, 1, obs.droppedFor(transport.DropIncomplete))
}

func TestPokeReleasesBlockedListener(t *testing.T) {
	q, err := queue.New[string](1)
	require.NoError(t, err)
	rl := startListener(t, q)

	time.Sleep(50 * time.Millisecond)
	select {
	case <-rl.Done():
		t.Fatal("listener exited before poke")
	default:
	}

	q.Finish()
	require.NoError(t, rl.Poke())

	require.NoError(t, rl.waitExit(t))
	_, err = os.Stat(rl.Path())
	assert.True(t, os.IsNotExist(err), "pipe should be removed, got %v", err)
	assert.Equal(t, 0, q.Len())

	require.NoError(t, rl.Poke(), "poking a stopped listener is harmless")
}

func TestPokeWithWriterAttached(t *testing.T) {
	q, err := queue.New[string](2)
	require.NoError(t, err)
	rl := startListener(t, q)

	w := openWriter(t, rl.Path())
	t.Cleanup(func() { _ = w.Close() })
	_, err = w.Write([]byte("held.txt\n"))
	require.NoError(t, err)
	assert.Equal(t, "held.txt", takeWithin(t, q))

	q.Finish()
	require.NoError(t, rl.Poke())
	require.NoError(t, rl.waitExit(t))
}

func TestListenerExitsWhenSinkCloses(t *testing.T) {
	q, err := queue.New[string](2)
	require.NoError(t, err)
	obs := &countingObserver{}
	rl := startListener(t, q, transport.WithObserver(obs))

	q.Finish()
	w := openWriter(t, rl.Path())
	_, err = w.Write([]byte("late.txt\n"))
	require.NoError(t, err)
	_ = w.Close()

	require.NoError(t, rl.waitExit(t))
	_, err = os.Stat(rl.Path())
	assert.True(t, os.IsNotExist(err))
	assert.Equal(t, 0, q.Len())
	assert.Equal(t, 1, obs.droppedFor(transport.DropShutdown))
	require.NoError(t, rl.Poke())
}

func TestEveryRecordAfterSinkClosesIsCountedAsDropped(t *testing.T) {
	q, err := queue.New[string](2)
	require.NoError(t, err)
	obs := &countingObserver{}
	rl := startListener(t, q, transport.WithObserver(obs))

	q.Finish()
	w := openWriter(t, rl.Path())
	_, err = w.Write([]byte("a.txt\nb.txt\nc.txt\n"))
	require.NoError(t, err)
	_ = w.Close()

	require.NoError(t, rl.waitExit(t))
	assert.Equal(t, 3, obs.droppedFor(transport.DropShutdown))
	assert.Equal(t, 0, q.Len())
}

func TestBOMDetectionTranscodesUTF16(t *testing.T) {
	q, err := queue.New[string](2)
	require.NoError(t, err)
	rl := startListener(t, q, transport.WithBOMDetection(true), transport.WithReadBufferSize(3))

	encoded, err := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder().String("/in/été.txt\n")
	require.NoError(t, err)

	w := openWriter(t, rl.Path())
	_, err = w.Write([]byte(encoded))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	assert.Equal(t, "/in/été.txt", takeWithin(t, q))
}

func TestBOMDetectionStripsUTF8Mark(t *testing.T) {
	q, err := queue.New[string](2)
	require.NoError(t, err)
	rl := startListener(t, q, transport.WithBOMDetection(true))

	w := openWriter(t, rl.Path())
	_, err = w.Write([]byte("\xef\xbb\xbf/in/a.txt\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	assert.Equal(t, "/in/a.txt", takeWithin(t, q))
}

func TestRunWithoutOpenFails(t *testing.T) {
	q, err := queue.New[string](1)
	require.NoError(t, err)
	l := transport.NewListener(filepath.Join(t.TempDir(), "in.fifo"), q)

	err = l.Run()
	assert.True(t, errors.Is(err, failure.ErrTransportCreation))
	<-l.Done()
}
