package transport

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// errStopped ends a session once Poke has marked the listener as stopping.
var errStopped = errors.New("transport stopping")

// pokeSentinel is an empty record; the splitter always drops it.
var pokeSentinel = []byte{'\n'}

// ensureFIFO creates a named pipe at path, reusing an existing one. created
// reports whether this call made the pipe.
func ensureFIFO(path string) (created bool, err error) {
	info, err := os.Lstat(path)
	switch {
	case err == nil:
		if info.Mode()&os.ModeNamedPipe == 0 {
			return false, fmt.Errorf("%s exists and is not a named pipe", path)
		}
		return false, nil
	case !errors.Is(err, os.ErrNotExist):
		return false, err
	}
	if err := unix.Mkfifo(path, 0o666); err != nil {
		return false, fmt.Errorf("mkfifo: %w", err)
	}
	return true, nil
}

// openReader is swapped in tests to simulate an unreadable pipe.
var openReader = openReadSide

// openReadSide opens the FIFO without waiting for a writer.
func openReadSide(path string) (int, error) {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return -1, fmt.Errorf("open %s for reading: %w", path, err)
	}
	return fd, nil
}

// pokeFIFO writes the sentinel if a reader is attached. A missing pipe or
// absent reader means there is nothing to wake.
func pokeFIFO(path string) error {
	fd, err := unix.Open(path, unix.O_WRONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		if errors.Is(err, unix.ENXIO) || errors.Is(err, unix.ENOENT) {
			return nil
		}
		return fmt.Errorf("open %s for poke: %w", path, err)
	}
	defer unix.Close(fd)
	for {
		_, err = unix.Write(fd, pokeSentinel)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		// A full pipe already has data pending for the reader.
		if err != nil && !errors.Is(err, unix.EAGAIN) && !errors.Is(err, unix.EPIPE) {
			return fmt.Errorf("write poke: %w", err)
		}
		return nil
	}
}

// fifoReader blocks in poll(2) until the pipe is readable. A zero-byte read
// means every writer has closed and is reported as io.EOF.
type fifoReader struct {
	fd       int
	stopping *atomic.Bool
}

func (r *fifoReader) Read(p []byte) (int, error) {
	for {
		if r.stopping.Load() {
			return 0, errStopped
		}
		fds := []unix.PollFd{{Fd: int32(r.fd), Events: unix.POLLIN}}
		if _, err := unix.Poll(fds, -1); err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return 0, fmt.Errorf("poll transport: %w", err)
		}
		n, err := unix.Read(r.fd, p)
		if err != nil {
			if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
				continue
			}
			return 0, fmt.Errorf("read transport: %w", err)
		}
		if r.stopping.Load() {
			return 0, errStopped
		}
		if n == 0 {
			return 0, io.EOF
		}
		return n, nil
	}
}

func closeFD(fd int) error {
	if err := unix.Close(fd); err != nil {
		return fmt.Errorf("close transport: %w", err)
	}
	return nil
}
