package testsupport

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// WriteFile creates path, and any missing parents, holding size bytes of
// filler. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	size = max(size, 1)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	filler := io.LimitReader(repeatReader('B'), size)
	if _, err := io.Copy(f, filler); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

type repeatReader byte

func (r repeatReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = byte(r)
	}
	return len(p), nil
}

// WaitForFile polls until path exists or the deadline passes.
func WaitForFile(t testing.TB, path string, timeout time.Duration) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for {
		if _, err := os.Stat(path); err == nil {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", path)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// SendRecords writes newline-terminated records to the FIFO at path in a
// single writer session.
func SendRecords(t testing.TB, path string, records ...string) {
	t.Helper()

	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		t.Fatalf("open transport %s: %v", path, err)
	}
	defer f.Close()
	for _, record := range records {
		if _, err := f.WriteString(record + "\n"); err != nil {
			t.Fatalf("write transport %s: %v", path, err)
		}
	}
}
