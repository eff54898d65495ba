package fileutil

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// CopyFunc copies src to dst and reports the number of bytes written.
type CopyFunc func(src, dst string, mode os.FileMode) (int64, error)

// ErrNotRegular is returned when the source is a directory, device, or pipe.
var ErrNotRegular = errors.New("source is not a regular file")

// DestinationPath joins destDir with the final element of src. Trailing
// separators on src are ignored; a src with no usable base name is rejected.
func DestinationPath(destDir, src string) (string, error) {
	base := filepath.Base(strings.TrimRight(src, string(filepath.Separator)))
	if base == "." || base == string(filepath.Separator) || base == "" {
		return "", fmt.Errorf("derive destination for %q: no file name", src)
	}
	return filepath.Join(destDir, base), nil
}

// CopyFileMode streams src into a temporary sibling of dst and renames it into
// place, so readers never observe a partially written destination.
func CopyFileMode(src, dst string, mode os.FileMode) (int64, error) {
	in, err := openSource(src, dst)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	return writeAtomic(dst, mode, func(out io.Writer) (int64, error) {
		return io.Copy(out, in)
	})
}

// CopyFileVerified behaves like CopyFileMode and additionally compares the
// SHA-256 and size of what was read against what was written. dst is left
// untouched on mismatch.
func CopyFileVerified(src, dst string, mode os.FileMode) (int64, error) {
	in, err := openSource(src, dst)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat source: %w", err)
	}

	return writeAtomic(dst, mode, func(out io.Writer) (int64, error) {
		srcHasher := sha256.New()
		dstHasher := sha256.New()
		written, err := io.Copy(io.MultiWriter(out, dstHasher), io.TeeReader(in, srcHasher))
		if err != nil {
			return written, err
		}
		if written != info.Size() {
			return written, fmt.Errorf("copy size mismatch: source %d bytes, copied %d bytes", info.Size(), written)
		}
		if !bytes.Equal(srcHasher.Sum(nil), dstHasher.Sum(nil)) {
			return written, errors.New("copy hash mismatch: file corrupted during copy")
		}
		return written, nil
	})
}

func openSource(src, dst string) (*os.File, error) {
	info, err := os.Stat(src)
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%s: %w", src, ErrNotRegular)
	}
	if dstInfo, err := os.Stat(dst); err == nil && os.SameFile(info, dstInfo) {
		return nil, fmt.Errorf("copy %s: source and destination are the same file", src)
	}
	return os.Open(src)
}

func writeAtomic(dst string, mode os.FileMode, fill func(io.Writer) (int64, error)) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*.partial")
	if err != nil {
		return 0, err
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	written, err := fill(tmp)
	if err != nil {
		return written, err
	}
	if err := tmp.Chmod(mode); err != nil {
		return written, err
	}
	if err := tmp.Close(); err != nil {
		return written, err
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		return written, err
	}
	committed = true
	return written, nil
}
