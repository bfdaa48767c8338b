package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// RotatingWriter is a simple size-based rotating file writer: once the
// current file exceeds maxSizeMB, it is renamed to a numbered backup and
// a fresh file is opened. At most maxFiles backups are kept.
type RotatingWriter struct {
	mu      sync.Mutex
	path    string
	maxSize int64
	maxFiles int
	file    *os.File
	size    int64
}

// NewRotatingWriter opens (or creates) path for appending and prepares
// rotation bookkeeping.
func NewRotatingWriter(path string, maxSizeMB, maxFiles int) (*RotatingWriter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat log file %s: %w", path, err)
	}

	if maxFiles <= 0 {
		maxFiles = 5
	}
	if maxSizeMB <= 0 {
		maxSizeMB = 64
	}

	return &RotatingWriter{
		path:     path,
		maxSize:  int64(maxSizeMB) * 1024 * 1024,
		maxFiles: maxFiles,
		file:     f,
		size:     info.Size(),
	}, nil
}

func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.size+int64(len(p)) > w.maxSize {
		if err := w.rotateLocked(); err != nil {
			return 0, err
		}
	}

	n, err := w.file.Write(p)
	w.size += int64(n)
	return n, err
}

func (w *RotatingWriter) rotateLocked() error {
	if err := w.file.Close(); err != nil {
		return err
	}

	for i := w.maxFiles - 1; i >= 1; i-- {
		src := w.backupPath(i)
		dst := w.backupPath(i + 1)
		if _, err := os.Stat(src); err == nil {
			_ = os.Rename(src, dst)
		}
	}
	if _, err := os.Stat(w.path); err == nil {
		_ = os.Rename(w.path, w.backupPath(1))
	}

	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("reopen log file %s: %w", w.path, err)
	}

	w.file = f
	w.size = 0
	return nil
}

func (w *RotatingWriter) backupPath(n int) string {
	ext := filepath.Ext(w.path)
	base := w.path[:len(w.path)-len(ext)]
	return fmt.Sprintf("%s.%d%s", base, n, ext)
}

// Close flushes and closes the underlying file.
func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}
