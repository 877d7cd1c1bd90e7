package storage

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	mhgerrors "mhgscraper/pkg/errors"
)

// Manager writes downloaded files beneath a fixed output root
type Manager struct {
	root         string
	filesWritten atomic.Int64
	bytesWritten atomic.Int64
}

// NewManager creates the output root if needed
func NewManager(root string) (*Manager, error) {
	if root == "" {
		return nil, fmt.Errorf("output root is required")
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, mhgerrors.Persistence("create output root", root, err)
	}
	return &Manager{root: root}, nil
}

// Root returns the output root
func (m *Manager) Root() string {
	return m.root
}

// Resolve maps a slash-separated relative path to its location under the
// root. Absolute paths and paths escaping the root are rejected.
func (m *Manager) Resolve(rel string) (string, error) {
	if rel == "" {
		return "", fmt.Errorf("empty path")
	}
	if strings.HasPrefix(rel, "/") || filepath.IsAbs(rel) {
		return "", fmt.Errorf("path %q must be relative", rel)
	}

	clean := filepath.Clean(filepath.FromSlash(rel))
	if clean == "." || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes the output root", rel)
	}

	return filepath.Join(m.root, clean), nil
}

// WriteImage stores r at rel, creating missing parent directories and
// overwriting any existing file. The content is written to a temporary file
// in the same directory first and renamed into place.
func (m *Manager) WriteImage(rel string, r io.Reader) (int64, error) {
	target, err := m.Resolve(rel)
	if err != nil {
		return 0, mhgerrors.Persistence("write image", rel, err)
	}

	n, err := writeAtomic(target, func(w io.Writer) (int64, error) {
		return io.Copy(w, r)
	})
	if err != nil {
		return 0, mhgerrors.Persistence("write image", target, err)
	}

	m.filesWritten.Add(1)
	m.bytesWritten.Add(n)
	return n, nil
}

// WriteJSON stores v as indented JSON at rel
func (m *Manager) WriteJSON(rel string, v interface{}) error {
	target, err := m.Resolve(rel)
	if err != nil {
		return mhgerrors.Persistence("write json", rel, err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mhgerrors.Persistence("write json", target, fmt.Errorf("failed to encode: %w", err))
	}

	if _, err := writeAtomic(target, func(w io.Writer) (int64, error) {
		n, err := w.Write(data)
		return int64(n), err
	}); err != nil {
		return mhgerrors.Persistence("write json", target, err)
	}
	return nil
}

// Exists reports whether rel is present under the root
func (m *Manager) Exists(rel string) bool {
	target, err := m.Resolve(rel)
	if err != nil {
		return false
	}
	_, err = os.Stat(target)
	return err == nil
}

// Stats returns how many files and bytes this manager has written
func (m *Manager) Stats() (files, bytes int64) {
	return m.filesWritten.Load(), m.bytesWritten.Load()
}

// syncFile flushes a finished temp file before it is renamed into place
var syncFile = func(f *os.File) error { return f.Sync() }

func writeAtomic(target string, fill func(io.Writer) (int64, error)) (int64, error) {
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create directory: %w", err)
	}

	out, err := os.CreateTemp(dir, "."+filepath.Base(target)+".*.tmp")
	if err != nil {
		return 0, fmt.Errorf("failed to create temporary file: %w", err)
	}
	tempFile := out.Name()

	n, err := fill(out)
	if err != nil {
		out.Close()
		os.Remove(tempFile)
		return 0, fmt.Errorf("failed to write data: %w", err)
	}

	if err := syncFile(out); err != nil {
		out.Close()
		os.Remove(tempFile)
		return 0, fmt.Errorf("failed to sync file: %w", err)
	}

	closeErr := out.Close()
	if closeErr != nil {
		os.Remove(tempFile)
		return 0, fmt.Errorf("failed to close file: %w", closeErr)
	}

	if err := os.Chmod(tempFile, 0644); err != nil {
		os.Remove(tempFile)
		return 0, fmt.Errorf("failed to set permissions: %w", err)
	}

	if err := os.Rename(tempFile, target); err != nil {
		os.Remove(tempFile)
		return 0, fmt.Errorf("failed to rename temporary file: %w", err)
	}

	return n, nil
}
