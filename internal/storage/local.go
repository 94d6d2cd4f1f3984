package storage

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
)

// LocalBackend implements Backend over the real filesystem, rooted at
// baseDir. Grounded on the teacher's pkg/storage/local.go: mkdir parent
// directories before writing, wrap every os error with the operation and
// path.
type LocalBackend struct {
	baseDir string
}

// NewLocalBackend creates a local filesystem backend rooted at baseDir.
func NewLocalBackend(baseDir string) *LocalBackend {
	return &LocalBackend{baseDir: baseDir}
}

func (b *LocalBackend) abs(path string) string {
	return filepath.Join(b.baseDir, filepath.FromSlash(path))
}

// Read reads a local file.
func (b *LocalBackend) Read(ctx context.Context, path string) ([]byte, error) {
	data, err := os.ReadFile(b.abs(path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &StorageError{Op: "read", Path: path, Err: ErrNotExist}
		}
		return nil, &StorageError{Op: "read", Path: path, Err: err}
	}
	return data, nil
}

// Write writes data to path, creating parent directories as needed.
func (b *LocalBackend) Write(ctx context.Context, path string, data []byte, mimeType string) error {
	full := b.abs(path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return &StorageError{Op: "write", Path: path, Err: err}
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return &StorageError{Op: "write", Path: path, Err: err}
	}
	return nil
}

// WriteAtomic writes to a sibling temp file, then renames it over path.
func (b *LocalBackend) WriteAtomic(ctx context.Context, path string, data []byte, mimeType string) error {
	full := b.abs(path)
	dir := filepath.Dir(full)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &StorageError{Op: "write-atomic", Path: path, Err: err}
	}

	tmpName, err := randomSuffix()
	if err != nil {
		return &StorageError{Op: "write-atomic", Path: path, Err: err}
	}
	tmpPath := full + ".tmp-" + tmpName

	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return &StorageError{Op: "write-atomic", Path: path, Err: err}
	}
	if err := os.Rename(tmpPath, full); err != nil {
		os.Remove(tmpPath)
		return &StorageError{Op: "write-atomic", Path: path, Err: err}
	}
	return nil
}

// Append opens path with O_APPEND|O_CREATE, a true kernel-level append so
// concurrent writers from the same process (serialized by Context) never
// interleave mid-line, and multi-process writers never interleave
// mid-write either.
func (b *LocalBackend) Append(ctx context.Context, path string, data []byte, mimeType string) error {
	full := b.abs(path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return &StorageError{Op: "append", Path: path, Err: err}
	}
	f, err := os.OpenFile(full, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return &StorageError{Op: "append", Path: path, Err: err}
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return &StorageError{Op: "append", Path: path, Err: err}
	}
	return nil
}

// Exists reports whether path names a regular file.
func (b *LocalBackend) Exists(ctx context.Context, path string) (bool, error) {
	info, err := os.Stat(b.abs(path))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, &StorageError{Op: "exists", Path: path, Err: err}
	}
	return !info.IsDir(), nil
}

// IsDir reports whether path names a directory.
func (b *LocalBackend) IsDir(ctx context.Context, path string) (bool, error) {
	info, err := os.Stat(b.abs(path))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, &StorageError{Op: "is-dir", Path: path, Err: err}
	}
	return info.IsDir(), nil
}

// Mkdir creates path and any missing parents.
func (b *LocalBackend) Mkdir(ctx context.Context, path string) error {
	if err := os.MkdirAll(b.abs(path), 0o755); err != nil {
		return &StorageError{Op: "mkdir", Path: path, Err: err}
	}
	return nil
}

// Move renames src to dst, replacing dst if present.
func (b *LocalBackend) Move(ctx context.Context, src, dst string) error {
	full := b.abs(dst)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return &StorageError{Op: "move", Path: dst, Err: err}
	}
	if err := os.Rename(b.abs(src), full); err != nil {
		return &StorageError{Op: "move", Path: src, Err: err}
	}
	return nil
}

// List returns the direct entries of a directory.
func (b *LocalBackend) List(ctx context.Context, path string) ([]string, error) {
	entries, err := os.ReadDir(b.abs(path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &StorageError{Op: "list", Path: path, Err: ErrNotExist}
		}
		return nil, &StorageError{Op: "list", Path: path, Err: err}
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}

func randomSuffix() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate random suffix: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
