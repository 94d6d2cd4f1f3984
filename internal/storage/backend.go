// Package storage provides the path-resolution and atomic file
// primitives every other forge component persists through (spec.md
// §4.1). A Backend is a pluggable filesystem-like store; Context wraps
// one with movie-scoped path resolution and per-path append
// serialization.
package storage

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotExist is returned by Backend.Read and Backend.List when the path
// does not exist.
var ErrNotExist = errors.New("storage: path does not exist")

// StorageError wraps a backend I/O failure (spec.md §7).
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Backend is the interface every storage implementation (local
// filesystem, in-memory, S3) satisfies.
type Backend interface {
	// Read returns the full contents of path.
	Read(ctx context.Context, path string) ([]byte, error)

	// Write writes bytes to path, replacing any existing content. Not
	// required to be atomic — callers needing atomicity use WriteAtomic.
	Write(ctx context.Context, path string, data []byte, mimeType string) error

	// WriteAtomic writes bytes to path such that any concurrent reader
	// observes either the old content in full or the new content in
	// full, never a partial write.
	WriteAtomic(ctx context.Context, path string, data []byte, mimeType string) error

	// Append appends data to path, creating it if absent. Callers are
	// responsible for external per-path serialization (Context provides
	// it); backends only guarantee the bytes of a single Append call are
	// written contiguously.
	Append(ctx context.Context, path string, data []byte, mimeType string) error

	// Exists reports whether path names a file.
	Exists(ctx context.Context, path string) (bool, error)

	// IsDir reports whether path names a directory.
	IsDir(ctx context.Context, path string) (bool, error)

	// Mkdir creates path and any missing parents.
	Mkdir(ctx context.Context, path string) error

	// Move renames/moves src to dst, replacing dst if present.
	Move(ctx context.Context, src, dst string) error

	// List returns the direct entries (names, not full paths) of a
	// directory.
	List(ctx context.Context, path string) ([]string, error)
}
