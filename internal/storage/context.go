package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/moviegen/forge/internal/schemas"
)

// Context wraps a Backend with movie-scoped path resolution and per-path
// append serialization (spec.md §4.1).
type Context struct {
	backend Backend

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewContext wraps backend in a Context.
func NewContext(backend Backend) *Context {
	return &Context{
		backend: backend,
		locks:   make(map[string]*sync.Mutex),
	}
}

// Backend returns the wrapped backend, for components that need direct
// access (e.g. the runner streaming a blob).
func (c *Context) Backend() Backend { return c.backend }

// Resolve builds a POSIX-separated relative path from movieID and
// segments, rejecting path traversal and empty segments.
func (c *Context) Resolve(movieID string, segments ...string) (string, error) {
	if movieID == "" {
		return "", fmt.Errorf("storage: movie id must not be empty")
	}
	if strings.Contains(movieID, "..") || strings.ContainsAny(movieID, "/\\") {
		return "", fmt.Errorf("storage: invalid movie id %q", movieID)
	}

	parts := []string{movieID}
	for _, seg := range segments {
		if seg == "" {
			return "", fmt.Errorf("storage: empty path segment")
		}
		if strings.Contains(seg, "..") {
			return "", fmt.Errorf("storage: path segment %q attempts traversal", seg)
		}
		parts = append(parts, seg)
	}

	return path.Join(parts...), nil
}

// lockFor returns the mutex guarding appends to the given normalized
// path, creating it on first use.
func (c *Context) lockFor(p string) *sync.Mutex {
	key := path.Clean(p)

	c.locksMu.Lock()
	defer c.locksMu.Unlock()

	m, ok := c.locks[key]
	if !ok {
		m = &sync.Mutex{}
		c.locks[key] = m
	}
	return m
}

// Append serializes concurrent appends to the same relative path so
// writers never interleave within a single event line.
func (c *Context) Append(ctx context.Context, relPath string, data []byte, mimeType string) error {
	lock := c.lockFor(relPath)
	lock.Lock()
	defer lock.Unlock()
	return c.backend.Append(ctx, relPath, data, mimeType)
}

// WriteAtomic delegates to the backend's atomic write.
func (c *Context) WriteAtomic(ctx context.Context, relPath string, data []byte, mimeType string) error {
	return c.backend.WriteAtomic(ctx, relPath, data, mimeType)
}

// Write delegates to the backend's non-atomic write.
func (c *Context) Write(ctx context.Context, relPath string, data []byte, mimeType string) error {
	return c.backend.Write(ctx, relPath, data, mimeType)
}

// Read delegates to the backend.
func (c *Context) Read(ctx context.Context, relPath string) ([]byte, error) {
	return c.backend.Read(ctx, relPath)
}

// ReadToString reads a path and returns its contents as a string.
func (c *Context) ReadToString(ctx context.Context, relPath string) (string, error) {
	data, err := c.backend.Read(ctx, relPath)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// FileExists delegates to the backend.
func (c *Context) FileExists(ctx context.Context, relPath string) (bool, error) {
	return c.backend.Exists(ctx, relPath)
}

// DirectoryExists delegates to the backend.
func (c *Context) DirectoryExists(ctx context.Context, relPath string) (bool, error) {
	return c.backend.IsDir(ctx, relPath)
}

// CreateDirectory delegates to the backend.
func (c *Context) CreateDirectory(ctx context.Context, relPath string) error {
	return c.backend.Mkdir(ctx, relPath)
}

// MoveFile delegates to the backend.
func (c *Context) MoveFile(ctx context.Context, src, dst string) error {
	return c.backend.Move(ctx, src, dst)
}

// List delegates to the backend.
func (c *Context) List(ctx context.Context, relPath string) ([]string, error) {
	return c.backend.List(ctx, relPath)
}

// InitOptions configures InitializeMovieStorage.
type InitOptions struct {
	SeedCurrentJSON bool
}

// InitializeMovieStorage creates the standard per-movie directory layout
// (spec.md §6.1): manifests/, events/, runs/, blobs/, and zero-length
// event logs. When opts.SeedCurrentJSON is true, an empty pointer file is
// also written.
func (c *Context) InitializeMovieStorage(ctx context.Context, movieID string, opts InitOptions) error {
	dirs := []string{"manifests", "events", "runs", "blobs"}
	for _, d := range dirs {
		rel, err := c.Resolve(movieID, d)
		if err != nil {
			return err
		}
		if err := c.CreateDirectory(ctx, rel); err != nil {
			return err
		}
	}

	for _, logFile := range []string{"events/inputs.log", "events/artefacts.log"} {
		rel, err := c.Resolve(movieID, logFile)
		if err != nil {
			return err
		}
		exists, err := c.FileExists(ctx, rel)
		if err != nil {
			return err
		}
		if !exists {
			if err := c.Write(ctx, rel, []byte{}, "application/x-ndjson"); err != nil {
				return err
			}
		}
	}

	if opts.SeedCurrentJSON {
		rel, err := c.Resolve(movieID, "current.json")
		if err != nil {
			return err
		}
		exists, err := c.FileExists(ctx, rel)
		if err != nil {
			return err
		}
		if !exists {
			empty := schemas.Pointer{}
			data, err := json.MarshalIndent(empty, "", "  ")
			if err != nil {
				return err
			}
			if err := c.WriteAtomic(ctx, rel, data, "application/json"); err != nil {
				return err
			}
		}
	}

	return nil
}
