package storage

import (
	"context"
	"path"
	"sort"
	"strings"
	"sync"
)

// MemoryBackend implements Backend in-process for tests (cmd/forge
// uses LocalBackend). Thread-safe, grounded on the
// teacher's pkg/store/memory.go (sync.RWMutex-guarded map, deep-copy on
// read/write).
type MemoryBackend struct {
	mu    sync.RWMutex
	files map[string][]byte
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{files: make(map[string][]byte)}
}

func normalize(p string) string {
	return path.Clean("/" + strings.ReplaceAll(p, "\\", "/"))
}

// Read returns a copy of the stored bytes at path.
func (b *MemoryBackend) Read(ctx context.Context, p string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	data, ok := b.files[normalize(p)]
	if !ok {
		return nil, &StorageError{Op: "read", Path: p, Err: ErrNotExist}
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Write replaces the content at path.
func (b *MemoryBackend) Write(ctx context.Context, p string, data []byte, mimeType string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	stored := make([]byte, len(data))
	copy(stored, data)
	b.files[normalize(p)] = stored
	return nil
}

// WriteAtomic behaves identically to Write: both hold the same mutex for
// the duration of the update, so a concurrent Read under RLock always
// observes the content whole.
func (b *MemoryBackend) WriteAtomic(ctx context.Context, p string, data []byte, mimeType string) error {
	return b.Write(ctx, p, data, mimeType)
}

// Append appends data to path, creating it if absent. Callers must still
// serialize concurrent appends to the same path (Context does this); this
// method itself takes the write lock for the whole read-modify-write, so
// two Append calls going through Context's per-path queue never race
// inside the backend either.
func (b *MemoryBackend) Append(ctx context.Context, p string, data []byte, mimeType string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := normalize(p)
	existing := b.files[key]
	combined := make([]byte, len(existing)+len(data))
	copy(combined, existing)
	copy(combined[len(existing):], data)
	b.files[key] = combined
	return nil
}

// Exists reports whether path names a stored file.
func (b *MemoryBackend) Exists(ctx context.Context, p string) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.files[normalize(p)]
	return ok, nil
}

// IsDir reports whether any stored file has path as a proper prefix
// directory.
func (b *MemoryBackend) IsDir(ctx context.Context, p string) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	prefix := normalize(p)
	if prefix != "/" {
		prefix += "/"
	}
	for k := range b.files {
		if strings.HasPrefix(k, prefix) {
			return true, nil
		}
	}
	return false, nil
}

// Mkdir is a no-op: the in-memory backend has no directory entries, only
// file keys with path prefixes.
func (b *MemoryBackend) Mkdir(ctx context.Context, p string) error {
	return nil
}

// Move renames src to dst.
func (b *MemoryBackend) Move(ctx context.Context, src, dst string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	srcKey := normalize(src)
	data, ok := b.files[srcKey]
	if !ok {
		return &StorageError{Op: "move", Path: src, Err: ErrNotExist}
	}
	b.files[normalize(dst)] = data
	delete(b.files, srcKey)
	return nil
}

// List returns the direct child names stored under path.
func (b *MemoryBackend) List(ctx context.Context, p string) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	prefix := normalize(p)
	if prefix != "/" {
		prefix += "/"
	}

	seen := map[string]bool{}
	for k := range b.files {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		rest := strings.TrimPrefix(k, prefix)
		if i := strings.Index(rest, "/"); i >= 0 {
			rest = rest[:i]
		}
		if rest != "" {
			seen[rest] = true
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
