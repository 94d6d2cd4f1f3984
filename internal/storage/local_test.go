package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalBackend_WriteAtomic_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	b := NewLocalBackend(dir)
	bg := context.Background()

	require.NoError(t, b.WriteAtomic(bg, "movie1/current.json", []byte("hello"), "application/json"))

	data, err := b.Read(bg, "movie1/current.json")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	entries, err := os.ReadDir(filepath.Join(dir, "movie1"))
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp-")
	}
}

func TestLocalBackend_Append_CreatesFileIfAbsent(t *testing.T) {
	dir := t.TempDir()
	b := NewLocalBackend(dir)
	bg := context.Background()

	require.NoError(t, b.Append(bg, "movie1/events/inputs.log", []byte("line1\n"), "application/x-ndjson"))
	require.NoError(t, b.Append(bg, "movie1/events/inputs.log", []byte("line2\n"), "application/x-ndjson"))

	data, err := b.Read(bg, "movie1/events/inputs.log")
	require.NoError(t, err)
	assert.Equal(t, "line1\nline2\n", string(data))
}

func TestLocalBackend_Exists(t *testing.T) {
	dir := t.TempDir()
	b := NewLocalBackend(dir)
	bg := context.Background()

	exists, err := b.Exists(bg, "missing.json")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, b.Write(bg, "present.json", []byte("{}"), "application/json"))
	exists, err = b.Exists(bg, "present.json")
	require.NoError(t, err)
	assert.True(t, exists)
}
