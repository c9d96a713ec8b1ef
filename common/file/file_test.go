package file

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExists(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	assert.True(t, Exists(dir))
	assert.False(t, Exists(filepath.Join(dir, "absent")))
}

func TestWrite(t *testing.T) {
	t.Parallel()
	assert.ErrorIs(t, Write("", []byte("x")), errEmptyPath)

	// creates intermediate directories
	path := filepath.Join(t.TempDir(), "nested", "dir", "out.json")
	require.NoError(t, Write(path, []byte("hello")))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestWriteSafe(t *testing.T) {
	t.Parallel()
	assert.ErrorIs(t, WriteSafe("", []byte("x")), errEmptyPath)

	dir := t.TempDir()
	path := filepath.Join(dir, "out.json")
	require.NoError(t, WriteSafe(path, []byte("first")))
	require.NoError(t, WriteSafe(path, []byte("second")))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	// no temp files left behind
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
