package osutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "secrets.json")

	assert.False(t, FileExists(path))

	require.NoError(t, WriteFileAtomic(path, []byte("first"), 0o600))
	assert.True(t, FileExists(path))

	require.NoError(t, WriteFileAtomic(path, []byte("second"), 0o600))

	actual, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(actual))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	assert.False(t, FileExists(dir))
}

func TestWriteFileAtomic_MissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "secrets.json")
	assert.Error(t, WriteFileAtomic(path, []byte("data"), 0o600))
}
