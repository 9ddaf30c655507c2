package badger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenBackend_InMemory(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	require.NotNil(t, backend)
	defer backend.Close()

	assert.False(t, backend.IsClosed())
}

func TestOpenBackend_FileSystem(t *testing.T) {
	dir := t.TempDir() + "/nested/index"
	backend, err := OpenBackend(dir, false)
	require.NoError(t, err)
	defer backend.Close()

	assert.DirExists(t, dir)
}

func TestOpenBackend_NotADirectory(t *testing.T) {
	file := t.TempDir() + "/file.txt"
	require.NoError(t, writeFile(file))

	_, err := OpenBackend(file, false)
	assert.ErrorContains(t, err, "is not a directory")
}

func TestBackendClose(t *testing.T) {
	backend, err := NewMemoryBackend()
	require.NoError(t, err)

	require.NoError(t, backend.Close())
	assert.True(t, backend.IsClosed())
}
