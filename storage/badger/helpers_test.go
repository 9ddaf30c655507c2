package badger

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(path string) error {
	return os.WriteFile(path, []byte("x"), 0644)
}

func newTestBackend(t *testing.T) *Backend {
	t.Helper()
	backend, err := NewMemoryBackend()
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })
	return backend
}
