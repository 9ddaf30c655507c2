package badger

// NewMemoryBackend opens an in-memory backend for tests.
// Caller must close the backend when done.
func NewMemoryBackend() (*Backend, error) {
	return OpenBackend("", true)
}
