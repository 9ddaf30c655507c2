package reembed

import "errors"

var (
	// ErrSourceRequired is returned when no chunk source is given.
	ErrSourceRequired = errors.New("chunk source is required")

	// ErrEmbedderRequired is returned when no embedder is given.
	ErrEmbedderRequired = errors.New("embedder is required")

	// ErrTargetRequired is returned when no target index is given.
	ErrTargetRequired = errors.New("target index is required")

	// ErrEmbeddingMismatch is returned when the embedder answers with the
	// wrong number of vectors.
	ErrEmbeddingMismatch = errors.New("embedding count mismatch")
)
