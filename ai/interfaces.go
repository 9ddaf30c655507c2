package ai

import "context"

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// The returned slice contains embeddings in the same order as the input texts.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Prompt is a single chat completion request.
type Prompt struct {
	// System is the instruction message. May be empty.
	System string

	// User is the user message.
	User string

	// Temperature controls sampling randomness.
	Temperature float64

	// MaxTokens caps the reply length. Zero leaves the server default.
	MaxTokens int
}

// Generator produces text from a prompt.
// Implementations must be thread-safe for concurrent use.
type Generator interface {
	// Generate returns the model's reply to the prompt.
	// Errors wrap core.ErrRemoteUnavailable, core.ErrRemoteTimeout or
	// core.ErrInvalidInput so callers can tell failures apart.
	Generate(ctx context.Context, prompt Prompt) (string, error)
}

// AIProvider aggregates AI services for convenient initialization and lifecycle management.
type AIProvider interface {
	// Embedder returns the text embedding service.
	Embedder() Embedder

	// Generator returns the chat completion service.
	Generator() Generator

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}
