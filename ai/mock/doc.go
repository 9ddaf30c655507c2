// Package mock provides test double implementations of AI service interfaces.
//
// This package contains mock implementations of ai.Embedder, ai.Generator,
// and ai.AIProvider for use in unit tests. The mocks allow tests to run without
// external AI service dependencies and enable controlled, deterministic behavior.
//
// # Usage in Tests
//
//	mockProvider := mock.NewMockProvider()
//	vector, err := mockProvider.Embedder().EmbedText(ctx, "test")
//
//	// Custom behavior injection
//	gen := mock.NewMockGenerator("RAG")
//	gen.GenerateFunc = func(ctx context.Context, p ai.Prompt) (string, error) {
//	    return "", core.ErrRemoteTimeout
//	}
//
// # Default Behavior
//
//   - MockEmbedder: Returns deterministic unit vectors based on text hash
//   - MockGenerator: Returns a fixed reply and records every prompt
//   - MockProvider: Aggregates mock embedder and generator
package mock
