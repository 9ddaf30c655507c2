package mock

import (
	"context"
	"sync"

	"github.com/poiesic/callscope/ai"
)

// MockGenerator is a test double for ai.Generator.
// By default it answers every prompt with Reply.
type MockGenerator struct {
	// GenerateFunc is called by Generate if set.
	GenerateFunc func(ctx context.Context, prompt ai.Prompt) (string, error)

	// Reply is returned when GenerateFunc is nil.
	Reply string

	mu      sync.Mutex
	prompts []ai.Prompt
}

var _ ai.Generator = (*MockGenerator)(nil)

// NewMockGenerator creates a generator that answers every prompt with reply.
func NewMockGenerator(reply string) *MockGenerator {
	return &MockGenerator{Reply: reply}
}

// Generate records the prompt and returns the configured reply.
func (m *MockGenerator) Generate(ctx context.Context, prompt ai.Prompt) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()

	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, prompt)
	}
	return m.Reply, nil
}

// CallCount returns the number of Generate calls.
func (m *MockGenerator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

// Prompts returns the prompts received so far.
func (m *MockGenerator) Prompts() []ai.Prompt {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ai.Prompt(nil), m.prompts...)
}

// LastPrompt returns the most recent prompt, or the zero Prompt.
func (m *MockGenerator) LastPrompt() ai.Prompt {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.prompts) == 0 {
		return ai.Prompt{}
	}
	return m.prompts[len(m.prompts)-1]
}
