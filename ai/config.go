// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package ai

import (
	"errors"
	"strings"
	"time"
)

const (
	// DefaultHost is the OpenAI API base URL.
	DefaultHost = "https://api.openai.com/v1"

	// DefaultEmbeddingModel is the embedding model used when none is configured.
	DefaultEmbeddingModel = "text-embedding-3-small"

	// DefaultLLMModel is the chat model used when none is configured.
	DefaultLLMModel = "gpt-4o-mini"

	// DefaultRequestTimeout bounds a single remote call.
	DefaultRequestTimeout = 60 * time.Second
)

// Config holds configuration for AI service providers.
type Config struct {
	// EmbeddingHost is the base URL for the embedding service API.
	// Example: "http://localhost:11434/v1" for a local OpenAI-compatible server
	EmbeddingHost string

	// LLMHost is the base URL for the chat completion service API.
	LLMHost string

	// APIKey is sent as the bearer token. Local servers usually ignore it.
	APIKey string

	// EmbeddingModel is the model identifier to use for text embeddings.
	// Example: "text-embedding-3-small", "nomic-embed-text"
	EmbeddingModel string

	// LLMModel is the model identifier used for classification, summaries and SQL.
	// Example: "gpt-4o-mini", "qwen2.5:7b"
	LLMModel string

	// RequestTimeout bounds every remote call made through the provider.
	// Default: 60s
	RequestTimeout time.Duration
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithEmbeddingHost sets the embedding service host URL.
func WithEmbeddingHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
	}
}

// WithLLMHost sets the chat completion host URL.
func WithLLMHost(host string) ConfigOption {
	return func(c *Config) {
		c.LLMHost = host
	}
}

// WithHost sets both embedding and chat hosts to the same URL.
func WithHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
		c.LLMHost = host
	}
}

// WithAPIKey sets the API key.
func WithAPIKey(key string) ConfigOption {
	return func(c *Config) {
		c.APIKey = key
	}
}

// WithEmbeddingModel sets the embedding model identifier.
func WithEmbeddingModel(model string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingModel = model
	}
}

// WithLLMModel sets the chat model identifier.
func WithLLMModel(model string) ConfigOption {
	return func(c *Config) {
		c.LLMModel = model
	}
}

// WithRequestTimeout sets the per-call timeout.
func WithRequestTimeout(d time.Duration) ConfigOption {
	return func(c *Config) {
		c.RequestTimeout = d
	}
}

// DefaultConfig returns a Config pointing at the OpenAI API.
// The API key is left empty; callers supply it from the environment.
func DefaultConfig() *Config {
	return &Config{
		EmbeddingHost:  DefaultHost,
		LLMHost:        DefaultHost,
		EmbeddingModel: DefaultEmbeddingModel,
		LLMModel:       DefaultLLMModel,
		RequestTimeout: DefaultRequestTimeout,
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
//
// Example:
//
//	cfg := NewConfig(
//	    WithHost("http://localhost:11434/v1"),
//	    WithEmbeddingModel("nomic-embed-text"),
//	)
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize ensures the configuration is in a canonical form.
// It adds the /v1 suffix to hosts if missing, which OpenAI-compatible
// servers (Ollama, LocalAI, vLLM) expect.
func (c *Config) Normalize() {
	c.EmbeddingHost = normalizeHost(c.EmbeddingHost)
	c.LLMHost = normalizeHost(c.LLMHost)
}

func normalizeHost(host string) string {
	if host == "" || strings.HasSuffix(host, "/v1") {
		return host
	}
	return strings.TrimSuffix(host, "/") + "/v1"
}

// Validate checks that the configuration is valid and complete.
// It normalizes the configuration before validation.
func (c *Config) Validate() error {
	c.Normalize()

	if c.EmbeddingHost == "" {
		return errors.New("ai config: EmbeddingHost is required")
	}
	if c.LLMHost == "" {
		return errors.New("ai config: LLMHost is required")
	}
	if c.EmbeddingModel == "" {
		return errors.New("ai config: EmbeddingModel is required")
	}
	if c.LLMModel == "" {
		return errors.New("ai config: LLMModel is required")
	}
	if c.RequestTimeout <= 0 {
		return errors.New("ai config: RequestTimeout must be positive")
	}
	return nil
}
