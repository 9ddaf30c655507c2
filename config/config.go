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


package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/poiesic/callscope/ai"
)

const (
	DefaultDataDir         = "./data"
	DefaultDatabasePath    = "./data/callscope.db"
	DefaultIndexPath       = "./data/index"
	DefaultChunkSize       = 256
	DefaultMaxChunks       = 20
	DefaultMaxQueryResults = 50
	DefaultBatchSize       = 32
	DefaultWorkers         = 4
	DefaultMaxRetries      = 3
	DefaultRetryDelay      = time.Second
)

// Config is the complete application configuration.
type Config struct {
	AI        AIConfig        `toml:"ai" yaml:"ai"`
	Paths     PathsConfig     `toml:"paths" yaml:"paths"`
	Chunking  ChunkingConfig  `toml:"chunking" yaml:"chunking"`
	Embedding EmbeddingConfig `toml:"embedding" yaml:"embedding"`
	Query     QueryConfig     `toml:"query" yaml:"query"`
}

// AIConfig selects the OpenAI-compatible service.
type AIConfig struct {
	APIKey         string   `toml:"api_key,omitempty" yaml:"api_key,omitempty"`
	BaseURL        string   `toml:"base_url" yaml:"base_url"`
	EmbeddingModel string   `toml:"embedding_model" yaml:"embedding_model"`
	LLMModel       string   `toml:"llm_model" yaml:"llm_model"`
	RequestTimeout Duration `toml:"request_timeout" yaml:"request_timeout"`
}

// PathsConfig locates transcripts and persistent state.
type PathsConfig struct {
	DataDir      string `toml:"data_dir" yaml:"data_dir"`
	DatabasePath string `toml:"database" yaml:"database"`
	IndexPath    string `toml:"index" yaml:"index"` // badger directory holding the vector journal and job ledger
}

// ChunkingConfig sets the chunk token budget.
type ChunkingConfig struct {
	ChunkSize int `toml:"chunk_size" yaml:"chunk_size"`
}

// EmbeddingConfig tunes the embedding client.
type EmbeddingConfig struct {
	BatchSize  int      `toml:"batch_size" yaml:"batch_size"`
	Workers    int      `toml:"workers" yaml:"workers"`
	MaxRetries int      `toml:"max_retries" yaml:"max_retries"`
	RetryDelay Duration `toml:"retry_delay" yaml:"retry_delay"`
	RPS        float64  `toml:"requests_per_second" yaml:"requests_per_second"` // 0 disables rate limiting
}

// QueryConfig bounds answers.
type QueryConfig struct {
	MaxChunks       int `toml:"max_chunks" yaml:"max_chunks"`
	MaxQueryResults int `toml:"max_query_results" yaml:"max_query_results"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		AI: AIConfig{
			BaseURL:        ai.DefaultHost,
			EmbeddingModel: ai.DefaultEmbeddingModel,
			LLMModel:       ai.DefaultLLMModel,
			RequestTimeout: Duration(ai.DefaultRequestTimeout),
		},
		Paths: PathsConfig{
			DataDir:      DefaultDataDir,
			DatabasePath: DefaultDatabasePath,
			IndexPath:    DefaultIndexPath,
		},
		Chunking: ChunkingConfig{ChunkSize: DefaultChunkSize},
		Embedding: EmbeddingConfig{
			BatchSize:  DefaultBatchSize,
			Workers:    DefaultWorkers,
			MaxRetries: DefaultMaxRetries,
			RetryDelay: Duration(DefaultRetryDelay),
		},
		Query: QueryConfig{
			MaxChunks:       DefaultMaxChunks,
			MaxQueryResults: DefaultMaxQueryResults,
		},
	}
}

// AIConfig returns the provider configuration.
func (c *Config) AIConfig() *ai.Config {
	return ai.NewConfig(
		ai.WithHost(c.AI.BaseURL),
		ai.WithAPIKey(c.AI.APIKey),
		ai.WithEmbeddingModel(c.AI.EmbeddingModel),
		ai.WithLLMModel(c.AI.LLMModel),
		ai.WithRequestTimeout(c.AI.RequestTimeout.Std()),
	)
}

// Redacted returns a copy with the API key masked.
func (c *Config) Redacted() *Config {
	cp := *c
	if cp.AI.APIKey != "" {
		cp.AI.APIKey = "********"
	}
	return &cp
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Paths.DataDir == "":
		return errors.New("config: paths.data_dir is required")
	case c.Paths.DatabasePath == "":
		return errors.New("config: paths.database is required")
	case c.Paths.IndexPath == "":
		return errors.New("config: paths.index is required")
	case c.Chunking.ChunkSize < 1:
		return fmt.Errorf("config: chunking.chunk_size must be positive, got %d", c.Chunking.ChunkSize)
	case c.Embedding.BatchSize < 1:
		return fmt.Errorf("config: embedding.batch_size must be positive, got %d", c.Embedding.BatchSize)
	case c.Embedding.Workers < 1:
		return fmt.Errorf("config: embedding.workers must be positive, got %d", c.Embedding.Workers)
	case c.Embedding.MaxRetries < 1:
		return fmt.Errorf("config: embedding.max_retries must be positive, got %d", c.Embedding.MaxRetries)
	case c.Embedding.RetryDelay < 0:
		return fmt.Errorf("config: embedding.retry_delay must not be negative, got %s", c.Embedding.RetryDelay)
	case c.Embedding.RPS < 0:
		return fmt.Errorf("config: embedding.requests_per_second must not be negative, got %g", c.Embedding.RPS)
	case c.Query.MaxChunks < 1:
		return fmt.Errorf("config: query.max_chunks must be positive, got %d", c.Query.MaxChunks)
	case c.Query.MaxQueryResults < 1:
		return fmt.Errorf("config: query.max_query_results must be positive, got %d", c.Query.MaxQueryResults)
	}
	if err := c.AIConfig().Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Duration is a time.Duration written as a string such as "60s" in files.
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}
