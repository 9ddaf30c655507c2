package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/poiesic/callscope/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noEnv(string) (string, bool) {
	return "", false
}

func envMap(m map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 256, cfg.Chunking.ChunkSize)
	assert.Equal(t, 20, cfg.Query.MaxChunks)
	assert.Equal(t, 50, cfg.Query.MaxQueryResults)
	assert.Equal(t, "text-embedding-3-small", cfg.AI.EmbeddingModel)
	assert.Equal(t, "gpt-4o-mini", cfg.AI.LLMModel)
	assert.Equal(t, 60*time.Second, cfg.AI.RequestTimeout.Std())
	assert.Equal(t, "./data", cfg.Paths.DataDir)
}

func TestLoad_MissingEverything(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(filepath.Join(dir, "absent.toml"), WithDotenv(filepath.Join(dir, ".env")), WithLookup(noEnv))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_TOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "callscope.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[ai]
base_url = "http://localhost:11434"
llm_model = "qwen2.5:7b"
request_timeout = "90s"

[paths]
data_dir = "/srv/calls"

[query]
max_chunks = 8
`), 0o644))

	cfg, err := Load(path, WithDotenv(""), WithLookup(noEnv))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:11434", cfg.AI.BaseURL)
	assert.Equal(t, "qwen2.5:7b", cfg.AI.LLMModel)
	assert.Equal(t, 90*time.Second, cfg.AI.RequestTimeout.Std())
	assert.Equal(t, "/srv/calls", cfg.Paths.DataDir)
	assert.Equal(t, 8, cfg.Query.MaxChunks)

	// untouched keys keep their defaults
	assert.Equal(t, ai.DefaultEmbeddingModel, cfg.AI.EmbeddingModel)
	assert.Equal(t, DefaultMaxQueryResults, cfg.Query.MaxQueryResults)
}

func TestLoad_YAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "callscope.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
chunking:
  chunk_size: 128
embedding:
  workers: 2
  retry_delay: 250ms
  requests_per_second: 5
`), 0o644))

	cfg, err := Load(path, WithDotenv(""), WithLookup(noEnv))
	require.NoError(t, err)
	assert.Equal(t, 128, cfg.Chunking.ChunkSize)
	assert.Equal(t, 2, cfg.Embedding.Workers)
	assert.Equal(t, 250*time.Millisecond, cfg.Embedding.RetryDelay.Std())
	assert.InDelta(t, 5.0, cfg.Embedding.RPS, 1e-9)
	assert.Equal(t, DefaultBatchSize, cfg.Embedding.BatchSize)
}

func TestLoad_Layering(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "callscope.toml")
	require.NoError(t, os.WriteFile(path, []byte("[query]\nmax_chunks = 8\nmax_query_results = 10\n"), 0o644))
	dotenv := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(dotenv, []byte("MAX_CHUNKS=12\nLLM_MODEL=from-dotenv\nOPENAI_API_KEY=sk-dotenv\n"), 0o644))

	cfg, err := Load(path, WithDotenv(dotenv), WithLookup(envMap(map[string]string{
		"LLM_MODEL":       "from-env",
		"REQUEST_TIMEOUT": "5s",
	})))
	require.NoError(t, err)

	assert.Equal(t, 12, cfg.Query.MaxChunks, ".env overrides the file")
	assert.Equal(t, 10, cfg.Query.MaxQueryResults, "file overrides defaults")
	assert.Equal(t, "from-env", cfg.AI.LLMModel, "environment overrides .env")
	assert.Equal(t, "sk-dotenv", cfg.AI.APIKey)
	assert.Equal(t, 5*time.Second, cfg.AI.RequestTimeout.Std())
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	t.Run("unknown extension", func(t *testing.T) {
		_, err := Load(filepath.Join(dir, "config.ini"), WithDotenv(""), WithLookup(noEnv))
		assert.ErrorIs(t, err, ErrUnknownFormat)
	})

	t.Run("bad toml", func(t *testing.T) {
		path := filepath.Join(dir, "bad.toml")
		require.NoError(t, os.WriteFile(path, []byte("[query\nmax_chunks = "), 0o644))
		_, err := Load(path, WithDotenv(""), WithLookup(noEnv))
		assert.Error(t, err)
	})

	t.Run("bad duration in file", func(t *testing.T) {
		path := filepath.Join(dir, "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("ai:\n  request_timeout: soon\n"), 0o644))
		_, err := Load(path, WithDotenv(""), WithLookup(noEnv))
		assert.Error(t, err)
	})

	for _, key := range []string{"CHUNK_SIZE", "REQUEST_TIMEOUT", "EMBEDDING_RPS", "MAX_CHUNKS"} {
		t.Run("bad "+key, func(t *testing.T) {
			_, err := Load("", WithDotenv(""), WithLookup(envMap(map[string]string{key: "lots"})))
			require.Error(t, err)
			assert.Contains(t, err.Error(), key)
		})
	}

	t.Run("nil lookup", func(t *testing.T) {
		_, err := Load("", WithLookup(nil))
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"data dir", func(c *Config) { c.Paths.DataDir = "" }, "paths.data_dir"},
		{"database", func(c *Config) { c.Paths.DatabasePath = "" }, "paths.database"},
		{"index", func(c *Config) { c.Paths.IndexPath = "" }, "paths.index"},
		{"chunk size", func(c *Config) { c.Chunking.ChunkSize = 0 }, "chunking.chunk_size"},
		{"batch size", func(c *Config) { c.Embedding.BatchSize = 0 }, "embedding.batch_size"},
		{"workers", func(c *Config) { c.Embedding.Workers = -1 }, "embedding.workers"},
		{"retries", func(c *Config) { c.Embedding.MaxRetries = 0 }, "embedding.max_retries"},
		{"rps", func(c *Config) { c.Embedding.RPS = -1 }, "requests_per_second"},
		{"max chunks", func(c *Config) { c.Query.MaxChunks = 0 }, "query.max_chunks"},
		{"max results", func(c *Config) { c.Query.MaxQueryResults = 0 }, "query.max_query_results"},
		{"model", func(c *Config) { c.AI.LLMModel = "" }, "LLMModel"},
		{"timeout", func(c *Config) { c.AI.RequestTimeout = 0 }, "RequestTimeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "config: ")
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestAIConfig(t *testing.T) {
	cfg := Default()
	cfg.AI.BaseURL = "http://localhost:11434"
	cfg.AI.APIKey = "sk-test"

	aiCfg := cfg.AIConfig()
	require.NoError(t, aiCfg.Validate())
	assert.Equal(t, "http://localhost:11434/v1", aiCfg.EmbeddingHost)
	assert.Equal(t, "http://localhost:11434/v1", aiCfg.LLMHost)
	assert.Equal(t, "sk-test", aiCfg.APIKey)
	assert.Equal(t, ai.DefaultRequestTimeout, aiCfg.RequestTimeout)
}

func TestWrite(t *testing.T) {
	cfg := Default()
	cfg.AI.APIKey = "sk-secret"
	cfg.Query.MaxChunks = 7

	for _, format := range []Format{FormatTOML, FormatYAML} {
		t.Run(string(format), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Write(&buf, cfg.Redacted(), format))
			assert.NotContains(t, buf.String(), "sk-secret")
			assert.Contains(t, buf.String(), "1m0s")

			path := filepath.Join(t.TempDir(), "out."+string(format))
			require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
			loaded, err := Load(path, WithDotenv(""), WithLookup(noEnv))
			require.NoError(t, err)
			assert.Equal(t, 7, loaded.Query.MaxChunks)
			assert.Equal(t, cfg.AI.RequestTimeout, loaded.AI.RequestTimeout)
		})
	}

	assert.ErrorIs(t, Write(&bytes.Buffer{}, cfg, "ini"), ErrUnknownFormat)
	assert.Equal(t, "sk-secret", cfg.AI.APIKey, "Redacted does not modify the original")
}

func TestFormatOf(t *testing.T) {
	f, err := FormatOf("a/b/config.TOML")
	require.NoError(t, err)
	assert.Equal(t, FormatTOML, f)
	f, err = FormatOf("config.yml")
	require.NoError(t, err)
	assert.Equal(t, FormatYAML, f)
	_, err = FormatOf("config.json")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}
