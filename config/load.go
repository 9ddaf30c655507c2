package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// ErrUnknownFormat is returned for a config file whose extension is not
// .toml, .yaml or .yml.
var ErrUnknownFormat = errors.New("unknown config format")

// Format is a config file syntax.
type Format string

const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
)

// FormatOf picks the format from a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownFormat, path)
}

type loader struct {
	dotenv string
	lookup func(string) (string, bool)
}

// LoadOption configures Load.
type LoadOption func(*loader) error

// WithDotenv reads variables from path instead of ".env".
// An empty path skips the .env layer.
func WithDotenv(path string) LoadOption {
	return func(l *loader) error {
		l.dotenv = path
		return nil
	}
}

// WithLookup replaces os.LookupEnv as the environment source.
func WithLookup(lookup func(string) (string, bool)) LoadOption {
	return func(l *loader) error {
		if lookup == nil {
			return errors.New("lookup function is required")
		}
		l.lookup = lookup
		return nil
	}
}

// Load builds the configuration. path may be empty, and a missing file at
// path leaves the defaults in place. A missing .env file is ignored. The
// process environment overrides both files. The result is not validated.
func Load(path string, opts ...LoadOption) (*Config, error) {
	l := &loader{dotenv: ".env", lookup: os.LookupEnv}
	for _, opt := range opts {
		if err := opt(l); err != nil {
			return nil, err
		}
	}

	cfg := Default()
	if path != "" {
		if err := readFile(path, cfg); err != nil {
			return nil, err
		}
	}

	dotenv := map[string]string{}
	if l.dotenv != "" {
		values, err := godotenv.Read(l.dotenv)
		switch {
		case err == nil:
			dotenv = values
		case !errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("config: reading %s: %w", l.dotenv, err)
		}
	}

	env := func(key string) (string, bool) {
		if v, ok := l.lookup(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}
	if err := applyEnv(cfg, env); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readFile(path string, cfg *Config) error {
	format, err := FormatOf(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	switch format {
	case FormatTOML:
		err = toml.Unmarshal(data, cfg)
	case FormatYAML:
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return nil
}

// Write encodes cfg in the given format.
func Write(w io.Writer, cfg *Config, format Format) error {
	var (
		data []byte
		err  error
	)
	switch format {
	case FormatTOML:
		data, err = toml.Marshal(cfg)
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err = enc.Encode(cfg); err == nil {
			err = enc.Close()
		}
		data = buf.Bytes()
	default:
		return fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}
	if err != nil {
		return fmt.Errorf("config: encoding %s: %w", format, err)
	}
	_, err = w.Write(data)
	return err
}

func applyEnv(cfg *Config, env func(string) (string, bool)) error {
	strs := []struct {
		key string
		dst *string
	}{
		{"OPENAI_API_KEY", &cfg.AI.APIKey},
		{"OPENAI_BASE_URL", &cfg.AI.BaseURL},
		{"EMBEDDING_MODEL", &cfg.AI.EmbeddingModel},
		{"LLM_MODEL", &cfg.AI.LLMModel},
		{"DATA_DIRECTORY", &cfg.Paths.DataDir},
		{"DATABASE_PATH", &cfg.Paths.DatabasePath},
		{"VECTOR_INDEX_PATH", &cfg.Paths.IndexPath},
	}
	for _, s := range strs {
		if v, ok := env(s.key); ok {
			*s.dst = v
		}
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"CHUNK_SIZE", &cfg.Chunking.ChunkSize},
		{"MAX_CHUNKS", &cfg.Query.MaxChunks},
		{"MAX_QUERY_RESULTS", &cfg.Query.MaxQueryResults},
		{"EMBEDDING_BATCH_SIZE", &cfg.Embedding.BatchSize},
		{"EMBEDDING_WORKERS", &cfg.Embedding.Workers},
		{"EMBEDDING_MAX_RETRIES", &cfg.Embedding.MaxRetries},
	}
	for _, i := range ints {
		v, ok := env(i.key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("config: %s: %w", i.key, err)
		}
		*i.dst = n
	}

	durations := []struct {
		key string
		dst *Duration
	}{
		{"REQUEST_TIMEOUT", &cfg.AI.RequestTimeout},
		{"EMBEDDING_RETRY_DELAY", &cfg.Embedding.RetryDelay},
	}
	for _, d := range durations {
		v, ok := env(d.key)
		if !ok {
			continue
		}
		parsed, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("config: %s: %w", d.key, err)
		}
		*d.dst = Duration(parsed)
	}

	if v, ok := env("EMBEDDING_RPS"); ok {
		rps, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("config: EMBEDDING_RPS: %w", err)
		}
		cfg.Embedding.RPS = rps
	}
	return nil
}
