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


package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/callscope/ai"
	"github.com/poiesic/callscope/core"
	"golang.org/x/time/rate"
)

const (
	// DefaultBatchSize is the number of texts sent per remote request.
	DefaultBatchSize = 64

	// DefaultWorkers is the number of batches in flight at once.
	DefaultWorkers = 4

	// DefaultMaxAttempts bounds the attempts per batch.
	DefaultMaxAttempts = 3

	// DefaultBaseDelay is the first backoff delay; it doubles on each retry.
	DefaultBaseDelay = 500 * time.Millisecond
)

// Client turns texts into unit-length vectors through a remote embedder.
// It splits input into batches, runs them on a worker pool, and reassembles
// results by input position. All vectors it returns share one dimension.
type Client struct {
	embedder    ai.Embedder
	pool        *ants.Pool
	limiter     *rate.Limiter
	batchSize   int
	workers     int
	maxAttempts int
	baseDelay   time.Duration
	timeout     time.Duration
	logger      *slog.Logger

	mu        sync.Mutex
	dimension int
}

// Option configures a Client.
type Option func(*Client) error

// WithBatchSize sets the number of texts per remote request.
func WithBatchSize(size int) Option {
	return func(c *Client) error {
		if size < 1 {
			return ErrInvalidBatchSize
		}
		c.batchSize = size
		return nil
	}
}

// WithWorkers sets how many batches may be in flight concurrently.
func WithWorkers(n int) Option {
	return func(c *Client) error {
		if n < 1 {
			return ErrInvalidWorkers
		}
		c.workers = n
		return nil
	}
}

// WithRetry sets the attempt bound and the first backoff delay.
func WithRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(c *Client) error {
		if maxAttempts < 1 {
			return ErrInvalidMaxAttempts
		}
		c.maxAttempts = maxAttempts
		c.baseDelay = baseDelay
		return nil
	}
}

// WithRequestTimeout bounds each remote attempt.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Client) error {
		if d <= 0 {
			return ErrInvalidTimeout
		}
		c.timeout = d
		return nil
	}
}

// WithRateLimit caps remote requests per second. A non-positive rps disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) error {
		if rps <= 0 {
			c.limiter = nil
			return nil
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		return nil
	}
}

// WithDimension pins the expected vector dimension. Without it the
// dimension is learned from the first response.
func WithDimension(dim int) Option {
	return func(c *Client) error {
		if dim > 0 {
			c.dimension = dim
		}
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) error {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger
		return nil
	}
}

// NewClient creates an embedding client around embedder.
// Call Release when done to stop the worker pool.
func NewClient(embedder ai.Embedder, opts ...Option) (*Client, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	c := &Client{
		embedder:    embedder,
		batchSize:   DefaultBatchSize,
		workers:     DefaultWorkers,
		maxAttempts: DefaultMaxAttempts,
		baseDelay:   DefaultBaseDelay,
		timeout:     ai.DefaultRequestTimeout,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	pool, err := ants.NewPool(c.workers)
	if err != nil {
		return nil, err
	}
	c.pool = pool
	c.logger = c.logger.With("component", "embedding-client")
	return c, nil
}

// Release stops the worker pool. The client must not be used afterwards.
func (c *Client) Release() {
	if c.pool != nil {
		c.pool.Release()
	}
}

// Dimension returns the vector dimension, or 0 before the first response
// when no dimension was configured.
func (c *Client) Dimension() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dimension
}

// EmbedQuery embeds a single text.
func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// Embed returns one unit-length vector per text, index-aligned with texts.
// Blank texts fail with core.ErrInvalidInput before any remote call.
// Remote failures surface as core.ErrRemoteUnavailable or core.ErrRemoteTimeout.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			return nil, fmt.Errorf("%w: text %d is blank", core.ErrInvalidInput, i)
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	out := make([][]float32, len(texts))
	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	fail := func(err error) {
		once.Do(func() {
			firstErr = err
			cancel()
		})
	}

	for start := 0; start < len(texts); start += c.batchSize {
		end := min(start+c.batchSize, len(texts))
		wg.Add(1)
		err := c.pool.Submit(func() {
			defer wg.Done()
			vectors, err := c.embedBatch(ctx, texts[start:end])
			if err != nil {
				fail(err)
				return
			}
			copy(out[start:end], vectors)
		})
		if err != nil {
			wg.Done()
			fail(fmt.Errorf("submitting embedding batch: %w", err))
			break
		}
	}
	wg.Wait()

	if firstErr != nil {
		c.logger.Error("embedding failed", "texts", len(texts), "err", firstErr)
		return nil, firstErr
	}
	return out, nil
}

func (c *Client) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	var vectors [][]float32
	err := RetryWithBackoff(ctx, func() error {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return Permanent(err)
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		got, err := c.embedder.EmbedTexts(attemptCtx, batch)
		if err != nil {
			err = c.classify(ctx, attemptCtx, err)
			if errors.Is(err, core.ErrInvalidInput) {
				return Permanent(err)
			}
			c.logger.Warn("embedding attempt failed", "batch", len(batch), "err", err)
			return err
		}

		normalized, err := c.checkResponse(batch, got)
		if err != nil {
			return err
		}
		vectors = normalized
		return nil
	}, c.maxAttempts, c.baseDelay)
	return vectors, err
}

// classify maps an embedder error onto the core taxonomy.
func (c *Client) classify(parent, attempt context.Context, err error) error {
	switch {
	case errors.Is(err, core.ErrInvalidInput), core.IsRemoteFailure(err):
		return err
	case parent.Err() != nil:
		return err
	case errors.Is(attempt.Err(), context.DeadlineExceeded), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", core.ErrRemoteTimeout, err)
	default:
		return fmt.Errorf("%w: %w", core.ErrRemoteUnavailable, err)
	}
}

// checkResponse validates count and dimension and normalizes each vector.
func (c *Client) checkResponse(batch []string, got [][]float32) ([][]float32, error) {
	if len(got) != len(batch) {
		return nil, fmt.Errorf("%w: malformed response: expected %d vectors, got %d",
			core.ErrRemoteUnavailable, len(batch), len(got))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([][]float32, len(got))
	for i, v := range got {
		if len(v) == 0 {
			return nil, fmt.Errorf("%w: malformed response: empty vector", core.ErrRemoteUnavailable)
		}
		if c.dimension == 0 {
			c.dimension = len(v)
		}
		if len(v) != c.dimension {
			return nil, fmt.Errorf("%w: malformed response: vector dimension %d, expected %d",
				core.ErrRemoteUnavailable, len(v), c.dimension)
		}
		out[i] = NormalizeVector(v)
	}
	return out, nil
}
