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


package reembed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/callscope/core"
)

// DefaultBatchSize is the number of chunks read and embedded at a time.
const DefaultBatchSize = 100

// ChunkSource streams stored chunks.
type ChunkSource interface {
	CountChunks(ctx context.Context) (int, error)
	IterateChunks(ctx context.Context, batchSize int, fn func([]*core.Chunk) error) error
}

// Embedder turns chunk texts into unit vectors, one per text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Target is the index being rebuilt. Replace must leave the previous
// contents in place when it fails.
type Target interface {
	Replace(ctx context.Context, ids []string, vectors [][]float32) error
}

// Result summarizes a rebuild.
type Result struct {
	Chunks    int
	Dimension int
	Elapsed   time.Duration
}

// Reindexer rebuilds a vector index from stored chunks.
type Reindexer struct {
	source         ChunkSource
	embedder       Embedder
	target         Target
	batchSize      int
	progress       io.Writer
	reportInterval int
	logger         *slog.Logger
}

// Option configures a Reindexer.
type Option func(*Reindexer) error

// WithBatchSize sets how many chunks are embedded per request.
func WithBatchSize(n int) Option {
	return func(r *Reindexer) error {
		if n < 1 {
			return fmt.Errorf("batch size must be positive, got %d", n)
		}
		r.batchSize = n
		return nil
	}
}

// WithProgress reports progress to w every interval chunks.
func WithProgress(w io.Writer, interval int) Option {
	return func(r *Reindexer) error {
		r.progress = w
		r.reportInterval = interval
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reindexer) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// NewReindexer creates a Reindexer.
func NewReindexer(source ChunkSource, embedder Embedder, target Target, opts ...Option) (*Reindexer, error) {
	switch {
	case source == nil:
		return nil, ErrSourceRequired
	case embedder == nil:
		return nil, ErrEmbedderRequired
	case target == nil:
		return nil, ErrTargetRequired
	}
	r := &Reindexer{
		source:         source,
		embedder:       embedder,
		target:         target,
		batchSize:      DefaultBatchSize,
		reportInterval: DefaultBatchSize,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	r.logger = r.logger.With("component", "reindexer")
	return r, nil
}

// Run embeds every stored chunk and then replaces the target's contents.
// The target is not touched unless every chunk was embedded, and keeps its
// previous contents if the replacement fails.
func (r *Reindexer) Run(ctx context.Context) (*Result, error) {
	total, err := r.source.CountChunks(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting chunks: %w", err)
	}
	r.logger.Info("reindexing", "chunks", total, "batch_size", r.batchSize)

	tracker := NewProgressTracker(r.progress, "chunks", total, r.reportInterval)
	tracker.Start()

	ids := make([]string, 0, total)
	vectors := make([][]float32, 0, total)
	err = r.source.IterateChunks(ctx, r.batchSize, func(chunks []*core.Chunk) error {
		texts := make([]string, len(chunks))
		for i, c := range chunks {
			texts[i] = c.Content
		}
		embedded, err := r.embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("embedding chunks %d-%d: %w", len(ids), len(ids)+len(chunks)-1, err)
		}
		if len(embedded) != len(chunks) {
			return fmt.Errorf("%w: sent %d, got %d", ErrEmbeddingMismatch, len(chunks), len(embedded))
		}
		for i, c := range chunks {
			ids = append(ids, c.ID)
			vectors = append(vectors, embedded[i])
		}
		tracker.Add(len(chunks))
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := r.target.Replace(ctx, ids, vectors); err != nil {
		return nil, fmt.Errorf("writing index: %w", err)
	}
	tracker.Finish()

	result := &Result{Chunks: len(ids), Elapsed: tracker.Elapsed()}
	if len(vectors) > 0 {
		result.Dimension = len(vectors[0])
	}
	r.logger.Info("reindex complete", "chunks", result.Chunks, "dimension", result.Dimension, "elapsed", result.Elapsed)
	return result, nil
}
