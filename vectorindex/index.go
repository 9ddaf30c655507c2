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


package vectorindex

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/poiesic/callscope/storage"
)

// Hit is one search result.
type Hit struct {
	ChunkID string
	Row     int
	Score   float32
}

type row struct {
	chunkID string
	vector  []float32
	deleted bool
}

// Index is an exact inner-product index over unit vectors.
//
// Rows live in an append-only arena; a row's position never changes and is
// never reused. Removal tombstones the row. When a journal is attached every
// append and tombstone is written there before the in-memory state changes.
type Index struct {
	mu      sync.RWMutex
	dim     int
	rows    []row
	byID    map[string]int
	live    int
	journal storage.VectorJournal
	logger  *slog.Logger
}

// Option configures an Index.
type Option func(*Index) error

// WithDimension fixes the vector dimension up front.
// Without it the first Add sets the dimension.
func WithDimension(dim int) Option {
	return func(ix *Index) error {
		if dim < 0 {
			return fmt.Errorf("%w: negative dimension %d", ErrDimensionMismatch, dim)
		}
		ix.dim = dim
		return nil
	}
}

// WithJournal attaches a durable journal.
func WithJournal(journal storage.VectorJournal) Option {
	return func(ix *Index) error {
		ix.journal = journal
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(ix *Index) error {
		if logger == nil {
			logger = slog.Default()
		}
		ix.logger = logger
		return nil
	}
}

// New creates an empty index.
func New(opts ...Option) (*Index, error) {
	ix := &Index{
		byID:   make(map[string]int),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(ix); err != nil {
			return nil, err
		}
	}
	ix.logger = ix.logger.With("component", "vector-index")
	return ix, nil
}

// Load rebuilds an index from its journal. The returned index keeps
// writing to the same journal.
func Load(ctx context.Context, journal storage.VectorJournal, opts ...Option) (*Index, error) {
	ix, err := New(append(opts, WithJournal(journal))...)
	if err != nil {
		return nil, err
	}

	dim, err := journal.Dimension(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading index dimension: %w", err)
	}
	if ix.dim != 0 && dim != 0 && ix.dim != dim {
		return nil, fmt.Errorf("%w: journal has %d, configured %d", ErrDimensionMismatch, dim, ix.dim)
	}
	if dim != 0 {
		ix.dim = dim
	}

	err = journal.Scan(ctx, func(r *storage.VectorRow) error {
		if int(r.Position) != len(ix.rows) {
			return fmt.Errorf("%w: journal row %d found at arena position %d", storage.ErrTruncatedData, r.Position, len(ix.rows))
		}
		if len(r.Vector) != ix.dim {
			return fmt.Errorf("%w: row %d has %d, index has %d", ErrDimensionMismatch, r.Position, len(r.Vector), ix.dim)
		}
		ix.appendRow(r.ChunkID, r.Vector, r.Deleted)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading index: %w", err)
	}

	ix.logger.Debug("index loaded", "rows", len(ix.rows), "live", ix.live, "dimension", ix.dim)
	return ix, nil
}

// appendRow must be called with mu held for writing (or during construction).
func (ix *Index) appendRow(chunkID string, vector []float32, deleted bool) {
	ix.rows = append(ix.rows, row{chunkID: chunkID, vector: vector, deleted: deleted})
	if !deleted {
		ix.byID[chunkID] = len(ix.rows) - 1
		ix.live++
	}
}

// Add appends one row per id. Vectors are expected to be unit length.
// The whole call fails without changes if any id already has a live row,
// appears twice, or any vector has the wrong dimension.
func (ix *Index) Add(ctx context.Context, ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("%w: %d ids, %d vectors", ErrLengthMismatch, len(ids), len(vectors))
	}
	if len(ids) == 0 {
		return nil
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	dim := ix.dim
	if dim == 0 {
		dim = len(vectors[0])
	}
	seen := make(map[string]struct{}, len(ids))
	for i, id := range ids {
		if len(vectors[i]) != dim || dim == 0 {
			return fmt.Errorf("%w: vector %d has %d, index has %d", ErrDimensionMismatch, i, len(vectors[i]), dim)
		}
		if _, ok := ix.byID[id]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateID, id)
		}
		if _, ok := seen[id]; ok {
			return fmt.Errorf("%w: %s appears twice", ErrDuplicateID, id)
		}
		seen[id] = struct{}{}
	}

	if ix.journal != nil {
		if ix.dim == 0 {
			if err := ix.journal.SetDimension(ctx, dim); err != nil {
				return fmt.Errorf("recording index dimension: %w", err)
			}
		}
		rows := make([]*storage.VectorRow, len(ids))
		for i, id := range ids {
			rows[i] = &storage.VectorRow{Position: uint64(len(ix.rows) + i), ChunkID: id, Vector: vectors[i]}
		}
		if err := ix.journal.Append(ctx, rows); err != nil {
			return fmt.Errorf("journaling index rows: %w", err)
		}
	}

	ix.dim = dim
	for i, id := range ids {
		ix.appendRow(id, slices.Clone(vectors[i]), false)
	}
	return nil
}

// Remove tombstones the live rows of ids. Unknown ids are ignored.
// It returns the number of rows removed.
func (ix *Index) Remove(ctx context.Context, ids ...string) (int, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	positions := make([]int, 0, len(ids))
	for _, id := range ids {
		if pos, ok := ix.byID[id]; ok {
			positions = append(positions, pos)
		}
	}
	if len(positions) == 0 {
		return 0, nil
	}

	if ix.journal != nil {
		journaled := make([]uint64, len(positions))
		for i, pos := range positions {
			journaled[i] = uint64(pos)
		}
		if err := ix.journal.Tombstone(ctx, journaled...); err != nil {
			return 0, fmt.Errorf("journaling tombstones: %w", err)
		}
	}

	removed := 0
	for _, pos := range positions {
		r := &ix.rows[pos]
		if r.deleted {
			continue
		}
		r.deleted = true
		delete(ix.byID, r.chunkID)
		ix.live--
		removed++
	}
	return removed, nil
}

// Search returns up to k live rows ranked by inner product with query,
// highest first. Equal scores are ordered by ascending row.
func (ix *Index) Search(query []float32, k int) ([]Hit, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if k <= 0 || ix.live == 0 {
		return []Hit{}, nil
	}
	if len(query) != ix.dim {
		return nil, fmt.Errorf("%w: query has %d, index has %d", ErrDimensionMismatch, len(query), ix.dim)
	}

	hits := make([]Hit, 0, ix.live)
	for pos, r := range ix.rows {
		if r.deleted {
			continue
		}
		hits = append(hits, Hit{ChunkID: r.chunkID, Row: pos, Score: dot(query, r.vector)})
	}

	slices.SortFunc(hits, func(a, b Hit) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return a.Row - b.Row
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Contains reports whether id has a live row.
func (ix *Index) Contains(id string) bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	_, ok := ix.byID[id]
	return ok
}

// LiveIDs returns the chunk IDs of every live row in arena order.
func (ix *Index) LiveIDs() []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	ids := make([]string, 0, ix.live)
	for _, r := range ix.rows {
		if !r.deleted {
			ids = append(ids, r.chunkID)
		}
	}
	return ids
}

// Len returns the number of rows ever appended, tombstones included.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.rows)
}

// Live returns the number of searchable rows.
func (ix *Index) Live() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.live
}

// Dimension returns the vector dimension, or 0 while the index is empty
// and no dimension was configured.
func (ix *Index) Dimension() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.dim
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
