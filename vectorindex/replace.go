package vectorindex

import (
	"context"
	"fmt"
	"slices"

	"github.com/poiesic/callscope/core"
	"github.com/poiesic/callscope/storage"
)

// journalBatchSize bounds the rows written per journal transaction. Badger
// rejects transactions above a fraction of its memtable size.
const journalBatchSize = 256

// Replace swaps the whole index for one live row per id, in order. The
// dimension becomes that of the new vectors; an empty ids clears the index
// and forgets the dimension.
//
// The journal, if attached, is rewritten in bounded batches. When a write
// fails the previous rows are written back and the in-memory index is left
// unchanged. If the previous rows cannot be written back either, the error
// wraps core.ErrAtomicityViolation.
func (ix *Index) Replace(ctx context.Context, ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("%w: %d ids, %d vectors", ErrLengthMismatch, len(ids), len(vectors))
	}

	var dim int
	if len(vectors) > 0 {
		dim = len(vectors[0])
	}
	rows := make([]*storage.VectorRow, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for i, id := range ids {
		if len(vectors[i]) != dim || dim == 0 {
			return fmt.Errorf("%w: vector %d has %d, want %d", ErrDimensionMismatch, i, len(vectors[i]), dim)
		}
		if _, ok := seen[id]; ok {
			return fmt.Errorf("%w: %s appears twice", ErrDuplicateID, id)
		}
		seen[id] = struct{}{}
		rows[i] = &storage.VectorRow{Position: uint64(i), ChunkID: id, Vector: slices.Clone(vectors[i])}
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.replaceLocked(ctx, dim, rows)
}

// replaceLocked must be called with mu held for writing. rows must carry
// positions 0..n-1 in order.
func (ix *Index) replaceLocked(ctx context.Context, dim int, rows []*storage.VectorRow) error {
	if ix.journal != nil {
		if err := ix.rewriteJournal(ctx, dim, rows); err != nil {
			previous := ix.journalRows()
			if rerr := ix.rewriteJournal(context.WithoutCancel(ctx), ix.dim, previous); rerr != nil {
				ix.logger.Error("journal left inconsistent", "err", err, "restore_err", rerr)
				return fmt.Errorf("%w: %w; restoring %d previous rows: %w", core.ErrAtomicityViolation, err, len(previous), rerr)
			}
			ix.logger.Warn("journal rewrite failed, previous rows restored", "err", err, "rows", len(previous))
			return err
		}
	}

	ix.dim = dim
	ix.rows = make([]row, 0, len(rows))
	ix.byID = make(map[string]int, len(rows))
	ix.live = 0
	for _, r := range rows {
		ix.appendRow(r.ChunkID, r.Vector, r.Deleted)
	}
	return nil
}

func (ix *Index) rewriteJournal(ctx context.Context, dim int, rows []*storage.VectorRow) error {
	if err := ix.journal.Reset(ctx); err != nil {
		return fmt.Errorf("resetting journal: %w", err)
	}
	if dim != 0 {
		if err := ix.journal.SetDimension(ctx, dim); err != nil {
			return fmt.Errorf("recording index dimension: %w", err)
		}
	}
	for start := 0; start < len(rows); start += journalBatchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+journalBatchSize, len(rows))
		if err := ix.journal.Append(ctx, rows[start:end]); err != nil {
			return fmt.Errorf("journaling index rows %d-%d: %w", start, end-1, err)
		}
	}
	return nil
}

// journalRows returns the current arena as journal rows.
func (ix *Index) journalRows() []*storage.VectorRow {
	rows := make([]*storage.VectorRow, len(ix.rows))
	for pos, r := range ix.rows {
		rows[pos] = &storage.VectorRow{Position: uint64(pos), ChunkID: r.chunkID, Vector: r.vector, Deleted: r.deleted}
	}
	return rows
}
