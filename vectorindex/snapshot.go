package vectorindex

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/callscope/storage"
)

// Snapshot layout:
//
//	"CSVX" | version (1 byte) | dimension | row count | rows...
//
// Numbers are mus varints. Each row is a varint length followed by a
// storage.MarshalVectorRow record. Tombstoned rows are kept so positions
// survive a round trip.
const (
	snapshotMagic   = "CSVX"
	snapshotVersion = 1
)

// WriteSnapshot writes every row, tombstones included, to w.
func (ix *Index) WriteSnapshot(w io.Writer) error {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(snapshotMagic); err != nil {
		return err
	}
	if err := bw.WriteByte(snapshotVersion); err != nil {
		return err
	}
	if err := writeVarint(bw, ix.dim); err != nil {
		return err
	}
	if err := writeVarint(bw, len(ix.rows)); err != nil {
		return err
	}
	for pos, r := range ix.rows {
		data := storage.MarshalVectorRow(&storage.VectorRow{
			Position: uint64(pos),
			ChunkID:  r.chunkID,
			Vector:   r.vector,
			Deleted:  r.deleted,
		})
		if err := writeVarint(bw, len(data)); err != nil {
			return err
		}
		if _, err := bw.Write(data); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func writeVarint(w io.Writer, v int) error {
	buf := make([]byte, varint.PositiveInt.Size(v))
	varint.PositiveInt.Marshal(v, buf)
	_, err := w.Write(buf)
	return err
}

// ReadSnapshot decodes a snapshot into a new index. If a journal is given
// with WithJournal its contents are replaced by the snapshot rows.
func ReadSnapshot(ctx context.Context, r io.Reader, opts ...Option) (*Index, error) {
	ix, err := New(opts...)
	if err != nil {
		return nil, err
	}
	if err := ix.Restore(ctx, r); err != nil {
		return nil, err
	}
	return ix, nil
}

// Restore replaces the index contents, and its journal if attached, with
// the rows of a snapshot. A snapshot that fails to decode or has the wrong
// dimension leaves the index unchanged, and so does a journal write failure.
func (ix *Index) Restore(ctx context.Context, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	dim, rows, err := decodeSnapshot(data)
	if err != nil {
		return err
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if dim != 0 && ix.dim != 0 && len(ix.rows) == 0 && ix.dim != dim {
		return fmt.Errorf("%w: snapshot has %d, configured %d", ErrDimensionMismatch, dim, ix.dim)
	}

	newDim := ix.dim
	if dim != 0 || len(ix.rows) > 0 {
		newDim = dim
	}
	if err := ix.replaceLocked(ctx, newDim, rows); err != nil {
		return err
	}
	ix.logger.Info("snapshot imported", "rows", len(ix.rows), "live", ix.live, "dimension", ix.dim)
	return nil
}

func decodeSnapshot(data []byte) (int, []*storage.VectorRow, error) {
	if len(data) < len(snapshotMagic)+1 || string(data[:len(snapshotMagic)]) != snapshotMagic {
		return 0, nil, fmt.Errorf("%w: bad magic", ErrInvalidSnapshot)
	}
	n := len(snapshotMagic)
	if data[n] != snapshotVersion {
		return 0, nil, fmt.Errorf("%w: unsupported version %d", ErrInvalidSnapshot, data[n])
	}
	n++

	dim, m, err := varint.PositiveInt.Unmarshal(data[n:])
	if err != nil {
		return 0, nil, fmt.Errorf("%w: dimension: %w", ErrInvalidSnapshot, err)
	}
	n += m
	count, m, err := varint.PositiveInt.Unmarshal(data[n:])
	if err != nil {
		return 0, nil, fmt.Errorf("%w: row count: %w", ErrInvalidSnapshot, err)
	}
	n += m

	rows := make([]*storage.VectorRow, 0, min(count, len(data)))
	seen := make(map[string]struct{}, count)
	for i := 0; i < count; i++ {
		size, m, err := varint.PositiveInt.Unmarshal(data[n:])
		if err != nil {
			return 0, nil, fmt.Errorf("%w: row %d: %w", ErrInvalidSnapshot, i, err)
		}
		n += m
		if size < 0 || size > len(data)-n {
			return 0, nil, fmt.Errorf("%w: row %d is truncated", ErrInvalidSnapshot, i)
		}
		row, err := storage.UnmarshalVectorRow(data[n : n+size])
		if err != nil {
			return 0, nil, fmt.Errorf("%w: row %d: %w", ErrInvalidSnapshot, i, err)
		}
		n += size

		if row.Position != uint64(i) {
			return 0, nil, fmt.Errorf("%w: row %d has position %d", ErrInvalidSnapshot, i, row.Position)
		}
		if len(row.Vector) != dim {
			return 0, nil, fmt.Errorf("%w: row %d has dimension %d, want %d", ErrInvalidSnapshot, i, len(row.Vector), dim)
		}
		if !row.Deleted {
			if _, dup := seen[row.ChunkID]; dup {
				return 0, nil, fmt.Errorf("%w: chunk %s has two live rows", ErrInvalidSnapshot, row.ChunkID)
			}
			seen[row.ChunkID] = struct{}{}
		}
		rows = append(rows, row)
	}
	if n != len(data) {
		return 0, nil, fmt.Errorf("%w: %d trailing bytes", ErrInvalidSnapshot, len(data)-n)
	}
	return dim, rows, nil
}
