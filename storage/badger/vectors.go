package badger

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/callscope/storage"
)

// VectorJournal implements storage.VectorJournal for BadgerDB.
// Rows are keyed by arena position so a prefix scan returns them in order.
type VectorJournal struct {
	backend *Backend
}

var _ storage.VectorJournal = (*VectorJournal)(nil)

// NewVectorJournal creates a new VectorJournal.
func NewVectorJournal(backend *Backend) *VectorJournal {
	return &VectorJournal{backend: backend}
}

// Append persists rows in a single transaction.
// Returns storage.ErrDuplicateKey if any position is already taken.
func (j *VectorJournal) Append(ctx context.Context, rows []*storage.VectorRow) error {
	if len(rows) == 0 {
		return nil
	}
	return j.backend.WithTx(func(tx *badger.Txn) error {
		for _, row := range rows {
			key := makeVectorRowKey(row.Position)
			_, err := tx.Get(key)
			if err == nil {
				return fmt.Errorf("%w: vector row %d", storage.ErrDuplicateKey, row.Position)
			}
			if !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
			if err := tx.Set(key, storage.MarshalVectorRow(row)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// Tombstone marks rows deleted. Already-deleted rows are left as they are.
// Returns storage.ErrNotFound if a position has no row.
func (j *VectorJournal) Tombstone(ctx context.Context, positions ...uint64) error {
	if len(positions) == 0 {
		return nil
	}
	return j.backend.WithTx(func(tx *badger.Txn) error {
		for _, pos := range positions {
			key := makeVectorRowKey(pos)
			row, err := readVectorRow(tx, key)
			if err != nil {
				return err
			}
			if row == nil {
				return fmt.Errorf("%w: vector row %d", storage.ErrNotFound, pos)
			}
			if row.Deleted {
				continue
			}
			row.Deleted = true
			if err := tx.Set(key, storage.MarshalVectorRow(row)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// Scan calls fn for every row in ascending position order.
func (j *VectorJournal) Scan(ctx context.Context, fn func(*storage.VectorRow) error) error {
	return j.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(vectorRowPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var row *storage.VectorRow
			err := iter.Item().Value(func(val []byte) error {
				var err error
				row, err = storage.UnmarshalVectorRow(val)
				return err
			})
			if err != nil {
				return err
			}
			if err := fn(row); err != nil {
				return err
			}
		}
		return nil
	}, false)
}

// Dimension returns the recorded dimension, or 0 if none has been set.
func (j *VectorJournal) Dimension(ctx context.Context) (int, error) {
	var dim int
	err := j.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get([]byte(vectorDimKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) != 8 {
				return storage.ErrTruncatedData
			}
			dim = int(binary.BigEndian.Uint64(val))
			return nil
		})
	}, false)
	return dim, err
}

// SetDimension records the vector dimension.
func (j *VectorJournal) SetDimension(ctx context.Context, dim int) error {
	return j.backend.WithTx(func(tx *badger.Txn) error {
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, uint64(dim))
		if err := tx.Set([]byte(vectorDimKey), buf); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// Reset removes every row and the recorded dimension.
func (j *VectorJournal) Reset(ctx context.Context) error {
	return j.backend.DeletePrefix([]byte(vectorRowPrefix), []byte(vectorDimKey))
}

// readVectorRow returns nil, nil when the key doesn't exist.
func readVectorRow(tx *badger.Txn, key []byte) (*storage.VectorRow, error) {
	item, err := tx.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var row *storage.VectorRow
	err = item.Value(func(val []byte) error {
		var err error
		row, err = storage.UnmarshalVectorRow(val)
		return err
	})
	return row, err
}
