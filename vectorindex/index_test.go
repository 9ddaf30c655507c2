package vectorindex

import (
	"context"
	"errors"
	"testing"

	"github.com/poiesic/callscope/storage"
	"github.com/poiesic/callscope/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newJournal(t *testing.T) *badger.VectorJournal {
	t.Helper()
	backend, err := badger.NewMemoryBackend()
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })
	return badger.NewVectorJournal(backend)
}

func hitIDs(hits []Hit) []string {
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ChunkID
	}
	return ids
}

func TestIndex_AddSearch(t *testing.T) {
	ctx := context.Background()
	ix, err := New()
	require.NoError(t, err)

	require.NoError(t, ix.Add(ctx,
		[]string{"a", "b", "c", "d"},
		[][]float32{{1, 0}, {0, 1}, {0.6, 0.8}, {0.8, 0.6}},
	))
	assert.Equal(t, 2, ix.Dimension())
	assert.Equal(t, 4, ix.Len())
	assert.Equal(t, 4, ix.Live())

	hits, err := ix.Search([]float32{1, 0}, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "d", "c"}, hitIDs(hits))
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
	assert.Equal(t, 3, hits[1].Row)

	for i := 1; i < len(hits); i++ {
		assert.GreaterOrEqual(t, hits[i-1].Score, hits[i].Score)
	}
}

func TestIndex_SearchEdgeCases(t *testing.T) {
	ctx := context.Background()
	ix, err := New()
	require.NoError(t, err)

	hits, err := ix.Search([]float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits, "empty index")

	require.NoError(t, ix.Add(ctx, []string{"a", "b"}, [][]float32{{1, 0}, {1, 0}}))

	hits, err = ix.Search([]float32{1, 0}, 0)
	require.NoError(t, err)
	assert.Empty(t, hits, "k <= 0")

	hits, err = ix.Search([]float32{1, 0}, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, hitIDs(hits), "ties break by ascending row")

	_, err = ix.Search([]float32{1, 0, 0}, 1)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestIndex_AddValidation(t *testing.T) {
	ctx := context.Background()
	ix, err := New(WithDimension(2))
	require.NoError(t, err)
	require.NoError(t, ix.Add(ctx, []string{"a"}, [][]float32{{1, 0}}))

	assert.ErrorIs(t, ix.Add(ctx, []string{"b"}, [][]float32{{1, 0, 0}}), ErrDimensionMismatch)
	assert.ErrorIs(t, ix.Add(ctx, []string{"a"}, [][]float32{{0, 1}}), ErrDuplicateID)
	assert.ErrorIs(t, ix.Add(ctx, []string{"x", "x"}, [][]float32{{0, 1}, {1, 0}}), ErrDuplicateID)
	assert.ErrorIs(t, ix.Add(ctx, []string{"y"}, nil), ErrLengthMismatch)

	assert.Equal(t, 1, ix.Len(), "rejected adds leave the index unchanged")
}

func TestIndex_Remove(t *testing.T) {
	ctx := context.Background()
	ix, err := New()
	require.NoError(t, err)
	require.NoError(t, ix.Add(ctx, []string{"a", "b", "c"}, [][]float32{{1, 0}, {0.8, 0.6}, {0, 1}}))

	removed, err := ix.Remove(ctx, "a", "missing", "a")
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.False(t, ix.Contains("a"))
	assert.Equal(t, 3, ix.Len(), "tombstoned rows keep their position")
	assert.Equal(t, 2, ix.Live())

	hits, err := ix.Search([]float32{1, 0}, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, hitIDs(hits))

	require.NoError(t, ix.Add(ctx, []string{"a"}, [][]float32{{1, 0}}), "a removed id can be re-added")
	hits, err = ix.Search([]float32{1, 0}, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, hits[0].Row, "re-added row goes to the end of the arena")
}

func TestIndex_JournalRoundTrip(t *testing.T) {
	ctx := context.Background()
	journal := newJournal(t)

	ix, err := Load(ctx, journal)
	require.NoError(t, err)
	require.NoError(t, ix.Add(ctx, []string{"a", "b"}, [][]float32{{1, 0}, {0, 1}}))
	require.NoError(t, ix.Add(ctx, []string{"c"}, [][]float32{{0.6, 0.8}}))
	_, err = ix.Remove(ctx, "b")
	require.NoError(t, err)

	reloaded, err := Load(ctx, journal)
	require.NoError(t, err)
	assert.Equal(t, 3, reloaded.Len())
	assert.Equal(t, 2, reloaded.Live())
	assert.Equal(t, 2, reloaded.Dimension())
	assert.False(t, reloaded.Contains("b"))

	want, err := ix.Search([]float32{0.6, 0.8}, 5)
	require.NoError(t, err)
	got, err := reloaded.Search([]float32{0.6, 0.8}, 5)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

type failingJournal struct {
	storage.VectorJournal
}

func (failingJournal) Append(context.Context, []*storage.VectorRow) error {
	return errors.New("disk full")
}

func (failingJournal) Tombstone(context.Context, ...uint64) error {
	return errors.New("disk full")
}

func (failingJournal) SetDimension(context.Context, int) error { return nil }

func TestIndex_JournalFailureLeavesMemoryUnchanged(t *testing.T) {
	ctx := context.Background()
	ix, err := New(WithJournal(failingJournal{}))
	require.NoError(t, err)

	err = ix.Add(ctx, []string{"a"}, [][]float32{{1, 0}})
	assert.ErrorContains(t, err, "disk full")
	assert.Zero(t, ix.Len())
	assert.False(t, ix.Contains("a"))
}

func TestIndex_LiveIDs(t *testing.T) {
	ctx := context.Background()
	ix, err := New()
	require.NoError(t, err)
	assert.Empty(t, ix.LiveIDs())

	require.NoError(t, ix.Add(ctx, []string{"a", "b", "c"}, [][]float32{{1, 0}, {0, 1}, {0.6, 0.8}}))
	_, err = ix.Remove(ctx, "a")
	require.NoError(t, err)
	require.NoError(t, ix.Add(ctx, []string{"a"}, [][]float32{{1, 0}}))

	assert.Equal(t, []string{"b", "c", "a"}, ix.LiveIDs())
}
