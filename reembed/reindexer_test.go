package reembed

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/poiesic/callscope/ai/mock"
	"github.com/poiesic/callscope/core"
	"github.com/poiesic/callscope/embedding"
	"github.com/poiesic/callscope/storage"
	"github.com/poiesic/callscope/storage/badger"
	"github.com/poiesic/callscope/storage/sqlite"
	"github.com/poiesic/callscope/vectorindex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEmbedder struct {
	calls   int
	failOn  int
	dropOne bool
}

func (s *stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	s.calls++
	if s.calls == s.failOn {
		return nil, core.ErrRemoteUnavailable
	}
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = mock.DeterministicVector(text, 8)
	}
	if s.dropOne {
		vectors = vectors[1:]
	}
	return vectors, nil
}

func seedStore(t *testing.T) (*sqlite.Store, []string) {
	t.Helper()
	ctx := context.Background()
	store, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "calls.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	var ids []string
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	for i, n := range []int{2, 1} {
		callID := core.NewCallID()
		content := "call " + string(rune('a'+i))
		chunks := make([]*core.Chunk, n)
		for seq := range chunks {
			chunks[seq] = &core.Chunk{
				ID:      core.ChunkIDFor(callID, seq),
				CallID:  callID,
				Content: content + " chunk " + string(rune('0'+seq)),
				Seq:     seq,
			}
			ids = append(ids, chunks[seq].ID)
		}
		call := &core.Call{
			ID:          callID,
			Filename:    content + ".txt",
			Content:     content,
			CreatedAt:   base.Add(time.Duration(i) * time.Hour),
			Fingerprint: core.Fingerprint(content),
		}
		require.NoError(t, store.SaveCall(ctx, call, chunks))
		require.NoError(t, store.MarkIndexed(ctx, callID))
	}
	return store, ids
}

func staleIndex(t *testing.T, dim int) *vectorindex.Index {
	t.Helper()
	backend, err := badger.NewMemoryBackend()
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })

	index, err := vectorindex.New(vectorindex.WithJournal(badger.NewVectorJournal(backend)))
	require.NoError(t, err)
	require.NoError(t, index.Add(context.Background(), []string{"stale"}, [][]float32{mock.DeterministicVector("stale", dim)}))
	return index
}

// brokenJournal accepts writes until broken is set.
type brokenJournal struct {
	storage.VectorJournal
	broken bool
}

func (j *brokenJournal) Append(ctx context.Context, rows []*storage.VectorRow) error {
	if j.broken && len(rows) > 1 {
		return errors.New("Txn is too big to fit into one request")
	}
	return j.VectorJournal.Append(ctx, rows)
}

func TestNewReindexer(t *testing.T) {
	store, _ := seedStore(t)
	index := staleIndex(t, 8)
	embedder := &stubEmbedder{}

	_, err := NewReindexer(nil, embedder, index)
	assert.Equal(t, ErrSourceRequired, err)
	_, err = NewReindexer(store, nil, index)
	assert.Equal(t, ErrEmbedderRequired, err)
	_, err = NewReindexer(store, embedder, nil)
	assert.Equal(t, ErrTargetRequired, err)
	_, err = NewReindexer(store, embedder, index, WithBatchSize(0))
	assert.Error(t, err)
}

func TestReindexer_Run(t *testing.T) {
	ctx := context.Background()
	store, ids := seedStore(t)
	index := staleIndex(t, mock.DefaultDimension)

	client, err := embedding.NewClient(mock.NewMockEmbedder(), embedding.WithRetry(1, time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(client.Release)

	var progress bytes.Buffer
	r, err := NewReindexer(store, client, index, WithBatchSize(2), WithProgress(&progress, 1))
	require.NoError(t, err)

	result, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Chunks)
	assert.Equal(t, mock.DefaultDimension, result.Dimension)

	assert.Equal(t, 3, index.Live())
	assert.False(t, index.Contains("stale"))
	for _, id := range ids {
		assert.True(t, index.Contains(id), id)
	}
	assert.Contains(t, progress.String(), "3/3 chunks")

	hits, err := index.Search(mock.DeterministicVector("call a chunk 1", mock.DefaultDimension), 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, ids[1], hits[0].ChunkID)
}

func TestReindexer_FailureLeavesIndexUntouched(t *testing.T) {
	ctx := context.Background()
	store, _ := seedStore(t)

	t.Run("embedding failure", func(t *testing.T) {
		index := staleIndex(t, 8)
		embedder := &stubEmbedder{failOn: 2}
		r, err := NewReindexer(store, embedder, index, WithBatchSize(2))
		require.NoError(t, err)

		_, err = r.Run(ctx)
		assert.ErrorIs(t, err, core.ErrRemoteUnavailable)
		assert.Equal(t, 2, embedder.calls)
		assert.True(t, index.Contains("stale"))
		assert.Equal(t, 1, index.Live())
	})

	t.Run("short embedding reply", func(t *testing.T) {
		index := staleIndex(t, 8)
		r, err := NewReindexer(store, &stubEmbedder{dropOne: true}, index)
		require.NoError(t, err)

		_, err = r.Run(ctx)
		assert.ErrorIs(t, err, ErrEmbeddingMismatch)
		assert.True(t, index.Contains("stale"))
	})

	t.Run("cancelled", func(t *testing.T) {
		index := staleIndex(t, 8)
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		r, err := NewReindexer(store, &stubEmbedder{}, index)
		require.NoError(t, err)

		_, err = r.Run(cctx)
		assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
		assert.True(t, index.Contains("stale"))
	})

	t.Run("index write failure", func(t *testing.T) {
		backend, err := badger.NewMemoryBackend()
		require.NoError(t, err)
		t.Cleanup(func() { _ = backend.Close() })
		journal := &brokenJournal{VectorJournal: badger.NewVectorJournal(backend)}

		index, err := vectorindex.Load(ctx, journal)
		require.NoError(t, err)
		require.NoError(t, index.Add(ctx, []string{"stale"}, [][]float32{mock.DeterministicVector("stale", 8)}))
		journal.broken = true

		embedder := &stubEmbedder{}
		r, err := NewReindexer(store, embedder, index)
		require.NoError(t, err)

		_, err = r.Run(ctx)
		assert.ErrorContains(t, err, "writing index")
		assert.Equal(t, 1, embedder.calls, "every chunk was embedded before the write")
		assert.True(t, index.Contains("stale"))
		assert.Equal(t, 1, index.Live())

		reloaded, err := vectorindex.Load(ctx, journal.VectorJournal)
		require.NoError(t, err)
		assert.Equal(t, []string{"stale"}, reloaded.LiveIDs())
	})
}

type rejectingTarget struct{ calls int }

func (t *rejectingTarget) Replace(context.Context, []string, [][]float32) error {
	t.calls++
	return errors.New("write failed")
}

func TestReindexer_TargetErrorIsReturned(t *testing.T) {
	store, _ := seedStore(t)
	target := &rejectingTarget{}
	r, err := NewReindexer(store, &stubEmbedder{}, target)
	require.NoError(t, err)

	result, err := r.Run(context.Background())
	assert.ErrorContains(t, err, "write failed")
	assert.Nil(t, result)
	assert.Equal(t, 1, target.calls)
}

func TestReindexer_EmptyStoreClearsIndex(t *testing.T) {
	ctx := context.Background()
	store, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "empty.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	index := staleIndex(t, 8)
	r, err := NewReindexer(store, &stubEmbedder{}, index)
	require.NoError(t, err)

	result, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, result.Chunks)
	assert.Zero(t, index.Live())
	assert.Zero(t, index.Dimension())
}
