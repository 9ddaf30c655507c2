package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/poiesic/callscope/core"
	"github.com/poiesic/callscope/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "calls.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testCall(id, filename string, created time.Time, chunks int) (*core.Call, []*core.Chunk) {
	call := &core.Call{
		ID:           id,
		Filename:     filename,
		Content:      "[00:01] AE: hello\n[00:02] Prospect: hi",
		Participants: []string{"AE", "Prospect"},
		CreatedAt:    created,
		Metadata:     map[string]string{"source": "test"},
		Fingerprint:  core.Fingerprint(id),
	}
	out := make([]*core.Chunk, chunks)
	for i := range out {
		out[i] = &core.Chunk{
			ID:         core.ChunkIDFor(id, i),
			CallID:     id,
			Content:    fmt.Sprintf("[00:%02d] AE: part %d", i, i),
			Speakers:   []string{"AE"},
			Speaker:    "AE",
			Timestamp:  fmt.Sprintf("00:%02d", i),
			Seq:        i,
			TokenCount: 5,
		}
	}
	return call, out
}

func saveVisible(t *testing.T, s *Store, call *core.Call, chunks []*core.Chunk) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.SaveCall(ctx, call, chunks))
	require.NoError(t, s.MarkIndexed(ctx, call.ID))
}

func TestStore_Migrations(t *testing.T) {
	store := setupTestStore(t)

	var version int
	err := store.db.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&version)
	require.NoError(t, err)
	assert.Equal(t, 1, version)

	// Reopening does not reapply.
	path := store.Path()
	require.NoError(t, store.Close())
	reopened, err := Open(context.Background(), path)
	require.NoError(t, err)
	defer reopened.Close()
}

func TestStore_SaveAndVisibility(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	call, chunks := testCall("call-1", "1_demo_call.txt", time.Now(), 3)
	require.NoError(t, store.SaveCall(ctx, call, chunks))

	_, err := store.GetCall(ctx, "call-1")
	assert.ErrorIs(t, err, storage.ErrNotFound, "hidden calls are not readable")
	got, err := store.GetChunks(ctx, chunks[0].ID)
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, store.MarkIndexed(ctx, "call-1"))

	loaded, err := store.GetCall(ctx, "call-1")
	require.NoError(t, err)
	assert.Equal(t, call.Filename, loaded.Filename)
	assert.Equal(t, call.Participants, loaded.Participants)
	assert.Equal(t, call.Metadata, loaded.Metadata)
	assert.WithinDuration(t, call.CreatedAt, loaded.CreatedAt, time.Millisecond)

	ordered, err := store.ChunksForCall(ctx, "call-1")
	require.NoError(t, err)
	require.Len(t, ordered, 3)
	for i, c := range ordered {
		assert.Equal(t, i, c.Seq)
		assert.Equal(t, []string{"AE"}, c.Speakers)
	}
}

func TestStore_MarkIndexedMissing(t *testing.T) {
	store := setupTestStore(t)
	err := store.MarkIndexed(context.Background(), "nope")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStore_DuplicateCall(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	call, chunks := testCall("call-1", "a.txt", time.Now(), 1)
	require.NoError(t, store.SaveCall(ctx, call, chunks))
	err := store.SaveCall(ctx, call, chunks)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestStore_SaveCallRejectsBadChunks(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	call, chunks := testCall("call-1", "a.txt", time.Now(), 2)
	chunks[1].Seq = 5
	err := store.SaveCall(ctx, call, chunks)
	assert.ErrorIs(t, err, core.ErrChunkSequence)

	n, err := store.PurgeIncomplete(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "nothing was written")
}

func TestStore_DeleteCallCascades(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	call, chunks := testCall("call-1", "a.txt", time.Now(), 4)
	saveVisible(t, store, call, chunks)

	require.NoError(t, store.DeleteCall(ctx, "call-1"))
	require.NoError(t, store.DeleteCall(ctx, "call-1"), "deleting twice is fine")

	var n int
	require.NoError(t, store.db.QueryRow("SELECT COUNT(*) FROM chunk_records").Scan(&n))
	assert.Zero(t, n)
}

func TestStore_PurgeIncompleteOnOpen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "calls.db")

	store, err := Open(ctx, path)
	require.NoError(t, err)
	hidden, hiddenChunks := testCall("hidden", "h.txt", time.Now(), 2)
	visible, visibleChunks := testCall("visible", "v.txt", time.Now(), 2)
	require.NoError(t, store.SaveCall(ctx, hidden, hiddenChunks))
	saveVisible(t, store, visible, visibleChunks)
	require.NoError(t, store.Close())

	store, err = Open(ctx, path)
	require.NoError(t, err)
	defer store.Close()

	var n int
	require.NoError(t, store.db.QueryRow("SELECT COUNT(*) FROM call_records").Scan(&n))
	assert.Equal(t, 1, n)
	count, err := store.CountChunks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestStore_Lookups(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	older, olderChunks := testCall("older", "demo.txt", base, 1)
	newer, newerChunks := testCall("newer", "demo.txt", base.Add(time.Hour), 1)
	other, otherChunks := testCall("other", "other.txt", base.Add(2*time.Hour), 2)
	saveVisible(t, store, older, olderChunks)
	saveVisible(t, store, newer, newerChunks)
	saveVisible(t, store, other, otherChunks)

	t.Run("filename resolves to newest", func(t *testing.T) {
		got, err := store.GetCallByFilename(ctx, "demo.txt")
		require.NoError(t, err)
		assert.Equal(t, "newer", got.ID)

		_, err = store.GetCallByFilename(ctx, "missing.txt")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("fingerprint", func(t *testing.T) {
		got, err := store.FindByFingerprint(ctx, core.Fingerprint("other"))
		require.NoError(t, err)
		assert.Equal(t, "other", got.ID)
	})

	t.Run("batch gets skip missing ids", func(t *testing.T) {
		calls, err := store.GetCalls(ctx, "older", "ghost", "other")
		require.NoError(t, err)
		assert.Len(t, calls, 2)

		chunks, err := store.GetChunks(ctx, core.ChunkIDFor("other", 1), "ghost")
		require.NoError(t, err)
		require.Len(t, chunks, 1)
		assert.Equal(t, 1, chunks[0].Seq)
	})

	t.Run("list newest first", func(t *testing.T) {
		calls, err := store.ListCalls(ctx)
		require.NoError(t, err)
		require.Len(t, calls, 3)
		assert.Equal(t, "other", calls[0].ID)
		assert.Equal(t, "older", calls[2].ID)
	})

	t.Run("counts", func(t *testing.T) {
		calls, err := store.CountCalls(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
		chunks, err := store.CountChunks(ctx)
		require.NoError(t, err)
		assert.Equal(t, 4, chunks)
	})
}

func TestStore_IterateChunks(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	second, secondChunks := testCall("b", "b.txt", base.Add(time.Minute), 3)
	first, firstChunks := testCall("a", "a.txt", base, 2)
	saveVisible(t, store, second, secondChunks)
	saveVisible(t, store, first, firstChunks)

	var (
		batches int
		seen    []string
	)
	err := store.IterateChunks(ctx, 2, func(batch []*core.Chunk) error {
		batches++
		for _, c := range batch {
			seen = append(seen, fmt.Sprintf("%s/%d", c.CallID, c.Seq))
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, batches)
	assert.Equal(t, []string{"a/0", "a/1", "b/0", "b/1", "b/2"}, seen)

	t.Run("stops on callback error", func(t *testing.T) {
		boom := fmt.Errorf("boom")
		calls := 0
		err := store.IterateChunks(ctx, 1, func([]*core.Chunk) error {
			calls++
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 1, calls)
	})

	t.Run("rejects bad batch size", func(t *testing.T) {
		err := store.IterateChunks(ctx, 0, func([]*core.Chunk) error { return nil })
		assert.ErrorIs(t, err, storage.ErrInvalidQuery)
	})
}

func TestStore_QueryReadOnly(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	for i := 0; i < 3; i++ {
		call, chunks := testCall(fmt.Sprintf("call-%d", i), fmt.Sprintf("%d_call.txt", i), time.Now(), i+1)
		saveVisible(t, store, call, chunks)
	}
	hidden, hiddenChunks := testCall("hidden", "hidden.txt", time.Now(), 1)
	require.NoError(t, store.SaveCall(ctx, hidden, hiddenChunks))

	t.Run("views only show indexed calls", func(t *testing.T) {
		res, err := store.QueryReadOnly(ctx, "SELECT COUNT(*) FROM calls", 50)
		require.NoError(t, err)
		assert.Equal(t, [][]string{{"3"}}, res.Rows)

		res, err = store.QueryReadOnly(ctx, "SELECT COUNT(*) AS n FROM chunks", 50)
		require.NoError(t, err)
		assert.Equal(t, []string{"n"}, res.Columns)
		assert.Equal(t, [][]string{{"6"}}, res.Rows)
	})

	t.Run("hidden calls are unreachable", func(t *testing.T) {
		res, err := store.QueryReadOnly(ctx, "SELECT filename FROM calls WHERE filename = 'hidden.txt'", 10)
		require.NoError(t, err)
		assert.Empty(t, res.Rows)

		for _, query := range []string{
			"SELECT filename FROM call_records",
			"SELECT filename FROM Call_Records WHERE indexed = 0",
			`SELECT content FROM "chunk_records"`,
			"SELECT c.filename FROM calls c JOIN main.chunk_records r ON r.call_id = c.call_id",
			"SELECT version FROM schema_migrations",
			"SELECT sql FROM sqlite_master",
			"SELECT name FROM pragma_table_list",
		} {
			res, err := store.QueryReadOnly(ctx, query, 10)
			assert.ErrorIs(t, err, storage.ErrInvalidQuery, query)
			assert.Nil(t, res, query)
		}
	})

	t.Run("truncates to max rows", func(t *testing.T) {
		res, err := store.QueryReadOnly(ctx, "SELECT chunk_id FROM chunks", 4)
		require.NoError(t, err)
		assert.Len(t, res.Rows, 4)
		assert.True(t, res.Truncated)
	})

	t.Run("refuses writes", func(t *testing.T) {
		_, err := store.QueryReadOnly(ctx, "DELETE FROM call_records", 10)
		require.Error(t, err)

		n, err := store.CountCalls(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, n)
	})

	t.Run("invalid sql", func(t *testing.T) {
		_, err := store.QueryReadOnly(ctx, "SELECT nope FROM nowhere", 10)
		assert.ErrorIs(t, err, storage.ErrInvalidQuery)
	})

	t.Run("null values", func(t *testing.T) {
		res, err := store.QueryReadOnly(ctx, "SELECT NULL, 1.5, 'x'", 10)
		require.NoError(t, err)
		assert.Equal(t, [][]string{{"NULL", "1.5", "x"}}, res.Rows)
	})
}

func TestCheckRelations(t *testing.T) {
	for _, query := range []string{
		"SELECT COUNT(*) FROM calls",
		"SELECT speaker, COUNT(*) FROM chunks GROUP BY speaker",
		"SELECT value FROM calls, json_each(calls.participants)",
		"SELECT 'records' AS call_recordsx",
	} {
		assert.NoError(t, CheckRelations(query), query)
	}
	assert.ErrorIs(t, CheckRelations("SELECT * FROM CALL_RECORDS"), storage.ErrInvalidQuery)
	assert.ErrorContains(t, CheckRelations("select * from sqlite_temp_master"), "sqlite_temp_master")
}

func TestStore_Closed(t *testing.T) {
	store := setupTestStore(t)
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())

	_, err := store.CountCalls(context.Background())
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
}
