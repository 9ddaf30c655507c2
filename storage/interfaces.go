package storage

import (
	"context"

	"github.com/poiesic/callscope/core"
)

// CallRepository stores calls and their chunks.
//
// A call is written hidden and becomes visible only after MarkIndexed, so a
// partially-ingested call is never returned by any read method.
// Implementations must be thread-safe.
type CallRepository interface {
	// SaveCall inserts a call and all of its chunks atomically.
	// The call stays hidden until MarkIndexed is called.
	SaveCall(ctx context.Context, call *core.Call, chunks []*core.Chunk) error

	// MarkIndexed makes a saved call visible to readers.
	// Returns ErrNotFound if the call doesn't exist.
	MarkIndexed(ctx context.Context, callID string) error

	// DeleteCall removes a call and its chunks, visible or not.
	// Deleting a missing call is not an error.
	DeleteCall(ctx context.Context, callID string) error

	// PurgeIncomplete removes every hidden call and returns how many were removed.
	PurgeIncomplete(ctx context.Context) (int, error)

	// GetCall retrieves a visible call by ID.
	// Returns ErrNotFound if it doesn't exist.
	GetCall(ctx context.Context, callID string) (*core.Call, error)

	// GetCallByFilename retrieves the most recently created visible call with
	// the given filename. Returns ErrNotFound if none exists.
	GetCallByFilename(ctx context.Context, filename string) (*core.Call, error)

	// FindByFingerprint retrieves a visible call with the given content fingerprint.
	// Returns ErrNotFound if none exists.
	FindByFingerprint(ctx context.Context, fingerprint string) (*core.Call, error)

	// GetCalls retrieves visible calls by ID. Missing IDs are silently absent.
	GetCalls(ctx context.Context, callIDs ...string) ([]*core.Call, error)

	// GetChunks retrieves chunks of visible calls by ID. Missing IDs are silently absent.
	GetChunks(ctx context.Context, chunkIDs ...string) ([]*core.Chunk, error)

	// ChunksForCall returns a visible call's chunks ordered by sequence.
	ChunksForCall(ctx context.Context, callID string) ([]*core.Chunk, error)

	// ListCalls returns visible calls, newest first.
	ListCalls(ctx context.Context) ([]*core.Call, error)

	// CountCalls returns the number of visible calls.
	CountCalls(ctx context.Context) (int, error)

	// CountChunks returns the number of chunks belonging to visible calls.
	CountChunks(ctx context.Context) (int, error)

	// IterateChunks streams every visible chunk in (created_at, call, seq)
	// order, batchSize at a time. Iteration stops at the first error from fn.
	IterateChunks(ctx context.Context, batchSize int, fn func([]*core.Chunk) error) error
}

// QueryResult is the tabular result of an ad-hoc read-only query.
type QueryResult struct {
	Columns   []string
	Rows      [][]string
	Truncated bool // more rows existed than were returned
}

// AnalyticsQuerier runs ad-hoc read-only SQL against the analytics views.
type AnalyticsQuerier interface {
	// QueryReadOnly executes query on a connection that refuses writes and
	// returns at most maxRows rows.
	QueryReadOnly(ctx context.Context, query string, maxRows int) (*QueryResult, error)
}

// VectorRow is one persisted row of the vector index arena.
type VectorRow struct {
	Position uint64
	ChunkID  string
	Vector   []float32
	Deleted  bool
}

// VectorJournal durably records vector index rows so the index can be
// rebuilt in a new process without re-embedding.
// Implementations must be thread-safe.
type VectorJournal interface {
	// Append persists rows atomically. Positions must not already exist.
	Append(ctx context.Context, rows []*VectorRow) error

	// Tombstone marks rows at the given positions deleted.
	Tombstone(ctx context.Context, positions ...uint64) error

	// Scan calls fn for every row in ascending position order.
	Scan(ctx context.Context, fn func(*VectorRow) error) error

	// Dimension returns the recorded vector dimension, or 0 if none.
	Dimension(ctx context.Context) (int, error)

	// SetDimension records the vector dimension.
	SetDimension(ctx context.Context, dim int) error

	// Reset removes every row and the recorded dimension.
	Reset(ctx context.Context) error
}

// JobRepository records ingestion job state transitions.
type JobRepository interface {
	// SaveJob inserts or replaces a job.
	SaveJob(ctx context.Context, job *core.Job) error

	// GetJob retrieves a job by ID.
	// Returns ErrNotFound if it doesn't exist.
	GetJob(ctx context.Context, id string) (*core.Job, error)

	// ListJobs returns up to limit jobs, most recently started first.
	// A limit of zero or less returns every job.
	ListJobs(ctx context.Context, limit int) ([]*core.Job, error)

	// CountJobsByState returns the number of jobs currently in state.
	CountJobsByState(ctx context.Context, state core.JobState) (int, error)
}
