package retrieval

import (
	"context"
	"log/slog"
	"slices"
	"strings"

	"github.com/poiesic/callscope/core"
	"github.com/poiesic/callscope/storage"
	"github.com/poiesic/callscope/vectorindex"
)

// QueryEmbedder turns a query into a unit vector.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorSearcher ranks indexed vectors against a query vector.
type VectorSearcher interface {
	Search(query []float32, k int) ([]vectorindex.Hit, error)
}

// Retriever provides similarity search over ingested transcript chunks.
type Retriever struct {
	embedder QueryEmbedder
	index    VectorSearcher
	calls    storage.CallRepository
	logger   *slog.Logger
}

// Option configures a Retriever.
type Option func(*Retriever) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Retriever) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// NewRetriever creates a new retriever.
func NewRetriever(
	embedder QueryEmbedder,
	index VectorSearcher,
	calls storage.CallRepository,
	opts ...Option,
) (*Retriever, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if index == nil {
		return nil, ErrIndexRequired
	}
	if calls == nil {
		return nil, ErrRepositoryRequired
	}

	r := &Retriever{
		embedder: embedder,
		index:    index,
		calls:    calls,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	r.logger = r.logger.With("component", "retriever")

	return r, nil
}

// Retrieve returns up to k chunks most similar to query.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]*core.RetrievedChunk, error) {
	return r.RetrieveWithMonitor(ctx, query, k, nil)
}

// RetrieveWithMonitor is Retrieve with a monitor that receives callbacks at
// each stage.
func (r *Retriever) RetrieveWithMonitor(ctx context.Context, query string, k int, monitor Monitor) ([]*core.RetrievedChunk, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}

	monitor.Start(query, k)

	vector, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		r.logger.Error("error generating embedding for query", "err", err)
		return nil, err
	}
	monitor.AfterEmbedding(len(vector))

	hits, err := r.index.Search(vector, k)
	if err != nil {
		r.logger.Error("error searching vector index", "err", err)
		return nil, err
	}
	monitor.AfterVectorSearch(hits)

	if len(hits) == 0 {
		results := []*core.RetrievedChunk{}
		monitor.Finish(results)
		return results, nil
	}

	chunkIDs := make([]string, 0, len(hits))
	seen := make(map[string]bool, len(hits))
	for _, hit := range hits {
		if !seen[hit.ChunkID] {
			seen[hit.ChunkID] = true
			chunkIDs = append(chunkIDs, hit.ChunkID)
		}
	}

	chunks, err := r.calls.GetChunks(ctx, chunkIDs...)
	if err != nil {
		r.logger.Error("error retrieving chunks", "count", len(chunkIDs), "err", err)
		return nil, err
	}
	chunksByID := make(map[string]*core.Chunk, len(chunks))
	callIDs := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		chunksByID[chunk.ID] = chunk
		if !slices.Contains(callIDs, chunk.CallID) {
			callIDs = append(callIDs, chunk.CallID)
		}
	}

	calls, err := r.calls.GetCalls(ctx, callIDs...)
	if err != nil {
		r.logger.Error("error retrieving calls", "count", len(callIDs), "err", err)
		return nil, err
	}
	callsByID := make(map[string]*core.Call, len(calls))
	for _, call := range calls {
		callsByID[call.ID] = call
	}
	monitor.AfterFetch(chunks, calls)

	results := make([]*core.RetrievedChunk, 0, len(hits))
	returned := make(map[string]bool, len(hits))
	for _, hit := range hits {
		if returned[hit.ChunkID] {
			continue
		}
		chunk, ok := chunksByID[hit.ChunkID]
		var call *core.Call
		if ok {
			call, ok = callsByID[chunk.CallID]
		}
		if !ok {
			r.logger.Warn("skipping index entry", "chunkID", hit.ChunkID, "row", hit.Row, "err", core.ErrStaleIndexEntry)
			monitor.StaleEntry(hit)
			continue
		}
		returned[hit.ChunkID] = true
		results = append(results, &core.RetrievedChunk{Chunk: chunk, Call: call, Score: hit.Score})
	}

	slices.SortStableFunc(results, compareRetrieved)
	monitor.Finish(results)

	return results, nil
}

func compareRetrieved(a, b *core.RetrievedChunk) int {
	switch {
	case a.Score > b.Score:
		return -1
	case a.Score < b.Score:
		return 1
	}
	if a.Chunk.Seq != b.Chunk.Seq {
		return a.Chunk.Seq - b.Chunk.Seq
	}
	return strings.Compare(a.Chunk.ID, b.Chunk.ID)
}
