package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/poiesic/callscope/ai"
	"github.com/poiesic/callscope/core"
)

const (
	// DefaultMaxChunks is how many chunks the retrieval answer draws on.
	DefaultMaxChunks = 20

	ragTemperature = 0.2

	noMatchesText = "I couldn't find any relevant information in the call transcripts to answer your question."
)

// Retriever finds the chunks most similar to a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]*core.RetrievedChunk, error)
}

// RAG answers free-form questions from the most relevant transcript chunks.
type RAG struct {
	retriever Retriever
	generator ai.Generator
	maxChunks int
	logger    *slog.Logger
}

// RAGOption configures a RAG strategy.
type RAGOption func(*RAG) error

// WithMaxChunks sets how many chunks are retrieved per question.
func WithMaxChunks(n int) RAGOption {
	return func(r *RAG) error {
		if n < 1 {
			return fmt.Errorf("max chunks must be positive, got %d", n)
		}
		r.maxChunks = n
		return nil
	}
}

// WithRAGLogger sets a custom logger.
func WithRAGLogger(logger *slog.Logger) RAGOption {
	return func(r *RAG) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// NewRAG creates a retrieval-answer strategy.
func NewRAG(retriever Retriever, generator ai.Generator, opts ...RAGOption) (*RAG, error) {
	if retriever == nil {
		return nil, ErrRetrieverRequired
	}
	if generator == nil {
		return nil, ErrGeneratorRequired
	}
	r := &RAG{
		retriever: retriever,
		generator: generator,
		maxChunks: DefaultMaxChunks,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	r.logger = r.logger.With("component", "rag")
	return r, nil
}

// Answer retrieves context for query and asks the generator to answer from it.
// Confidence is the mean similarity of the chunks used.
func (r *RAG) Answer(ctx context.Context, query string) (*core.Answer, error) {
	hits, err := r.retriever.Retrieve(ctx, query, r.maxChunks)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return &core.Answer{
			Tool:       core.LabelRetrieval,
			Text:       noMatchesText,
			Sources:    []string{},
			Confidence: confidence(0),
		}, nil
	}

	reply, err := r.generator.Generate(ctx, ai.Prompt{
		System:      analystSystem,
		User:        queryAnalysisPrompt(query, BuildContext(hits)),
		Temperature: ragTemperature,
	})
	if err != nil {
		return nil, err
	}

	var total float64
	for _, h := range hits {
		total += float64(h.Score)
	}
	r.logger.Debug("answered from transcripts", "chunks", len(hits))

	return &core.Answer{
		Tool:       core.LabelRetrieval,
		Text:       strings.TrimSpace(reply),
		Sources:    FormatSources(hits),
		Confidence: confidence(total / float64(len(hits))),
	}, nil
}

// BuildContext renders retrieved chunks for the prompt. Chunks are grouped by
// call in order of each call's first hit, and ordered by sequence within a call.
func BuildContext(hits []*core.RetrievedChunk) string {
	var order []string
	byCall := make(map[string][]*core.RetrievedChunk)
	for _, h := range hits {
		id := h.Chunk.CallID
		if _, ok := byCall[id]; !ok {
			order = append(order, id)
		}
		byCall[id] = append(byCall[id], h)
	}

	blocks := make([]string, 0, len(order))
	for _, id := range order {
		group := byCall[id]
		slices.SortStableFunc(group, func(a, b *core.RetrievedChunk) int {
			return a.Chunk.Seq - b.Chunk.Seq
		})

		parts := []string{"Call Transcript ID: " + id}
		for _, h := range group {
			speakers := "Unknown"
			if len(h.Chunk.Speakers) > 0 {
				speakers = strings.Join(h.Chunk.Speakers, ", ")
			}
			parts = append(parts, fmt.Sprintf("[%s] %s [Relevance: %.2f]:\n%s\n",
				h.Chunk.Timestamp, speakers, h.Score, h.Chunk.Content))
		}
		blocks = append(blocks, strings.Join(parts, "\n"))
	}
	return strings.Join(blocks, "\n\n")
}

// FormatSources lists each retrieved chunk as "file [ts] (Relevance: 0.87)".
func FormatSources(hits []*core.RetrievedChunk) []string {
	sources := make([]string, len(hits))
	for i, h := range hits {
		name := h.Chunk.CallID
		if h.Call != nil {
			name = h.Call.Filename
		}
		sources[i] = fmt.Sprintf("%s [%s] (Relevance: %.2f)", name, h.Chunk.Timestamp, h.Score)
	}
	return sources
}

func confidence(v float64) *float64 {
	return &v
}
