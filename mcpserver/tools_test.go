package mcpserver

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/callscope"
	"github.com/poiesic/callscope/core"
)

func TestServer_handleAsk(t *testing.T) {
	ctx := context.Background()
	confidence := 0.8

	t.Run("returns the routed answer", func(t *testing.T) {
		assistant := &mockAssistant{answer: &core.Answer{
			Tool:       core.LabelRetrieval,
			Text:       "They asked about seats.",
			Sources:    []string{"1_demo.txt [00:02] (Relevance: 0.80)"},
			Confidence: &confidence,
		}}
		server, err := NewServer(&Ports{Assistant: assistant})
		require.NoError(t, err)

		_, output, err := server.handleAsk(ctx, nil, AskInput{Question: "  what about seats?  "})
		require.NoError(t, err)
		assert.Equal(t, "RAG", output.Tool)
		assert.Equal(t, "They asked about seats.", output.Text)
		assert.Equal(t, []string{"1_demo.txt [00:02] (Relevance: 0.80)"}, output.Sources)
		require.NotNil(t, output.Confidence)
		assert.InDelta(t, 0.8, *output.Confidence, 1e-9)
		assert.Equal(t, []string{"what about seats?"}, assistant.received)
	})

	t.Run("failed answers are flagged and sources are never nil", func(t *testing.T) {
		assistant := &mockAssistant{answer: &core.Answer{Text: "try again", Failed: true}}
		server, err := NewServer(&Ports{Assistant: assistant})
		require.NoError(t, err)

		_, output, err := server.handleAsk(ctx, nil, AskInput{Question: "hello"})
		require.NoError(t, err)
		assert.True(t, output.Failed)
		assert.NotNil(t, output.Sources)
		assert.Empty(t, output.Sources)
	})

	t.Run("blank question", func(t *testing.T) {
		assistant := &mockAssistant{}
		server, err := NewServer(&Ports{Assistant: assistant})
		require.NoError(t, err)

		_, _, err = server.handleAsk(ctx, nil, AskInput{Question: " \n"})
		assert.ErrorIs(t, err, ErrEmptyInput)
		assert.Empty(t, assistant.received)
	})
}

func TestServer_handleSearch(t *testing.T) {
	ctx := context.Background()

	t.Run("returns search results", func(t *testing.T) {
		search := &mockSearch{hits: []*core.RetrievedChunk{{
			Chunk: &core.Chunk{
				ID:        "chunk-1",
				CallID:    "call-1",
				Content:   "[00:04] Dana: What does it cost?",
				Speakers:  []string{"Dana"},
				Timestamp: "00:04",
			},
			Call:  &core.Call{ID: "call-1", Filename: "2_pricing.txt"},
			Score: 0.75,
		}}}
		server, err := NewServer(&Ports{Assistant: &mockAssistant{}, Search: search})
		require.NoError(t, err)

		_, output, err := server.handleSearch(ctx, nil, SearchInput{Query: "cost", Limit: 3})
		require.NoError(t, err)
		assert.Equal(t, 3, search.limit)
		assert.Equal(t, 1, output.Count)
		require.Len(t, output.Results, 1)
		r := output.Results[0]
		assert.Equal(t, "chunk-1", r.ChunkID)
		assert.Equal(t, "call-1", r.CallID)
		assert.Equal(t, "2_pricing.txt", r.Filename)
		assert.Equal(t, "00:04", r.Timestamp)
		assert.Equal(t, []string{"Dana"}, r.Speakers)
		assert.InDelta(t, 0.75, r.Score, 1e-6)
		assert.Equal(t, "[00:04] Dana: What does it cost?", r.Content)
	})

	t.Run("limit defaults and is capped", func(t *testing.T) {
		search := &mockSearch{}
		server, err := NewServer(&Ports{Assistant: &mockAssistant{}, Search: search})
		require.NoError(t, err)

		_, output, err := server.handleSearch(ctx, nil, SearchInput{Query: "cost"})
		require.NoError(t, err)
		assert.Equal(t, defaultSearchLimit, search.limit)
		assert.Equal(t, 0, output.Count)

		_, _, err = server.handleSearch(ctx, nil, SearchInput{Query: "cost", Limit: 1000})
		require.NoError(t, err)
		assert.Equal(t, maxSearchLimit, search.limit)
	})

	t.Run("returns error on search failure", func(t *testing.T) {
		search := &mockSearch{err: core.ErrRemoteUnavailable}
		server, err := NewServer(&Ports{Assistant: &mockAssistant{}, Search: search})
		require.NoError(t, err)

		_, _, err = server.handleSearch(ctx, nil, SearchInput{Query: "cost"})
		assert.ErrorIs(t, err, core.ErrRemoteUnavailable)
	})

	t.Run("blank query", func(t *testing.T) {
		server, err := NewServer(&Ports{Assistant: &mockAssistant{}, Search: &mockSearch{}})
		require.NoError(t, err)

		_, _, err = server.handleSearch(ctx, nil, SearchInput{})
		assert.ErrorIs(t, err, ErrEmptyInput)
	})
}

func TestServer_answeringTools(t *testing.T) {
	ctx := context.Background()

	t.Run("summarize drops blank references", func(t *testing.T) {
		answerer := &mockAnswerer{answer: &core.Answer{Tool: core.LabelSummarization, Text: "Summary."}}
		server, err := NewServer(&Ports{Assistant: &mockAssistant{}, Summarizer: answerer})
		require.NoError(t, err)

		_, output, err := server.handleSummarize(ctx, nil, SummarizeInput{Calls: []string{" 1_demo.txt ", "", "2_pricing.txt"}})
		require.NoError(t, err)
		assert.Equal(t, []string{"1_demo.txt", "2_pricing.txt"}, answerer.refs)
		assert.Equal(t, "SUMMARIZE", output.Tool)
		assert.Equal(t, "Summary.", output.Text)

		_, _, err = server.handleSummarize(ctx, nil, SummarizeInput{Calls: []string{" "}})
		assert.ErrorIs(t, err, ErrEmptyInput)
	})

	t.Run("summarize propagates lookup failures", func(t *testing.T) {
		answerer := &mockAnswerer{err: core.ErrCallNotFound}
		server, err := NewServer(&Ports{Assistant: &mockAssistant{}, Summarizer: answerer})
		require.NoError(t, err)

		_, _, err = server.handleSummarize(ctx, nil, SummarizeInput{Calls: []string{"missing.txt"}})
		assert.ErrorIs(t, err, core.ErrCallNotFound)
	})

	t.Run("query calls", func(t *testing.T) {
		answerer := &mockAnswerer{answer: &core.Answer{Tool: core.LabelAnalytics, Text: "2"}}
		server, err := NewServer(&Ports{Assistant: &mockAssistant{}, Analytics: answerer})
		require.NoError(t, err)

		_, output, err := server.handleQuery(ctx, nil, QueryInput{Question: "how many calls?"})
		require.NoError(t, err)
		assert.Equal(t, "how many calls?", answerer.text)
		assert.Equal(t, "SQL", output.Tool)
		assert.Equal(t, "2", output.Text)

		_, _, err = server.handleQuery(ctx, nil, QueryInput{})
		assert.ErrorIs(t, err, ErrEmptyInput)
	})

	t.Run("query calls rejects unsafe sql", func(t *testing.T) {
		answerer := &mockAnswerer{err: core.ErrUnsafeQuery}
		server, err := NewServer(&Ports{Assistant: &mockAssistant{}, Analytics: answerer})
		require.NoError(t, err)

		_, _, err = server.handleQuery(ctx, nil, QueryInput{Question: "drop everything"})
		assert.ErrorIs(t, err, core.ErrUnsafeQuery)
	})

	t.Run("ingest files", func(t *testing.T) {
		answerer := &mockAnswerer{answer: &core.Answer{Tool: core.LabelIngestion, Text: "Successfully ingested file '3_new.txt'."}}
		server, err := NewServer(&Ports{Assistant: &mockAssistant{}, Ingest: answerer})
		require.NoError(t, err)

		_, output, err := server.handleIngest(ctx, nil, IngestInput{Files: []string{"3_new.txt"}})
		require.NoError(t, err)
		assert.Equal(t, []string{"3_new.txt"}, answerer.refs)
		assert.Equal(t, "INGEST", output.Tool)

		_, _, err = server.handleIngest(ctx, nil, IngestInput{})
		assert.ErrorIs(t, err, ErrEmptyInput)
	})
}

func TestServer_handleStats(t *testing.T) {
	ctx := context.Background()

	t.Run("reports counts", func(t *testing.T) {
		stats := &mockStats{stats: &callscope.Stats{
			Calls: 2, Chunks: 5, Vectors: 5, IndexRows: 6, Dimension: 384, FailedJobs: 1,
		}}
		server, err := NewServer(&Ports{Assistant: &mockAssistant{}, Stats: stats})
		require.NoError(t, err)

		_, output, err := server.handleStats(ctx, nil, StatsInput{})
		require.NoError(t, err)
		assert.Equal(t, StatsOutput{Calls: 2, Chunks: 5, Vectors: 5, IndexRows: 6, Dimension: 384, FailedJobs: 1}, output)
	})

	t.Run("returns error", func(t *testing.T) {
		stats := &mockStats{err: errors.New("disk gone")}
		server, err := NewServer(&Ports{Assistant: &mockAssistant{}, Stats: stats})
		require.NoError(t, err)

		_, _, err = server.handleStats(ctx, nil, StatsInput{})
		assert.EqualError(t, err, "disk gone")
	})
}
