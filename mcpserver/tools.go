package mcpserver

import (
	"context"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/poiesic/callscope/core"
)

const (
	defaultSearchLimit = 10
	maxSearchLimit     = 50
)

// AskInput is the input schema for the ask tool.
type AskInput struct {
	Question string `json:"question" jsonschema:"a question or request about the sales call transcripts"`
}

// SummarizeInput is the input schema for the summarize_call tool.
type SummarizeInput struct {
	Calls []string `json:"calls" jsonschema:"call IDs or transcript file names to summarize"`
}

// QueryInput is the input schema for the query_calls tool.
type QueryInput struct {
	Question string `json:"question" jsonschema:"a counting, listing or aggregate question about calls and participants"`
}

// IngestInput is the input schema for the ingest_file tool.
type IngestInput struct {
	Files []string `json:"files" jsonschema:"transcript file names in the data directory"`
}

// AnswerOutput is the output schema shared by the answering tools.
type AnswerOutput struct {
	Tool       string   `json:"tool"`
	Text       string   `json:"text"`
	Sources    []string `json:"sources"`
	Confidence *float64 `json:"confidence,omitempty"`
	Failed     bool     `json:"failed,omitempty"`
}

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	Query string `json:"query" jsonschema:"text to find similar transcript passages for"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of passages to return (default 10)"`
}

// SearchOutput is the output schema for the search tool.
type SearchOutput struct {
	Results []SearchResultOutput `json:"results"`
	Count   int                  `json:"count"`
}

// SearchResultOutput represents one retrieved passage.
type SearchResultOutput struct {
	ChunkID   string   `json:"chunk_id"`
	CallID    string   `json:"call_id"`
	Filename  string   `json:"filename,omitempty"`
	Timestamp string   `json:"timestamp"`
	Speakers  []string `json:"speakers,omitempty"`
	Score     float64  `json:"score"`
	Content   string   `json:"content"`
}

// StatsInput is the input schema for the stats tool.
type StatsInput struct{}

// StatsOutput is the output schema for the stats tool.
type StatsOutput struct {
	Calls      int `json:"calls"`
	Chunks     int `json:"chunks"`
	Vectors    int `json:"vectors"`
	IndexRows  int `json:"index_rows"`
	Dimension  int `json:"dimension"`
	FailedJobs int `json:"failed_jobs"`
}

// registerTools registers a tool for every port that is set.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ask",
		Description: "Ask anything about the sales calls; the request is routed to search, summarization, analytics or ingestion",
	}, s.handleAsk)
	s.tools = append(s.tools, "ask")

	if s.ports.Search != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "search",
			Description: "Find the transcript passages most similar to a query",
		}, s.handleSearch)
		s.tools = append(s.tools, "search")
	}
	if s.ports.Summarizer != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "summarize_call",
			Description: "Summarize one or more calls by ID or transcript file name",
		}, s.handleSummarize)
		s.tools = append(s.tools, "summarize_call")
	}
	if s.ports.Analytics != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "query_calls",
			Description: "Answer aggregate questions about calls with a read-only SQL query",
		}, s.handleQuery)
		s.tools = append(s.tools, "query_calls")
	}
	if s.ports.Ingest != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "ingest_file",
			Description: "Ingest transcript files from the data directory",
		}, s.handleIngest)
		s.tools = append(s.tools, "ingest_file")
	}
	if s.ports.Stats != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "stats",
			Description: "Count stored calls, chunks, index rows and failed ingestion jobs",
		}, s.handleStats)
		s.tools = append(s.tools, "stats")
	}
}

func (s *Server) handleAsk(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AskInput,
) (*mcp.CallToolResult, AnswerOutput, error) {
	question := strings.TrimSpace(input.Question)
	if question == "" {
		return nil, AnswerOutput{}, ErrEmptyInput
	}
	s.logger.Debug("tool call", "tool", "ask")
	return nil, answerOutput(s.ports.Assistant.Ask(ctx, question)), nil
}

func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return nil, SearchOutput{}, ErrEmptyInput
	}
	limit := input.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	limit = min(limit, maxSearchLimit)
	s.logger.Debug("tool call", "tool", "search", "limit", limit)

	hits, err := s.ports.Search.Search(ctx, query, limit)
	if err != nil {
		return nil, SearchOutput{}, err
	}

	output := SearchOutput{
		Results: make([]SearchResultOutput, len(hits)),
		Count:   len(hits),
	}
	for i, h := range hits {
		r := SearchResultOutput{
			ChunkID:   h.Chunk.ID,
			CallID:    h.Chunk.CallID,
			Timestamp: h.Chunk.Timestamp,
			Speakers:  h.Chunk.Speakers,
			Score:     float64(h.Score),
			Content:   h.Chunk.Content,
		}
		if h.Call != nil {
			r.Filename = h.Call.Filename
		}
		output.Results[i] = r
	}
	return nil, output, nil
}

func (s *Server) handleSummarize(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SummarizeInput,
) (*mcp.CallToolResult, AnswerOutput, error) {
	refs := nonBlank(input.Calls)
	if len(refs) == 0 {
		return nil, AnswerOutput{}, ErrEmptyInput
	}
	s.logger.Debug("tool call", "tool", "summarize_call", "calls", len(refs))

	answer, err := s.ports.Summarizer.SummarizeCalls(ctx, refs)
	if err != nil {
		return nil, AnswerOutput{}, err
	}
	return nil, answerOutput(answer), nil
}

func (s *Server) handleQuery(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input QueryInput,
) (*mcp.CallToolResult, AnswerOutput, error) {
	question := strings.TrimSpace(input.Question)
	if question == "" {
		return nil, AnswerOutput{}, ErrEmptyInput
	}
	s.logger.Debug("tool call", "tool", "query_calls")

	answer, err := s.ports.Analytics.Answer(ctx, question)
	if err != nil {
		return nil, AnswerOutput{}, err
	}
	return nil, answerOutput(answer), nil
}

func (s *Server) handleIngest(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input IngestInput,
) (*mcp.CallToolResult, AnswerOutput, error) {
	files := nonBlank(input.Files)
	if len(files) == 0 {
		return nil, AnswerOutput{}, ErrEmptyInput
	}
	s.logger.Debug("tool call", "tool", "ingest_file", "files", len(files))

	answer, err := s.ports.Ingest.IngestFiles(ctx, files)
	if err != nil {
		return nil, AnswerOutput{}, err
	}
	return nil, answerOutput(answer), nil
}

func (s *Server) handleStats(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ StatsInput,
) (*mcp.CallToolResult, StatsOutput, error) {
	stats, err := s.ports.Stats.Stats(ctx)
	if err != nil {
		return nil, StatsOutput{}, err
	}
	return nil, StatsOutput{
		Calls:      stats.Calls,
		Chunks:     stats.Chunks,
		Vectors:    stats.Vectors,
		IndexRows:  stats.IndexRows,
		Dimension:  stats.Dimension,
		FailedJobs: stats.FailedJobs,
	}, nil
}

func answerOutput(a *core.Answer) AnswerOutput {
	sources := a.Sources
	if sources == nil {
		sources = []string{}
	}
	return AnswerOutput{
		Tool:       string(a.Tool),
		Text:       a.Text,
		Sources:    sources,
		Confidence: a.Confidence,
		Failed:     a.Failed,
	}
}

func nonBlank(values []string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
