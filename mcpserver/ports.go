package mcpserver

import (
	"context"

	"github.com/poiesic/callscope"
	"github.com/poiesic/callscope/core"
)

// Assistant routes free-form requests.
type Assistant interface {
	Ask(ctx context.Context, utterance string) *core.Answer
}

// Searcher returns the chunks most similar to a query.
type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]*core.RetrievedChunk, error)
}

// Summarizer summarizes whole calls.
type Summarizer interface {
	SummarizeCalls(ctx context.Context, refs []string) (*core.Answer, error)
}

// Analyst answers questions about the stored calls with SQL.
type Analyst interface {
	Answer(ctx context.Context, question string) (*core.Answer, error)
}

// Ingester loads named transcripts from the data directory.
type Ingester interface {
	IngestFiles(ctx context.Context, names []string) (*core.Answer, error)
}

// StatsReporter describes the stored corpus.
type StatsReporter interface {
	Stats(ctx context.Context) (*callscope.Stats, error)
}

// Ports aggregates the services the tools call into. Only Assistant is
// required; a tool whose port is nil is not registered.
type Ports struct {
	Assistant  Assistant
	Search     Searcher
	Summarizer Summarizer
	Analytics  Analyst
	Ingest     Ingester
	Stats      StatsReporter
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p == nil || p.Assistant == nil {
		return ErrMissingAssistant
	}
	return nil
}

// PortsFor exposes every capability of an open copilot.
func PortsFor(c *callscope.Copilot) *Ports {
	return &Ports{
		Assistant:  c,
		Search:     c,
		Summarizer: c.Summarizer(),
		Analytics:  c.Analytics(),
		Ingest:     c.Ingest(),
		Stats:      c,
	}
}
