package mcpserver

import (
	"context"

	"github.com/poiesic/callscope"
	"github.com/poiesic/callscope/core"
)

type mockAssistant struct {
	answer   *core.Answer
	received []string
}

func (m *mockAssistant) Ask(_ context.Context, utterance string) *core.Answer {
	m.received = append(m.received, utterance)
	return m.answer
}

type mockSearch struct {
	hits  []*core.RetrievedChunk
	err   error
	limit int
}

func (m *mockSearch) Search(_ context.Context, _ string, k int) ([]*core.RetrievedChunk, error) {
	m.limit = k
	return m.hits, m.err
}

// mockAnswerer serves the summarizer, analytics and ingest ports.
type mockAnswerer struct {
	answer *core.Answer
	err    error
	refs   []string
	text   string
}

func (m *mockAnswerer) SummarizeCalls(_ context.Context, refs []string) (*core.Answer, error) {
	m.refs = refs
	return m.answer, m.err
}

func (m *mockAnswerer) Answer(_ context.Context, question string) (*core.Answer, error) {
	m.text = question
	return m.answer, m.err
}

func (m *mockAnswerer) IngestFiles(_ context.Context, names []string) (*core.Answer, error) {
	m.refs = names
	return m.answer, m.err
}

type mockStats struct {
	stats *callscope.Stats
	err   error
}

func (m *mockStats) Stats(context.Context) (*callscope.Stats, error) {
	return m.stats, m.err
}
