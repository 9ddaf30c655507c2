package tui

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/poiesic/callscope/core"
)

func TestFormatAnswer(t *testing.T) {
	confidence := 0.8123
	zero := 0.0

	tests := []struct {
		name     string
		answer   *core.Answer
		contains []string
		excludes []string
	}{
		{
			name: "retrieval answer",
			answer: &core.Answer{
				Tool:       core.LabelRetrieval,
				Text:       "Pricing was the main concern.",
				Sources:    []string{"2_pricing.txt [00:04] (Relevance: 0.90)", "1_demo.txt [00:01] (Relevance: 0.70)"},
				Confidence: &confidence,
			},
			contains: []string{
				"Tool Used: RAG",
				"Answer:\nPricing was the main concern.",
				"Sources:",
				"1. 2_pricing.txt [00:04] (Relevance: 0.90)",
				"2. 1_demo.txt [00:01] (Relevance: 0.70)",
				"Confidence: 0.81",
			},
			excludes: []string{"SQL Query"},
		},
		{
			name:     "analytics answer shows the query",
			answer:   &core.Answer{Tool: core.LabelAnalytics, Text: "2", Query: "SELECT COUNT(*) FROM calls"},
			contains: []string{"Tool Used: SQL", "SQL Query: SELECT COUNT(*) FROM calls"},
			excludes: []string{"Sources:", "Confidence"},
		},
		{
			name:     "zero confidence is hidden",
			answer:   &core.Answer{Tool: core.LabelRetrieval, Text: "nothing", Confidence: &zero},
			excludes: []string{"Confidence"},
		},
		{
			name:     "failed answer has no answer heading",
			answer:   &core.Answer{Text: "Please try again in a moment.", Failed: true},
			contains: []string{"Tool Used: Unknown", "Please try again in a moment."},
			excludes: []string{"Answer:"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := FormatAnswer(tt.answer)
			for _, s := range tt.contains {
				assert.Contains(t, out, s)
			}
			for _, s := range tt.excludes {
				assert.NotContains(t, out, s)
			}
		})
	}

	assert.Empty(t, FormatAnswer(nil))
}

func TestIsQuit(t *testing.T) {
	for _, in := range []string{"quit", "exit", "q", " Q ", "EXIT"} {
		assert.True(t, IsQuit(in), in)
	}
	for _, in := range []string{"", "quiet", "exit now", "how many calls?"} {
		assert.False(t, IsQuit(in), in)
	}
}
