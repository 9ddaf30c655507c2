// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package transcript

import (
	"errors"
	"strings"

	"github.com/poiesic/callscope/core"
)

// DefaultTokenBudget is the default approximate token budget per chunk.
const DefaultTokenBudget = 256

// ErrInvalidTokenBudget is returned when a token budget below 1 is configured.
var ErrInvalidTokenBudget = errors.New("token budget must be positive")

// TokenEstimator approximates the number of model tokens in a text segment.
type TokenEstimator func(segment string) int

// EstimateTokens is the default estimator: one token per four bytes, rounded down.
func EstimateTokens(segment string) int {
	return len(segment) / 4
}

// Chunker groups speaker turns into token-bounded retrieval units.
// A Chunker is immutable after construction and safe for concurrent use.
type Chunker struct {
	budget   int
	estimate TokenEstimator
}

// Option configures a Chunker.
type Option func(*Chunker) error

// WithTokenBudget sets the approximate token budget per chunk.
func WithTokenBudget(budget int) Option {
	return func(c *Chunker) error {
		if budget < 1 {
			return ErrInvalidTokenBudget
		}
		c.budget = budget
		return nil
	}
}

// WithTokenEstimator replaces the default len/4 estimator.
func WithTokenEstimator(fn TokenEstimator) Option {
	return func(c *Chunker) error {
		if fn != nil {
			c.estimate = fn
		}
		return nil
	}
}

// NewChunker creates a chunker. Default budget is DefaultTokenBudget tokens.
func NewChunker(opts ...Option) (*Chunker, error) {
	c := &Chunker{
		budget:   DefaultTokenBudget,
		estimate: EstimateTokens,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Budget returns the configured token budget.
func (c *Chunker) Budget() int {
	return c.budget
}

// FormatTurn renders a turn the way it appears inside chunk content.
func FormatTurn(turn core.Turn) string {
	return "[" + turn.Timestamp + "] " + turn.Speaker + ": " + turn.Text
}

// Chunk partitions turns into chunks for the given call.
//
// Turns are accumulated greedily. When adding the next turn would push the
// running estimate over the budget, the current chunk is closed and the turn
// starts a new one. A turn is never split, so a single turn larger than the
// budget becomes a chunk of its own. Output depends only on the input.
func (c *Chunker) Chunk(callID string, turns []core.Turn) []*core.Chunk {
	chunks := make([]*core.Chunk, 0)
	var (
		segments []string
		members  []core.Turn
		tokens   int
	)

	flush := func() {
		chunks = append(chunks, buildChunk(callID, len(chunks), segments, members, tokens))
		segments, members, tokens = nil, nil, 0
	}

	for _, turn := range turns {
		segment := FormatTurn(turn)
		cost := c.estimate(segment)
		if tokens+cost > c.budget && len(members) > 0 {
			flush()
		}
		segments = append(segments, segment)
		members = append(members, turn)
		tokens += cost
	}
	if len(members) > 0 {
		flush()
	}
	return chunks
}

func buildChunk(callID string, seq int, segments []string, turns []core.Turn, tokens int) *core.Chunk {
	speakers := make([]string, 0, len(turns))
	counts := make(map[string]int, len(turns))
	for _, turn := range turns {
		if _, ok := counts[turn.Speaker]; !ok {
			speakers = append(speakers, turn.Speaker)
		}
		counts[turn.Speaker]++
	}

	// Most turns wins; speakers is in first-appearance order so ties keep the earliest.
	primary := ""
	best := 0
	for _, s := range speakers {
		if counts[s] > best {
			primary, best = s, counts[s]
		}
	}

	return &core.Chunk{
		ID:         core.ChunkIDFor(callID, seq),
		CallID:     callID,
		Content:    strings.Join(segments, "\n"),
		Speakers:   speakers,
		Speaker:    primary,
		Timestamp:  turns[0].Timestamp,
		Seq:        seq,
		TokenCount: tokens,
	}
}
