package strategy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/poiesic/callscope/ai"
	"github.com/poiesic/callscope/core"
	"github.com/poiesic/callscope/storage"
	"github.com/poiesic/callscope/transcript"
)

const summaryTemperature = 0.3

// Summarizer writes summaries of whole calls.
type Summarizer struct {
	calls     storage.CallRepository
	generator ai.Generator
	dataDir   string
	logger    *slog.Logger
}

// SummarizerOption configures a Summarizer.
type SummarizerOption func(*Summarizer) error

// WithDataDir sets the directory searched for transcript files that are not
// in the store.
func WithDataDir(dir string) SummarizerOption {
	return func(s *Summarizer) error {
		s.dataDir = dir
		return nil
	}
}

// WithSummarizerLogger sets a custom logger.
func WithSummarizerLogger(logger *slog.Logger) SummarizerOption {
	return func(s *Summarizer) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// NewSummarizer creates a summarization strategy.
func NewSummarizer(calls storage.CallRepository, generator ai.Generator, opts ...SummarizerOption) (*Summarizer, error) {
	if calls == nil {
		return nil, ErrRepositoryRequired
	}
	if generator == nil {
		return nil, ErrGeneratorRequired
	}
	s := &Summarizer{calls: calls, generator: generator, logger: slog.Default()}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "summarizer")
	return s, nil
}

// resolved is a call ready to summarize.
type resolved struct {
	filename     string
	participants []string
	content      string
}

// resolve looks ref up as a call ID, then as a stored filename, then as a
// file in the data directory.
func (s *Summarizer) resolve(ctx context.Context, ref string) (*resolved, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, ErrNoReferences
	}

	call, err := s.calls.GetCall(ctx, ref)
	if errors.Is(err, storage.ErrNotFound) {
		call, err = s.calls.GetCallByFilename(ctx, filepath.Base(ref))
	}
	switch {
	case err == nil:
		return &resolved{filename: call.Filename, participants: call.Participants, content: call.Content}, nil
	case !errors.Is(err, storage.ErrNotFound):
		return nil, err
	}

	if s.dataDir != "" {
		data, err := os.ReadFile(filepath.Join(s.dataDir, filepath.Base(ref)))
		if err == nil {
			r := &resolved{filename: filepath.Base(ref), content: string(data)}
			if parsed, err := transcript.Parse(r.content); err == nil {
				r.participants = transcript.Participants(parsed.Turns)
			}
			return r, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("reading %s: %w", ref, err)
		}
	}

	return nil, fmt.Errorf("%w: '%s' is not a stored call or a file in the data directory", core.ErrCallNotFound, ref)
}

// Summarize summarizes the call identified by ref.
func (s *Summarizer) Summarize(ctx context.Context, ref string) (*core.Answer, error) {
	r, err := s.resolve(ctx, ref)
	if err != nil {
		return nil, err
	}

	reply, err := s.generator.Generate(ctx, ai.Prompt{
		System:      summarizerSystem,
		User:        callSummaryPrompt(r.filename, r.participants, r.content),
		Temperature: summaryTemperature,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Debug("summarized call", "file", r.filename)

	return &core.Answer{
		Tool:    core.LabelSummarization,
		Text:    strings.TrimSpace(reply),
		Sources: []string{fmt.Sprintf("Source: %s (Full transcript)", r.filename)},
	}, nil
}

// SummarizeCalls summarizes each referenced call and compiles the results.
// A reference that does not resolve is reported inline; the request fails
// only if none resolve. Remote failures abort the whole request.
func (s *Summarizer) SummarizeCalls(ctx context.Context, refs []string) (*core.Answer, error) {
	switch len(refs) {
	case 0:
		return nil, ErrNoReferences
	case 1:
		return s.Summarize(ctx, refs[0])
	}

	var (
		b       strings.Builder
		sources []string
		seen    = make(map[string]bool)
		found   int
	)
	fmt.Fprintf(&b, "Summary of %d call(s):\n\n", len(refs))
	for i, ref := range refs {
		answer, err := s.Summarize(ctx, ref)
		var text string
		switch {
		case err == nil:
			found++
			text = answer.Text
			for _, src := range answer.Sources {
				if !seen[src] {
					seen[src] = true
					sources = append(sources, src)
				}
			}
		case errors.Is(err, core.ErrCallNotFound):
			text = fmt.Sprintf("Call with identifier '%s' not found in database or as file.", ref)
		default:
			return nil, err
		}
		fmt.Fprintf(&b, "%d. %s:\n%s\n\n", i+1, ref, text)
	}

	if found == 0 {
		return nil, fmt.Errorf("%w: none of %s", core.ErrCallNotFound, strings.Join(refs, ", "))
	}

	return &core.Answer{
		Tool:    core.LabelSummarization,
		Text:    strings.TrimSpace(b.String()),
		Sources: sources,
	}, nil
}
