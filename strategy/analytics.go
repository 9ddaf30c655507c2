package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/callscope/ai"
	"github.com/poiesic/callscope/core"
	"github.com/poiesic/callscope/storage"
)

const (
	// DefaultMaxQueryResults caps the rows returned by an analytics query.
	DefaultMaxQueryResults = 50

	sqlTemperature = 0.1

	emptyResultText = "Query executed successfully but returned no results."
)

// Analytics answers aggregate questions by generating and running read-only SQL.
type Analytics struct {
	generator  ai.Generator
	querier    storage.AnalyticsQuerier
	maxResults int
	logger     *slog.Logger
}

// AnalyticsOption configures an Analytics strategy.
type AnalyticsOption func(*Analytics) error

// WithMaxQueryResults caps the rows returned per query.
func WithMaxQueryResults(n int) AnalyticsOption {
	return func(a *Analytics) error {
		if n < 1 {
			return fmt.Errorf("max query results must be positive, got %d", n)
		}
		a.maxResults = n
		return nil
	}
}

// WithAnalyticsLogger sets a custom logger.
func WithAnalyticsLogger(logger *slog.Logger) AnalyticsOption {
	return func(a *Analytics) error {
		if logger == nil {
			logger = slog.Default()
		}
		a.logger = logger
		return nil
	}
}

// NewAnalytics creates an analytics strategy.
func NewAnalytics(generator ai.Generator, querier storage.AnalyticsQuerier, opts ...AnalyticsOption) (*Analytics, error) {
	if generator == nil {
		return nil, ErrGeneratorRequired
	}
	if querier == nil {
		return nil, ErrQuerierRequired
	}
	a := &Analytics{
		generator:  generator,
		querier:    querier,
		maxResults: DefaultMaxQueryResults,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}
	a.logger = a.logger.With("component", "analytics")
	return a, nil
}

// Answer generates SQL for question, checks it is read-only, runs it and
// formats the rows. Unsafe SQL is never executed; the error wraps
// core.ErrUnsafeQuery.
func (a *Analytics) Answer(ctx context.Context, question string) (*core.Answer, error) {
	reply, err := a.generator.Generate(ctx, ai.Prompt{
		System:      sqlSystem,
		User:        sqlQueryPrompt(question),
		Temperature: sqlTemperature,
	})
	if err != nil {
		return nil, err
	}

	sql := CleanSQL(reply)
	if err := CheckReadOnly(sql); err != nil {
		a.logger.Warn("rejected generated query", "sql", sql, "err", err)
		return nil, fmt.Errorf("rejected generated query %q: %w", sql, err)
	}

	result, err := a.querier.QueryReadOnly(ctx, sql, a.maxResults)
	if err != nil {
		return nil, fmt.Errorf("executing generated query %q: %w", sql, err)
	}
	a.logger.Debug("query executed", "sql", sql, "rows", len(result.Rows), "truncated", result.Truncated)

	text := emptyResultText
	if len(result.Rows) > 0 {
		text = FormatRows(result.Rows)
	}
	return &core.Answer{
		Tool:    core.LabelAnalytics,
		Text:    text,
		Sources: []string{"Database query: " + sql},
		Query:   sql,
	}, nil
}

// FormatRows prints one line per row. A single-column row prints its value;
// wider rows join their columns with ", ".
func FormatRows(rows [][]string) string {
	lines := make([]string, len(rows))
	for i, row := range rows {
		lines[i] = strings.Join(row, ", ")
	}
	return strings.Join(lines, "\n")
}
