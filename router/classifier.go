package router

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/callscope/ai"
	"github.com/poiesic/callscope/core"
)

const (
	classifierTemperature = 0.1
	classifierMaxTokens   = 10

	labelCutset = " \t\r\n\"'`.,:;!?*()[]{}<>"
)

// Classifier labels requests with the language model.
type Classifier struct {
	generator ai.Generator
	logger    *slog.Logger
}

// ClassifierOption configures a Classifier.
type ClassifierOption func(*Classifier) error

// WithClassifierLogger sets a custom logger.
func WithClassifierLogger(logger *slog.Logger) ClassifierOption {
	return func(c *Classifier) error {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger
		return nil
	}
}

// NewClassifier creates a Classifier backed by generator.
func NewClassifier(generator ai.Generator, opts ...ClassifierOption) (*Classifier, error) {
	if generator == nil {
		return nil, ErrGeneratorRequired
	}
	c := &Classifier{generator: generator, logger: slog.Default()}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	c.logger = c.logger.With("component", "classifier")
	return c, nil
}

// Classify labels utterance and extracts the parameters its strategy needs.
// A reply outside the label set yields Unrecognized and an error wrapping
// core.ErrClassificationInvalid.
func (c *Classifier) Classify(ctx context.Context, utterance string) (Intent, error) {
	utterance = strings.TrimSpace(utterance)
	if utterance == "" {
		return nil, fmt.Errorf("%w: empty request", core.ErrInvalidInput)
	}

	reply, err := c.generator.Generate(ctx, ai.Prompt{
		System:      classifierSystem,
		User:        utterance,
		Temperature: classifierTemperature,
		MaxTokens:   classifierMaxTokens,
	})
	if err != nil {
		return nil, err
	}

	label, ok := ParseLabel(reply)
	if !ok {
		c.logger.Warn("classifier returned an unknown label", "reply", reply)
		return Unrecognized{Raw: reply}, fmt.Errorf("%w: %q", core.ErrClassificationInvalid, reply)
	}
	c.logger.Debug("classified request", "label", label)
	return NewIntent(label, utterance), nil
}

// ParseLabel normalizes a classifier reply and reports whether it is one of
// the four labels. Surrounding whitespace, quotes and punctuation are ignored
// and case does not matter.
func ParseLabel(reply string) (core.Label, bool) {
	label := core.Label(strings.ToUpper(strings.Trim(reply, labelCutset)))
	switch label {
	case core.LabelRetrieval, core.LabelSummarization, core.LabelAnalytics, core.LabelIngestion:
		return label, true
	}
	return "", false
}

// NewIntent builds the intent for label, extracting parameters from utterance.
// An unknown label yields Unrecognized.
func NewIntent(label core.Label, utterance string) Intent {
	switch label {
	case core.LabelRetrieval:
		return Retrieval{Query: utterance}
	case core.LabelSummarization:
		return Summarization{Query: utterance, CallRefs: callRefs(utterance)}
	case core.LabelAnalytics:
		return Analytics{Question: utterance}
	case core.LabelIngestion:
		return Ingestion{Query: utterance, Paths: ExtractFilenames(utterance)}
	}
	return Unrecognized{Raw: string(label)}
}
