package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/poiesic/callscope/core"
)

// IntentClassifier labels a request.
type IntentClassifier interface {
	Classify(ctx context.Context, utterance string) (Intent, error)
}

// RetrievalHandler answers questions about call content.
type RetrievalHandler interface {
	Answer(ctx context.Context, query string) (*core.Answer, error)
}

// SummarizationHandler summarizes referenced calls.
type SummarizationHandler interface {
	SummarizeCalls(ctx context.Context, refs []string) (*core.Answer, error)
}

// AnalyticsHandler answers structured questions.
type AnalyticsHandler interface {
	Answer(ctx context.Context, question string) (*core.Answer, error)
}

// IngestionHandler ingests named transcript files.
type IngestionHandler interface {
	IngestFiles(ctx context.Context, names []string) (*core.Answer, error)
}

// Handlers holds one handler per intent.
type Handlers struct {
	Retrieval     RetrievalHandler
	Summarization SummarizationHandler
	Analytics     AnalyticsHandler
	Ingestion     IngestionHandler
}

func (h Handlers) validate() error {
	switch {
	case h.Retrieval == nil:
		return fmt.Errorf("%w: retrieval", ErrHandlerRequired)
	case h.Summarization == nil:
		return fmt.Errorf("%w: summarization", ErrHandlerRequired)
	case h.Analytics == nil:
		return fmt.Errorf("%w: analytics", ErrHandlerRequired)
	case h.Ingestion == nil:
		return fmt.Errorf("%w: ingestion", ErrHandlerRequired)
	}
	return nil
}

// Router classifies requests and dispatches them to a strategy.
type Router struct {
	classifier IntentClassifier
	handlers   Handlers
	logger     *slog.Logger
}

// Option configures a Router.
type Option func(*Router) error

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Router) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// New creates a Router. Every handler is required.
func New(classifier IntentClassifier, handlers Handlers, opts ...Option) (*Router, error) {
	if classifier == nil {
		return nil, ErrClassifierRequired
	}
	if err := handlers.validate(); err != nil {
		return nil, err
	}
	r := &Router{classifier: classifier, handlers: handlers, logger: slog.Default()}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	r.logger = r.logger.With("component", "router")
	return r, nil
}

// Route classifies utterance and invokes the matching handler. Nothing is
// dispatched unless classification succeeds.
func (r *Router) Route(ctx context.Context, utterance string) (*core.Answer, error) {
	_, answer, err := r.route(ctx, utterance)
	return answer, err
}

func (r *Router) route(ctx context.Context, utterance string) (Intent, *core.Answer, error) {
	intent, err := r.classifier.Classify(ctx, utterance)
	if err != nil {
		return intent, nil, err
	}
	answer, err := r.dispatch(ctx, intent)
	return intent, answer, err
}

// dispatch invokes the handler for an intent returned by the classifier.
// Summarization and ingestion without references return a clarification
// request instead of calling their handler.
func (r *Router) dispatch(ctx context.Context, intent Intent) (*core.Answer, error) {
	r.logger.Debug("dispatching request", "label", labelOf(intent))
	switch in := intent.(type) {
	case Retrieval:
		return r.handlers.Retrieval.Answer(ctx, in.Query)
	case Summarization:
		if len(in.CallRefs) == 0 {
			return clarification(core.LabelSummarization, summarizeClarification), nil
		}
		return r.handlers.Summarization.SummarizeCalls(ctx, in.CallRefs)
	case Analytics:
		return r.handlers.Analytics.Answer(ctx, in.Question)
	case Ingestion:
		if len(in.Paths) == 0 {
			return clarification(core.LabelIngestion, ingestClarification), nil
		}
		return r.handlers.Ingestion.IngestFiles(ctx, in.Paths)
	case Unrecognized:
		return nil, fmt.Errorf("%w: %q", core.ErrClassificationInvalid, in.Raw)
	default:
		return nil, fmt.Errorf("%w: unknown intent %T", core.ErrClassificationInvalid, intent)
	}
}

// Respond routes utterance and always returns an answer fit to show the
// user. Failures are turned into messages and marked Failed.
func (r *Router) Respond(ctx context.Context, utterance string) *core.Answer {
	intent, answer, err := r.route(ctx, utterance)
	if err == nil {
		return answer
	}

	label := labelOf(intent)
	r.logger.Warn("request failed", "label", label, "err", err)

	var text string
	switch {
	case errors.Is(err, core.ErrClassificationInvalid):
		text = intentClarification
	case core.IsRemoteFailure(err):
		text = tryAgainText
	case errors.Is(err, core.ErrUnsafeQuery):
		text = unsafeQueryText
	case errors.Is(err, core.ErrCallNotFound):
		text = callNotFoundText
	default:
		text = "Error: " + err.Error()
	}
	return &core.Answer{Tool: label, Text: text, Sources: []string{}, Failed: true}
}

func clarification(label core.Label, text string) *core.Answer {
	return &core.Answer{Tool: label, Text: text, Sources: []string{}}
}

func labelOf(intent Intent) core.Label {
	if intent == nil {
		return ""
	}
	return intent.Label()
}
