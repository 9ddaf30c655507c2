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


package callscope

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/poiesic/callscope/ai"
	"github.com/poiesic/callscope/ai/openai"
	"github.com/poiesic/callscope/config"
	"github.com/poiesic/callscope/core"
	"github.com/poiesic/callscope/embedding"
	"github.com/poiesic/callscope/ingestion"
	"github.com/poiesic/callscope/reembed"
	"github.com/poiesic/callscope/retrieval"
	"github.com/poiesic/callscope/router"
	"github.com/poiesic/callscope/storage/badger"
	"github.com/poiesic/callscope/storage/sqlite"
	"github.com/poiesic/callscope/strategy"
	"github.com/poiesic/callscope/transcript"
	"github.com/poiesic/callscope/vectorindex"
)

// Copilot wires the stores, the AI provider and the strategies together.
type Copilot struct {
	cfg        *config.Config
	provider   ai.AIProvider
	store      *sqlite.Store
	backend    *badger.Backend
	index      *vectorindex.Index
	jobs       *badger.JobRepository
	embedder   *embedding.Client
	pipeline   *ingestion.Pipeline
	retriever  *retrieval.Retriever
	summarizer *strategy.Summarizer
	analytics  *strategy.Analytics
	ingest     *strategy.Ingest
	router     *router.Router
	baseLogger *slog.Logger
	logger     *slog.Logger
}

// Option configures a Copilot.
type Option func(*options) error

type options struct {
	provider ai.AIProvider
	logger   *slog.Logger
	inMemory bool
}

// WithProvider uses provider instead of an OpenAI provider built from the
// configuration. The Copilot takes ownership and closes it.
func WithProvider(provider ai.AIProvider) Option {
	return func(o *options) error {
		if provider == nil {
			return errors.New("provider is required")
		}
		o.provider = provider
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) error {
		if logger != nil {
			o.logger = logger
		}
		return nil
	}
}

// WithInMemoryIndex keeps the vector journal and job ledger in memory.
func WithInMemoryIndex() Option {
	return func(o *options) error {
		o.inMemory = true
		return nil
	}
}

// Open validates cfg, opens persistent state and builds every component.
// Index rows whose chunks are no longer stored are removed on open.
func Open(ctx context.Context, cfg *config.Config, opts ...Option) (_ *Copilot, err error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := &options{logger: slog.Default()}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}

	c := &Copilot{
		cfg:        cfg,
		provider:   o.provider,
		baseLogger: o.logger,
		logger:     o.logger.With("component", "copilot"),
	}
	defer func() {
		if err != nil {
			_ = c.Close()
		}
	}()

	if c.provider == nil {
		if c.provider, err = openai.NewProvider(cfg.AIConfig()); err != nil {
			return nil, fmt.Errorf("creating AI provider: %w", err)
		}
	}
	if c.store, err = sqlite.Open(ctx, cfg.Paths.DatabasePath, sqlite.WithLogger(o.logger)); err != nil {
		return nil, err
	}
	if c.backend, err = badger.OpenBackend(cfg.Paths.IndexPath, o.inMemory); err != nil {
		return nil, fmt.Errorf("opening index storage: %w", err)
	}
	c.jobs = badger.NewJobRepository(c.backend)
	if c.index, err = vectorindex.Load(ctx, badger.NewVectorJournal(c.backend), vectorindex.WithLogger(o.logger)); err != nil {
		return nil, err
	}
	if c.embedder, err = c.newEmbeddingClient(); err != nil {
		return nil, err
	}

	chunker, err := transcript.NewChunker(transcript.WithTokenBudget(cfg.Chunking.ChunkSize))
	if err != nil {
		return nil, err
	}
	c.pipeline, err = ingestion.NewPipeline(c.store, c.index, c.embedder, c.jobs,
		ingestion.WithChunker(chunker), ingestion.WithLogger(o.logger))
	if err != nil {
		return nil, err
	}
	if c.retriever, err = retrieval.NewRetriever(c.embedder, c.index, c.store, retrieval.WithLogger(o.logger)); err != nil {
		return nil, err
	}
	if err = c.buildStrategies(o.logger); err != nil {
		return nil, err
	}

	removed, err := c.reconcile(ctx)
	if err != nil {
		return nil, err
	}
	if removed > 0 {
		c.logger.Warn("removed index rows without stored chunks", "count", removed)
	}
	c.logger.Debug("copilot ready", "calls_db", cfg.Paths.DatabasePath, "index", cfg.Paths.IndexPath, "vectors", c.index.Live())
	return c, nil
}

func (c *Copilot) newEmbeddingClient() (*embedding.Client, error) {
	e := c.cfg.Embedding
	return embedding.NewClient(c.provider.Embedder(),
		embedding.WithBatchSize(e.BatchSize),
		embedding.WithWorkers(e.Workers),
		embedding.WithRetry(e.MaxRetries, e.RetryDelay.Std()),
		embedding.WithRequestTimeout(c.cfg.AI.RequestTimeout.Std()),
		embedding.WithRateLimit(e.RPS, e.Workers),
		embedding.WithLogger(c.baseLogger),
	)
}

func (c *Copilot) buildStrategies(logger *slog.Logger) error {
	generator := c.provider.Generator()

	rag, err := strategy.NewRAG(c.retriever, generator,
		strategy.WithMaxChunks(c.cfg.Query.MaxChunks), strategy.WithRAGLogger(logger))
	if err != nil {
		return err
	}
	c.summarizer, err = strategy.NewSummarizer(c.store, generator,
		strategy.WithDataDir(c.cfg.Paths.DataDir), strategy.WithSummarizerLogger(logger))
	if err != nil {
		return err
	}
	c.analytics, err = strategy.NewAnalytics(generator, c.store,
		strategy.WithMaxQueryResults(c.cfg.Query.MaxQueryResults), strategy.WithAnalyticsLogger(logger))
	if err != nil {
		return err
	}
	c.ingest, err = strategy.NewIngest(c.pipeline, c.cfg.Paths.DataDir, logger)
	if err != nil {
		return err
	}
	classifier, err := router.NewClassifier(generator, router.WithClassifierLogger(logger))
	if err != nil {
		return err
	}
	c.router, err = router.New(classifier, router.Handlers{
		Retrieval:     rag,
		Summarization: c.summarizer,
		Analytics:     c.analytics,
		Ingestion:     c.ingest,
	}, router.WithLogger(logger))
	return err
}

// reconcile removes live index rows whose chunk is not in the store.
func (c *Copilot) reconcile(ctx context.Context) (int, error) {
	ids := c.index.LiveIDs()
	if len(ids) == 0 {
		return 0, nil
	}
	chunks, err := c.store.GetChunks(ctx, ids...)
	if err != nil {
		return 0, fmt.Errorf("checking index against store: %w", err)
	}
	stored := make(map[string]bool, len(chunks))
	for _, ch := range chunks {
		stored[ch.ID] = true
	}
	var orphans []string
	for _, id := range ids {
		if !stored[id] {
			orphans = append(orphans, id)
		}
	}
	if len(orphans) == 0 {
		return 0, nil
	}
	return c.index.Remove(ctx, orphans...)
}

// Close releases every resource. It is safe to call on a partly opened Copilot.
func (c *Copilot) Close() error {
	var errs []error
	if c.embedder != nil {
		c.embedder.Release()
	}
	if c.backend != nil {
		if err := c.backend.Close(); err != nil {
			c.logger.Error("error closing index storage", "err", err)
			errs = append(errs, err)
		}
	}
	if c.store != nil {
		if err := c.store.Close(); err != nil {
			c.logger.Error("error closing call store", "err", err)
			errs = append(errs, err)
		}
	}
	if c.provider != nil {
		if err := c.provider.Close(); err != nil {
			c.logger.Error("error closing AI provider", "err", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Config returns the configuration the Copilot was opened with.
func (c *Copilot) Config() *config.Config {
	return c.cfg
}

func (c *Copilot) Store() *sqlite.Store {
	return c.store
}

func (c *Copilot) Index() *vectorindex.Index {
	return c.index
}

func (c *Copilot) Jobs() *badger.JobRepository {
	return c.jobs
}

func (c *Copilot) Pipeline() *ingestion.Pipeline {
	return c.pipeline
}

func (c *Copilot) Router() *router.Router {
	return c.router
}

func (c *Copilot) Summarizer() *strategy.Summarizer {
	return c.summarizer
}

func (c *Copilot) Analytics() *strategy.Analytics {
	return c.analytics
}

func (c *Copilot) Ingest() *strategy.Ingest {
	return c.ingest
}

// Ask routes a natural-language request. It never fails; problems are
// reported in the answer.
func (c *Copilot) Ask(ctx context.Context, utterance string) *core.Answer {
	return c.router.Respond(ctx, utterance)
}

// Search returns the k chunks most similar to query.
func (c *Copilot) Search(ctx context.Context, query string, k int) ([]*core.RetrievedChunk, error) {
	return c.retriever.Retrieve(ctx, query, k)
}

// SearchWithMonitor is Search with instrumentation hooks.
func (c *Copilot) SearchWithMonitor(ctx context.Context, query string, k int, monitor retrieval.Monitor) ([]*core.RetrievedChunk, error) {
	return c.retriever.RetrieveWithMonitor(ctx, query, k, monitor)
}

// IngestFiles ingests the given transcript files.
func (c *Copilot) IngestFiles(ctx context.Context, paths []string) (*ingestion.BatchReport, error) {
	return c.pipeline.IngestFiles(ctx, paths)
}

// IngestDirectory ingests matching files in dir, or in the data directory
// when dir is empty.
func (c *Copilot) IngestDirectory(ctx context.Context, dir, pattern string) (*ingestion.BatchReport, error) {
	if dir == "" {
		dir = c.cfg.Paths.DataDir
	}
	return c.pipeline.IngestDirectory(ctx, dir, pattern)
}

// NewWatcher creates a watcher that ingests transcripts written to the data
// directory.
func (c *Copilot) NewWatcher(opts ...ingestion.WatcherOption) (*ingestion.Watcher, error) {
	return ingestion.NewWatcher(c.cfg.Paths.DataDir, c.pipeline, opts...)
}

// Stats describes the stored corpus.
type Stats struct {
	Calls      int
	Chunks     int
	Vectors    int // live index rows
	IndexRows  int // index rows including tombstones
	Dimension  int
	FailedJobs int
}

// Stats counts calls, chunks, index rows and failed jobs.
func (c *Copilot) Stats(ctx context.Context) (*Stats, error) {
	calls, err := c.store.CountCalls(ctx)
	if err != nil {
		return nil, err
	}
	chunks, err := c.store.CountChunks(ctx)
	if err != nil {
		return nil, err
	}
	failed, err := c.jobs.CountJobsByState(ctx, core.JobFailed)
	if err != nil {
		return nil, err
	}
	return &Stats{
		Calls:      calls,
		Chunks:     chunks,
		Vectors:    c.index.Live(),
		IndexRows:  c.index.Len(),
		Dimension:  c.index.Dimension(),
		FailedJobs: failed,
	}, nil
}

// ListJobs lists the most recent ingestion jobs, newest first.
func (c *Copilot) ListJobs(ctx context.Context, limit int) ([]*core.Job, error) {
	return c.jobs.ListJobs(ctx, limit)
}

// Reindex re-embeds every stored chunk with the configured embedding model
// and replaces the index. Progress is written to progress when it is not nil.
func (c *Copilot) Reindex(ctx context.Context, progress io.Writer) (*reembed.Result, error) {
	client, err := c.newEmbeddingClient()
	if err != nil {
		return nil, err
	}
	defer client.Release()

	r, err := reembed.NewReindexer(c.store, client, c.index,
		reembed.WithBatchSize(c.cfg.Embedding.BatchSize),
		reembed.WithProgress(progress, c.cfg.Embedding.BatchSize),
		reembed.WithLogger(c.baseLogger))
	if err != nil {
		return nil, err
	}
	return r.Run(ctx)
}

// ExportIndex writes a snapshot of the vector index to w.
func (c *Copilot) ExportIndex(w io.Writer) error {
	return c.index.WriteSnapshot(w)
}

// ImportIndex replaces the vector index with a snapshot and drops rows
// whose chunks are not stored. It returns the number of rows dropped.
func (c *Copilot) ImportIndex(ctx context.Context, r io.Reader) (int, error) {
	if err := c.index.Restore(ctx, r); err != nil {
		return 0, err
	}
	return c.reconcile(ctx)
}
