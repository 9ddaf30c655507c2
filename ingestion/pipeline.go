package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/callscope/core"
	"github.com/poiesic/callscope/storage"
	"github.com/poiesic/callscope/transcript"
)

// Embedder turns chunk contents into vectors, index-aligned with the input.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorIndex stores chunk vectors for similarity search.
type VectorIndex interface {
	Add(ctx context.Context, ids []string, vectors [][]float32) error
	Remove(ctx context.Context, ids ...string) (int, error)
}

// Pipeline ingests transcript files into the store and the vector index.
type Pipeline struct {
	calls    storage.CallRepository
	index    VectorIndex
	embedder Embedder
	jobs     storage.JobRepository
	chunker  *transcript.Chunker
	now      func() time.Time
	logger   *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithChunker sets the chunker.
// Default is a chunker with transcript.DefaultTokenBudget.
func WithChunker(chunker *transcript.Chunker) Option {
	return func(p *Pipeline) error {
		if chunker != nil {
			p.chunker = chunker
		}
		return nil
	}
}

// WithClock sets the time source for call and job timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) error {
		if now != nil {
			p.now = now
		}
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(
	calls storage.CallRepository,
	index VectorIndex,
	embedder Embedder,
	jobs storage.JobRepository,
	opts ...Option,
) (*Pipeline, error) {
	if calls == nil {
		return nil, ErrCallRepositoryRequired
	}
	if index == nil {
		return nil, ErrIndexRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if jobs == nil {
		return nil, ErrJobRepositoryRequired
	}

	p := &Pipeline{
		calls:    calls,
		index:    index,
		embedder: embedder,
		jobs:     jobs,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}

	if p.chunker == nil {
		chunker, err := transcript.NewChunker()
		if err != nil {
			return nil, err
		}
		p.chunker = chunker
	}
	p.logger = p.logger.With("component", "ingestion")

	return p, nil
}

// Outcome describes the result of ingesting one file.
type Outcome struct {
	Path         string
	JobID        string
	CallID       string
	Filename     string
	Participants []string
	ChunkCount   int
	Skipped      int // transcript lines that were not part of any turn
	Err          error
}

// Succeeded reports whether the file was ingested.
func (o *Outcome) Succeeded() bool {
	return o.Err == nil
}

// job carries the working state of one file through the stages.
type job struct {
	record *core.Job

	content    string
	parsed     *transcript.Transcript
	call       *core.Call
	chunks     []*core.Chunk
	vectors    [][]float32
	compensate []func(ctx context.Context) error
}

// stage advances a job to target.
type stage struct {
	target core.JobState
	run    func(ctx context.Context, j *job) error
}

func (p *Pipeline) stages() []stage {
	return []stage{
		{core.JobParsed, p.parse},
		{core.JobChunked, p.chunk},
		{core.JobEmbedded, p.embed},
		{core.JobPersisted, p.persist},
		{core.JobIndexed, p.publish},
	}
}

// IngestFile runs one transcript file through every stage.
// On failure the returned error is a *StageError and any durable changes
// already made for the file have been undone.
func (p *Pipeline) IngestFile(ctx context.Context, path string) (*Outcome, error) {
	j := &job{record: &core.Job{
		ID:        uuid.NewString(),
		Path:      path,
		State:     core.JobPending,
		StartedAt: p.now(),
	}}
	p.record(ctx, j.record)

	outcome := &Outcome{Path: path, JobID: j.record.ID, Filename: filepath.Base(path)}
	logger := p.logger.With("path", path, "job", j.record.ID)

	for _, s := range p.stages() {
		err := ctx.Err()
		if err == nil {
			err = s.run(ctx, j)
		}
		if err != nil {
			err = p.fail(ctx, j, s.target, err)
			logger.Warn("ingestion failed", "stage", s.target, "err", err)
			outcome.Err = err
			return outcome, err
		}
		j.record.State = s.target
		p.record(ctx, j.record)
	}

	j.record.State = core.JobComplete
	j.record.FinishedAt = p.now()
	p.record(ctx, j.record)

	outcome.CallID = j.call.ID
	outcome.Participants = j.call.Participants
	outcome.ChunkCount = len(j.chunks)
	outcome.Skipped = len(j.parsed.Diagnostics)

	logger.Info("ingested transcript", "call", j.call.ID, "chunks", len(j.chunks))
	return outcome, nil
}

func (p *Pipeline) parse(ctx context.Context, j *job) error {
	data, err := os.ReadFile(j.record.Path)
	if err != nil {
		return fmt.Errorf("reading file: %w", err)
	}
	j.content = string(data)

	parsed, err := transcript.Parse(j.content)
	if err != nil {
		return err
	}
	j.parsed = parsed
	for _, d := range parsed.Diagnostics {
		p.logger.Debug("skipped transcript line", "path", j.record.Path, "line", d.Line, "reason", d.Reason)
	}

	fingerprint := core.Fingerprint(j.content)
	existing, err := p.calls.FindByFingerprint(ctx, fingerprint)
	switch {
	case err == nil:
		return fmt.Errorf("%w as call %s (%s)", ErrAlreadyIngested, existing.ID, existing.Filename)
	case !errors.Is(err, storage.ErrNotFound):
		return fmt.Errorf("checking for duplicates: %w", err)
	}
	return nil
}

func (p *Pipeline) chunk(_ context.Context, j *job) error {
	created := p.now()
	j.call = &core.Call{
		ID:           core.NewCallID(),
		Filename:     filepath.Base(j.record.Path),
		Content:      j.content,
		Participants: transcript.Participants(j.parsed.Turns),
		CreatedAt:    created,
		Fingerprint:  core.Fingerprint(j.content),
		Metadata: map[string]string{
			"source_path":         j.record.Path,
			"file_size":           strconv.Itoa(len(j.content)),
			"ingestion_timestamp": created.Format(time.RFC3339),
			"turn_count":          strconv.Itoa(len(j.parsed.Turns)),
			"skipped_lines":       strconv.Itoa(len(j.parsed.Diagnostics)),
		},
	}
	j.record.CallID = j.call.ID

	j.chunks = p.chunker.Chunk(j.call.ID, j.parsed.Turns)
	j.record.ChunkCount = len(j.chunks)
	return core.ValidateChunks(j.call.ID, j.chunks)
}

func (p *Pipeline) embed(ctx context.Context, j *job) error {
	texts := make([]string, len(j.chunks))
	for i, c := range j.chunks {
		texts[i] = c.Content
	}
	vectors, err := p.embedder.Embed(ctx, texts)
	if err != nil {
		return err
	}
	if len(vectors) != len(j.chunks) {
		return fmt.Errorf("%w: %d vectors for %d chunks", core.ErrRemoteUnavailable, len(vectors), len(j.chunks))
	}
	j.vectors = vectors
	return nil
}

func (p *Pipeline) persist(ctx context.Context, j *job) error {
	if err := p.calls.SaveCall(ctx, j.call, j.chunks); err != nil {
		return err
	}
	callID := j.call.ID
	j.compensate = append(j.compensate, func(ctx context.Context) error {
		return p.calls.DeleteCall(ctx, callID)
	})
	return nil
}

// publish adds the vectors to the index and then makes the call visible.
func (p *Pipeline) publish(ctx context.Context, j *job) error {
	ids := make([]string, len(j.chunks))
	for i, c := range j.chunks {
		ids[i] = c.ID
	}
	if err := p.index.Add(ctx, ids, j.vectors); err != nil {
		return err
	}
	j.compensate = append(j.compensate, func(ctx context.Context) error {
		_, err := p.index.Remove(ctx, ids...)
		return err
	})

	return p.calls.MarkIndexed(ctx, j.call.ID)
}

// fail undoes the job's durable changes in reverse order and records the failure.
func (p *Pipeline) fail(ctx context.Context, j *job, stage core.JobState, cause error) error {
	// Compensation must run even when the caller has cancelled.
	cleanup := context.WithoutCancel(ctx)

	var rollbackErrs []error
	for i := len(j.compensate) - 1; i >= 0; i-- {
		if err := j.compensate[i](cleanup); err != nil {
			p.logger.Error("rollback failed", "path", j.record.Path, "stage", stage, "err", err)
			rollbackErrs = append(rollbackErrs, err)
		}
	}
	if len(rollbackErrs) > 0 {
		cause = errors.Join(cause, fmt.Errorf("%w: %w", core.ErrAtomicityViolation, errors.Join(rollbackErrs...)))
	}

	err := &StageError{Stage: stage, Path: j.record.Path, Err: cause}
	j.record.State = core.JobFailed
	j.record.FailedStage = stage
	j.record.Error = cause.Error()
	j.record.FinishedAt = p.now()
	p.record(cleanup, j.record)
	return err
}

// record writes the job to the ledger. A ledger write failure is logged but
// does not fail the ingestion.
func (p *Pipeline) record(ctx context.Context, j *core.Job) {
	if err := p.jobs.SaveJob(ctx, j); err != nil {
		p.logger.Error("failed to record job state", "job", j.ID, "state", j.State, "err", err)
	}
}
