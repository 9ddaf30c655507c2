package ingestion

import (
	"errors"
	"fmt"

	"github.com/poiesic/callscope/core"
)

var (
	// ErrCallRepositoryRequired is returned when a call repository is not provided.
	ErrCallRepositoryRequired = errors.New("call repository required")

	// ErrIndexRequired is returned when a vector index is not provided.
	ErrIndexRequired = errors.New("vector index required")

	// ErrEmbedderRequired is returned when an embedding client is not provided.
	ErrEmbedderRequired = errors.New("embedding client required")

	// ErrJobRepositoryRequired is returned when a job repository is not provided.
	ErrJobRepositoryRequired = errors.New("job repository required")

	// ErrIngesterRequired is returned when a watcher has nothing to ingest with.
	ErrIngesterRequired = errors.New("file ingester required")

	// ErrAlreadyIngested is returned when a transcript with identical content
	// is already stored.
	ErrAlreadyIngested = errors.New("transcript already ingested")
)

// StageError reports the stage at which ingesting a file failed.
// It unwraps to the underlying cause.
type StageError struct {
	Stage core.JobState
	Path  string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("ingesting %s: %s stage: %v", e.Path, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
