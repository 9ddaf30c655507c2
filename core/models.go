package core

import (
	"encoding/hex"
	"strconv"
	"time"

	"github.com/go-crypt/x/blake2b"
	"github.com/google/uuid"
)

// NewCallID returns a fresh random call identifier.
func NewCallID() string {
	return uuid.NewString()
}

// ChunkIDFor derives the identifier of the chunk at position seq within a call.
// The same call and position always produce the same ID.
func ChunkIDFor(callID string, seq int) string {
	h, _ := blake2b.New(16, nil) // 16 bytes = 128 bits
	h.Write([]byte(callID))
	h.Write([]byte{'/'})
	h.Write([]byte(strconv.Itoa(seq)))
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint returns a content hash used to detect duplicate transcripts.
func Fingerprint(content string) string {
	h, _ := blake2b.New(32, nil)
	h.Write([]byte(content))
	return hex.EncodeToString(h.Sum(nil))
}

// Turn is one speaker utterance parsed from a transcript.
// Turns only exist while a transcript is being chunked.
type Turn struct {
	Timestamp  string // HH:MM as written in the transcript
	RawSpeaker string // Speaker label as written, e.g. "AE (Jordan)"
	Speaker    string // Speaker label with any parenthetical removed
	Text       string // Utterance, continuation lines joined with "\n"
	Line       int    // 1-based line the turn starts on
}

// Call is a processed transcript.
type Call struct {
	ID           string
	Filename     string
	Content      string
	Participants []string
	CreatedAt    time.Time
	Metadata     map[string]string
	Fingerprint  string
}

// Chunk is a contiguous, speaker-coherent span of a call used as the unit of retrieval.
type Chunk struct {
	ID         string
	CallID     string
	Content    string
	Speakers   []string // Distinct speakers in order of first appearance
	Speaker    string   // Speaker with the most turns in the chunk
	Timestamp  string   // Timestamp of the first turn
	Seq        int      // Zero-based position within the call
	TokenCount int
}

// RetrievedChunk is a chunk returned by similarity search together with its call.
type RetrievedChunk struct {
	Chunk *Chunk
	Call  *Call
	Score float32
}

// Label names one of the strategies a user request can be routed to.
type Label string

const (
	LabelRetrieval     Label = "RAG"
	LabelSummarization Label = "SUMMARIZE"
	LabelAnalytics     Label = "SQL"
	LabelIngestion     Label = "INGEST"
)

// Answer is the user-facing outcome of a routed request.
type Answer struct {
	Tool       Label
	Text       string
	Sources    []string
	Confidence *float64 // nil when the strategy has no similarity signal
	Query      string   // SQL executed by the analytics strategy, if any
	Failed     bool
}

// JobState is a step in the ingestion state machine.
type JobState string

const (
	JobPending   JobState = "pending"
	JobParsed    JobState = "parsed"
	JobChunked   JobState = "chunked"
	JobEmbedded  JobState = "embedded"
	JobPersisted JobState = "persisted"
	JobIndexed   JobState = "indexed"
	JobComplete  JobState = "complete"
	JobFailed    JobState = "failed"
)

// Job records the progress of ingesting a single transcript file.
type Job struct {
	ID          string
	Path        string
	State       JobState
	FailedStage JobState
	Error       string
	CallID      string
	ChunkCount  int
	StartedAt   time.Time
	FinishedAt  time.Time
}
