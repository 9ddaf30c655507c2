package strategy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/poiesic/callscope/core"
	"github.com/poiesic/callscope/ingestion"
)

// Ingest loads transcript files named in a request from the data directory.
type Ingest struct {
	ingester ingestion.FileIngester
	dataDir  string
	logger   *slog.Logger
}

// NewIngest creates an ingestion strategy that resolves file names inside dataDir.
func NewIngest(ingester ingestion.FileIngester, dataDir string, logger *slog.Logger) (*Ingest, error) {
	if ingester == nil {
		return nil, ErrIngesterRequired
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingest{
		ingester: ingester,
		dataDir:  dataDir,
		logger:   logger.With("component", "ingest-strategy"),
	}, nil
}

// IngestFiles ingests each named file. Names are reduced to their base name
// and looked up in the data directory. Failures are reported per file; the
// answer is marked failed only when no file was ingested. A remote failure on
// a lone file is returned as an error; among several files it is reported
// inline as a request to try again.
func (s *Ingest) IngestFiles(ctx context.Context, names []string) (*core.Answer, error) {
	if len(names) == 0 {
		return nil, ErrNoReferences
	}

	var (
		parts     []string
		sources   []string
		succeeded int
	)
	for _, name := range names {
		text, err := s.ingestOne(ctx, name)
		if err != nil {
			if core.IsRemoteFailure(err) && len(names) == 1 {
				return nil, err
			}
			s.logger.Warn("ingestion request failed", "file", name, "err", err)
			reason := err.Error()
			if core.IsRemoteFailure(err) {
				reason = remoteRetryText
			}
			parts = append(parts, fmt.Sprintf("Failed to ingest file '%s': %s", filepath.Base(name), reason))
			continue
		}
		succeeded++
		parts = append(parts, text)
		sources = append(sources, "Ingested file: "+filepath.Base(name))
	}

	return &core.Answer{
		Tool:    core.LabelIngestion,
		Text:    strings.Join(parts, "\n\n"),
		Sources: sources,
		Failed:  succeeded == 0,
	}, nil
}

func (s *Ingest) ingestOne(ctx context.Context, name string) (string, error) {
	base := filepath.Base(name)
	path := filepath.Join(s.dataDir, base)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: '%s' (%s)", ErrFileNotFound, base, s.dataDir)
		}
		return "", err
	}

	outcome, err := s.ingester.IngestFile(ctx, path)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Successfully ingested file '%s'.\n", base)
	fmt.Fprintf(&b, "Call ID: %s\n", outcome.CallID)
	fmt.Fprintf(&b, "Participants: %s\n", strings.Join(outcome.Participants, ", "))
	fmt.Fprintf(&b, "Chunks created: %d\n", outcome.ChunkCount)
	b.WriteString("The file has been processed and is now available for querying.")
	return b.String(), nil
}
