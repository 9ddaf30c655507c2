package ingestion

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/poiesic/callscope/core"
)

// DefaultPattern selects transcript files in a directory.
const DefaultPattern = "*.txt"

// BatchReport summarizes a multi-file ingestion.
type BatchReport struct {
	Total     int
	Succeeded int
	Failed    int
	Outcomes  []*Outcome
}

func (r *BatchReport) add(o *Outcome) {
	r.Outcomes = append(r.Outcomes, o)
	if o.Succeeded() {
		r.Succeeded++
	} else {
		r.Failed++
	}
}

// IngestFiles ingests paths one at a time. A file that fails is recorded in
// the report and the batch moves on. The batch stops early only when ctx is
// cancelled or a rollback could not restore consistency; the error then says
// why and the report covers the files processed so far.
func (p *Pipeline) IngestFiles(ctx context.Context, paths []string) (*BatchReport, error) {
	report := &BatchReport{Total: len(paths)}
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		outcome, err := p.IngestFile(ctx, path)
		report.add(outcome)
		if errors.Is(err, core.ErrAtomicityViolation) {
			return report, err
		}
	}

	p.logger.Info("batch complete", "total", report.Total, "succeeded", report.Succeeded, "failed", report.Failed)
	return report, nil
}

// IngestDirectory ingests every regular, non-hidden file in dir whose name
// matches pattern, in name order. An empty pattern means DefaultPattern.
func (p *Pipeline) IngestDirectory(ctx context.Context, dir, pattern string) (*BatchReport, error) {
	paths, err := ListTranscripts(dir, pattern)
	if err != nil {
		return nil, err
	}
	return p.IngestFiles(ctx, paths)
}

// ListTranscripts returns the regular, non-hidden files in dir matching
// pattern, sorted by name.
func ListTranscripts(dir, pattern string) ([]string, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading directory: %w", err)
	}

	var paths []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		if ok, _ := filepath.Match(pattern, name); !ok {
			continue
		}
		paths = append(paths, filepath.Join(dir, name))
	}
	sort.Strings(paths)
	return paths, nil
}
