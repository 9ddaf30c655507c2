package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long a file must be quiet before it is ingested.
const DefaultDebounce = 500 * time.Millisecond

// FileIngester ingests a single file.
type FileIngester interface {
	IngestFile(ctx context.Context, path string) (*Outcome, error)
}

// Watcher ingests transcript files as they are created or modified in a
// directory. Files are ingested one at a time.
type Watcher struct {
	dir       string
	ingester  FileIngester
	debounce  time.Duration
	onOutcome func(*Outcome)
	logger    *slog.Logger
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher) error

// WithDebounce sets the quiet period before a changed file is ingested.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) error {
		if d < 0 {
			return fmt.Errorf("debounce must not be negative, got %s", d)
		}
		w.debounce = d
		return nil
	}
}

// WithOutcomeHandler registers a callback invoked after each ingestion attempt.
func WithOutcomeHandler(fn func(*Outcome)) WatcherOption {
	return func(w *Watcher) error {
		w.onOutcome = fn
		return nil
	}
}

// WithWatcherLogger sets a custom logger.
// Default is slog.Default().
func WithWatcherLogger(logger *slog.Logger) WatcherOption {
	return func(w *Watcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		w.logger = logger
		return nil
	}
}

// NewWatcher creates a watcher over dir.
func NewWatcher(dir string, ingester FileIngester, opts ...WatcherOption) (*Watcher, error) {
	if ingester == nil {
		return nil, ErrIngesterRequired
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("watch directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch directory: %s is not a directory", dir)
	}

	w := &Watcher{
		dir:      dir,
		ingester: ingester,
		debounce: DefaultDebounce,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(w); err != nil {
			return nil, err
		}
	}
	w.logger = w.logger.With("component", "watcher", "dir", dir)
	return w, nil
}

// Run watches until ctx is cancelled. It returns nil on cancellation.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(w.dir); err != nil {
		return fmt.Errorf("watching %s: %w", w.dir, err)
	}
	w.logger.Info("watching for transcripts")

	ready := make(chan string, 64)
	var (
		mu      sync.Mutex
		pending = make(map[string]*time.Timer)
	)
	schedule := func(path string) {
		mu.Lock()
		defer mu.Unlock()
		if t, ok := pending[path]; ok {
			t.Stop()
		}
		pending[path] = time.AfterFunc(w.debounce, func() {
			mu.Lock()
			delete(pending, path)
			mu.Unlock()
			select {
			case ready <- path:
			case <-ctx.Done():
			}
		})
	}
	defer func() {
		mu.Lock()
		defer mu.Unlock()
		for _, t := range pending {
			t.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if path, ok := w.handleEvent(event); ok {
				schedule(path)
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "err", err)

		case path := <-ready:
			w.ingest(ctx, path)
		}
	}
}

// handleEvent returns the path to ingest for event, if any.
func (w *Watcher) handleEvent(event fsnotify.Event) (string, bool) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return "", false
	}
	name := filepath.Base(event.Name)
	if strings.HasPrefix(name, ".") {
		return "", false
	}
	if ok, _ := filepath.Match(DefaultPattern, name); !ok {
		return "", false
	}
	info, err := os.Stat(event.Name)
	if err != nil || !info.Mode().IsRegular() {
		return "", false
	}
	return event.Name, true
}

func (w *Watcher) ingest(ctx context.Context, path string) {
	outcome, err := w.ingester.IngestFile(ctx, path)
	switch {
	case err == nil:
		w.logger.Info("ingested new transcript", "path", path, "call", outcome.CallID)
	case errors.Is(err, ErrAlreadyIngested):
		w.logger.Info("transcript unchanged", "path", path)
	default:
		w.logger.Error("failed to ingest transcript", "path", path, "err", err)
	}
	if w.onOutcome != nil && outcome != nil {
		w.onOutcome(outcome)
	}
}
