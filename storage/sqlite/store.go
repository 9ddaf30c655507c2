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


package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/poiesic/callscope/core"
	"github.com/poiesic/callscope/storage"
	"github.com/poiesic/callscope/storage/sqlite/migrations"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// timeLayout is fixed width so lexical order of created_at matches chronological order.
const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

// inClauseBatch keeps IN (...) lists well under SQLite's bound parameter limit.
const inClauseBatch = 500

// hiddenRelation matches the names a read-only query may not reference: the
// base tables, which still hold hidden calls, the migration ledger, SQLite's
// own schema tables and the pragma table-valued functions. Analytics queries
// read the calls and chunks views.
var hiddenRelation = regexp.MustCompile(`(?i)\b(call_records|chunk_records|schema_migrations|sqlite_\w+|pragma_\w+)\b`)

// CheckRelations returns an error wrapping storage.ErrInvalidQuery if query
// names a table outside the calls and chunks views.
func CheckRelations(query string) error {
	if m := hiddenRelation.FindString(query); m != "" {
		return fmt.Errorf("%w: %s is not queryable, use the calls and chunks views", storage.ErrInvalidQuery, strings.ToLower(m))
	}
	return nil
}

// Store is the relational store for calls and chunks.
// It implements storage.CallRepository and storage.AnalyticsQuerier.
type Store struct {
	db     *sql.DB
	ro     *sql.DB
	path   string
	logger *slog.Logger
	closed atomic.Bool
}

var (
	_ storage.CallRepository   = (*Store)(nil)
	_ storage.AnalyticsQuerier = (*Store)(nil)
)

// Option configures a Store.
type Option func(*Store) error

// WithLogger sets the logger for the store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) error {
		if logger != nil {
			s.logger = logger
		}
		return nil
	}
}

// Open opens or creates the database at path, applies pending migrations and
// removes any call left hidden by an interrupted ingestion.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	s := &Store{path: path, logger: slog.Default()}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "sqlite-store")

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	s.db = db

	if err := s.migrate(ctx, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	// Every connection in this pool refuses writes.
	ro, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=query_only(1)")
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("opening read-only database: %w", err)
	}
	s.ro = ro

	purged, err := s.PurgeIncomplete(ctx)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	if purged > 0 {
		s.logger.Warn("removed incompletely ingested calls", "count", purged)
	}

	s.logger.Debug("store opened", "path", path)
	return s, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes both connection pools. Closing twice is a no-op.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	var errs []error
	if s.ro != nil {
		errs = append(errs, s.ro.Close())
	}
	errs = append(errs, s.db.Close())
	return errors.Join(errs...)
}

func (s *Store) checkOpen() error {
	if s.closed.Load() {
		return storage.ErrStorageClosed
	}
	return nil
}

func (s *Store) migrate(ctx context.Context, fsys embed.FS) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating migrations table: %w", err)
	}

	var current int
	if err := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations: %w", err)
	}

	var files []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".up.sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	for _, name := range files {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			return fmt.Errorf("parsing migration version from %s: %w", name, err)
		}
		if version <= current {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
		s.logger.Debug("applied migration", "version", version)
	}
	return nil
}

// SaveCall inserts a call and its chunks in one transaction. The call stays
// hidden until MarkIndexed.
func (s *Store) SaveCall(ctx context.Context, call *core.Call, chunks []*core.Chunk) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if err := core.ValidateCall(call); err != nil {
		return err
	}
	if err := core.ValidateChunks(call.ID, chunks); err != nil {
		return err
	}

	participants, err := json.Marshal(nonNilStrings(call.Participants))
	if err != nil {
		return fmt.Errorf("marshalling participants: %w", err)
	}
	metadata := call.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("marshalling metadata: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx, `
		INSERT INTO call_records (call_id, filename, content, participants, created_at, metadata, fingerprint, indexed)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0)
	`, call.ID, call.Filename, call.Content, string(participants),
		formatTime(call.CreatedAt), string(metadataJSON), call.Fingerprint)
	if err != nil {
		return fmt.Errorf("saving call: %w", classifyWriteError(err))
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunk_records (chunk_id, call_id, content, speaker, speakers, timestamp, chunk_index, token_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, chunk := range chunks {
		speakers, err := json.Marshal(nonNilStrings(chunk.Speakers))
		if err != nil {
			return fmt.Errorf("marshalling chunk speakers: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, chunk.ID, chunk.CallID, chunk.Content, chunk.Speaker,
			string(speakers), chunk.Timestamp, chunk.Seq, chunk.TokenCount); err != nil {
			return fmt.Errorf("saving chunk: %w", classifyWriteError(err))
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// MarkIndexed makes a saved call visible.
func (s *Store) MarkIndexed(ctx context.Context, callID string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, "UPDATE call_records SET indexed = 1 WHERE call_id = ?", callID)
	if err != nil {
		return fmt.Errorf("marking call indexed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// DeleteCall removes a call and, through the foreign key cascade, its chunks.
func (s *Store) DeleteCall(ctx context.Context, callID string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM call_records WHERE call_id = ?", callID); err != nil {
		return fmt.Errorf("deleting call: %w", err)
	}
	return nil
}

// PurgeIncomplete removes every hidden call.
func (s *Store) PurgeIncomplete(ctx context.Context) (int, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, "DELETE FROM call_records WHERE indexed = 0")
	if err != nil {
		return 0, fmt.Errorf("purging incomplete calls: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return int(n), nil
}

const callColumns = "call_id, filename, content, participants, created_at, metadata, fingerprint"

// GetCall retrieves a visible call by ID.
func (s *Store) GetCall(ctx context.Context, callID string) (*core.Call, error) {
	return s.getCallWhere(ctx, "call_id = ?", callID)
}

// GetCallByFilename retrieves the newest visible call with the given filename.
func (s *Store) GetCallByFilename(ctx context.Context, filename string) (*core.Call, error) {
	return s.getCallWhere(ctx, "filename = ?", filename)
}

// FindByFingerprint retrieves a visible call with the given content fingerprint.
func (s *Store) FindByFingerprint(ctx context.Context, fingerprint string) (*core.Call, error) {
	return s.getCallWhere(ctx, "fingerprint = ?", fingerprint)
}

func (s *Store) getCallWhere(ctx context.Context, cond string, arg any) (*core.Call, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT `+callColumns+`
		FROM call_records
		WHERE indexed = 1 AND `+cond+`
		ORDER BY created_at DESC, call_id
		LIMIT 1
	`, arg)
	call, err := scanCall(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("getting call: %w", err)
	}
	return call, nil
}

// GetCalls retrieves visible calls by ID.
func (s *Store) GetCalls(ctx context.Context, callIDs ...string) ([]*core.Call, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	var calls []*core.Call
	for start := 0; start < len(callIDs); start += inClauseBatch {
		end := min(start+inClauseBatch, len(callIDs))
		placeholders, args := inClause(callIDs[start:end])
		rows, err := s.db.QueryContext(ctx, `
			SELECT `+callColumns+`
			FROM call_records
			WHERE indexed = 1 AND call_id IN (`+placeholders+`)
		`, args...)
		if err != nil {
			return nil, fmt.Errorf("getting calls: %w", err)
		}
		batch, err := collectCalls(rows)
		if err != nil {
			return nil, err
		}
		calls = append(calls, batch...)
	}
	return calls, nil
}

// ListCalls returns visible calls, newest first.
func (s *Store) ListCalls(ctx context.Context) ([]*core.Call, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+callColumns+`
		FROM call_records
		WHERE indexed = 1
		ORDER BY created_at DESC, call_id
	`)
	if err != nil {
		return nil, fmt.Errorf("listing calls: %w", err)
	}
	return collectCalls(rows)
}

// CountCalls returns the number of visible calls.
func (s *Store) CountCalls(ctx context.Context) (int, error) {
	return s.count(ctx, "SELECT COUNT(*) FROM call_records WHERE indexed = 1")
}

// CountChunks returns the number of chunks belonging to visible calls.
func (s *Store) CountChunks(ctx context.Context) (int, error) {
	return s.count(ctx, `
		SELECT COUNT(*)
		FROM chunk_records ch
		JOIN call_records c ON c.call_id = ch.call_id
		WHERE c.indexed = 1
	`)
}

func (s *Store) count(ctx context.Context, query string) (int, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	var n int
	if err := s.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting: %w", err)
	}
	return n, nil
}

const chunkSelect = `
	SELECT ch.chunk_id, ch.call_id, ch.content, ch.speaker, ch.speakers, ch.timestamp, ch.chunk_index, ch.token_count
	FROM chunk_records ch
	JOIN call_records c ON c.call_id = ch.call_id
	WHERE c.indexed = 1`

// GetChunks retrieves chunks of visible calls by ID.
func (s *Store) GetChunks(ctx context.Context, chunkIDs ...string) ([]*core.Chunk, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	var chunks []*core.Chunk
	for start := 0; start < len(chunkIDs); start += inClauseBatch {
		end := min(start+inClauseBatch, len(chunkIDs))
		placeholders, args := inClause(chunkIDs[start:end])
		rows, err := s.db.QueryContext(ctx, chunkSelect+" AND ch.chunk_id IN ("+placeholders+")", args...)
		if err != nil {
			return nil, fmt.Errorf("getting chunks: %w", err)
		}
		batch, err := collectChunks(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, batch...)
	}
	return chunks, nil
}

// ChunksForCall returns a visible call's chunks in sequence order.
func (s *Store) ChunksForCall(ctx context.Context, callID string) ([]*core.Chunk, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, chunkSelect+" AND ch.call_id = ? ORDER BY ch.chunk_index", callID)
	if err != nil {
		return nil, fmt.Errorf("getting chunks for call: %w", err)
	}
	return collectChunks(rows)
}

// IterateChunks streams every visible chunk in (created_at, call, seq) order.
func (s *Store) IterateChunks(ctx context.Context, batchSize int, fn func([]*core.Chunk) error) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if batchSize <= 0 {
		return fmt.Errorf("%w: batch size must be positive", storage.ErrInvalidQuery)
	}

	rows, err := s.db.QueryContext(ctx, chunkSelect+" ORDER BY c.created_at, c.call_id, ch.chunk_index")
	if err != nil {
		return fmt.Errorf("iterating chunks: %w", err)
	}
	defer rows.Close()

	batch := make([]*core.Chunk, 0, batchSize)
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return err
		}
		batch = append(batch, chunk)
		if len(batch) == batchSize {
			if err := fn(batch); err != nil {
				return err
			}
			batch = make([]*core.Chunk, 0, batchSize)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating chunks: %w", err)
	}
	if len(batch) > 0 {
		return fn(batch)
	}
	return nil
}

// QueryReadOnly runs query on the read-only pool and returns at most maxRows rows.
// Writes are refused by SQLite itself. Queries may only read the calls and
// chunks views; see CheckRelations.
func (s *Store) QueryReadOnly(ctx context.Context, query string, maxRows int) (*storage.QueryResult, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if maxRows <= 0 {
		return nil, fmt.Errorf("%w: max rows must be positive", storage.ErrInvalidQuery)
	}
	if err := CheckRelations(query); err != nil {
		return nil, err
	}

	rows, err := s.ro.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrInvalidQuery, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading columns: %w", err)
	}

	result := &storage.QueryResult{Columns: cols}
	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}

	for rows.Next() {
		if len(result.Rows) == maxRows {
			result.Truncated = true
			break
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		row := make([]string, len(cols))
		for i, v := range values {
			row[i] = formatValue(v)
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrInvalidQuery, err)
	}

	s.logger.Debug("read-only query executed", "rows", len(result.Rows), "truncated", result.Truncated)
	return result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCall(row scanner) (*core.Call, error) {
	var (
		call         core.Call
		participants string
		createdAt    string
		metadata     string
	)
	if err := row.Scan(&call.ID, &call.Filename, &call.Content, &participants,
		&createdAt, &metadata, &call.Fingerprint); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(participants), &call.Participants); err != nil {
		return nil, fmt.Errorf("%w: participants: %w", storage.ErrSerializationFailed, err)
	}
	if err := json.Unmarshal([]byte(metadata), &call.Metadata); err != nil {
		return nil, fmt.Errorf("%w: metadata: %w", storage.ErrSerializationFailed, err)
	}
	t, err := time.Parse(timeLayout, createdAt)
	if err != nil {
		return nil, fmt.Errorf("%w: created_at: %w", storage.ErrSerializationFailed, err)
	}
	call.CreatedAt = t
	return &call, nil
}

func collectCalls(rows *sql.Rows) ([]*core.Call, error) {
	defer rows.Close()
	var calls []*core.Call
	for rows.Next() {
		call, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		calls = append(calls, call)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating calls: %w", err)
	}
	return calls, nil
}

func scanChunk(row scanner) (*core.Chunk, error) {
	var (
		chunk    core.Chunk
		speakers string
	)
	if err := row.Scan(&chunk.ID, &chunk.CallID, &chunk.Content, &chunk.Speaker,
		&speakers, &chunk.Timestamp, &chunk.Seq, &chunk.TokenCount); err != nil {
		return nil, fmt.Errorf("scanning chunk: %w", err)
	}
	if err := json.Unmarshal([]byte(speakers), &chunk.Speakers); err != nil {
		return nil, fmt.Errorf("%w: speakers: %w", storage.ErrSerializationFailed, err)
	}
	return &chunk, nil
}

func collectChunks(rows *sql.Rows) ([]*core.Chunk, error) {
	defer rows.Close()
	var chunks []*core.Chunk
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}
	return chunks, nil
}

func inClause(ids []string) (string, []any) {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return strings.TrimSuffix(strings.Repeat("?,", len(ids)), ","), args
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(timeLayout)
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(x)
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.UTC().Format(timeLayout)
	default:
		return fmt.Sprint(x)
	}
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func classifyWriteError(err error) error {
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return fmt.Errorf("%w: %w", storage.ErrDuplicateKey, err)
	}
	return err
}
