// Package sqlite is the relational store for calls and chunks, built on
// modernc.org/sqlite so no CGO is required.
//
// # Schema
//
// Base tables call_records and chunk_records hold every saved call. A call is
// inserted with indexed = 0 and only becomes visible after MarkIndexed. The
// calls and chunks views expose visible rows only, and are the tables the
// analytics strategy writes SQL against.
//
// The schema is managed through versioned migrations embedded from the
// migrations/ directory.
//
// # Read-only queries
//
// QueryReadOnly runs on a second connection pool opened with
// PRAGMA query_only, so SQLite refuses any write regardless of what the
// statement text looks like.
package sqlite
