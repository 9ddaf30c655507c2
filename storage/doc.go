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


// Package storage provides the storage abstraction layer for callscope.
//
// This package defines repository interfaces that decouple storage implementation
// from business logic, together with the binary encoding of records kept in the
// key-value backend.
//
// # Backends
//
// Two backends cooperate:
//
//   - storage/sqlite: CallRepository and AnalyticsQuerier. Calls and chunks live
//     in relational tables so generated SQL can answer analytics questions.
//   - storage/badger: VectorJournal and JobRepository. Vector index rows and the
//     ingestion job ledger are append-heavy and keyed by position or ID.
//
// # Constructor Return Type Pattern
//
// Public constructors return interfaces where a consumer needs only the
// contract, and concrete types where a caller owns the lifecycle:
//
//	store, err := sqlite.Open(ctx, "/path/to/callscope.db")  // *sqlite.Store
//	backend, err := badger.OpenBackend("/path/to/index", false)
//	journal := badger.NewVectorJournal(backend)               // storage.VectorJournal
//
// # Visibility
//
// A call is saved hidden and only becomes visible through MarkIndexed once its
// vectors are in the index. Every read method filters hidden calls, so readers
// never observe a partially-ingested call.
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines.
package storage
