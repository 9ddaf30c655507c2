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


// Package retrieval finds the transcript chunks most similar to a query.
//
// A Retriever embeds the query, searches the vector index, then joins the
// hits against the structured store. Index rows whose chunk is no longer in
// the store are stale: they are logged, reported to the Monitor, and left out
// of the results rather than failing the query.
//
// Results are ranked by score, highest first. Ties are broken by chunk
// sequence within the call and then by chunk ID, so the ranking is stable.
package retrieval
