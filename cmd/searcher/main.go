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


// Command searcher runs one retrieval against the configured store and
// prints every step the retriever takes.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/poiesic/callscope"
	"github.com/poiesic/callscope/config"
	"github.com/poiesic/callscope/core"
	"github.com/poiesic/callscope/retrieval"
	"github.com/poiesic/callscope/vectorindex"
)

func init() {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(handler))
}

// traceMonitor prints each retrieval step with the time since Start.
type traceMonitor struct {
	w     io.Writer
	start time.Time
}

var _ retrieval.Monitor = (*traceMonitor)(nil)

func (m *traceMonitor) printf(format string, args ...any) {
	fmt.Fprintf(m.w, "[%8s] ", time.Since(m.start).Round(time.Microsecond))
	fmt.Fprintf(m.w, format+"\n", args...)
}

func (m *traceMonitor) Start(query string, k int) {
	m.start = time.Now()
	m.printf("query %q, k=%d", query, k)
}

func (m *traceMonitor) AfterEmbedding(dimension int) {
	m.printf("embedded query (%d dimensions)", dimension)
}

func (m *traceMonitor) AfterVectorSearch(hits []vectorindex.Hit) {
	m.printf("vector search returned %d hits", len(hits))
	for _, h := range hits {
		m.printf("  row %d  %s  %0.4f", h.Row, h.ChunkID, h.Score)
	}
}

func (m *traceMonitor) StaleEntry(hit vectorindex.Hit) {
	m.printf("stale index entry %s (row %d), skipped", hit.ChunkID, hit.Row)
}

func (m *traceMonitor) AfterFetch(chunks []*core.Chunk, calls []*core.Call) {
	m.printf("fetched %d chunks from %d calls", len(chunks), len(calls))
}

func (m *traceMonitor) Finish(results []*core.RetrievedChunk) {
	m.printf("returning %d results", len(results))
}

func main() {
	cfg, err := config.Load(os.Getenv("CALLSCOPE_CONFIG"))
	if err != nil {
		panic(err)
	}
	copilot, err := callscope.Open(context.Background(), cfg)
	if err != nil {
		panic(err)
	}
	defer copilot.Close()

	query := "pricing concerns"
	if len(os.Args) > 1 {
		query = strings.Join(os.Args[1:], " ")
	}

	ctx := context.Background()
	results, err := copilot.SearchWithMonitor(ctx, query, 5, &traceMonitor{w: os.Stdout})
	if err != nil {
		panic(err)
	}

	fmt.Printf("Found %d hits\n", len(results))
	for i, hit := range results {
		fmt.Printf("%d: %s [%s] '%s' [%0.3f]\n", i, hit.Call.Filename, hit.Chunk.Timestamp, hit.Chunk.Content, hit.Score)
	}
}
