package retrieval

import (
	"github.com/poiesic/callscope/core"
	"github.com/poiesic/callscope/vectorindex"
)

// Monitor provides hooks to observe a retrieval.
// Implement this interface to trace intermediate steps and results.
type Monitor interface {
	Start(query string, k int)
	AfterEmbedding(dimension int)
	AfterVectorSearch(hits []vectorindex.Hit)
	StaleEntry(hit vectorindex.Hit)
	AfterFetch(chunks []*core.Chunk, calls []*core.Call)
	Finish(results []*core.RetrievedChunk)
}

// noopMonitor is a no-op implementation of Monitor
type noopMonitor struct{}

var _ Monitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string, _ int)                      {}
func (n *noopMonitor) AfterEmbedding(_ int)                       {}
func (n *noopMonitor) AfterVectorSearch(_ []vectorindex.Hit)      {}
func (n *noopMonitor) StaleEntry(_ vectorindex.Hit)               {}
func (n *noopMonitor) AfterFetch(_ []*core.Chunk, _ []*core.Call) {}
func (n *noopMonitor) Finish(_ []*core.RetrievedChunk)            {}
