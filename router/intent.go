package router

import "github.com/poiesic/callscope/core"

// Intent is the classified purpose of a request. The set of implementations
// is closed to this package.
type Intent interface {
	// Label returns the classifier label, or "" for Unrecognized.
	Label() core.Label
	isIntent()
}

// Retrieval asks a question about what was said in the calls.
type Retrieval struct {
	Query string
}

// Summarization asks for summaries of specific calls.
type Summarization struct {
	Query    string
	CallRefs []string // filenames or call IDs found in Query
}

// Analytics asks a structured question answered with SQL.
type Analytics struct {
	Question string
}

// Ingestion asks for transcript files to be loaded.
type Ingestion struct {
	Query string
	Paths []string // transcript file names found in Query
}

// Unrecognized holds a classifier reply outside the label set.
type Unrecognized struct {
	Raw string
}

// Label returns RAG.
func (Retrieval) Label() core.Label {
	return core.LabelRetrieval
}

// Label returns SUMMARIZE.
func (Summarization) Label() core.Label {
	return core.LabelSummarization
}

// Label returns SQL.
func (Analytics) Label() core.Label {
	return core.LabelAnalytics
}

// Label returns INGEST.
func (Ingestion) Label() core.Label {
	return core.LabelIngestion
}

// Label returns the empty label; an unrecognized reply has none.
func (Unrecognized) Label() core.Label {
	return ""
}

func (Retrieval) isIntent()     {}
func (Summarization) isIntent() {}
func (Analytics) isIntent()     {}
func (Ingestion) isIntent()     {}
func (Unrecognized) isIntent()  {}
