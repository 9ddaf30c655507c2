// Package ingestion turns transcript files into searchable calls.
//
// Each file runs through a job state machine:
//
//	pending → parsed → chunked → embedded → persisted → indexed → complete
//
// Stages that change durable state register a compensating action. If a later
// stage fails the compensations run in reverse order, so a failed file leaves
// no call in the store and no vectors in the index. Every transition is
// written to the job ledger.
//
// Batches process files one at a time and report a per-file outcome; one
// file's failure never stops the rest. A Watcher ingests files as they appear
// in a directory.
package ingestion
