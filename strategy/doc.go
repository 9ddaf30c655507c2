// Package strategy holds the handlers a routed request is dispatched to.
//
//   - RAG answers questions from the most similar transcript chunks.
//   - Summarizer summarizes whole calls, one or several at a time.
//   - Analytics turns a question into read-only SQL over the calls and
//     chunks views. Generated SQL passes CheckReadOnly before it runs.
//   - Ingest loads transcript files from the data directory.
//
// Strategies return errors from the core taxonomy and leave turning them
// into user-facing text to the router.
package strategy
