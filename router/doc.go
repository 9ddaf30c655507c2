// Package router decides which strategy answers a user request.
//
// A Classifier asks the language model for one of four labels and turns the
// reply into an Intent. Intents form a closed set: Retrieval, Summarization,
// Analytics and Ingestion carry the parameters their strategy needs, and
// Unrecognized records a reply outside the set. A Router dispatches a
// recognized intent to exactly one handler and refuses everything else.
package router
