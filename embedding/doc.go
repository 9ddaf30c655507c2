// Package embedding wraps a remote ai.Embedder with the batching, concurrency,
// rate limiting, timeouts and bounded retry needed to embed whole transcripts.
//
// Vectors returned by Client are L2-normalized so an inner product between
// two of them is their cosine similarity.
package embedding
