// Package reembed rebuilds the vector index from the chunks held in the
// structured store, typically after switching embedding models.
//
// Chunks are streamed in store order, embedded batch by batch and staged in
// memory. The target index is only replaced once every chunk has been
// embedded, so a failed run leaves the existing index untouched.
package reembed
