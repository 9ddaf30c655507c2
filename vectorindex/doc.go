// Package vectorindex implements the exact nearest-neighbour index used for
// transcript retrieval.
//
// Scores are inner products, which equal cosine similarity because every
// stored vector is unit length. Rows are persisted through a
// storage.VectorJournal so a new process can Load the index without
// re-embedding, and WriteSnapshot/ReadSnapshot move an index between
// machines as a single file.
package vectorindex
