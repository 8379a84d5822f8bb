// Package minhash generates fixed-length approximate-similarity
// signatures for near-duplicate detection.
//
// A document is canonicalized, tokenized into overlapping character
// shingles, and each shingle is hashed under P independent permutation
// functions; the signature is the element-wise minimum hash value per
// permutation. The fraction of matching positions between two signatures
// is an unbiased estimator of the Jaccard similarity of the documents'
// shingle sets.
//
// Design decision: Permutations are derived from a fixed seed so that
// signatures are stable across process restarts. A persisted LSH index is
// only valid if reloaded signatures would be regenerated identically, so
// nondeterministic seeding would silently corrupt near-duplicate search
// after every restart.
package minhash
