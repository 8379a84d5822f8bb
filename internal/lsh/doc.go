// Package lsh implements a sharded locality-sensitive-hashing index for
// near-duplicate search over MinHash signatures.
//
// Signatures are split into b bands of r rows; two documents become
// candidate matches when any band's row-slice hashes identically for
// both. The (b, r) choice shapes the probability-of-candidacy S-curve
// around the similarity threshold; candidacy is a recall device, not a
// verified match, and callers decide acceptance.
//
// The index is partitioned into N independent shards keyed by document
// ID. An insert touches exactly one shard while a query fans out to all
// of them, so sharding does not reduce query cost asymptotically; it
// bounds per-shard bucket size, lets concurrent inserts proceed without
// contending on one lock, and lets each shard persist and reload
// independently after a crash.
package lsh
