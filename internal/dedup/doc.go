// Package dedup orchestrates the four-tier deduplication cascade applied
// to every fetched item:
//
//  1. Transport tier (pre-fetch): stored etag/last-modified headers let
//     the caller issue a conditional request; a 304 skips everything.
//  2. File tier (post-download, pre-parse): a whole-file checksum against
//     the last successful processing skips re-parsing bulk dumps.
//  3. Document-exact tier: the content fingerprint against the ledger's
//     hash column catches byte-identical text across URLs.
//  4. Document-near tier (optional): a MinHash signature queried against
//     the sharded LSH index catches boilerplate rewrites and mirrors.
//
// Each tier terminates processing early on a hit, is independently
// observable through Metrics, and is independently disable-able. The
// cascade mutates the ledger only through Commit, so a caller can inspect
// a Decision before any state changes.
package dedup
