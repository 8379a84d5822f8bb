// Package ledger provides the durable crawl ledger: one record per
// discovered resource, its lifecycle state, dedup pointers, transport
// cache metadata, retry bookkeeping, daily quotas, pipeline runs, and
// RSS poll state.
//
// One contract, two profiles:
//   - SQLiteLedger: embedded single-writer store (via modernc.org/sqlite).
//     File-backed, zero external dependencies, creates its own schema.
//     Suitable for low-concurrency and offline use.
//   - PostgresLedger: networked multi-writer store on a bounded pgx pool.
//     Atomic INSERT ... ON CONFLICT upserts give row-level locking so many
//     pipeline workers can write concurrently. Requires pre-existing
//     schema, verified before any operation runs.
//
// All higher-level logic depends only on the Backend interface, so tests
// and offline tooling can substitute the embedded profile freely.
//
// Design decision: We use hand-written SQL rather than an ORM because the
// contract leans on COALESCE-merging upserts and RETURNING clauses whose
// exact shape is the point; hiding them behind a query builder would
// obscure the row-level atomicity this component lives on.
package ledger
