// Package model defines the core data structures shared by the crawl
// ledger and the deduplication engine.
//
// This package contains the following main types:
//   - CrawlRecord: One row per discovered URL/resource and its lifecycle state
//   - DailyQuota: Per-(date, source) ingestion counters
//   - PipelineRun: Bookkeeping for one pipeline execution
//   - RSSFeedState: Poll-frequency gate for RSS feeds
//   - Statistics: Aggregate counts reported by the ledger
//
// Design decision: We separate models into their own package to avoid
// circular dependencies. Both ledger backends, the dedup cascade, and the
// report writers all need these types, so centralizing them prevents
// import cycles.
//
// The models are designed to be serializable to JSON for report output and
// database storage.
package model
