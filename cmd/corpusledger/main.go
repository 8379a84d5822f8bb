// Package main provides the entry point for the corpusledger CLI.
//
// corpusledger manages the crawl ledger and deduplication state shared by
// corpus ingestion pipelines: inspecting statistics, verifying schema,
// and cleaning up permanently failed records.
//
// Usage:
//
//	corpusledger stats --source wikipedia
//	corpusledger verify --dsn postgres://...
//	corpusledger cleanup --days 90
//
// See --help for all available options.
package main

// main is the entry point for corpusledger.
func main() {
	Execute()
}
