// Package report renders ledger statistics and cascade metrics for
// people and tools.
//
// This package contains writers for different output formats:
//   - SimpleWriter: Human-readable text output for terminal display
//   - JSONWriter: Structured JSON output for tool integration
//   - MarkdownWriter: Documentation-grade output for sharing
//
// Design decision: We separate report writing from the data structures
// (which come from the model and dedup packages) so that new output
// formats can be added without touching the ledger. Writers implement the
// Writer interface, allowing them to be composed for multi-format output.
package report
