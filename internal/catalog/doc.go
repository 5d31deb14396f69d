// Package catalog defines the photo catalog model shared by the scan
// pipeline and its storage backends.
//
// It contains:
//   - Entry, one record per indexed file keyed by its library-relative path
//   - Snapshot, the path to content hash view taken once per scan, and
//     Classify, which decides whether a file is new, changed or unchanged
//   - The Store and Reader interfaces implemented by internal/database
//   - The error taxonomy used across the pipeline
//
// Errors are sentinels matched with errors.Is. Components wrap them with
// fmt.Errorf("...: %w") so callers keep both the category and the cause.
package catalog
