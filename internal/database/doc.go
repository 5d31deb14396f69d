// Package database provides the SQLite catalog store for the photo indexer.
//
// It handles storage and retrieval of:
//   - One catalog entry per indexed file, keyed by library-relative path
//   - Lookup by content hash (not unique; identical files share a hash)
//   - Small key/value state such as the summary of the last scan
//
// Batch writes run in a single transaction so a failed batch leaves the
// catalog untouched. Driver errors are mapped onto the catalog error
// taxonomy (constraint violations and storage unavailability).
//
// The database uses WAL mode so readers such as the CLI can query the
// catalog while a scan is writing.
package database
