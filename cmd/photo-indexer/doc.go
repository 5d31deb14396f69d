// Package main provides the photo-indexer command.
//
// photo-indexer scans a photo library directory, fingerprints every
// supported image by content, extracts capture metadata, generates bounded
// JPEG thumbnails and keeps a SQLite catalog in sync with the files on disk.
//
// # Commands
//
//	photo-indexer scan [--interval 30m] [--workers n] [--batch-size n]
//	photo-indexer catalog list [--prefix p] [--hash h] [--limit n] [--offset n] [--json]
//	photo-indexer catalog show <path> [--json]
//	photo-indexer catalog stats
//	photo-indexer thumbnail <hash> [-o file]
//	photo-indexer config generate [-o config.yaml|-] [--overwrite]
//	photo-indexer version
//
// Global flags: --config, --log-level, --library, --data.
//
// # Scan Lifecycle
//
//  1. Memory Configuration: sets GOMEMLIMIT from MEMORY_LIMIT when present
//  2. Configuration Loading: defaults, config file, environment, flags
//  3. Scan Lock: <data>/.scan.lock keeps a second process from scanning
//  4. Database Initialization: opens the SQLite catalog in WAL mode
//  5. Component Initialization:
//     - Memory Monitor: pauses decode work near the memory limit
//     - Thumbnail Generator: imaging, or libvips when THUMBNAIL_USE_VIPS is set
//     - Indexer: walks the library and runs the per-file pipeline
//  6. Run: once, or every --interval until interrupted
//  7. Recording: last scan summary in the catalog, metrics textfile if set
//
// # Exit Status
//
//   - 0: the run completed without file errors
//   - 1: the run was aborted, or configuration, lock or catalog setup failed
//   - 2: the run completed but some files could not be indexed
//
// # Graceful Shutdown
//
// SIGINT and SIGTERM stop the directory walk. Files already being
// processed finish, staged records are committed and the run summary is
// recorded before the process exits with status 1. A second signal exits
// immediately.
//
// # Build Requirements
//
// CGO is required for SQLite. libvips is optional at runtime but govips
// links against it:
//
//	go build -o photo-indexer ./cmd/photo-indexer
//
// # Related Packages
//
//   - [photo-indexer/internal/indexer]: scan orchestration
//   - [photo-indexer/internal/fingerprint]: content hashing
//   - [photo-indexer/internal/metadata]: dimensions, orientation and capture time
//   - [photo-indexer/internal/thumbnail]: thumbnail artifacts
//   - [photo-indexer/internal/catalog]: catalog types, differencing and errors
//   - [photo-indexer/internal/database]: SQLite catalog store
//   - [photo-indexer/internal/startup]: configuration and startup logging
package main
