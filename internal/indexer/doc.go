// Package indexer scans the photo library and reconciles it with the catalog.
//
// A run takes one snapshot of the catalog (relative path to content hash),
// walks the library root and pushes every supported file through a per-file
// state machine on a pool of workers:
//
//	discovered -> hashed -> classified -> extracted -> thumbnailed -> staged
//
// Unchanged files stop after classification as skipped. New and changed
// files always get both metadata extraction and a thumbnail attempt; a
// failed thumbnail still stages the record with ThumbnailReady false. Any
// error or panic while processing a file fails only that file.
//
// Staged records go to a single committer that writes them in batches
// through catalog.Store.BatchUpsert, so commits are applied in order and a
// crash leaves a prefix of whole batches. Added and updated counts are only
// credited after their batch commits; a failed batch counts every record in
// it as an error and the files are picked up again on the next run.
//
// Files outside the supported extension list are ignored and never counted.
// Dot-prefixed names are indexed like any other. Directories given to
// WithExcludedDirs, typically the data directory when it lives inside the
// library, are not descended.
package indexer
