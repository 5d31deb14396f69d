package catalog

import "context"

// Store is the write side of the catalog used by the scan orchestrator.
type Store interface {
	// SnapshotPaths returns every known relative path with its content hash.
	SnapshotPaths(ctx context.Context) (Snapshot, error)

	// Upsert inserts or updates a single entry keyed by RelativePath.
	Upsert(ctx context.Context, entry Entry) error

	// BatchUpsert writes all entries atomically: either every entry is
	// committed or none is.
	BatchUpsert(ctx context.Context, entries []Entry) error
}

// Reader is the read-only view exposed to front-end consumers.
type Reader interface {
	List(ctx context.Context, filter Filter) ([]Entry, error)
	GetByPath(ctx context.Context, relPath string) (Entry, error)
	GetByHash(ctx context.Context, hash string) ([]Entry, error)
	Stats(ctx context.Context) (Stats, error)
}
