package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"photo-indexer/internal/catalog"
	"photo-indexer/internal/metrics"
)

const entryColumns = `id, relative_path, filename, content_hash, mime_type, capture_timestamp,
	timestamp_source, width, height, orientation, file_size, thumbnail_ready, raw_metadata,
	added_at, updated_at`

// id and added_at survive an update so a changed file keeps its identity.
const upsertQuery = `
	INSERT INTO photos (relative_path, filename, content_hash, mime_type, capture_timestamp,
		timestamp_source, width, height, orientation, file_size, thumbnail_ready, raw_metadata,
		added_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(relative_path) DO UPDATE SET
		filename = excluded.filename,
		content_hash = excluded.content_hash,
		mime_type = excluded.mime_type,
		capture_timestamp = excluded.capture_timestamp,
		timestamp_source = excluded.timestamp_source,
		width = excluded.width,
		height = excluded.height,
		orientation = excluded.orientation,
		file_size = excluded.file_size,
		thumbnail_ready = excluded.thumbnail_ready,
		raw_metadata = excluded.raw_metadata,
		updated_at = excluded.updated_at
	`

type rowScanner interface {
	Scan(dest ...any) error
}

// SnapshotPaths returns every known relative path with its content hash.
func (d *Database) SnapshotPaths(ctx context.Context) (snap catalog.Snapshot, err error) {
	start := time.Now()
	defer func() { recordQuery("snapshot_paths", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	rows, err := d.db.QueryContext(ctx, "SELECT relative_path, content_hash FROM photos")
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	snap = make(catalog.Snapshot)
	for rows.Next() {
		var p, h string
		if err = rows.Scan(&p, &h); err != nil {
			return nil, mapError(err)
		}
		snap[p] = h
	}
	if err = rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return snap, nil
}

// Upsert inserts or updates a single entry keyed by its relative path.
func (d *Database) Upsert(ctx context.Context, entry catalog.Entry) (err error) {
	start := time.Now()
	defer func() { recordQuery("upsert", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx, upsertQuery, d.upsertArgs(entry, d.now())...)
	return mapError(err)
}

// BatchUpsert writes entries in one transaction. On any failure the
// transaction is rolled back and the error wraps catalog.ErrCommitFailure
// together with the mapped cause.
func (d *Database) BatchUpsert(ctx context.Context, entries []catalog.Entry) (err error) {
	if len(entries) == 0 {
		return nil
	}

	start := time.Now()
	defer func() { recordQuery("batch_upsert", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %w", catalog.ErrCommitFailure, mapError(err))
	}
	txStart := time.Now()

	err = d.upsertAll(ctx, tx, entries)
	if err == nil {
		err = tx.Commit()
	}
	if err != nil {
		metrics.DBTransactionDuration.WithLabelValues("rollback").Observe(time.Since(txStart).Seconds())
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			err = errors.Join(err, fmt.Errorf("rollback also failed: %w", rbErr))
		}
		return fmt.Errorf("%w: %w", catalog.ErrCommitFailure, mapError(err))
	}

	metrics.DBTransactionDuration.WithLabelValues("commit").Observe(time.Since(txStart).Seconds())
	return nil
}

func (d *Database) upsertAll(ctx context.Context, tx *sql.Tx, entries []catalog.Entry) error {
	stmt, err := tx.PrepareContext(ctx, upsertQuery)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := d.now()
	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, d.upsertArgs(e, now)...); err != nil {
			return fmt.Errorf("upsert %s: %w", e.RelativePath, err)
		}
	}
	return nil
}

func (d *Database) upsertArgs(e catalog.Entry, now time.Time) []any {
	raw := e.RawMetadata
	if raw == "" {
		raw = "{}"
	}
	orientation := e.Orientation
	if orientation < 1 || orientation > 8 {
		orientation = 1
	}
	return []any{
		catalog.NormalizePath(e.RelativePath),
		e.Filename,
		e.ContentHash,
		e.MimeType,
		e.CaptureTimestamp.UnixNano(),
		string(e.TimestampSource),
		nullableInt(e.Width),
		nullableInt(e.Height),
		orientation,
		e.FileSizeBytes,
		e.ThumbnailReady,
		raw,
		now.Unix(),
		now.Unix(),
	}
}

// List returns entries matching filter ordered by capture time, then path.
func (d *Database) List(ctx context.Context, filter catalog.Filter) (entries []catalog.Entry, err error) {
	start := time.Now()
	defer func() { recordQuery("list", start, err) }()
	return d.list(ctx, filter)
}

// GetByPath returns the entry at relPath or an error wrapping
// catalog.ErrNotFound.
func (d *Database) GetByPath(ctx context.Context, relPath string) (entry catalog.Entry, err error) {
	start := time.Now()
	defer func() { recordQuery("get_by_path", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	p := catalog.NormalizePath(relPath)
	row := d.db.QueryRowContext(ctx, "SELECT "+entryColumns+" FROM photos WHERE relative_path = ?", p)
	entry, err = scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.Entry{}, fmt.Errorf("%w: %s", catalog.ErrNotFound, p)
	}
	return entry, mapError(err)
}

// GetByHash returns every entry sharing hash. An empty result is not an
// error.
func (d *Database) GetByHash(ctx context.Context, hash string) (entries []catalog.Entry, err error) {
	start := time.Now()
	defer func() { recordQuery("get_by_hash", start, err) }()

	if hash == "" {
		return nil, nil
	}
	return d.list(ctx, catalog.Filter{ContentHash: hash})
}

// Stats summarizes the catalog.
func (d *Database) Stats(ctx context.Context) (stats catalog.Stats, err error) {
	start := time.Now()
	defer func() { recordQuery("stats", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var lastUpdated int64
	err = d.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(thumbnail_ready), 0),
			COUNT(DISTINCT content_hash),
			COALESCE(SUM(file_size), 0),
			COALESCE(MAX(updated_at), 0)
		FROM photos
	`).Scan(&stats.TotalEntries, &stats.ThumbnailsReady, &stats.DistinctHashes, &stats.TotalBytes, &lastUpdated)
	if err != nil {
		return catalog.Stats{}, mapError(err)
	}
	if lastUpdated > 0 {
		stats.LastUpdated = time.Unix(lastUpdated, 0)
	}
	return stats, nil
}

func (d *Database) list(ctx context.Context, filter catalog.Filter) ([]catalog.Entry, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var (
		where []string
		args  []any
	)
	if prefix := catalog.NormalizePath(filter.PathPrefix); prefix != "" {
		where = append(where, `(relative_path = ? OR relative_path LIKE ? ESCAPE '\')`)
		args = append(args, prefix, escapeLike(strings.TrimSuffix(prefix, "/"))+"/%")
	}
	if filter.ContentHash != "" {
		where = append(where, "content_hash = ?")
		args = append(args, filter.ContentHash)
	}

	query := "SELECT " + entryColumns + " FROM photos"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY capture_timestamp, relative_path"

	limit := filter.Limit
	if limit <= 0 {
		limit = -1
	}
	query += " LIMIT ? OFFSET ?"
	args = append(args, limit, max(filter.Offset, 0))

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var entries []catalog.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, mapError(err)
		}
		entries = append(entries, e)
	}
	return entries, mapError(rows.Err())
}

func scanEntry(row rowScanner) (catalog.Entry, error) {
	var (
		e                           catalog.Entry
		source                      string
		width, height               sql.NullInt64
		capture, addedAt, updatedAt int64
	)
	err := row.Scan(
		&e.ID, &e.RelativePath, &e.Filename, &e.ContentHash, &e.MimeType, &capture,
		&source, &width, &height, &e.Orientation, &e.FileSizeBytes, &e.ThumbnailReady, &e.RawMetadata,
		&addedAt, &updatedAt,
	)
	if err != nil {
		return catalog.Entry{}, err
	}
	e.TimestampSource = catalog.TimestampSource(source)
	e.CaptureTimestamp = time.Unix(0, capture)
	e.AddedAt = time.Unix(addedAt, 0)
	e.UpdatedAt = time.Unix(updatedAt, 0)
	e.Width = intPtr(width)
	e.Height = intPtr(height)
	return e, nil
}

func nullableInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}

// escapeLike escapes LIKE wildcards using '\'.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
