package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"photo-indexer/internal/catalog"
)

const lastScanKey = "last_scan"

// ScanRecord is the persisted summary of the most recent scan run.
type ScanRecord struct {
	RunID      string        `json:"runId"`
	StartedAt  time.Time     `json:"startedAt"`
	Duration   time.Duration `json:"duration"`
	Added      int           `json:"added"`
	Updated    int           `json:"updated"`
	Skipped    int           `json:"skipped"`
	Errors     int           `json:"errors"`
	Aborted    bool          `json:"aborted"`
	LibraryDir string        `json:"libraryDir,omitempty"`
}

// GetMetadata retrieves a metadata value by key.
// Returns an error wrapping catalog.ErrNotFound if the key doesn't exist.
func (d *Database) GetMetadata(ctx context.Context, key string) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var value sql.NullString
	err := d.db.QueryRowContext(ctx, "SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: metadata key %q", catalog.ErrNotFound, key)
	}
	if err != nil {
		return "", mapError(err)
	}
	return value.String, nil
}

// SetMetadata sets a metadata key-value pair.
func (d *Database) SetMetadata(ctx context.Context, key, value string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := d.db.ExecContext(ctx, `
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return mapError(err)
}

// GetLastScan returns the most recent scan record. ok is false if no scan
// has been recorded.
func (d *Database) GetLastScan(ctx context.Context) (rec ScanRecord, ok bool, err error) {
	value, err := d.GetMetadata(ctx, lastScanKey)
	if errors.Is(err, catalog.ErrNotFound) {
		return ScanRecord{}, false, nil
	}
	if err != nil {
		return ScanRecord{}, false, err
	}
	if value == "" {
		return ScanRecord{}, false, nil
	}

	if err := json.Unmarshal([]byte(value), &rec); err != nil {
		return ScanRecord{}, false, fmt.Errorf("decode last scan record: %w", err)
	}
	return rec, true, nil
}

// SetLastScan stores rec as the most recent scan.
func (d *Database) SetLastScan(ctx context.Context, rec ScanRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode last scan record: %w", err)
	}
	return d.SetMetadata(ctx, lastScanKey, string(data))
}
