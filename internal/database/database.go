package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3" // SQLite3 driver

	"photo-indexer/internal/catalog"
	"photo-indexer/internal/logging"
	"photo-indexer/internal/metrics"
)

// Default timeout for database operations
const defaultTimeout = 5 * time.Second

// Database is the SQLite catalog store. It implements catalog.Store and
// catalog.Reader.
type Database struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
	now    func() time.Time
}

var (
	_ catalog.Store  = (*Database)(nil)
	_ catalog.Reader = (*Database)(nil)
)

// New opens (creating if needed) the catalog database at dbPath. The parent
// directory is created when missing. Failures wrap
// catalog.ErrStorageUnavailable.
func New(ctx context.Context, dbPath string) (*Database, error) {
	logging.Info("Database path: %s", dbPath)

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("%w: create database directory: %v", catalog.ErrStorageUnavailable, err)
	}

	// Diagnose potential permission issues
	if err := diagnoseDatabasePermissions(dbPath); err != nil {
		logging.Warn("Database permission diagnostics: %v", err)
	}

	// busy_timeout helps prevent "database is locked" errors when a reader
	// process overlaps with a scan
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000&_temp_store=MEMORY&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("%w: open database: %v", catalog.ErrStorageUnavailable, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("%w: connect to database: %v", catalog.ErrStorageUnavailable, err)
	}

	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(time.Hour)

	d := &Database{
		db:     db,
		dbPath: dbPath,
		now:    time.Now,
	}

	if err := d.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("%w: initialize schema: %v", catalog.ErrStorageUnavailable, err)
	}

	logging.Info("Database initialized successfully at %s", dbPath)
	return d, nil
}

func (d *Database) initialize(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { recordQuery("initialize_schema", start, err) }()

	schema := `
	-- One row per indexed file, keyed by library-relative path
	CREATE TABLE IF NOT EXISTS photos (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		relative_path TEXT NOT NULL UNIQUE CHECK (relative_path <> ''),
		filename TEXT NOT NULL,
		content_hash TEXT NOT NULL CHECK (length(content_hash) = 64),
		mime_type TEXT NOT NULL DEFAULT '',
		-- unix nanoseconds, so a modification-time fallback round-trips exactly
		capture_timestamp INTEGER NOT NULL,
		timestamp_source TEXT NOT NULL DEFAULT '',
		width INTEGER,
		height INTEGER,
		orientation INTEGER NOT NULL DEFAULT 1,
		file_size INTEGER NOT NULL DEFAULT 0 CHECK (file_size >= 0),
		thumbnail_ready INTEGER NOT NULL DEFAULT 0,
		raw_metadata TEXT NOT NULL DEFAULT '{}',
		added_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	-- Not unique: identical content at two paths shares one thumbnail
	CREATE INDEX IF NOT EXISTS idx_photos_content_hash ON photos(content_hash);
	CREATE INDEX IF NOT EXISTS idx_photos_capture ON photos(capture_timestamp, relative_path);

	-- Key/value state such as the last scan
	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value TEXT
	);
	`

	_, err = d.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// Path returns the database file path.
func (d *Database) Path() string {
	return d.dbPath
}

// recordQuery records database query metrics
func recordQuery(operation string, start time.Time, err error) {
	duration := time.Since(start).Seconds()
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(duration)
}

// mapError translates driver errors into the catalog error taxonomy. Errors
// it does not recognise are returned unchanged.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return err
	}

	switch sqliteErr.Code {
	case sqlite3.ErrConstraint:
		return fmt.Errorf("%w: %v", catalog.ErrConstraintViolation, err)
	case sqlite3.ErrBusy, sqlite3.ErrLocked, sqlite3.ErrCantOpen, sqlite3.ErrIoErr,
		sqlite3.ErrFull, sqlite3.ErrReadonly, sqlite3.ErrPerm, sqlite3.ErrCorrupt, sqlite3.ErrNotADB:
		return fmt.Errorf("%w: %v", catalog.ErrStorageUnavailable, err)
	default:
		return err
	}
}

// diagnoseDatabasePermissions checks database directory and file permissions
func diagnoseDatabasePermissions(dbPath string) error {
	dir := filepath.Dir(dbPath)

	dirInfo, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("cannot stat database directory: %w", err)
	}
	logging.Debug("Database directory: %s (mode: %v)", dir, dirInfo.Mode())

	// Check if directory is writable by testing
	testFile := filepath.Join(dir, ".perm-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return fmt.Errorf("database directory not writable: %w", err)
	}
	_ = os.Remove(testFile)

	for _, p := range []string{dbPath, dbPath + "-wal", dbPath + "-shm"} {
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		logging.Debug("Database file exists: %s (mode: %v, size: %d bytes)", p, info.Mode(), info.Size())
		if info.Mode().Perm()&0o200 == 0 {
			logging.Warn("Database file %s is read-only! Mode: %v - this will cause write failures", p, info.Mode())
		}
	}

	return nil
}
