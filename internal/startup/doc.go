// Package startup handles configuration loading and startup/shutdown
// logging.
//
// # Configuration
//
// Configuration is assembled by viper from, in increasing precedence:
// built-in defaults ([Default]), an optional YAML file (config.yaml in the
// working directory or /etc/photo-indexer, or an explicit --config path),
// environment variables (including .env and .env.local files) and command
// line flags. [LoadConfig] resolves derived paths and validates the result;
// every problem wraps catalog.ErrConfiguration.
//
// The following environment variables are supported:
//
//   - PHOTO_LIBRARY_PATH: library root to scan (default: ./photo_library)
//   - DATA_STORAGE_PATH: data directory (default: ./data_storage)
//   - THUMBNAIL_DIR: thumbnail root (default: <data>/thumbnails)
//   - DATABASE_PATH: SQLite catalog (default: <data>/catalog.db)
//   - SCAN_WORKERS: file workers, 0 for automatic (default: 0)
//   - SCAN_BATCH_SIZE: records per catalog commit (default: 100)
//   - SCAN_INTERVAL: re-scan interval as Go duration, empty for one run
//   - SCAN_TIMEZONE: zone for EXIF dates, "Local" or IANA name (default: Local)
//   - THUMBNAIL_SIZE: bounding box edge in pixels (default: 400)
//   - THUMBNAIL_QUALITY: JPEG quality 1-100 (default: 85)
//   - THUMBNAIL_USE_VIPS: decode through libvips when available (default: false)
//   - METRICS_TEXTFILE: node-exporter textfile written after each run
//   - LOG_LEVEL: debug, info, warn, error (default: info)
//   - LOG_FILE, LOG_MAX_SIZE_MB, LOG_MAX_BACKUPS, LOG_MAX_AGE_DAYS,
//     LOG_COMPRESS: optional rotating log file
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo]:
//   - Version: Application version
//   - Commit: Git commit hash
//   - BuildTime: Build timestamp
//   - GoVersion: Go compiler version
//
// # Lifecycle Logging
//
// The banner goes to stderr so command output on stdout stays clean. The
// remaining functions log one section each:
//   - [LogStartup]: banner and system information
//   - [LogConfig]: effective configuration
//   - [LogMemoryConfig]: memory limit configuration
//   - [LogDatabaseInit]: catalog initialization timing
//   - [LogThumbnailInit]: thumbnail generator settings
//   - [LogIndexerInit]: worker count, batch size and interval
//   - [LogShutdownInitiated], [LogShutdownComplete]: cancellation
package startup
