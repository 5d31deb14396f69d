// Package metrics provides Prometheus instrumentation for the photo indexer.
//
// All metrics are registered with the default registry through promauto and
// are prefixed with "photo_indexer_".
//
// # Metric Categories
//
// ## Scan Metrics
//
//   - ScanRunsTotal: Counter of runs by result (completed/aborted/failed)
//   - ScanFilesTotal: Counter of files by outcome (added/updated/skipped/error)
//   - ScanStageDuration: Histogram of per-file stage time (hash/extract/thumbnail/commit)
//   - ScanBatchCommitsTotal, ScanBatchSize: catalog batch commits
//   - ScanIsRunning, ScanLastRunTimestamp, ScanLastRunDuration
//
// ## Thumbnail Metrics
//
//   - ThumbnailGenerationsTotal: Counter by status (generated/cached/error_decode/error_io)
//   - ThumbnailGenerationDuration: Histogram by decoder (imaging/vips)
//   - ThumbnailImageDecodeByFormat: Counter by source format
//
// ## Database and Catalog Metrics
//
//   - DBQueryTotal, DBQueryDuration, DBTransactionDuration, DBSizeBytes
//   - CatalogEntriesTotal, CatalogThumbnailsReady, CatalogBytesTotal
//
// ## Filesystem and Memory Metrics
//
//   - Filesystem* counters recorded through the filesystem.Observer returned
//     by NewFilesystemObserver
//   - GoMem*, MemoryUsageRatio, MemoryPaused, MemoryGCPauses
//
// # Export
//
// A scan is a batch job with no scrape endpoint. WriteTextfile dumps the
// default registry in the text exposition format so node_exporter's
// textfile collector can pick it up:
//
//	metrics.InitializeMetrics()
//	// ... run the scan ...
//	if err := metrics.WriteTextfile("/var/lib/node_exporter/photo_indexer.prom"); err != nil {
//	    logging.Warn("metrics export failed: %v", err)
//	}
//
// # Collector
//
// Collector refreshes gauges derived from external state (catalog totals,
// database file sizes, runtime memory). Call Collect once before exporting,
// or Start it for long-running periodic scans.
package metrics
