package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric appears in the first textfile export even when it was never
// touched during the run.
func InitializeMetrics() {
	for _, result := range []string{"completed", "aborted", "failed"} {
		ScanRunsTotal.WithLabelValues(result)
	}

	for _, outcome := range []string{"added", "updated", "skipped", "error"} {
		ScanFilesTotal.WithLabelValues(outcome)
	}

	for _, stage := range []string{"hash", "extract", "thumbnail", "commit"} {
		ScanStageDuration.WithLabelValues(stage)
	}

	for _, status := range []string{"success", "error"} {
		ScanBatchCommitsTotal.WithLabelValues(status)
	}

	for _, status := range []string{"generated", "cached", "error_decode", "error_io"} {
		ThumbnailGenerationsTotal.WithLabelValues(status)
	}

	for _, decoder := range []string{"imaging", "vips"} {
		ThumbnailGenerationDuration.WithLabelValues(decoder)
	}

	for _, format := range []string{"jpeg", "png", "gif", "bmp", "tiff", "unknown"} {
		ThumbnailImageDecodeByFormat.WithLabelValues(format)
	}

	for _, op := range []string{"initialize_schema", "snapshot_paths", "upsert", "batch_upsert",
		"list", "get_by_path", "get_by_hash", "stats"} {
		DBQueryTotal.WithLabelValues(op, "success")
		DBQueryTotal.WithLabelValues(op, "error")
		DBQueryDuration.WithLabelValues(op)
	}

	for _, result := range []string{"commit", "rollback"} {
		DBTransactionDuration.WithLabelValues(result)
	}

	for _, file := range []string{"main", "wal", "shm"} {
		DBSizeBytes.WithLabelValues(file)
	}

	volumes := []string{"library", "thumbnails", "database", "unknown"}
	for _, vol := range volumes {
		for _, op := range []string{"stat", "read", "write", "walk"} {
			FilesystemOperationDuration.WithLabelValues(vol, op)
			FilesystemOperationErrors.WithLabelValues(vol, op)
		}
		for _, op := range []string{"stat", "open"} {
			FilesystemRetryAttempts.WithLabelValues(op, vol)
			FilesystemRetrySuccess.WithLabelValues(op, vol)
			FilesystemRetryFailures.WithLabelValues(op, vol)
			FilesystemStaleErrors.WithLabelValues(op, vol)
			FilesystemRetryDuration.WithLabelValues(op, vol)
		}
	}
}
