package metrics

import "photo-indexer/internal/filesystem"

// scanFSObserver feeds filesystem timings and NFS retry outcomes from the
// scan (hashing, decoding, thumbnail writes) into the filesystem metrics.
type scanFSObserver struct{}

// NewFilesystemObserver returns the observer runScan installs with
// filesystem.SetObserver.
func NewFilesystemObserver() filesystem.Observer {
	return scanFSObserver{}
}

func (scanFSObserver) ObserveOperation(volume, operation string, durationSeconds float64, err error) {
	FilesystemOperationDuration.WithLabelValues(volume, operation).Observe(durationSeconds)
	if err != nil {
		FilesystemOperationErrors.WithLabelValues(volume, operation).Inc()
	}
}

func (scanFSObserver) ObserveRetryAttempt(retryOp, volume string) {
	FilesystemRetryAttempts.WithLabelValues(retryOp, volume).Inc()
}

func (scanFSObserver) ObserveRetrySuccess(retryOp, volume string) {
	FilesystemRetrySuccess.WithLabelValues(retryOp, volume).Inc()
}

func (scanFSObserver) ObserveRetryFailure(retryOp, volume string) {
	FilesystemRetryFailures.WithLabelValues(retryOp, volume).Inc()
}

func (scanFSObserver) ObserveRetryDuration(retryOp, volume string, durationSeconds float64) {
	FilesystemRetryDuration.WithLabelValues(retryOp, volume).Observe(durationSeconds)
}

func (scanFSObserver) ObserveStaleError(retryOp, volume string) {
	FilesystemStaleErrors.WithLabelValues(retryOp, volume).Inc()
}
