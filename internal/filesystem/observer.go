package filesystem

import "sync/atomic"

// Observer receives timings for library reads and thumbnail writes, and the
// outcome of every NFS retry loop. The metrics package implements it; the
// interface lives here so filesystem does not import metrics.
type Observer interface {
	// ObserveOperation records one timed operation. volume comes from the
	// default VolumeResolver ("library", "thumbnails", "database" or
	// "unknown"); operation is "stat", "read", "write" or "walk".
	ObserveOperation(volume, operation string, durationSeconds float64, err error)

	// Retry loop events. retryOp is "stat" or "open".
	ObserveRetryAttempt(retryOp, volume string)
	ObserveRetrySuccess(retryOp, volume string)
	ObserveRetryFailure(retryOp, volume string)
	ObserveRetryDuration(retryOp, volume string, durationSeconds float64)
	ObserveStaleError(retryOp, volume string)
}

type observerBox struct{ o Observer }

// Scan workers read the observer concurrently with SetObserver in tests.
var defaultObserver atomic.Pointer[observerBox]

// SetObserver installs o for all filesystem helpers. nil disables recording.
func SetObserver(o Observer) {
	if o == nil {
		defaultObserver.Store(nil)
		return
	}
	defaultObserver.Store(&observerBox{o: o})
}

func observe() Observer {
	if b := defaultObserver.Load(); b != nil {
		return b.o
	}
	return nil
}
