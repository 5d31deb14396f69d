/*
Package filesystem provides resilient filesystem operations for the photo
indexer: retry logic for NFS stale file handle errors, volume labels for
metrics, and the cross-process scan lock.

# Retry

StatWithRetry and OpenWithRetry wrap os.Stat and os.Open. Only ESTALE
(errno 116) triggers a retry; every other error is returned immediately.
Backoff starts at InitialBackoff and doubles up to MaxBackoff.

	f, err := filesystem.OpenWithRetry(path, filesystem.DefaultRetryConfig())
	if err != nil {
	    return err
	}
	defer f.Close()

Defaults: 3 retries, 50ms initial backoff, 500ms cap.

# Volumes and Metrics

SetDefaultVolumeResolver labels paths as "library", "thumbnails" or
"database" for metrics. SetObserver installs the metrics sink; without one,
recording is skipped, which keeps tests free of global registry state.
Observe times an arbitrary operation against the volume holding a path.

# Scan Lock

Lock takes an OS advisory lock (flock on Unix, LockFileEx on Windows)
without blocking. A second scan fails fast with ErrLocked while the owner
holds it; the kernel releases it when the owner exits, even on a crash.

	lock, err := filesystem.Lock(filepath.Join(dataDir, ".scan.lock"))
	if errors.Is(err, filesystem.ErrLocked) {
	    // another scan is running
	}
	defer lock.Unlock()
*/
package filesystem
