// Package memory keeps the photo indexer inside its container memory limit.
//
// Decoding full-resolution photos is the largest allocation in a scan, and
// several workers decode at once. Two mechanisms bound that:
//
//   - ConfigureFromEnv sets GOMEMLIMIT from MEMORY_LIMIT (bytes, usually from
//     the Kubernetes Downward API) times MEMORY_RATIO (default 0.85). An
//     explicit GOMEMLIMIT always wins.
//   - Monitor samples heap usage. Above CriticalWaterMark it pauses decode
//     work until usage drops below HighWaterMark.
//
// Workers call WaitIfPaused before decoding:
//
//	monitor := memory.NewMonitor(memory.DefaultConfig())
//	monitor.Start()
//	defer monitor.Stop()
//
//	if err := monitor.WaitIfPaused(ctx); err != nil {
//	    return err // scan cancelled while paused
//	}
//
// Without a limit the monitor never pauses.
package memory
