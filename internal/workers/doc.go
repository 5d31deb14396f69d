/*
Package workers sizes worker pools in containerized environments.

runtime.NumCPU reports host CPUs and ignores cgroup limits, while
GOMAXPROCS follows the container CPU quota. Worker counts are therefore
derived from GOMAXPROCS(0) times a per-workload multiplier:

	workers.Count(1.0, 8) // pure decode/encode
	workers.ForMixed(8)   // 1.5x, the scan pipeline (read, hash, decode)

# Overrides

SCAN_WORKERS pins the count for every helper. The scan also accepts an
explicit configured value through ForScan, which takes precedence:

	n := workers.ForScan(cfg.Workers, 32)

A limit of 0 means uncapped.
*/
package workers
