package metrics

import (
	"context"
	"os"
	"runtime"
	"runtime/debug"
	"time"

	"photo-indexer/internal/catalog"
	"photo-indexer/internal/logging"
)

// StatsProvider supplies catalog statistics for the gauges.
type StatsProvider interface {
	Stats(ctx context.Context) (catalog.Stats, error)
}

// Collector periodically collects and updates metrics that are derived from
// external state: catalog totals, database file sizes and Go runtime memory.
type Collector struct {
	statsProvider StatsProvider
	dbPath        string
	interval      time.Duration
	stopChan      chan struct{}
	doneChan      chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(provider StatsProvider, dbPath string, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		dbPath:        dbPath,
		interval:      interval,
		stopChan:      make(chan struct{}),
		doneChan:      make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection and waits for the loop to exit.
func (c *Collector) Stop() {
	close(c.stopChan)
	<-c.doneChan
}

func (c *Collector) collectLoop() {
	defer close(c.doneChan)

	// Collect immediately on start
	c.Collect(context.Background())

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Collect(context.Background())
		case <-c.stopChan:
			return
		}
	}
}

// Collect refreshes the derived gauges once.
func (c *Collector) Collect(ctx context.Context) {
	c.collectRuntime()
	c.collectDBSize()

	if c.statsProvider == nil {
		return
	}

	stats, err := c.statsProvider.Stats(ctx)
	if err != nil {
		logging.Warn("Metrics collection failed to read catalog stats: %v", err)
		return
	}

	CatalogEntriesTotal.Set(float64(stats.TotalEntries))
	CatalogThumbnailsReady.Set(float64(stats.ThumbnailsReady))
	CatalogBytesTotal.Set(float64(stats.TotalBytes))

	logging.Debug("Metrics collected: entries=%d, thumbnails=%d, bytes=%d",
		stats.TotalEntries, stats.ThumbnailsReady, stats.TotalBytes)
}

func (c *Collector) collectRuntime() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	GoMemAllocBytes.Set(float64(m.Alloc))
	GoMemSysBytes.Set(float64(m.Sys))
	GoGCRuns.Set(float64(m.NumGC))

	if limit := debug.SetMemoryLimit(-1); limit > 0 && limit < 1<<62 {
		GoMemLimit.Set(float64(limit))
	}
}

func (c *Collector) collectDBSize() {
	if c.dbPath == "" {
		return
	}
	for label, suffix := range map[string]string{"main": "", "wal": "-wal", "shm": "-shm"} {
		info, err := os.Stat(c.dbPath + suffix)
		if err != nil {
			DBSizeBytes.WithLabelValues(label).Set(0)
			continue
		}
		DBSizeBytes.WithLabelValues(label).Set(float64(info.Size()))
	}
}
