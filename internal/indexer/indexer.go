package indexer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"photo-indexer/internal/catalog"
	"photo-indexer/internal/fingerprint"
	"photo-indexer/internal/logging"
	"photo-indexer/internal/memory"
	"photo-indexer/internal/metadata"
	"photo-indexer/internal/metrics"
	"photo-indexer/internal/workers"
)

const (
	// DefaultBatchSize is the number of staged records per catalog commit.
	DefaultBatchSize = 100

	// Log progress every this many processed files
	progressLogEvery = 500
)

// ErrScanInProgress is returned by Run while another run of the same
// Indexer is active.
var ErrScanInProgress = errors.New("scan already in progress")

// Thumbnailer ensures a thumbnail artifact exists for a content hash.
type Thumbnailer interface {
	Ensure(ctx context.Context, srcPath, hash string, orientation int) error
	Exists(hash string) bool
}

// MetadataExtractor reads display metadata. It must not fail.
type MetadataExtractor interface {
	Extract(path string, info fs.FileInfo) metadata.Metadata
}

// Outcome summarizes one scan run.
type Outcome struct {
	RunID     string        `json:"runId"`
	StartedAt time.Time     `json:"startedAt"`
	Duration  time.Duration `json:"duration"`
	Added     int           `json:"added"`
	Updated   int           `json:"updated"`
	Skipped   int           `json:"skipped"`
	Errors    int           `json:"errors"`
	Aborted   bool          `json:"aborted"`
}

// Total returns the number of supported files the run accounted for.
func (o Outcome) Total() int {
	return o.Added + o.Updated + o.Skipped + o.Errors
}

// HasErrors reports whether the run completed with file-level errors.
func (o Outcome) HasErrors() bool {
	return o.Errors > 0
}

// Progress tracks the current scan.
type Progress struct {
	RunID      string    `json:"runId,omitempty"`
	Discovered int64     `json:"discovered"`
	Processed  int64     `json:"processed"`
	IsIndexing bool      `json:"isIndexing"`
	StartedAt  time.Time `json:"startedAt,omitempty"`
}

// Indexer reconciles a library directory with the catalog.
type Indexer struct {
	store      catalog.Store
	root       string
	thumbs     Thumbnailer
	extractor  MetadataExtractor
	hasher     func(path string) (string, error)
	numWorkers int
	batchSize  int
	monitor    *memory.Monitor
	now        func() time.Time
	excluded   []string

	indexMu       sync.Mutex
	isIndexing    bool
	lastOutcome   Outcome
	hasOutcome    bool
	lastIndexTime time.Time

	// Progress tracking
	runID      atomic.Value
	startedAt  atomic.Value
	discovered atomic.Int64
	processed  atomic.Int64
}

// Option configures an Indexer.
type Option func(*Indexer)

// WithRoot sets the library root directory.
func WithRoot(root string) Option {
	return func(idx *Indexer) { idx.root = root }
}

// WithExcludedDirs keeps the walk out of dirs, such as a data or thumbnail
// directory placed inside the library. Directories outside the root are
// ignored.
func WithExcludedDirs(dirs ...string) Option {
	return func(idx *Indexer) { idx.excluded = append(idx.excluded, dirs...) }
}

// WithThumbnailer sets the thumbnail generator.
func WithThumbnailer(t Thumbnailer) Option {
	return func(idx *Indexer) { idx.thumbs = t }
}

// WithExtractor replaces the default metadata extractor.
func WithExtractor(e MetadataExtractor) Option {
	return func(idx *Indexer) {
		if e != nil {
			idx.extractor = e
		}
	}
}

// WithHasher replaces the content fingerprint function.
func WithHasher(h func(path string) (string, error)) Option {
	return func(idx *Indexer) {
		if h != nil {
			idx.hasher = h
		}
	}
}

// WithWorkers pins the worker count. Zero or less selects it from the
// available CPUs.
func WithWorkers(n int) Option {
	return func(idx *Indexer) { idx.numWorkers = workers.ForScan(n, 0) }
}

// WithBatchSize sets the number of records per commit.
func WithBatchSize(n int) Option {
	return func(idx *Indexer) {
		if n > 0 {
			idx.batchSize = n
		}
	}
}

// WithMemoryMonitor makes workers wait before taking a file while the
// monitor reports memory pressure.
func WithMemoryMonitor(m *memory.Monitor) Option {
	return func(idx *Indexer) { idx.monitor = m }
}

// WithClock sets the clock used for run timestamps and the scan-time
// fallback of the default extractor.
func WithClock(now func() time.Time) Option {
	return func(idx *Indexer) {
		if now != nil {
			idx.now = now
		}
	}
}

// New creates an Indexer writing to store.
func New(store catalog.Store, opts ...Option) *Indexer {
	idx := &Indexer{
		store:      store,
		hasher:     fingerprint.File,
		numWorkers: workers.ForScan(0, 0),
		batchSize:  DefaultBatchSize,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(idx)
	}
	if idx.extractor == nil {
		idx.extractor = metadata.NewExtractor(idx.now)
	}
	idx.runID.Store("")
	idx.startedAt.Store(time.Time{})
	return idx
}

// Root returns the configured library root.
func (idx *Indexer) Root() string {
	return idx.root
}

// validate checks the configuration before any file is touched.
func (idx *Indexer) validate() error {
	if idx.store == nil {
		return fmt.Errorf("%w: catalog store not configured", catalog.ErrConfiguration)
	}
	if idx.thumbs == nil {
		return fmt.Errorf("%w: thumbnail generator not configured", catalog.ErrConfiguration)
	}
	if idx.root == "" {
		return fmt.Errorf("%w: library root not configured", catalog.ErrConfiguration)
	}
	info, err := os.Stat(idx.root)
	if err != nil {
		return fmt.Errorf("%w: library root %s: %v", catalog.ErrConfiguration, idx.root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: library root %s is not a directory", catalog.ErrConfiguration, idx.root)
	}
	return nil
}

// Run performs one scan of the library root.
//
// A configuration problem or an unreadable catalog aborts the run before any
// file is processed. File-level failures are counted in the outcome and never
// abort the run. When ctx is cancelled the walk stops, files already being
// processed finish, staged records are committed, and Run returns the
// partial outcome with Aborted set together with ctx.Err().
func (idx *Indexer) Run(ctx context.Context) (Outcome, error) {
	if err := idx.validate(); err != nil {
		metrics.ScanRunsTotal.WithLabelValues("failed").Inc()
		return Outcome{Aborted: true}, err
	}

	if !idx.tryStartIndexing() {
		return Outcome{}, ErrScanInProgress
	}
	defer idx.finishIndexing()

	metrics.ScanIsRunning.Set(1)
	defer metrics.ScanIsRunning.Set(0)

	out := Outcome{
		RunID:     uuid.NewString(),
		StartedAt: idx.now(),
	}
	idx.resetProgress(out)
	logging.Info("Starting scan %s of %s (%d workers, batch size %d)",
		out.RunID, idx.root, idx.numWorkers, idx.batchSize)

	snap, err := idx.store.SnapshotPaths(ctx)
	if err != nil {
		out.Aborted = true
		idx.finalize(&out, "failed")
		return out, fmt.Errorf("snapshot catalog: %w", err)
	}
	logging.Debug("Catalog snapshot: %d known paths", snap.Len())

	t, err := idx.scan(ctx, snap)
	out.Added, out.Updated, out.Skipped, out.Errors = t.added, t.updated, t.skipped, t.errors

	result := "completed"
	if err != nil {
		out.Aborted = true
		result = "aborted"
	}
	idx.finalize(&out, result)
	return out, err
}

// finalize records the outcome, metrics and the summary log line.
func (idx *Indexer) finalize(out *Outcome, result string) {
	out.Duration = time.Since(out.StartedAt)
	if out.Duration < 0 {
		out.Duration = 0
	}

	metrics.ScanRunsTotal.WithLabelValues(result).Inc()
	metrics.ScanLastRunTimestamp.Set(float64(time.Now().Unix()))
	metrics.ScanLastRunDuration.Set(out.Duration.Seconds())

	idx.indexMu.Lock()
	idx.lastOutcome = *out
	idx.hasOutcome = true
	idx.lastIndexTime = time.Now()
	idx.indexMu.Unlock()

	logging.Info("Scan %s %s: added=%d updated=%d skipped=%d errors=%d in %v",
		out.RunID, result, out.Added, out.Updated, out.Skipped, out.Errors, out.Duration.Round(time.Millisecond))
	if idx.monitor != nil {
		current, limit, usage := idx.monitor.GetStats()
		logging.Debug("Memory after scan %s: heap=%d limit=%d usage=%.1f%%", out.RunID, current, limit, usage*100)
	}
}

// RunPeriodic runs a scan immediately and then every interval until ctx is
// done. Each outcome is passed to report, which may be nil.
func (idx *Indexer) RunPeriodic(ctx context.Context, interval time.Duration, report func(Outcome, error)) {
	runOnce := func() {
		out, err := idx.Run(ctx)
		if report != nil {
			report(out, err)
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error("periodic scan failed: %v", err)
		}
	}

	runOnce()
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			logging.Debug("Periodic re-scan triggered")
			runOnce()
		case <-ctx.Done():
			return
		}
	}
}

// tryStartIndexing attempts to start indexing, returns false if already in progress.
func (idx *Indexer) tryStartIndexing() bool {
	idx.indexMu.Lock()
	defer idx.indexMu.Unlock()

	if idx.isIndexing {
		return false
	}
	idx.isIndexing = true
	return true
}

// finishIndexing marks indexing as complete.
func (idx *Indexer) finishIndexing() {
	idx.indexMu.Lock()
	defer idx.indexMu.Unlock()
	idx.isIndexing = false
}

// IsIndexing returns whether a scan is currently in progress.
func (idx *Indexer) IsIndexing() bool {
	idx.indexMu.Lock()
	defer idx.indexMu.Unlock()
	return idx.isIndexing
}

// LastOutcome returns the outcome of the most recent run, if any.
func (idx *Indexer) LastOutcome() (Outcome, bool) {
	idx.indexMu.Lock()
	defer idx.indexMu.Unlock()
	return idx.lastOutcome, idx.hasOutcome
}

// LastIndexTime returns the time the most recent run finished.
func (idx *Indexer) LastIndexTime() time.Time {
	idx.indexMu.Lock()
	defer idx.indexMu.Unlock()
	return idx.lastIndexTime
}

func (idx *Indexer) resetProgress(out Outcome) {
	idx.runID.Store(out.RunID)
	idx.startedAt.Store(out.StartedAt)
	idx.discovered.Store(0)
	idx.processed.Store(0)
}

// Progress returns the progress of the current (or last) scan.
func (idx *Indexer) Progress() Progress {
	runID, _ := idx.runID.Load().(string)
	startedAt, _ := idx.startedAt.Load().(time.Time)
	return Progress{
		RunID:      runID,
		Discovered: idx.discovered.Load(),
		Processed:  idx.processed.Load(),
		IsIndexing: idx.IsIndexing(),
		StartedAt:  startedAt,
	}
}
