package indexer

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"photo-indexer/internal/catalog"
	"photo-indexer/internal/logging"
	"photo-indexer/internal/mediatypes"
	"photo-indexer/internal/metrics"
)

// fileJob is a supported file found by the walker.
type fileJob struct {
	path    string
	relPath string
	info    os.FileInfo
}

// tally holds run counters. Only the committer goroutine writes it while
// the scan is running.
type tally struct {
	added   int
	updated int
	skipped int
	errors  int
}

// scan walks the library, fans files out to workers and commits their
// records through a single committer so batches land in order.
func (idx *Indexer) scan(ctx context.Context, snap catalog.Snapshot) (tally, error) {
	// Files already in flight finish and staged records are committed even
	// after ctx is cancelled.
	workCtx := context.WithoutCancel(ctx)

	jobs := make(chan fileJob, idx.numWorkers*4)
	results := make(chan *fileTask, idx.numWorkers*4)

	var wg sync.WaitGroup
	for i := 0; i < idx.numWorkers; i++ {
		wg.Add(1)
		go idx.worker(ctx, workCtx, i, snap, jobs, results, &wg)
	}

	var t tally
	committerDone := make(chan struct{})
	go func() {
		defer close(committerDone)
		idx.commitLoop(workCtx, results, &t)
	}()

	walkErrors, walkErr := idx.walk(ctx, jobs)

	close(jobs)
	wg.Wait()
	close(results)
	<-committerDone

	t.errors += walkErrors
	if walkErr != nil {
		return t, walkErr
	}
	return t, ctx.Err()
}

// walk sends every supported regular file under the root to
// jobs. It returns the number of unreadable entries and an error only when
// the walk itself was cut short.
func (idx *Indexer) walk(ctx context.Context, jobs chan<- fileJob) (int, error) {
	unreadable := 0

	// WalkDir does not descend into a symlinked root
	root := idx.root
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}

	excluded := idx.excludedDirs()

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return fs.SkipAll
		}

		if err != nil {
			if path == root {
				return err
			}
			logging.Error("Failed to read %s: %v", path, err)
			unreadable++
			metrics.ScanFilesTotal.WithLabelValues("error").Inc()
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if path == root {
			return nil
		}

		if d.IsDir() && excluded[path] {
			logging.Debug("Skipping excluded directory %s", path)
			return filepath.SkipDir
		}

		if d.IsDir() || !mediatypes.IsSupported(d.Name()) {
			return nil
		}

		info, err := regularFileInfo(path, d)
		if err != nil {
			logging.Error("Failed to stat %s: %v", path, err)
			unreadable++
			metrics.ScanFilesTotal.WithLabelValues("error").Inc()
			return nil
		}
		if info == nil {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			logging.Error("Failed to relativize %s: %v", path, err)
			unreadable++
			return nil
		}

		idx.discovered.Add(1)
		select {
		case jobs <- fileJob{path: path, relPath: catalog.NormalizePath(filepath.ToSlash(rel)), info: info}:
		case <-ctx.Done():
			return fs.SkipAll
		}
		return nil
	})

	if errors.Is(err, fs.SkipAll) {
		err = nil
	}
	return unreadable, err
}

// regularFileInfo returns the file info for a regular file, following a
// symlink. Anything else yields nil, nil.
func regularFileInfo(path string, d fs.DirEntry) (os.FileInfo, error) {
	if d.Type()&fs.ModeSymlink != 0 {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		if !info.Mode().IsRegular() {
			return nil, nil
		}
		return info, nil
	}
	if !d.Type().IsRegular() {
		return nil, nil
	}
	return d.Info()
}

// worker processes jobs until the channel is closed. After ctx is cancelled
// remaining jobs are drained without being processed.
func (idx *Indexer) worker(ctx, workCtx context.Context, id int, snap catalog.Snapshot,
	jobs <-chan fileJob, results chan<- *fileTask, wg *sync.WaitGroup) {
	defer wg.Done()

	logging.Debug("Worker %d started", id)

	for job := range jobs {
		if ctx.Err() != nil {
			continue
		}
		if err := idx.monitor.WaitIfPaused(ctx); err != nil {
			continue
		}
		results <- idx.process(workCtx, snap, job)
	}

	logging.Debug("Worker %d finished", id)
}

// commitLoop consumes finished tasks, batches staged records and flushes
// them. It is the only writer of t.
func (idx *Indexer) commitLoop(ctx context.Context, results <-chan *fileTask, t *tally) {
	batch := make([]*fileTask, 0, idx.batchSize)

	for task := range results {
		switch task.state {
		case stateSkipped:
			t.skipped++
			metrics.ScanFilesTotal.WithLabelValues("skipped").Inc()
		case stateFailed:
			t.errors++
			metrics.ScanFilesTotal.WithLabelValues("error").Inc()
			logging.Error("Failed to index %s: %v", task.job.relPath, task.err)
		case stateStaged:
			batch = append(batch, task)
			if len(batch) >= idx.batchSize {
				idx.flush(ctx, batch, t)
				batch = batch[:0]
			}
		}

		if n := idx.processed.Add(1); n%progressLogEvery == 0 {
			logging.Info("Scan progress: %d/%d files processed", n, idx.discovered.Load())
		}
	}

	idx.flush(ctx, batch, t)
}

// flush commits staged records atomically. On failure every record in the
// batch is counted as an error; they are retried on the next run because
// the catalog did not change.
func (idx *Indexer) flush(ctx context.Context, batch []*fileTask, t *tally) {
	if len(batch) == 0 {
		return
	}

	entries := make([]catalog.Entry, len(batch))
	for i, task := range batch {
		entries[i] = task.entry
	}

	start := time.Now()
	err := idx.store.BatchUpsert(ctx, entries)
	metrics.ScanStageDuration.WithLabelValues("commit").Observe(time.Since(start).Seconds())
	metrics.ScanBatchSize.Observe(float64(len(batch)))

	if err != nil {
		metrics.ScanBatchCommitsTotal.WithLabelValues("error").Inc()
		logging.Error("Failed to commit batch of %d records: %v", len(batch), err)
		for _, task := range batch {
			logging.Error("Failed to index %s: %v", task.job.relPath, err)
		}
		t.errors += len(batch)
		metrics.ScanFilesTotal.WithLabelValues("error").Add(float64(len(batch)))
		return
	}

	metrics.ScanBatchCommitsTotal.WithLabelValues("success").Inc()
	for _, task := range batch {
		if task.class == catalog.New {
			t.added++
			metrics.ScanFilesTotal.WithLabelValues("added").Inc()
		} else {
			t.updated++
			metrics.ScanFilesTotal.WithLabelValues("updated").Inc()
		}
	}
	logging.Debug("Committed batch of %d records", len(batch))
}

// excludedDirs resolves the excluded directories the same way the root is
// resolved so they compare equal to walk paths.
func (idx *Indexer) excludedDirs() map[string]bool {
	set := make(map[string]bool, len(idx.excluded))
	for _, dir := range idx.excluded {
		if dir == "" {
			continue
		}
		abs, err := filepath.Abs(dir)
		if err != nil {
			continue
		}
		if resolved, err := filepath.EvalSymlinks(abs); err == nil {
			abs = resolved
		}
		set[filepath.Clean(abs)] = true
	}
	return set
}
