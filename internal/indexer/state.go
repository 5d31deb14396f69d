package indexer

import (
	"context"
	"fmt"
	"time"

	"photo-indexer/internal/catalog"
	"photo-indexer/internal/logging"
	"photo-indexer/internal/mediatypes"
	"photo-indexer/internal/metadata"
	"photo-indexer/internal/metrics"
)

// fileState is a step of the per-file pipeline:
//
//	discovered -> hashed -> classified -> extracted -> thumbnailed -> staged
//
// skipped and failed are terminal; staged is terminal for the worker and
// becomes committed or failed in the committer.
type fileState int

const (
	stateDiscovered fileState = iota
	stateHashed
	stateClassified
	stateExtracted
	stateThumbnailed
	stateStaged
	stateSkipped
	stateFailed
)

func (s fileState) String() string {
	switch s {
	case stateDiscovered:
		return "discovered"
	case stateHashed:
		return "hashed"
	case stateClassified:
		return "classified"
	case stateExtracted:
		return "extracted"
	case stateThumbnailed:
		return "thumbnailed"
	case stateStaged:
		return "staged"
	case stateSkipped:
		return "skipped"
	case stateFailed:
		return "failed"
	default:
		return fmt.Sprintf("fileState(%d)", int(s))
	}
}

func (s fileState) terminal() bool {
	return s == stateStaged || s == stateSkipped || s == stateFailed
}

// fileTask carries one file through the pipeline. It is owned by a single
// worker until it reaches a terminal state.
type fileTask struct {
	job      fileJob
	state    fileState
	hash     string
	class    catalog.Classification
	meta     metadata.Metadata
	thumbErr error
	entry    catalog.Entry
	err      error
}

func (t *fileTask) fail(err error) {
	t.err = err
	t.state = stateFailed
}

// process drives job to a terminal state. A panic anywhere in the pipeline
// fails only this file.
func (idx *Indexer) process(ctx context.Context, snap catalog.Snapshot, job fileJob) (t *fileTask) {
	t = &fileTask{job: job, state: stateDiscovered}
	defer func() {
		if r := recover(); r != nil {
			t.fail(fmt.Errorf("panic while %s: %v", t.state, r))
		}
	}()

	for !t.state.terminal() {
		idx.step(ctx, snap, t)
	}
	return t
}

// step performs exactly one transition.
func (idx *Indexer) step(ctx context.Context, snap catalog.Snapshot, t *fileTask) {
	switch t.state {
	case stateDiscovered:
		start := time.Now()
		hash, err := idx.hasher(t.job.path)
		metrics.ScanStageDuration.WithLabelValues("hash").Observe(time.Since(start).Seconds())
		if err != nil {
			t.fail(err)
			return
		}
		t.hash = hash
		t.state = stateHashed

	case stateHashed:
		t.class = snap.Classify(t.job.relPath, t.hash)
		// An unchanged file is only revisited when its thumbnail is missing.
		if t.class == catalog.Unchanged && idx.thumbs.Exists(t.hash) {
			t.state = stateSkipped
			return
		}
		t.state = stateClassified

	case stateClassified:
		start := time.Now()
		t.meta = idx.extractor.Extract(t.job.path, t.job.info)
		metrics.ScanStageDuration.WithLabelValues("extract").Observe(time.Since(start).Seconds())
		t.state = stateExtracted

	case stateExtracted:
		start := time.Now()
		t.thumbErr = idx.thumbs.Ensure(ctx, t.job.path, t.hash, t.meta.Orientation)
		metrics.ScanStageDuration.WithLabelValues("thumbnail").Observe(time.Since(start).Seconds())
		t.state = stateThumbnailed

	case stateThumbnailed:
		if t.thumbErr != nil {
			if t.class == catalog.Unchanged {
				logging.Debug("Thumbnail still unavailable for %s: %v", t.job.relPath, t.thumbErr)
				t.state = stateSkipped
				return
			}
			logging.Warn("Thumbnail failed for %s: %v", t.job.relPath, t.thumbErr)
		}
		t.entry = idx.buildEntry(t)
		t.state = stateStaged

	default:
		t.fail(fmt.Errorf("unexpected state %s", t.state))
	}
}

func (idx *Indexer) buildEntry(t *fileTask) catalog.Entry {
	return catalog.Entry{
		RelativePath:     t.job.relPath,
		Filename:         t.job.info.Name(),
		ContentHash:      t.hash,
		MimeType:         mediatypes.GetMimeType(mediatypes.Ext(t.job.info.Name())),
		CaptureTimestamp: t.meta.CaptureTimestamp,
		TimestampSource:  t.meta.TimestampSource,
		Width:            t.meta.Width,
		Height:           t.meta.Height,
		Orientation:      t.meta.Orientation,
		FileSizeBytes:    t.job.info.Size(),
		ThumbnailReady:   t.thumbErr == nil,
		RawMetadata:      t.meta.Raw,
	}
}
