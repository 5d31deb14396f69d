package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"photo-indexer/internal/catalog"
	"photo-indexer/internal/database"
	"photo-indexer/internal/fingerprint"
	"photo-indexer/internal/metadata"
	"photo-indexer/internal/testutil"
	"photo-indexer/internal/thumbnail"
)

// memStore is an in-memory catalog.Store.
type memStore struct {
	mu          sync.Mutex
	entries     map[string]catalog.Entry
	nextID      int64
	batches     []int
	failBatches int
	snapshotErr error
	snapshots   int
}

func newMemStore() *memStore {
	return &memStore{entries: make(map[string]catalog.Entry)}
}

func (s *memStore) SnapshotPaths(context.Context) (catalog.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots++
	if s.snapshotErr != nil {
		return nil, s.snapshotErr
	}
	snap := make(catalog.Snapshot, len(s.entries))
	for p, e := range s.entries {
		snap[p] = e.ContentHash
	}
	return snap, nil
}

func (s *memStore) Upsert(ctx context.Context, e catalog.Entry) error {
	return s.BatchUpsert(ctx, []catalog.Entry{e})
}

func (s *memStore) BatchUpsert(_ context.Context, entries []catalog.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failBatches > 0 {
		s.failBatches--
		return catalog.ErrCommitFailure
	}
	s.batches = append(s.batches, len(entries))
	for _, e := range entries {
		if old, ok := s.entries[e.RelativePath]; ok {
			e.ID = old.ID
		} else {
			s.nextID++
			e.ID = s.nextID
		}
		s.entries[e.RelativePath] = e
	}
	return nil
}

func (s *memStore) get(t *testing.T, rel string) catalog.Entry {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[rel]
	if !ok {
		t.Fatalf("no catalog entry for %s", rel)
	}
	return e
}

func (s *memStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

var fixedNow = time.Date(2030, 6, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	root   string
	thumbs *thumbnail.Generator
	store  *memStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return &fixture{
		root:   t.TempDir(),
		thumbs: thumbnail.New(t.TempDir()),
		store:  newMemStore(),
	}
}

func (f *fixture) indexer(opts ...Option) *Indexer {
	ex := metadata.NewExtractor(func() time.Time { return fixedNow })
	ex.Location = time.UTC
	base := []Option{
		WithRoot(f.root),
		WithThumbnailer(f.thumbs),
		WithExtractor(ex),
		WithWorkers(2),
		WithClock(func() time.Time { return fixedNow }),
	}
	return New(f.store, append(base, opts...)...)
}

func mustRun(t *testing.T, idx *Indexer) Outcome {
	t.Helper()
	out, err := idx.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	return out
}

func checkCounts(t *testing.T, out Outcome, added, updated, skipped, errs int) {
	t.Helper()
	if out.Added != added || out.Updated != updated || out.Skipped != skipped || out.Errors != errs {
		t.Errorf("outcome = added %d updated %d skipped %d errors %d, want %d %d %d %d",
			out.Added, out.Updated, out.Skipped, out.Errors, added, updated, skipped, errs)
	}
}

func TestRunEndToEnd(t *testing.T) {
	f := newFixture(t)
	testutil.WriteFile(t, f.root, "a.jpg", testutil.JPEG(t, 80, 40, &testutil.EXIF{
		Orientation:       6,
		DateTimeOriginal:  "2020:01:01 10:00:00",
		DateTimeDigitized: "2021:01:01 10:00:00",
	}))
	testutil.WriteFile(t, f.root, "sub/deeper/b.PNG", testutil.PNG(t, 20, 10, false))
	testutil.WriteFile(t, f.root, ".hidden.jpg", testutil.JPEG(t, 8, 8, nil))
	testutil.WriteFile(t, f.root, ".cache/c.jpg", testutil.JPEG(t, 8, 8, nil))
	testutil.WriteFile(t, f.root, "notes.txt", []byte("not an image"))

	idx := f.indexer()
	out := mustRun(t, idx)
	checkCounts(t, out, 4, 0, 0, 0)
	if out.Aborted {
		t.Error("Aborted = true")
	}
	if out.RunID == "" {
		t.Error("RunID is empty")
	}
	if f.store.len() != 4 {
		t.Fatalf("catalog has %d entries, want 4", f.store.len())
	}
	// Dot-prefixed names are ordinary library content
	f.store.get(t, ".hidden.jpg")
	f.store.get(t, ".cache/c.jpg")

	a := f.store.get(t, "a.jpg")
	want := time.Date(2020, 1, 1, 10, 0, 0, 0, time.UTC)
	if !a.CaptureTimestamp.Equal(want) {
		t.Errorf("a.jpg CaptureTimestamp = %v, want %v", a.CaptureTimestamp, want)
	}
	if a.TimestampSource != catalog.TimestampExifOriginal {
		t.Errorf("a.jpg TimestampSource = %q", a.TimestampSource)
	}
	if !a.ThumbnailReady {
		t.Error("a.jpg ThumbnailReady = false")
	}
	if a.Width == nil || *a.Width != 80 || a.Height == nil || *a.Height != 40 {
		t.Errorf("a.jpg stored dimensions = %v x %v, want raw 80x40", a.Width, a.Height)
	}
	if a.Orientation != 6 || a.MimeType != "image/jpeg" || a.Filename != "a.jpg" {
		t.Errorf("a.jpg = %+v", a)
	}
	if !fingerprint.Valid(a.ContentHash) {
		t.Errorf("a.jpg ContentHash = %q", a.ContentHash)
	}

	artifact := filepath.Join(f.thumbs.Root(), a.ContentHash[0:2], a.ContentHash[2:4], a.ContentHash+".jpg")
	if _, err := os.Stat(artifact); err != nil {
		t.Errorf("artifact missing at %s: %v", artifact, err)
	}

	b := f.store.get(t, "sub/deeper/b.PNG")
	if b.MimeType != "image/png" || b.FileSizeBytes == 0 {
		t.Errorf("b.PNG = %+v", b)
	}

	again := mustRun(t, idx)
	checkCounts(t, again, 0, 0, 4, 0)
	if again.RunID == out.RunID {
		t.Error("RunID reused across runs")
	}

	last, ok := idx.LastOutcome()
	if !ok || last.RunID != again.RunID {
		t.Errorf("LastOutcome() = %+v, %v", last, ok)
	}
	if p := idx.Progress(); p.Discovered != 4 || p.Processed != 4 || p.IsIndexing {
		t.Errorf("Progress() = %+v", p)
	}
}

func TestRunSkipsOnlyExcludedDirs(t *testing.T) {
	f := newFixture(t)
	testutil.WriteFile(t, f.root, "a.png", testutil.PNG(t, 8, 8, false))
	testutil.WriteFile(t, f.root, ".trip/b.png", testutil.PNG(t, 9, 9, false))
	testutil.WriteFile(t, f.root, ".c.png", testutil.PNG(t, 10, 10, false))
	testutil.WriteFile(t, f.root, "data/thumbnails/00/00/thumb.jpg", testutil.JPEG(t, 8, 8, nil))

	idx := f.indexer(WithExcludedDirs(filepath.Join(f.root, "data"), filepath.Join(t.TempDir(), "elsewhere")))
	out := mustRun(t, idx)
	checkCounts(t, out, 3, 0, 0, 0)

	for _, rel := range []string{"a.png", ".trip/b.png", ".c.png"} {
		f.store.get(t, rel)
	}
	if f.store.len() != 3 {
		t.Errorf("catalog has %d entries, want 3", f.store.len())
	}
}

func TestRunIntoSQLiteKeepsModTime(t *testing.T) {
	ctx := context.Background()
	db, err := database.New(ctx, filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("database.New() error = %v", err)
	}
	defer db.Close()

	root := t.TempDir()
	path := testutil.WriteFile(t, root, "2019/photo.png", testutil.PNG(t, 12, 8, false))
	modTime := time.Date(2019, 5, 6, 7, 8, 9, 123456789, time.UTC)
	if err := os.Chtimes(path, modTime, modTime); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	// Whatever precision the filesystem kept is what must round-trip
	want := info.ModTime()

	ex := metadata.NewExtractor(func() time.Time { return fixedNow })
	ex.Location = time.UTC
	idx := New(db,
		WithRoot(root),
		WithThumbnailer(thumbnail.New(t.TempDir())),
		WithExtractor(ex),
		WithWorkers(2),
		WithClock(func() time.Time { return fixedNow }),
	)
	checkCounts(t, mustRun(t, idx), 1, 0, 0, 0)

	got, err := db.GetByPath(ctx, "2019/photo.png")
	if err != nil {
		t.Fatalf("GetByPath() error = %v", err)
	}
	if got.TimestampSource != catalog.TimestampModTime {
		t.Errorf("TimestampSource = %q, want %q", got.TimestampSource, catalog.TimestampModTime)
	}
	if !got.CaptureTimestamp.Equal(want) {
		t.Errorf("CaptureTimestamp = %v, want %v", got.CaptureTimestamp, want)
	}

	checkCounts(t, mustRun(t, idx), 0, 0, 1, 0)
}

func TestRunDetectsChange(t *testing.T) {
	f := newFixture(t)
	testutil.WriteFile(t, f.root, "keep.jpg", testutil.JPEG(t, 16, 16, nil))
	changing := testutil.WriteFile(t, f.root, "change.png", testutil.PNG(t, 16, 16, false))

	idx := f.indexer()
	mustRun(t, idx)
	before := f.store.get(t, "change.png")
	keep := f.store.get(t, "keep.jpg")

	data, err := os.ReadFile(changing)
	if err != nil {
		t.Fatal(err)
	}
	// PNG ignores trailing bytes after IEND
	if err := os.WriteFile(changing, append(data, 0x00), 0o644); err != nil {
		t.Fatal(err)
	}

	out := mustRun(t, idx)
	checkCounts(t, out, 0, 1, 1, 0)

	after := f.store.get(t, "change.png")
	if after.ID != before.ID {
		t.Errorf("changed file ID = %d, want %d", after.ID, before.ID)
	}
	if after.ContentHash == before.ContentHash {
		t.Error("content hash did not change")
	}
	if !after.ThumbnailReady {
		t.Error("ThumbnailReady = false after change")
	}
	if got := f.store.get(t, "keep.jpg"); got != keep {
		t.Errorf("unchanged entry modified: %+v -> %+v", keep, got)
	}
}

func TestRunCorruptImageIsStagedWithoutThumbnail(t *testing.T) {
	f := newFixture(t)
	path := testutil.WriteFile(t, f.root, "broken.jpg", []byte("garbage"))
	mtime := time.Date(2019, 3, 4, 5, 6, 7, 0, time.UTC)
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatal(err)
	}

	idx := f.indexer()
	out := mustRun(t, idx)
	checkCounts(t, out, 1, 0, 0, 0)

	e := f.store.get(t, "broken.jpg")
	if e.ThumbnailReady {
		t.Error("ThumbnailReady = true for corrupt image")
	}
	if e.Width != nil || e.Height != nil {
		t.Errorf("dimensions = %v x %v, want nil", e.Width, e.Height)
	}
	if !e.CaptureTimestamp.Equal(mtime) || e.TimestampSource != catalog.TimestampModTime {
		t.Errorf("capture = %v (%s), want %v from mod_time", e.CaptureTimestamp, e.TimestampSource, mtime)
	}

	// Still broken: retried, then skipped rather than counted again.
	out = mustRun(t, idx)
	checkCounts(t, out, 0, 0, 1, 0)
}

func TestRunRepairsMissingThumbnail(t *testing.T) {
	f := newFixture(t)
	testutil.WriteFile(t, f.root, "a.jpg", testutil.JPEG(t, 16, 16, nil))

	idx := f.indexer()
	mustRun(t, idx)
	hash := f.store.get(t, "a.jpg").ContentHash

	if err := os.RemoveAll(f.thumbs.Root()); err != nil {
		t.Fatal(err)
	}

	out := mustRun(t, idx)
	checkCounts(t, out, 0, 1, 0, 0)
	if !f.thumbs.Exists(hash) {
		t.Error("thumbnail not regenerated")
	}
}

func TestRunDuplicateContentSharesThumbnail(t *testing.T) {
	f := newFixture(t)
	data := testutil.JPEG(t, 16, 16, nil)
	testutil.WriteFile(t, f.root, "one.jpg", data)
	testutil.WriteFile(t, f.root, "copy/one.jpg", data)

	out := mustRun(t, f.indexer())
	checkCounts(t, out, 2, 0, 0, 0)

	a, b := f.store.get(t, "one.jpg"), f.store.get(t, "copy/one.jpg")
	if a.ContentHash != b.ContentHash || !a.ThumbnailReady || !b.ThumbnailReady {
		t.Errorf("duplicate entries = %+v / %+v", a, b)
	}
}

func TestRunFileErrorsDoNotAbort(t *testing.T) {
	tests := []struct {
		name   string
		hasher func(path string) (string, error)
	}{
		{
			name: "hash failure",
			hasher: func(path string) (string, error) {
				if strings.HasSuffix(path, "bad.jpg") {
					return "", catalog.ErrIOFailure
				}
				return fingerprint.File(path)
			},
		},
		{
			name: "panic",
			hasher: func(path string) (string, error) {
				if strings.HasSuffix(path, "bad.jpg") {
					panic("boom")
				}
				return fingerprint.File(path)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			testutil.WriteFile(t, f.root, "good1.jpg", testutil.JPEG(t, 8, 8, nil))
			testutil.WriteFile(t, f.root, "bad.jpg", testutil.JPEG(t, 9, 9, nil))
			testutil.WriteFile(t, f.root, "good2.png", testutil.PNG(t, 8, 8, false))

			out := mustRun(t, f.indexer(WithHasher(tt.hasher)))
			checkCounts(t, out, 2, 0, 0, 1)
			if !out.HasErrors() || out.Aborted {
				t.Errorf("HasErrors() = %v, Aborted = %v", out.HasErrors(), out.Aborted)
			}
			if f.store.len() != 2 {
				t.Errorf("catalog has %d entries, want 2", f.store.len())
			}
		})
	}
}

func TestRunBatchFailureCountsEveryRecord(t *testing.T) {
	f := newFixture(t)
	for i, name := range []string{"a.jpg", "b.jpg", "c.jpg", "d.jpg", "e.jpg"} {
		testutil.WriteFile(t, f.root, name, testutil.JPEG(t, 8+i, 8, nil))
	}
	f.store.failBatches = 1

	idx := f.indexer(WithBatchSize(2), WithWorkers(1))
	out := mustRun(t, idx)
	checkCounts(t, out, 3, 0, 0, 2)
	if got := f.store.len(); got != 3 {
		t.Errorf("catalog has %d entries, want 3", got)
	}
	if want := []int{2, 1}; !equalInts(f.store.batches, want) {
		t.Errorf("committed batches = %v, want %v", f.store.batches, want)
	}

	// The failed records are new again on the next run.
	out = mustRun(t, idx)
	checkCounts(t, out, 2, 0, 3, 0)
}

func TestRunBatchesInOrderOfSize(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 5; i++ {
		testutil.WriteFile(t, f.root, filepath.Join("d", string(rune('a'+i))+".jpg"), testutil.JPEG(t, 8+i, 8, nil))
	}

	out := mustRun(t, f.indexer(WithBatchSize(2)))
	checkCounts(t, out, 5, 0, 0, 0)
	if want := []int{2, 2, 1}; !equalInts(f.store.batches, want) {
		t.Errorf("batches = %v, want %v", f.store.batches, want)
	}
}

func TestRunConfigurationErrors(t *testing.T) {
	f := newFixture(t)
	file := testutil.WriteFile(t, t.TempDir(), "file.jpg", []byte("x"))

	tests := []struct {
		name string
		idx  *Indexer
	}{
		{"missing root", New(f.store, WithRoot(filepath.Join(f.root, "nope")), WithThumbnailer(f.thumbs))},
		{"root is a file", New(f.store, WithRoot(file), WithThumbnailer(f.thumbs))},
		{"empty root", New(f.store, WithThumbnailer(f.thumbs))},
		{"no thumbnailer", New(f.store, WithRoot(f.root))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := tt.idx.Run(context.Background())
			if !errors.Is(err, catalog.ErrConfiguration) {
				t.Fatalf("Run() error = %v, want ErrConfiguration", err)
			}
			if !out.Aborted {
				t.Error("Aborted = false")
			}
		})
	}
	if f.store.snapshots != 0 {
		t.Errorf("catalog snapshot taken %d times on misconfiguration", f.store.snapshots)
	}
}

func TestRunSnapshotFailureAborts(t *testing.T) {
	f := newFixture(t)
	testutil.WriteFile(t, f.root, "a.jpg", testutil.JPEG(t, 8, 8, nil))
	f.store.snapshotErr = catalog.ErrStorageUnavailable

	out, err := f.indexer().Run(context.Background())
	if !errors.Is(err, catalog.ErrStorageUnavailable) {
		t.Fatalf("Run() error = %v, want ErrStorageUnavailable", err)
	}
	if !out.Aborted || out.Total() != 0 {
		t.Errorf("outcome = %+v", out)
	}
}

func TestRunCancelledFlushesInFlightWork(t *testing.T) {
	f := newFixture(t)
	for _, name := range []string{"a.jpg", "b.jpg", "c.jpg", "d.jpg"} {
		testutil.WriteFile(t, f.root, name, testutil.JPEG(t, 8, 8+int(name[0]-'a'), nil))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	hasher := func(path string) (string, error) {
		if calls.Add(1) == 1 {
			cancel()
		}
		return fingerprint.File(path)
	}

	out, err := f.indexer(WithWorkers(1), WithHasher(hasher)).Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if !out.Aborted {
		t.Error("Aborted = false")
	}
	// The file being processed when the cancel arrived is committed.
	checkCounts(t, out, 1, 0, 0, 0)
	if f.store.len() != 1 {
		t.Errorf("catalog has %d entries, want 1", f.store.len())
	}
}

func TestRunRejectsConcurrentRun(t *testing.T) {
	f := newFixture(t)
	testutil.WriteFile(t, f.root, "a.jpg", testutil.JPEG(t, 8, 8, nil))

	entered := make(chan struct{})
	release := make(chan struct{})
	hasher := func(path string) (string, error) {
		close(entered)
		<-release
		return fingerprint.File(path)
	}
	idx := f.indexer(WithWorkers(1), WithHasher(hasher))

	done := make(chan error, 1)
	go func() {
		_, err := idx.Run(context.Background())
		done <- err
	}()

	<-entered
	if !idx.IsIndexing() {
		t.Error("IsIndexing() = false during run")
	}
	if _, err := idx.Run(context.Background()); !errors.Is(err, ErrScanInProgress) {
		t.Errorf("second Run() error = %v, want ErrScanInProgress", err)
	}
	close(release)

	if err := <-done; err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	if idx.IsIndexing() {
		t.Error("IsIndexing() = true after run")
	}
}

func TestRunPeriodic(t *testing.T) {
	f := newFixture(t)
	testutil.WriteFile(t, f.root, "a.jpg", testutil.JPEG(t, 8, 8, nil))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var outcomes []Outcome
	report := func(out Outcome, err error) {
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("periodic run error = %v", err)
		}
		outcomes = append(outcomes, out)
		if len(outcomes) == 2 {
			cancel()
		}
	}

	f.indexer().RunPeriodic(ctx, 10*time.Millisecond, report)

	if len(outcomes) < 2 {
		t.Fatalf("got %d outcomes, want at least 2", len(outcomes))
	}
	checkCounts(t, outcomes[0], 1, 0, 0, 0)
	checkCounts(t, outcomes[1], 0, 0, 1, 0)
}

func TestRunPeriodicWithoutInterval(t *testing.T) {
	f := newFixture(t)
	runs := 0
	f.indexer().RunPeriodic(context.Background(), 0, func(Outcome, error) { runs++ })
	if runs != 1 {
		t.Errorf("runs = %d, want 1", runs)
	}
}

func TestFileStateString(t *testing.T) {
	states := []fileState{
		stateDiscovered, stateHashed, stateClassified, stateExtracted,
		stateThumbnailed, stateStaged, stateSkipped, stateFailed,
	}
	seen := make(map[string]bool)
	for _, s := range states {
		name := s.String()
		if seen[name] {
			t.Errorf("duplicate state name %q", name)
		}
		seen[name] = true
	}
	if got := fileState(99).String(); got != "fileState(99)" {
		t.Errorf("String() = %q", got)
	}

	var terminal []string
	for _, s := range states {
		if s.terminal() {
			terminal = append(terminal, s.String())
		}
	}
	sort.Strings(terminal)
	if strings.Join(terminal, ",") != "failed,skipped,staged" {
		t.Errorf("terminal states = %v", terminal)
	}
}

func TestOutcomeHelpers(t *testing.T) {
	out := Outcome{Added: 1, Updated: 2, Skipped: 3}
	if out.Total() != 6 || out.HasErrors() {
		t.Errorf("Total() = %d, HasErrors() = %v", out.Total(), out.HasErrors())
	}
	out.Errors = 1
	if !out.HasErrors() {
		t.Error("HasErrors() = false")
	}
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
