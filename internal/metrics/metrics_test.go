package metrics

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"photo-indexer/internal/catalog"
)

func TestScanMetricsExist(t *testing.T) {
	tests := []struct {
		name   string
		metric interface{}
	}{
		{"ScanRunsTotal", ScanRunsTotal},
		{"ScanLastRunTimestamp", ScanLastRunTimestamp},
		{"ScanLastRunDuration", ScanLastRunDuration},
		{"ScanFilesTotal", ScanFilesTotal},
		{"ScanStageDuration", ScanStageDuration},
		{"ScanIsRunning", ScanIsRunning},
		{"ScanBatchCommitsTotal", ScanBatchCommitsTotal},
		{"ScanBatchSize", ScanBatchSize},
		{"ThumbnailGenerationsTotal", ThumbnailGenerationsTotal},
		{"ThumbnailGenerationDuration", ThumbnailGenerationDuration},
		{"DBQueryTotal", DBQueryTotal},
		{"DBTransactionDuration", DBTransactionDuration},
		{"CatalogEntriesTotal", CatalogEntriesTotal},
		{"MemoryPaused", MemoryPaused},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.metric == nil {
				t.Errorf("%s metric is nil", tt.name)
			}
		})
	}
}

func TestInitializeMetricsDoesNotPanic(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("InitializeMetrics panicked: %v", r)
		}
	}()
	InitializeMetrics()
	InitializeMetrics()
}

func TestWriteTextfileFrom(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "photo_indexer_test_counter_total",
		Help: "test counter",
	})
	reg.MustRegister(counter)
	counter.Add(3)

	path := filepath.Join(t.TempDir(), "nested", "indexer.prom")
	if err := WriteTextfileFrom(reg, path); err != nil {
		t.Fatalf("WriteTextfileFrom() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read textfile: %v", err)
	}
	if !strings.Contains(string(data), "photo_indexer_test_counter_total 3") {
		t.Errorf("textfile missing counter sample:\n%s", data)
	}
}

func TestWriteTextfileEmptyPath(t *testing.T) {
	if err := WriteTextfile(""); err != nil {
		t.Errorf("WriteTextfile(\"\") error = %v, want nil", err)
	}
}

type fakeStats struct {
	stats catalog.Stats
	err   error
}

func (f fakeStats) Stats(context.Context) (catalog.Stats, error) {
	return f.stats, f.err
}

func TestCollectorCollect(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "catalog.db")
	if err := os.WriteFile(dbPath, make([]byte, 2048), 0o644); err != nil {
		t.Fatalf("failed to create db file: %v", err)
	}

	c := NewCollector(fakeStats{stats: catalog.Stats{
		TotalEntries:    42,
		ThumbnailsReady: 40,
		TotalBytes:      1234,
	}}, dbPath, 0)
	c.Collect(context.Background())

	out := filepath.Join(dir, "out.prom")
	if err := WriteTextfile(out); err != nil {
		t.Fatalf("WriteTextfile() error = %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("failed to read textfile: %v", err)
	}

	for _, want := range []string{
		"photo_indexer_catalog_entries 42",
		"photo_indexer_catalog_thumbnails_ready 40",
		"photo_indexer_catalog_bytes 1234",
		`photo_indexer_db_size_bytes{file="main"} 2048`,
		`photo_indexer_db_size_bytes{file="wal"} 0`,
	} {
		if !strings.Contains(string(data), want) {
			t.Errorf("textfile missing %q", want)
		}
	}
}

func TestCollectorCollectStatsError(t *testing.T) {
	c := NewCollector(fakeStats{err: errors.New("db closed")}, "", 0)
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("Collect panicked: %v", r)
		}
	}()
	c.Collect(context.Background())
}

func TestCollectorStartStop(t *testing.T) {
	c := NewCollector(nil, "", 10*time.Millisecond)
	c.Start()
	c.Stop()
}

func TestFilesystemObserver(t *testing.T) {
	o := NewFilesystemObserver()
	o.ObserveOperation("library", "stat", 0.001, nil)
	o.ObserveOperation("library", "stat", 0.001, errors.New("boom"))
	o.ObserveRetryAttempt("open", "library")
	o.ObserveRetrySuccess("open", "library")
	o.ObserveRetryFailure("open", "library")
	o.ObserveRetryDuration("open", "library", 0.05)
	o.ObserveStaleError("open", "library")
}
