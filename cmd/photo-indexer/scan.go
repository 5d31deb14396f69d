package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"photo-indexer/internal/database"
	"photo-indexer/internal/filesystem"
	"photo-indexer/internal/indexer"
	"photo-indexer/internal/logging"
	"photo-indexer/internal/memory"
	"photo-indexer/internal/metadata"
	"photo-indexer/internal/metrics"
	"photo-indexer/internal/startup"
	"photo-indexer/internal/thumbnail"
	"photo-indexer/internal/workers"
)

func newScanCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan the library and update the catalog",
		Long: `Walks the library root, fingerprints every supported image and brings
the catalog and thumbnail store up to date.

Exit status is 0 for a clean run, 1 when the run was aborted or the
configuration is invalid, and 2 when the run completed but some files
could not be indexed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			return runScan(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.String("interval", "", "re-scan periodically at this interval (e.g. 30m) until interrupted")
	flags.Int("workers", 0, "number of file workers (0 = automatic)")
	flags.Int("batch-size", 0, "records per catalog commit")

	_ = a.v.BindPFlag("scan.interval", flags.Lookup("interval"))
	_ = a.v.BindPFlag("scan.workers", flags.Lookup("workers"))
	_ = a.v.BindPFlag("scan.batch_size", flags.Lookup("batch-size"))

	return cmd
}

// runScan wires the pipeline from cfg and runs it once or periodically.
func runScan(ctx context.Context, cfg *startup.Config) error {
	startup.LogStartup()
	startup.LogMemoryConfig(memory.ConfigureFromEnv())
	startup.LogConfig(cfg)

	interval, err := cfg.ScanInterval()
	if err != nil {
		return &exitError{code: exitFailure, err: err}
	}
	loc, err := cfg.Location()
	if err != nil {
		return &exitError{code: exitFailure, err: err}
	}
	// Before the lock and database so a bad root leaves nothing behind
	if err := cfg.CheckLibrary(); err != nil {
		return &exitError{code: exitFailure, err: err}
	}

	lock, err := filesystem.Lock(cfg.LockPath())
	if err != nil {
		if errors.Is(err, filesystem.ErrLocked) {
			return &exitError{code: exitFailure, err: fmt.Errorf("another scan is running: %w", err)}
		}
		return &exitError{code: exitFailure, err: err}
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logging.Warn("Failed to release scan lock: %v", err)
		}
	}()

	dbStart := time.Now()
	db, err := database.New(ctx, cfg.DatabasePath)
	if err != nil {
		return &exitError{code: exitFailure, err: err}
	}
	defer db.Close()
	startup.LogDatabaseInit(cfg.DatabasePath, time.Since(dbStart))

	monitor := memory.NewMonitor(memory.DefaultConfig())
	monitor.Start()
	defer monitor.Stop()

	var decoder thumbnail.Decoder = thumbnail.NewImagingDecoder()
	if cfg.Thumbnail.UseVips {
		if err := thumbnail.InitVips(); err != nil {
			logging.Warn("libvips unavailable, decoding with imaging: %v", err)
		} else {
			defer thumbnail.ShutdownVips()
			decoder = thumbnail.NewVipsDecoder()
		}
	}

	thumbs := thumbnail.New(cfg.ThumbnailDir,
		thumbnail.WithSize(cfg.Thumbnail.Size),
		thumbnail.WithQuality(cfg.Thumbnail.Quality),
		thumbnail.WithDecoder(decoder),
		thumbnail.WithMemoryMonitor(monitor),
	)
	startup.LogThumbnailInit(thumbs.Root(), decoder.Name(), thumbs.Size(), cfg.Thumbnail.Quality)

	extractor := metadata.NewExtractor(time.Now)
	extractor.Location = loc

	idx := indexer.New(db,
		indexer.WithRoot(cfg.LibraryDir),
		indexer.WithExcludedDirs(cfg.DataDir, cfg.ThumbnailDir, filepath.Dir(cfg.DatabasePath)),
		indexer.WithThumbnailer(thumbs),
		indexer.WithExtractor(extractor),
		indexer.WithWorkers(cfg.Scan.Workers),
		indexer.WithBatchSize(cfg.Scan.BatchSize),
		indexer.WithMemoryMonitor(monitor),
	)
	startup.LogIndexerInit(workers.ForScan(cfg.Scan.Workers, 0), cfg.Scan.BatchSize, interval)

	build := startup.GetBuildInfo()
	metrics.SetAppInfo(build.Version, build.Commit, build.GoVersion)
	metrics.InitializeMetrics()
	filesystem.SetDefaultVolumeResolver(filesystem.NewVolumeResolver(map[string]string{
		"library":    cfg.LibraryDir,
		"thumbnails": cfg.ThumbnailDir,
		"database":   filepath.Dir(cfg.DatabasePath),
	}))
	filesystem.SetObserver(metrics.NewFilesystemObserver())
	defer filesystem.SetObserver(nil)

	collector := metrics.NewCollector(db, cfg.DatabasePath, time.Minute)

	var (
		last    indexer.Outcome
		lastErr error
	)
	idx.RunPeriodic(ctx, interval, func(out indexer.Outcome, err error) {
		last, lastErr = out, err
		// Persist even when ctx was cancelled mid-run.
		recordOutcome(context.WithoutCancel(ctx), db, collector, cfg, out)
	})

	if ctx.Err() != nil {
		startup.LogShutdownComplete()
	}
	return scanResult(last, lastErr)
}

// recordOutcome stores the run summary and exports metrics.
func recordOutcome(ctx context.Context, db *database.Database, collector *metrics.Collector, cfg *startup.Config, out indexer.Outcome) {
	if out.RunID != "" {
		rec := database.ScanRecord{
			RunID:      out.RunID,
			StartedAt:  out.StartedAt,
			Duration:   out.Duration,
			Added:      out.Added,
			Updated:    out.Updated,
			Skipped:    out.Skipped,
			Errors:     out.Errors,
			Aborted:    out.Aborted,
			LibraryDir: cfg.LibraryDir,
		}
		if err := db.SetLastScan(ctx, rec); err != nil {
			logging.Warn("Failed to record scan summary: %v", err)
		}
	}

	if cfg.Metrics.Textfile == "" {
		return
	}
	collector.Collect(ctx)
	if err := metrics.WriteTextfile(cfg.Metrics.Textfile); err != nil {
		logging.Warn("Failed to write metrics textfile: %v", err)
	}
}

// scanResult maps a run outcome to the command error and exit status.
func scanResult(out indexer.Outcome, err error) error {
	switch {
	case err != nil:
		return &exitError{code: exitFailure, err: fmt.Errorf("scan aborted: %w", err)}
	case out.Aborted:
		return &exitError{code: exitFailure, err: errors.New("scan aborted")}
	case out.HasErrors():
		return &exitError{code: exitFileErrors, err: fmt.Errorf("scan completed with %d file errors", out.Errors)}
	default:
		return nil
	}
}
