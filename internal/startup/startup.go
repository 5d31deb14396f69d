package startup

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"photo-indexer/internal/logging"
	"photo-indexer/internal/memory"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// String formats the build info for `version` output.
func (b BuildInfo) String() string {
	return fmt.Sprintf("photo-indexer %s (commit %s, built %s, %s %s/%s)",
		b.Version, b.Commit, b.BuildTime, b.GoVersion, b.OS, b.Arch)
}

// bannerOut is where the banner goes. Stdout is reserved for command output.
var bannerOut io.Writer = os.Stderr

// LogStartup prints the banner and system information.
func LogStartup() {
	printBanner()
	logSystemInfo()
}

// LogConfig logs the effective configuration.
func LogConfig(cfg *Config) {
	section("CONFIGURATION")
	logging.Info("  PHOTO_LIBRARY_PATH:  %s", cfg.LibraryDir)
	logging.Info("  DATA_STORAGE_PATH:   %s", cfg.DataDir)
	logging.Info("  THUMBNAIL_DIR:       %s", cfg.ThumbnailDir)
	logging.Info("  DATABASE_PATH:       %s", cfg.DatabasePath)
	logging.Info("  SCAN_WORKERS:        %s", autoString(cfg.Scan.Workers))
	logging.Info("  SCAN_BATCH_SIZE:     %d", cfg.Scan.BatchSize)
	logging.Info("  SCAN_INTERVAL:       %s", orNone(cfg.Scan.Interval))
	logging.Info("  SCAN_TIMEZONE:       %s", cfg.Scan.Timezone)
	logging.Info("  THUMBNAIL_SIZE:      %d", cfg.Thumbnail.Size)
	logging.Info("  THUMBNAIL_QUALITY:   %d", cfg.Thumbnail.Quality)
	logging.Info("  THUMBNAIL_USE_VIPS:  %v", cfg.Thumbnail.UseVips)
	logging.Info("  METRICS_TEXTFILE:    %s", orNone(cfg.Metrics.Textfile))
	logging.Info("  LOG_LEVEL:           %s", logging.GetLevel())
	logging.Info("  LOG_FILE:            %s", orNone(cfg.Log.File))

	if logging.IsDebugEnabled() {
		if info, err := os.Stat(cfg.LibraryDir); err == nil && info.IsDir() {
			if entries, err := os.ReadDir(cfg.LibraryDir); err == nil {
				files, dirs := 0, 0
				for _, e := range entries {
					if e.IsDir() {
						dirs++
					} else {
						files++
					}
				}
				logging.Debug("  Library contents: %d files, %d directories (top level)", files, dirs)
			}
		}
	}
}

// LogMemoryConfig logs how GOMEMLIMIT was configured.
func LogMemoryConfig(result memory.ConfigResult) {
	section("MEMORY")
	switch result.Source {
	case "GOMEMLIMIT":
		logging.Info("  GOMEMLIMIT:      %s (from environment)", formatBytes(result.GoMemLimit))
	case "MEMORY_LIMIT":
		logging.Info("  Container limit: %s", formatBytes(result.ContainerLimit))
		logging.Info("  GOMEMLIMIT:      %s (%.0f%%)", formatBytes(result.GoMemLimit), result.Ratio*100)
	default:
		logging.Info("  No memory limit configured (set MEMORY_LIMIT or GOMEMLIMIT)")
	}
}

// LogDatabaseInit logs database initialization
func LogDatabaseInit(path string, duration time.Duration) {
	section("DATABASE INITIALIZATION")
	logging.Info("  Catalog: %s", path)
	logging.Info("  [OK] Database initialized in %v", duration)
}

// LogThumbnailInit logs thumbnail generator initialization
func LogThumbnailInit(dir, decoder string, size, quality int) {
	section("THUMBNAIL GENERATOR")
	logging.Info("  Directory: %s", dir)
	logging.Info("  Decoder:   %s", decoder)
	logging.Info("  Bound:     %dx%d, JPEG quality %d", size, size, quality)
}

// LogIndexerInit logs indexer initialization
func LogIndexerInit(workers, batchSize int, interval time.Duration) {
	section("INDEXER INITIALIZATION")
	logging.Info("  Workers:    %d", workers)
	logging.Info("  Batch size: %d", batchSize)
	if interval > 0 {
		logging.Info("  Re-scan interval: %v", interval)
	} else {
		logging.Info("  Single run")
	}
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	section(fmt.Sprintf("SHUTDOWN INITIATED (received %s)", signal))
	logging.Info("  Finishing in-flight files and committing staged records...")
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

// Helper functions

func section(title string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("%s", title)
	logging.Info("------------------------------------------------------------")
}

func printBanner() {
	banner := `
------------------------------------------------------------
    ____  __          __           ____          __
   / __ \/ /_  ____  / /_____     /  _/___  ____/ /__  _  __
  / /_/ / __ \/ __ \/ __/ __ \    / // __ \/ __  / _ \| |/_/
 / ____/ / / / /_/ / /_/ /_/ /  _/ // / / / /_/ /  __/>  <
/_/   /_/ /_/\____/\__/\____/  /___/_/ /_/\__,_/\___/_/|_|

------------------------------------------------------------`
	fmt.Fprintln(bannerOut, banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	logging.Info("------------------------------------------------------------")
	logging.Info("SYSTEM INFORMATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))

	if runtime.GOMAXPROCS(0) < runtime.NumCPU() {
		logging.Info("  (Container CPU limit detected)")
	}

	if logging.IsDebugEnabled() {
		logging.Debug("  Goroutines:      %d", runtime.NumGoroutine())

		if wd, err := os.Getwd(); err == nil {
			logging.Debug("  Working dir:     %s", wd)
		}

		if hostname, err := os.Hostname(); err == nil {
			logging.Debug("  Hostname:        %s", hostname)
		}
	}
}

func autoString(n int) string {
	if n <= 0 {
		return "auto"
	}
	return fmt.Sprintf("%d", n)
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}
