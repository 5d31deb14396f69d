package startup

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"photo-indexer/internal/catalog"
	"photo-indexer/internal/logging"
	"photo-indexer/internal/memory"
)

func TestGetBuildInfo(t *testing.T) {
	info := GetBuildInfo()

	if info.Version == "" {
		t.Error("Expected Version to be set")
	}
	if info.GoVersion != GoVersion {
		t.Errorf("Expected GoVersion=%s, got %s", GoVersion, info.GoVersion)
	}
	if info.OS == "" || info.Arch == "" {
		t.Errorf("Expected OS and Arch to be set, got %q/%q", info.OS, info.Arch)
	}
	if s := info.String(); !strings.Contains(s, info.Version) || !strings.Contains(s, info.Commit) {
		t.Errorf("String() = %q", s)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(NewViper())
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	wantData, _ := filepath.Abs("./data_storage")
	if cfg.DataDir != wantData {
		t.Errorf("DataDir = %s, want %s", cfg.DataDir, wantData)
	}
	if cfg.ThumbnailDir != filepath.Join(wantData, "thumbnails") {
		t.Errorf("ThumbnailDir = %s", cfg.ThumbnailDir)
	}
	if cfg.DatabasePath != filepath.Join(wantData, "catalog.db") {
		t.Errorf("DatabasePath = %s", cfg.DatabasePath)
	}
	if !filepath.IsAbs(cfg.LibraryDir) {
		t.Errorf("LibraryDir = %s, want absolute", cfg.LibraryDir)
	}
	if cfg.Scan.BatchSize != 100 || cfg.Thumbnail.Size != 400 || cfg.Thumbnail.Quality != 85 {
		t.Errorf("defaults = %+v / %+v", cfg.Scan, cfg.Thumbnail)
	}
	if cfg.LockPath() != filepath.Join(wantData, ".scan.lock") {
		t.Errorf("LockPath() = %s", cfg.LockPath())
	}
	wantLog := LoggingConfig{Level: "info", MaxSizeMB: 64, MaxBackups: 5, MaxAgeDays: 30}
	if cfg.Log != wantLog {
		t.Errorf("Log = %+v, want %+v", cfg.Log, wantLog)
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	lib, data := t.TempDir(), t.TempDir()
	t.Setenv("PHOTO_LIBRARY_PATH", lib)
	t.Setenv("DATA_STORAGE_PATH", data)
	t.Setenv("SCAN_WORKERS", "3")
	t.Setenv("SCAN_BATCH_SIZE", "25")
	t.Setenv("SCAN_INTERVAL", "15m")
	t.Setenv("THUMBNAIL_SIZE", "256")
	t.Setenv("THUMBNAIL_QUALITY", "90")
	t.Setenv("THUMBNAIL_USE_VIPS", "true")
	t.Setenv("METRICS_TEXTFILE", "/tmp/photo.prom")
	t.Setenv("LOG_FILE", "/tmp/photo.log")
	t.Setenv("LOG_COMPRESS", "true")

	cfg, err := LoadConfig(NewViper())
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.LibraryDir != lib || cfg.DataDir != data {
		t.Errorf("dirs = %s, %s", cfg.LibraryDir, cfg.DataDir)
	}
	if cfg.ThumbnailDir != filepath.Join(data, "thumbnails") {
		t.Errorf("ThumbnailDir = %s", cfg.ThumbnailDir)
	}
	if cfg.Scan.Workers != 3 || cfg.Scan.BatchSize != 25 {
		t.Errorf("Scan = %+v", cfg.Scan)
	}
	if d, err := cfg.ScanInterval(); err != nil || d != 15*time.Minute {
		t.Errorf("ScanInterval() = %v, %v", d, err)
	}
	if cfg.Thumbnail != (ThumbnailConfig{Size: 256, Quality: 90, UseVips: true}) {
		t.Errorf("Thumbnail = %+v", cfg.Thumbnail)
	}
	if cfg.Metrics.Textfile != "/tmp/photo.prom" {
		t.Errorf("Metrics.Textfile = %s", cfg.Metrics.Textfile)
	}
	lf := cfg.LogFile()
	if lf.Path != "/tmp/photo.log" || !lf.Compress || lf.MaxBackups != 5 {
		t.Errorf("LogFile() = %+v", lf)
	}
}

func TestLoadConfigExplicitPaths(t *testing.T) {
	data := t.TempDir()
	t.Setenv("DATA_STORAGE_PATH", data)
	t.Setenv("THUMBNAIL_DIR", filepath.Join(data, "elsewhere"))
	t.Setenv("DATABASE_PATH", filepath.Join(data, "db", "photos.db"))

	cfg, err := LoadConfig(NewViper())
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.ThumbnailDir != filepath.Join(data, "elsewhere") {
		t.Errorf("ThumbnailDir = %s", cfg.ThumbnailDir)
	}
	if cfg.DatabasePath != filepath.Join(data, "db", "photos.db") {
		t.Errorf("DatabasePath = %s", cfg.DatabasePath)
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value interface{}
	}{
		{"empty library", "library_dir", ""},
		{"empty data dir", "data_dir", "  "},
		{"negative workers", "scan.workers", -1},
		{"zero batch", "scan.batch_size", 0},
		{"bad interval", "scan.interval", "soon"},
		{"negative interval", "scan.interval", "-5m"},
		{"bad timezone", "scan.timezone", "Mars/Olympus_Mons"},
		{"zero size", "thumbnail.size", 0},
		{"quality too high", "thumbnail.quality", 101},
		{"quality zero", "thumbnail.quality", 0},
		{"bad log level", "log.level", "verbose"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewViper()
			v.Set(tt.key, tt.value)
			_, err := LoadConfig(v)
			if !errors.Is(err, catalog.ErrConfiguration) {
				t.Errorf("LoadConfig() error = %v, want ErrConfiguration", err)
			}
		})
	}
}

func TestReadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "photo-indexer.yaml")
	yamlData := `library_dir: /srv/photos
data_dir: /var/lib/photo-indexer
scan:
  batch_size: 50
  interval: 1h
thumbnail:
  size: 320
`
	if err := os.WriteFile(path, []byte(yamlData), 0o644); err != nil {
		t.Fatal(err)
	}
	// Environment beats the file
	t.Setenv("THUMBNAIL_SIZE", "200")

	v := NewViper()
	if err := ReadConfigFile(v, path); err != nil {
		t.Fatalf("ReadConfigFile() error = %v", err)
	}
	cfg, err := LoadConfig(v)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.LibraryDir != "/srv/photos" || cfg.DatabasePath != "/var/lib/photo-indexer/catalog.db" {
		t.Errorf("paths = %s, %s", cfg.LibraryDir, cfg.DatabasePath)
	}
	if cfg.Scan.BatchSize != 50 || cfg.Scan.Interval != "1h" {
		t.Errorf("Scan = %+v", cfg.Scan)
	}
	if cfg.Thumbnail.Size != 200 {
		t.Errorf("Thumbnail.Size = %d, want env override 200", cfg.Thumbnail.Size)
	}
	if cfg.Thumbnail.Quality != 85 {
		t.Errorf("Thumbnail.Quality = %d, want default 85", cfg.Thumbnail.Quality)
	}
}

func TestReadConfigFileErrors(t *testing.T) {
	dir := t.TempDir()

	v := NewViper()
	if err := ReadConfigFile(v, filepath.Join(dir, "missing.yaml")); !errors.Is(err, catalog.ErrConfiguration) {
		t.Errorf("missing explicit file: error = %v, want ErrConfiguration", err)
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("scan: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := ReadConfigFile(NewViper(), bad); !errors.Is(err, catalog.ErrConfiguration) {
		t.Errorf("malformed file: error = %v, want ErrConfiguration", err)
	}

	// No explicit path and nothing on the search path is fine
	if err := ReadConfigFile(NewViper(), ""); err != nil {
		t.Errorf("search without file: error = %v", err)
	}
}

func TestWriteDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "config.yaml")

	if err := WriteDefaultConfig(path, false); err != nil {
		t.Fatalf("WriteDefaultConfig() error = %v", err)
	}
	if err := WriteDefaultConfig(path, false); err == nil {
		t.Error("expected an error when the file exists without overwrite")
	}
	if err := WriteDefaultConfig(path, true); err != nil {
		t.Errorf("WriteDefaultConfig(overwrite) error = %v", err)
	}

	// The generated file loads back to the defaults
	v := NewViper()
	if err := ReadConfigFile(v, path); err != nil {
		t.Fatalf("ReadConfigFile() error = %v", err)
	}
	cfg, err := LoadConfig(v)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	d := Default()
	if cfg.Scan != d.Scan || cfg.Thumbnail != d.Thumbnail || cfg.Log != d.Log {
		t.Errorf("round trip = %+v, want %+v", cfg, d)
	}
}

func TestLocation(t *testing.T) {
	tests := []struct {
		tz   string
		want string
	}{
		{"", "Local"},
		{"local", "Local"},
		{"UTC", "UTC"},
	}
	for _, tt := range tests {
		t.Run(tt.tz, func(t *testing.T) {
			cfg := Config{Scan: ScanConfig{Timezone: tt.tz}}
			loc, err := cfg.Location()
			if err != nil {
				t.Fatalf("Location() error = %v", err)
			}
			if loc.String() != tt.want {
				t.Errorf("Location() = %s, want %s", loc, tt.want)
			}
		})
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{1 << 20, "1.0 MiB"},
		{3 << 30, "3.0 GiB"},
		{1 << 40, "1.0 TiB"},
	}
	for _, tt := range tests {
		if got := formatBytes(tt.in); got != tt.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLifecycleLogging(t *testing.T) {
	var buf bytes.Buffer
	logging.SetOutput(&buf)
	t.Cleanup(func() { logging.SetOutput(os.Stderr) })

	var banner bytes.Buffer
	bannerOut = &banner
	t.Cleanup(func() { bannerOut = os.Stderr })

	cfg, err := LoadConfig(NewViper())
	if err != nil {
		t.Fatal(err)
	}

	LogStartup()
	LogConfig(cfg)
	LogMemoryConfig(memory.ConfigResult{Source: "MEMORY_LIMIT", ContainerLimit: 1 << 30, GoMemLimit: 900 << 20, Ratio: 0.85})
	LogMemoryConfig(memory.ConfigResult{Source: "none"})
	LogDatabaseInit(cfg.DatabasePath, time.Millisecond)
	LogThumbnailInit(cfg.ThumbnailDir, "imaging", 400, 85)
	LogIndexerInit(4, 100, 0)
	LogIndexerInit(4, 100, time.Hour)
	LogShutdownInitiated("interrupt")
	LogShutdownComplete()

	if banner.Len() == 0 {
		t.Error("banner not written")
	}
	out := buf.String()
	for _, want := range []string{
		"SYSTEM INFORMATION",
		"CONFIGURATION",
		"PHOTO_LIBRARY_PATH:",
		"Container limit: 1.0 GiB",
		"No memory limit configured",
		"DATABASE INITIALIZATION",
		"THUMBNAIL GENERATOR",
		"Re-scan interval: 1h0m0s",
		"Single run",
		"SHUTDOWN INITIATED (received interrupt)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q", want)
		}
	}
}

func TestCheckLibrary(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "photo.jpg")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		root    string
		wantErr bool
	}{
		{"existing directory", dir, false},
		{"missing", filepath.Join(dir, "nope"), true},
		{"regular file", file, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{LibraryDir: tt.root}
			err := cfg.CheckLibrary()
			if tt.wantErr {
				if !errors.Is(err, catalog.ErrConfiguration) {
					t.Errorf("CheckLibrary() error = %v, want ErrConfiguration", err)
				}
				return
			}
			if err != nil {
				t.Errorf("CheckLibrary() error = %v", err)
			}
		})
	}
}
