package startup

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"photo-indexer/internal/catalog"
	"photo-indexer/internal/indexer"
	"photo-indexer/internal/logging"
	"photo-indexer/internal/thumbnail"
)

// Config holds all application configuration.
type Config struct {
	LibraryDir   string          `mapstructure:"library_dir" yaml:"library_dir"`
	DataDir      string          `mapstructure:"data_dir" yaml:"data_dir"`
	ThumbnailDir string          `mapstructure:"thumbnail_dir" yaml:"thumbnail_dir"`
	DatabasePath string          `mapstructure:"database_path" yaml:"database_path"`
	Scan         ScanConfig      `mapstructure:"scan" yaml:"scan"`
	Thumbnail    ThumbnailConfig `mapstructure:"thumbnail" yaml:"thumbnail"`
	Metrics      MetricsConfig   `mapstructure:"metrics" yaml:"metrics"`
	Log          LoggingConfig   `mapstructure:"log" yaml:"log"`
}

// ScanConfig tunes the indexer.
type ScanConfig struct {
	// Workers is the number of file workers; 0 picks one from the CPU count.
	Workers   int `mapstructure:"workers" yaml:"workers"`
	BatchSize int `mapstructure:"batch_size" yaml:"batch_size"`
	// Interval re-runs the scan periodically when non-empty (Go duration).
	Interval string `mapstructure:"interval" yaml:"interval"`
	// Timezone EXIF dates are read in; "Local" or an IANA name.
	Timezone string `mapstructure:"timezone" yaml:"timezone"`
}

// ThumbnailConfig configures artifact generation.
type ThumbnailConfig struct {
	Size    int  `mapstructure:"size" yaml:"size"`
	Quality int  `mapstructure:"quality" yaml:"quality"`
	UseVips bool `mapstructure:"use_vips" yaml:"use_vips"`
}

// MetricsConfig configures metric export. A batch run has no scrape
// endpoint, so metrics go to a node-exporter textfile.
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile" yaml:"textfile"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	File       string `mapstructure:"file" yaml:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// envBindings maps config keys to the environment variables that set them.
var envBindings = map[string]string{
	"library_dir":        "PHOTO_LIBRARY_PATH",
	"data_dir":           "DATA_STORAGE_PATH",
	"thumbnail_dir":      "THUMBNAIL_DIR",
	"database_path":      "DATABASE_PATH",
	"scan.workers":       "SCAN_WORKERS",
	"scan.batch_size":    "SCAN_BATCH_SIZE",
	"scan.interval":      "SCAN_INTERVAL",
	"scan.timezone":      "SCAN_TIMEZONE",
	"thumbnail.size":     "THUMBNAIL_SIZE",
	"thumbnail.quality":  "THUMBNAIL_QUALITY",
	"thumbnail.use_vips": "THUMBNAIL_USE_VIPS",
	"metrics.textfile":   "METRICS_TEXTFILE",
	"log.level":          "LOG_LEVEL",
	"log.file":           "LOG_FILE",
	"log.max_size_mb":    "LOG_MAX_SIZE_MB",
	"log.max_backups":    "LOG_MAX_BACKUPS",
	"log.max_age_days":   "LOG_MAX_AGE_DAYS",
	"log.compress":       "LOG_COMPRESS",
}

// Default returns the configuration used when nothing is set. Derived paths
// stay empty and are filled in from DataDir by LoadConfig.
func Default() Config {
	return Config{
		LibraryDir: "./photo_library",
		DataDir:    "./data_storage",
		Scan: ScanConfig{
			Workers:   0,
			BatchSize: indexer.DefaultBatchSize,
			Timezone:  "Local",
		},
		Thumbnail: ThumbnailConfig{
			Size:    thumbnail.DefaultSize,
			Quality: thumbnail.DefaultQuality,
			UseVips: false,
		},
		Log: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  64,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("library_dir", d.LibraryDir)
	v.SetDefault("data_dir", d.DataDir)
	v.SetDefault("thumbnail_dir", d.ThumbnailDir)
	v.SetDefault("database_path", d.DatabasePath)

	v.SetDefault("scan.workers", d.Scan.Workers)
	v.SetDefault("scan.batch_size", d.Scan.BatchSize)
	v.SetDefault("scan.interval", d.Scan.Interval)
	v.SetDefault("scan.timezone", d.Scan.Timezone)

	v.SetDefault("thumbnail.size", d.Thumbnail.Size)
	v.SetDefault("thumbnail.quality", d.Thumbnail.Quality)
	v.SetDefault("thumbnail.use_vips", d.Thumbnail.UseVips)

	v.SetDefault("metrics.textfile", d.Metrics.Textfile)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.max_size_mb", d.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", d.Log.MaxBackups)
	v.SetDefault("log.max_age_days", d.Log.MaxAgeDays)
	v.SetDefault("log.compress", d.Log.Compress)
}

// NewViper returns a viper instance with defaults and environment bindings
// installed. Flags are bound by the caller.
func NewViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	for key, env := range envBindings {
		// BindEnv only fails without a key
		_ = v.BindEnv(key, env)
	}
	return v
}

var envFiles = []string{".env", ".env.local"}

// ReadConfigFile loads .env files and the YAML config file into v. An
// explicit path must exist; otherwise config.yaml is searched in the
// working directory and /etc/photo-indexer, and its absence is fine.
func ReadConfigFile(v *viper.Viper, path string) error {
	// Missing .env files are not an error
	for _, envFile := range envFiles {
		_ = godotenv.Load(envFile)
	}

	if path != "" {
		v.SetConfigFile(path)
		configDir := filepath.Dir(path)
		for _, envFile := range envFiles {
			_ = godotenv.Load(filepath.Join(configDir, envFile))
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/photo-indexer")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("%w: reading config file: %v", catalog.ErrConfiguration, err)
	}
	logging.Debug("Loaded config file %s", v.ConfigFileUsed())
	return nil
}

// LoadConfig unmarshals v into a Config, resolves derived paths and
// validates the result. Every validation failure wraps
// catalog.ErrConfiguration.
func LoadConfig(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", catalog.ErrConfiguration, err)
	}
	if err := cfg.resolve(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolve makes directories absolute and fills in derived paths.
func (c *Config) resolve() error {
	if strings.TrimSpace(c.LibraryDir) == "" {
		return fmt.Errorf("%w: PHOTO_LIBRARY_PATH is not set", catalog.ErrConfiguration)
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("%w: DATA_STORAGE_PATH is not set", catalog.ErrConfiguration)
	}
	if c.ThumbnailDir == "" {
		c.ThumbnailDir = filepath.Join(c.DataDir, "thumbnails")
	}
	if c.DatabasePath == "" {
		c.DatabasePath = filepath.Join(c.DataDir, "catalog.db")
	}

	for _, p := range []*string{&c.LibraryDir, &c.DataDir, &c.ThumbnailDir, &c.DatabasePath} {
		abs, err := filepath.Abs(*p)
		if err != nil {
			return fmt.Errorf("%w: resolving %s: %v", catalog.ErrConfiguration, *p, err)
		}
		*p = abs
	}
	return nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	var problems []string

	if c.Scan.Workers < 0 {
		problems = append(problems, fmt.Sprintf("scan.workers must be >= 0, got %d", c.Scan.Workers))
	}
	if c.Scan.BatchSize < 1 {
		problems = append(problems, fmt.Sprintf("scan.batch_size must be >= 1, got %d", c.Scan.BatchSize))
	}
	if _, err := c.ScanInterval(); err != nil {
		problems = append(problems, err.Error())
	}
	if _, err := c.Location(); err != nil {
		problems = append(problems, err.Error())
	}
	if c.Thumbnail.Size < 1 {
		problems = append(problems, fmt.Sprintf("thumbnail.size must be >= 1, got %d", c.Thumbnail.Size))
	}
	if c.Thumbnail.Quality < 1 || c.Thumbnail.Quality > 100 {
		problems = append(problems, fmt.Sprintf("thumbnail.quality must be 1-100, got %d", c.Thumbnail.Quality))
	}
	if _, ok := logging.ParseLevel(c.Log.Level); !ok {
		problems = append(problems, fmt.Sprintf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", catalog.ErrConfiguration, strings.Join(problems, "; "))
	}
	return nil
}

// CheckLibrary verifies the library root exists and is a directory. It is
// separate from Validate so read-only commands work while the library is
// unmounted.
func (c *Config) CheckLibrary() error {
	info, err := os.Stat(c.LibraryDir)
	if err != nil {
		return fmt.Errorf("%w: library root %s: %v", catalog.ErrConfiguration, c.LibraryDir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: library root %s is not a directory", catalog.ErrConfiguration, c.LibraryDir)
	}
	return nil
}

// ScanInterval parses Scan.Interval. Empty means a single run.
func (c *Config) ScanInterval() (time.Duration, error) {
	if c.Scan.Interval == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Scan.Interval)
	if err != nil {
		return 0, fmt.Errorf("scan.interval %q: %v", c.Scan.Interval, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("scan.interval must not be negative, got %s", d)
	}
	return d, nil
}

// Location returns the zone EXIF dates are interpreted in.
func (c *Config) Location() (*time.Location, error) {
	if c.Scan.Timezone == "" || strings.EqualFold(c.Scan.Timezone, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Scan.Timezone)
	if err != nil {
		return nil, fmt.Errorf("scan.timezone %q: %v", c.Scan.Timezone, err)
	}
	return loc, nil
}

// LogFile returns the rotating file sink settings.
func (c *Config) LogFile() logging.FileConfig {
	return logging.FileConfig{
		Path:       c.Log.File,
		MaxSizeMB:  c.Log.MaxSizeMB,
		MaxBackups: c.Log.MaxBackups,
		MaxAgeDays: c.Log.MaxAgeDays,
		Compress:   c.Log.Compress,
	}
}

// LockPath is the cross-process scan lock.
func (c *Config) LockPath() string {
	return filepath.Join(c.DataDir, ".scan.lock")
}

// GenerateConfig renders the default configuration as YAML.
func GenerateConfig() ([]byte, error) {
	data, err := yaml.Marshal(Default())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}

// WriteDefaultConfig writes the default configuration to path. An existing
// file is only replaced when overwrite is set.
func WriteDefaultConfig(path string, overwrite bool) error {
	if _, err := os.Stat(path); err == nil && !overwrite {
		return fmt.Errorf("%s already exists (use --overwrite to replace)", path)
	}

	data, err := GenerateConfig()
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}
	return nil
}
