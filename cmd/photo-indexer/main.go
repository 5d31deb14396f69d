package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"photo-indexer/internal/logging"
	"photo-indexer/internal/startup"
)

// Exit codes
const (
	exitOK         = 0
	exitFailure    = 1 // aborted run or configuration error
	exitFileErrors = 2 // run completed but some files failed
)

// exitError carries a process exit code through cobra.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

// exitCode maps a command error to the process exit status.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return exitFailure
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	err := newRootCommand(startup.NewViper()).ExecuteContext(ctx)
	if err != nil {
		logging.Error("%v", err)
	}
	logging.Close()
	os.Exit(exitCode(err))
}

// handleSignals cancels the run on SIGINT/SIGTERM. A second signal exits
// immediately.
func handleSignals(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	startup.LogShutdownInitiated(sig.String())
	cancel()

	sig = <-sigChan
	logging.Error("Received second %s, exiting without committing", sig)
	os.Exit(exitFailure)
}

// app holds state shared by subcommands.
type app struct {
	v          *viper.Viper
	configPath string
	logLevel   string
	cfg        *startup.Config
}

func newRootCommand(v *viper.Viper) *cobra.Command {
	a := &app{v: v}

	cmd := &cobra.Command{
		Use:   "photo-indexer",
		Short: "Photo library indexer",
		Long: `Scans a photo library, fingerprints every supported image, extracts
capture metadata, generates thumbnails and keeps a SQLite catalog in sync.`,
		SilenceErrors: true,
		SilenceUsage:  true,

		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return startup.ReadConfigFile(a.v, a.configPath)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "config file (default is ./config.yaml)")
	flags.StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.String("library", "", "photo library root (PHOTO_LIBRARY_PATH)")
	flags.String("data", "", "data directory for catalog and thumbnails (DATA_STORAGE_PATH)")

	_ = v.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = v.BindPFlag("library_dir", flags.Lookup("library"))
	_ = v.BindPFlag("data_dir", flags.Lookup("data"))

	cmd.Version = startup.Version
	cmd.SetVersionTemplate("{{.Version}}\n")

	cmd.AddCommand(
		newScanCommand(a),
		newCatalogCommand(a),
		newThumbnailCommand(a),
		newConfigCommand(),
		newVersionCommand(),
	)

	return cmd
}

// config loads and validates configuration once per process and applies
// the logging settings.
func (a *app) config() (*startup.Config, error) {
	if a.cfg != nil {
		return a.cfg, nil
	}

	cfg, err := startup.LoadConfig(a.v)
	if err != nil {
		return nil, &exitError{code: exitFailure, err: err}
	}

	// logging already follows LOG_LEVEL and DEBUG; only the flag and the
	// config file override it.
	if a.logLevel != "" || a.v.InConfig("log.level") {
		logging.SetLevel(cfg.Log.Level)
	}
	if cfg.Log.File != "" {
		logging.SetFile(cfg.LogFile())
	}

	a.cfg = cfg
	return cfg, nil
}
