// Command qbank imports question bank CSV exports into a record store.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/qbank/internal/config"
	"github.com/JonMunkholm/qbank/internal/core"
	"github.com/JonMunkholm/qbank/internal/logging"

	// Register store backends
	_ "github.com/JonMunkholm/qbank/internal/store/elastic"
	_ "github.com/JonMunkholm/qbank/internal/store/firestore"
	_ "github.com/JonMunkholm/qbank/internal/store/postgres"
	_ "github.com/JonMunkholm/qbank/internal/store/sqlite"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the command line and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(&app{})
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.Execute()
	if err != nil {
		slog.Error("command failed", "error", err)
		if core.IsUserFacing(err) {
			fmt.Fprintln(stderr, core.FormatUserError(err))
		}
	}
	return exitCode(err)
}

// app holds the global flags and the configuration loaded before every
// subcommand.
type app struct {
	logLevel string
	backend  string
	cfg      *config.Config
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "qbank",
		Short: "Import question bank CSV exports into a record store",
		Long: `qbank reads every .csv file of a directory (or gs://bucket/prefix),
maps each row onto the fixed question schema and upserts the records in
batches of 50 into the configured store.

Configuration comes from the environment and an optional .env file.
STORE_URL and STORE_WRITE_KEY are required.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.loadConfig,
	}

	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error (overrides LOG_LEVEL)")
	root.PersistentFlags().StringVar(&a.backend, "backend", "", "store backend: postgres, sqlite, elasticsearch, firestore (overrides STORE_BACKEND)")

	root.AddCommand(
		newImportCmd(a),
		newCountCmd(a),
		newResetCmd(a),
		newServeCmd(a),
	)
	return root
}

// loadConfig reads .env, applies flag overrides and loads the configuration.
func (a *app) loadConfig(cmd *cobra.Command, _ []string) error {
	// Overload overwrites existing env vars
	if err := godotenv.Overload(); err == nil {
		slog.Debug("loaded .env file")
	}

	if a.backend != "" {
		os.Setenv("STORE_BACKEND", a.backend)
	}
	if a.logLevel != "" {
		os.Setenv("LOG_LEVEL", a.logLevel)
	}

	cfg, err := config.Load()
	if err != nil {
		return withExitCode(exitConfig, err)
	}
	a.cfg = cfg

	logging.SetupWriter(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)
	slog.Debug("configuration loaded", "config", cfg.String())
	return nil
}
