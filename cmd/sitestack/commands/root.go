package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sitestack/sitestack/pkg/stores"
)

var (
	// Global flags
	dbPath     string
	verbose    bool
	jsonOutput bool
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "sitestack",
		Short: "SiteStack - Static Website Stack Configuration Validator",
		Long: `SiteStack validates declarative configuration for static website + API
stacks and derives the outputs a deployed stack publishes.

Features:
  - Typed configs via CUE
  - Light procedural values via Starlark
  - Field validation with full error collection
  - Policy enforcement (OPA/Rego)
  - Output derivation from state files or live AWS resources
  - Validation history in SQLite`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}
		},
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "./data/sitestack.db", "SQLite database path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	// Add subcommands
	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newOutputsCommand())
	rootCmd.AddCommand(newPolicyCommand())
	rootCmd.AddCommand(newHistoryCommand())

	return rootCmd
}

// openStore opens the SQLite store at the configured path. The database
// must have been created with `sitestack init` first.
func openStore(ctx context.Context) (*stores.SQLiteStore, error) {
	if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("database %s not found, run `sitestack init` first: %w", dbPath, err)
	}

	store, err := stores.NewSQLiteStore(stores.Config{Path: dbPath})
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}

	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// cliLogger returns the zerolog logger shared by all commands.
func cliLogger() zerolog.Logger {
	return log.Logger
}
