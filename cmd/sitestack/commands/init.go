package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sitestack/sitestack/pkg/stores"
)

const starterStack = `// Stack configuration for SiteStack.
// Edit the values below, then run ` + "`sitestack validate`" + `.
stack: {
	name:              "my-site"
	environment:       "dev"
	region:            "us-east-1"
	domain_name:       "example.com"
	api_domain_prefix: "api"

	tags: {
		owner:         "platform-team"
		"cost-center": "eng-1234"
	}
}
`

func newInitCommand() *cobra.Command {
	var (
		stacksDir string
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a SiteStack workspace",
		Long: `Initialize a new SiteStack workspace with a data directory, the SQLite
database used for validation history, and a starter stack configuration.`,
		Example: `  # Initialize in the current directory
  sitestack init

  # Initialize with a custom database location
  sitestack init --db /var/lib/sitestack/sitestack.db`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log.Info().
				Str("db", dbPath).
				Str("stacks", stacksDir).
				Msg("Initializing workspace")

			ctx := cmd.Context()

			fmt.Printf("Initializing SiteStack workspace\n\n")

			// Step 1: Create directory structure
			dirs := []string{
				filepath.Dir(dbPath),
				stacksDir,
				filepath.Join(stacksDir, "policies"),
			}

			for _, dir := range dirs {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return fmt.Errorf("failed to create directory %s: %w", dir, err)
				}
				fmt.Printf("✓ Created directory: %s\n", dir)
			}

			// Step 2: Initialize SQLite database
			store, err := stores.NewSQLiteStore(stores.Config{Path: dbPath})
			if err != nil {
				return fmt.Errorf("failed to create store: %w", err)
			}
			defer store.Close()

			if err := store.Init(ctx); err != nil {
				return fmt.Errorf("failed to initialize store: %w", err)
			}

			if err := store.Migrate(ctx); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}

			fmt.Printf("✓ Initialized SQLite database: %s\n", dbPath)

			// Step 3: Write a starter stack config unless one exists
			stackPath := filepath.Join(stacksDir, "stack.cue")
			if _, err := os.Stat(stackPath); os.IsNotExist(err) {
				if err := os.WriteFile(stackPath, []byte(starterStack), 0o644); err != nil {
					return fmt.Errorf("failed to write starter config: %w", err)
				}
				fmt.Printf("✓ Created starter config: %s\n", stackPath)
			} else {
				fmt.Printf("✓ Stack config already exists: %s\n", stackPath)
			}

			// Done
			fmt.Printf("\n✅ Workspace initialized successfully!\n\n")
			fmt.Printf("Next steps:\n")
			fmt.Printf("  1. Edit %s\n\n", stackPath)
			fmt.Printf("  2. Validate it:\n")
			fmt.Printf("     sitestack validate %s\n\n", stacksDir)
			fmt.Printf("  3. Derive outputs from a state file:\n")
			fmt.Printf("     sitestack outputs %s --state-file terraform.tfstate\n\n", stacksDir)

			return nil
		},
	}

	cmd.Flags().StringVar(&stacksDir, "stacks", "./stacks", "directory for stack configurations")

	return cmd
}
