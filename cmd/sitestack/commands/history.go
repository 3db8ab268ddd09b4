package commands

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sitestack/sitestack/pkg/stores"
)

func newHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Validation and output history",
		Long: `Inspect recorded validation runs and output snapshots.

Runs are recorded by ` + "`sitestack validate --record`" + ` and snapshots by
` + "`sitestack outputs --save`" + `.`,
	}

	cmd.AddCommand(newHistoryRunsCommand())
	cmd.AddCommand(newHistorySnapshotsCommand())
	cmd.AddCommand(newHistoryPruneCommand())

	return cmd
}

func newHistoryRunsCommand() *cobra.Command {
	var (
		stackName string
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded validation runs",
		Example: `  # List the most recent runs
  sitestack history runs

  # List runs for one stack
  sitestack history runs --stack my-site --limit 10`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			var filter *string
			if stackName != "" {
				filter = &stackName
			}

			runs, err := store.ListValidationRuns(ctx, filter, limit, 0)
			if err != nil {
				return fmt.Errorf("failed to list runs: %w", err)
			}

			if jsonOutput {
				out, err := json.MarshalIndent(runs, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(out))
				return nil
			}

			if len(runs) == 0 {
				fmt.Println("No validation runs recorded.")
				return nil
			}

			fmt.Printf("%-36s  %-20s  %-8s  %-6s  %-10s  %s\n",
				"RUN", "STACK", "STATUS", "ERRORS", "VIOLATIONS", "STARTED")
			for _, run := range runs {
				fmt.Printf("%-36s  %-20s  %-8s  %-6d  %-10d  %s\n",
					run.ID, run.StackName, run.Status, run.ErrorCount,
					run.ViolationCount, run.StartedAt.Format(time.RFC3339))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&stackName, "stack", "", "filter by stack name")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs to list")

	return cmd
}

func newHistorySnapshotsCommand() *cobra.Command {
	var (
		stackName string
		limit     int
		latest    bool
	)

	cmd := &cobra.Command{
		Use:   "snapshots",
		Short: "List stored output snapshots",
		Example: `  # List recent snapshots
  sitestack history snapshots

  # Show the latest snapshot for a stack, with its outputs
  sitestack history snapshots --stack my-site --latest`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			if latest {
				if stackName == "" {
					return fmt.Errorf("--latest requires --stack")
				}
				snap, err := store.LatestOutputSnapshot(ctx, stackName)
				if err != nil {
					return err
				}
				return printSnapshot(snap)
			}

			var filter *string
			if stackName != "" {
				filter = &stackName
			}

			snaps, err := store.ListOutputSnapshots(ctx, filter, limit, 0)
			if err != nil {
				return fmt.Errorf("failed to list snapshots: %w", err)
			}

			if jsonOutput {
				out, err := json.MarshalIndent(snaps, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(out))
				return nil
			}

			if len(snaps) == 0 {
				fmt.Println("No output snapshots stored.")
				return nil
			}

			fmt.Printf("%-36s  %-20s  %-10s  %s\n", "SNAPSHOT", "STACK", "SOURCE", "DERIVED")
			for _, snap := range snaps {
				fmt.Printf("%-36s  %-20s  %-10s  %s\n",
					snap.ID, snap.StackName, snap.Source, snap.DerivedAt.Format(time.RFC3339))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&stackName, "stack", "", "filter by stack name")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of snapshots to list")
	cmd.Flags().BoolVar(&latest, "latest", false, "show only the latest snapshot for --stack")

	return cmd
}

func printSnapshot(snap *stores.OutputSnapshot) error {
	if jsonOutput {
		out, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	fmt.Printf("Snapshot %s (stack %s, source %s, derived %s)\n\n",
		snap.ID, snap.StackName, snap.Source, snap.DerivedAt.Format(time.RFC3339))

	var outputs map[string]any
	if err := json.Unmarshal([]byte(snap.Outputs), &outputs); err != nil {
		return fmt.Errorf("failed to decode stored outputs: %w", err)
	}
	out, err := json.MarshalIndent(outputs, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func newHistoryPruneCommand() *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete old validation runs",
		Example: `  # Delete runs older than 30 days
  sitestack history prune --older-than 720h`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			cutoff := time.Now().Add(-olderThan)
			pruned, err := store.PruneValidationRuns(ctx, cutoff)
			if err != nil {
				return fmt.Errorf("failed to prune runs: %w", err)
			}

			fmt.Printf("Pruned %d validation run(s) older than %s\n", pruned, cutoff.Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 720*time.Hour, "delete runs started before now minus this duration")

	return cmd
}
