package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sitestack/sitestack/pkg/policy"
)

func newPolicyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Policy management",
		Long: `Inspect the policies applied during validation.

Built-in policies cover region allowlisting, stack naming, required
tags, production safeguards, and bucket naming conventions. Custom
Rego or JSON policies can be added with --policy-dir on validate.`,
	}

	cmd.AddCommand(newPolicyListCommand())
	cmd.AddCommand(newPolicyShowCommand())

	return cmd
}

func newPolicyListCommand() *cobra.Command {
	var (
		policyDirs []string
		bundlePath string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List loaded policies",
		Example: `  # List built-in policies
  sitestack policy list

  # Include custom policies
  sitestack policy list --policy-dir ./stacks/policies

  # Include a policy bundle
  sitestack policy list --bundle ./policies/bundle.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			engine, err := policy.NewEngine(cliLogger())
			if err != nil {
				return fmt.Errorf("failed to create policy engine: %w", err)
			}
			if len(policyDirs) > 0 {
				if err := engine.LoadPolicies(ctx, policyDirs); err != nil {
					return fmt.Errorf("failed to load policies: %w", err)
				}
			}
			if bundlePath != "" {
				if err := engine.LoadBundle(ctx, bundlePath); err != nil {
					return fmt.Errorf("failed to load policy bundle: %w", err)
				}
			}

			policies := engine.ListPolicies()

			if jsonOutput {
				out, err := json.MarshalIndent(policies, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(out))
				return nil
			}

			for _, p := range policies {
				state := "enabled"
				if !p.Enabled {
					state = "disabled"
				}
				fmt.Printf("%-24s %-8s %-8s %s\n", p.Name, p.Severity, state, p.Description)
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&policyDirs, "policy-dir", nil, "directories with additional Rego/JSON policies")
	cmd.Flags().StringVar(&bundlePath, "bundle", "", "JSON policy bundle file to include")

	return cmd
}

func newPolicyShowCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <name>",
		Short: "Show a policy's Rego source",
		Example: `  # Show the production safeguard policy
  sitestack policy show production-safeguards`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := policy.NewEngine(cliLogger())
			if err != nil {
				return fmt.Errorf("failed to create policy engine: %w", err)
			}

			p, err := engine.GetPolicy(args[0])
			if err != nil {
				return err
			}

			if jsonOutput {
				out, err := json.MarshalIndent(p, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(out))
				return nil
			}

			fmt.Printf("# %s (%s)\n# %s\n\n%s\n", p.Name, p.Severity, p.Description, p.Rego)
			return nil
		},
	}

	return cmd
}
