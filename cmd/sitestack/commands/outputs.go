package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sitestack/sitestack/pkg/config"
	"github.com/sitestack/sitestack/pkg/stack"
	"github.com/sitestack/sitestack/pkg/stores"
	"github.com/sitestack/sitestack/pkg/topology"
)

func newOutputsCommand() *cobra.Command {
	var (
		stateFile string
		fromAWS   bool
		format    string
		save      bool
	)

	cmd := &cobra.Command{
		Use:   "outputs [path]",
		Short: "Derive stack outputs from a deployed topology",
		Long: `Derive the published outputs of a deployed stack.

The resource topology is resolved either from a provisioning state file
(--state-file) or by querying the live AWS account (--aws). Every
declared output must resolve; a missing resource is reported as an
error rather than an empty value.

Outputs:
  - client_files_bucket_name
  - cloudfront_distribution_id
  - cloudfront_distribution_domain_name
  - api_gateway_endpoint
  - route53_zone_nameservers`,
		Example: `  # Derive outputs from a state file
  sitestack outputs ./stacks --state-file terraform.tfstate

  # Resolve against the live AWS account and store a snapshot
  sitestack outputs ./stacks --aws --save

  # Emit YAML for other tooling
  sitestack outputs ./stacks --state-file terraform.tfstate --format yaml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) > 0 {
				path = args[0]
			}

			if stateFile == "" && !fromAWS {
				return fmt.Errorf("either --state-file or --aws is required")
			}
			if stateFile != "" && fromAWS {
				return fmt.Errorf("--state-file and --aws are mutually exclusive")
			}

			ctx := cmd.Context()

			parsed, err := config.NewParser().Parse(ctx, []string{path})
			if err != nil {
				return fmt.Errorf("failed to parse %s: %w", path, err)
			}
			if parsed.HasErrors() {
				for _, pe := range parsed.Errors {
					log.Error().Str("path", pe.Path).Msg(pe.Message)
				}
				return fmt.Errorf("configuration in %s has errors, fix them first", path)
			}
			if verrs := stack.Validate(&parsed.Stack); len(verrs) > 0 {
				return fmt.Errorf("configuration is invalid: %w", verrs)
			}
			cfg := &parsed.Stack

			var (
				topo   *stack.ResourceTopology
				source stores.SnapshotSource
			)
			if stateFile != "" {
				source = stores.SnapshotSourceStateFile
				doc, err := topology.LoadStateFile(stateFile)
				if err != nil {
					return err
				}
				topo = topology.ResolveFromState(doc, cfg.DomainName)
			} else {
				source = stores.SnapshotSourceAWS
				resolver, err := topology.NewAWSResolver(ctx, cfg.Region, cliLogger())
				if err != nil {
					return fmt.Errorf("failed to create AWS resolver: %w", err)
				}
				topo, err = resolver.Resolve(ctx, cfg)
				if err != nil {
					return fmt.Errorf("failed to resolve topology: %w", err)
				}
			}

			outputs, err := stack.DeriveOutputs(topo)
			if err != nil {
				var missing *stack.MissingFieldError
				if errors.As(err, &missing) {
					return fmt.Errorf("stack %s is not fully deployed: %w", cfg.Name, err)
				}
				return err
			}

			log.Debug().
				Str("stack", cfg.Name).
				Str("source", string(source)).
				Int("outputs", len(outputs)).
				Msg("Derived outputs")

			if save {
				if err := saveSnapshot(ctx, cfg.Name, source, outputs); err != nil {
					return err
				}
			}

			return printOutputs(outputs, format)
		},
	}

	cmd.Flags().StringVar(&stateFile, "state-file", "", "provisioning state file to resolve the topology from")
	cmd.Flags().BoolVar(&fromAWS, "aws", false, "resolve the topology from the live AWS account")
	cmd.Flags().StringVar(&format, "format", "table", "output format: table, json, or yaml")
	cmd.Flags().BoolVar(&save, "save", false, "store the derived outputs as a snapshot")

	return cmd
}

// saveSnapshot stores the derived outputs in the history database.
func saveSnapshot(ctx context.Context, stackName string, source stores.SnapshotSource, outputs stack.Outputs) error {
	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	encoded, err := json.Marshal(outputs)
	if err != nil {
		return fmt.Errorf("failed to encode outputs: %w", err)
	}

	snap := &stores.OutputSnapshot{
		ID:        uuid.New().String(),
		StackName: stackName,
		Source:    source,
		Outputs:   string(encoded),
		DerivedAt: time.Now(),
	}
	if err := store.SaveOutputSnapshot(ctx, snap); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}

	log.Info().Str("snapshot", snap.ID).Msg("Stored output snapshot")
	return nil
}

// printOutputs renders the derived outputs in the requested format.
func printOutputs(outputs stack.Outputs, format string) error {
	switch format {
	case "json":
		out, err := json.MarshalIndent(outputs, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))

	case "yaml":
		out, err := yaml.Marshal(outputs)
		if err != nil {
			return err
		}
		fmt.Print(string(out))

	case "table":
		width := 0
		for _, name := range stack.OutputNames() {
			if len(name) > width {
				width = len(name)
			}
		}
		for _, name := range stack.OutputNames() {
			switch v := outputs[name].(type) {
			case []string:
				fmt.Printf("%-*s  %s\n", width, name, strings.Join(v, ", "))
			default:
				fmt.Printf("%-*s  %v\n", width, name, v)
			}
		}

	default:
		return fmt.Errorf("unknown format %q (must be table, json, or yaml)", format)
	}

	return nil
}
