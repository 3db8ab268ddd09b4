package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sitestack/sitestack/pkg/config"
	"github.com/sitestack/sitestack/pkg/policy"
	"github.com/sitestack/sitestack/pkg/stack"
	"github.com/sitestack/sitestack/pkg/stores"
	"github.com/sitestack/sitestack/pkg/telemetry"
)

// validationReport aggregates everything one validation pass produced.
type validationReport struct {
	RunID        string                   `json:"run_id"`
	Path         string                   `json:"path"`
	Stack        string                   `json:"stack,omitempty"`
	Environment  string                   `json:"environment,omitempty"`
	Status       string                   `json:"status"`
	ParseErrors  []config.ValidationError `json:"parse_errors,omitempty"`
	FieldErrors  stack.ValidationErrors   `json:"field_errors,omitempty"`
	PolicyResult *policy.Result           `json:"policy,omitempty"`
	Duration     time.Duration            `json:"duration"`
}

func (r *validationReport) failed() bool {
	return r.Status == string(stores.RunStatusFailed)
}

func newValidateCommand() *cobra.Command {
	var (
		policyDirs   []string
		policyBundle string
		skipPolicy   bool
		record       bool
		watch        bool
		metricsAddr  string
	)

	cmd := &cobra.Command{
		Use:   "validate [path]",
		Short: "Validate stack configuration files",
		Long: `Validate stack configuration files against the schema, field
predicates, and policies.

This command checks:
  - CUE syntax validity and schema conformance
  - Field predicates (region, domain_name, api_domain_prefix)
  - Policy compliance (OPA/Rego)

Every failing field is reported; validation never stops at the first
error.`,
		Example: `  # Validate configs in the current directory
  sitestack validate

  # Validate a specific directory and record the run
  sitestack validate ./stacks --record

  # Re-validate on every change, with custom policies
  sitestack validate ./stacks --watch --policy-dir ./stacks/policies`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) > 0 {
				path = args[0]
			}

			ctx := cmd.Context()

			log.Info().
				Str("path", path).
				Bool("watch", watch).
				Bool("record", record).
				Msg("Validating configuration")

			tel, err := newCLITelemetry(metricsAddr)
			if err != nil {
				return fmt.Errorf("failed to set up telemetry: %w", err)
			}
			defer tel.Shutdown(context.Background())
			ctx = tel.WithContext(ctx)

			if metricsAddr != "" {
				if err := tel.StartMetricsServer(); err != nil {
					return fmt.Errorf("failed to start metrics server: %w", err)
				}
				log.Info().Str("addr", metricsAddr).Msg("Serving metrics")
			}

			engine, err := policy.NewEngine(cliLogger())
			if err != nil {
				return fmt.Errorf("failed to create policy engine: %w", err)
			}
			if len(policyDirs) > 0 {
				if err := engine.LoadPolicies(ctx, policyDirs); err != nil {
					return fmt.Errorf("failed to load policies: %w", err)
				}
				if watch {
					if err := engine.WatchPolicies(ctx, policyDirs); err != nil {
						return fmt.Errorf("failed to watch policy directories: %w", err)
					}
				}
			}
			if policyBundle != "" {
				if err := engine.LoadBundle(ctx, policyBundle); err != nil {
					return fmt.Errorf("failed to load policy bundle: %w", err)
				}
			}

			var store *stores.SQLiteStore
			if record {
				store, err = openStore(ctx)
				if err != nil {
					return err
				}
				defer store.Close()
			}

			runner := &validationRunner{
				parser:     config.NewParser(),
				engine:     engine,
				store:      store,
				tel:        tel,
				path:       path,
				skipPolicy: skipPolicy,
			}

			if !watch {
				report, err := runner.run(ctx, "manual")
				if err != nil {
					return err
				}
				printReport(report)
				if report.failed() {
					return fmt.Errorf("validation failed: %d error(s), %d violation(s)",
						len(report.ParseErrors)+len(report.FieldErrors), violationCount(report))
				}
				return nil
			}

			return runner.watch(ctx)
		},
	}

	cmd.Flags().StringSliceVar(&policyDirs, "policy-dir", nil, "directories with additional Rego/JSON policies")
	cmd.Flags().StringVar(&policyBundle, "policy-bundle", "", "JSON policy bundle file to load")
	cmd.Flags().BoolVar(&skipPolicy, "skip-policies", false, "skip policy evaluation")
	cmd.Flags().BoolVar(&record, "record", false, "record the run in the validation history database")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "re-validate whenever a source file changes")
	cmd.Flags().StringVar(&metricsAddr, "metrics-listen", "", "serve Prometheus metrics on this address (watch mode)")

	return cmd
}

// newCLITelemetry builds the telemetry stack used by long-lived commands.
// Tracing stays off for CLI runs; metrics are served only when requested.
func newCLITelemetry(metricsAddr string) (*telemetry.Telemetry, error) {
	cfg := telemetry.DefaultConfig()
	cfg.Logging.Output = "stderr"
	if verbose {
		cfg.Logging.Level = "debug"
	}
	if jsonOutput {
		cfg.Logging.Format = "json"
	}
	cfg.Tracing.Enabled = false
	cfg.Metrics.Enabled = metricsAddr != ""
	cfg.Metrics.ListenAddress = metricsAddr
	cfg.Events.Enabled = true
	cfg.Events.BufferSize = 64

	tel, err := telemetry.NewTelemetry(cfg)
	if err != nil {
		return nil, err
	}

	tel.Events.Subscribe(func(event telemetry.Event) {
		log.Debug().
			Str("type", event.Type).
			Str("stack", event.Stack).
			Msg(event.Message)
	}, nil)

	return tel, nil
}

type validationRunner struct {
	parser     *config.Parser
	engine     *policy.Engine
	store      *stores.SQLiteStore
	tel        *telemetry.Telemetry
	path       string
	skipPolicy bool
}

// run performs one full validation pass over the configured path.
func (r *validationRunner) run(ctx context.Context, trigger string) (*validationReport, error) {
	runID := uuid.New().String()
	started := time.Now()

	parsed, err := r.parser.Parse(ctx, []string{r.path})
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", r.path, err)
	}

	report := &validationReport{
		RunID:       runID,
		Path:        r.path,
		Stack:       parsed.Stack.Name,
		Environment: parsed.Stack.Environment,
		Status:      string(stores.RunStatusPassed),
		ParseErrors: parsed.Errors,
	}

	ctx = telemetry.WithValidationContext(ctx, runID, parsed.Stack.Name, trigger)

	if !parsed.HasErrors() {
		report.FieldErrors = stack.Validate(&parsed.Stack)
		for _, fe := range report.FieldErrors {
			r.tel.Metrics.RecordValidationError(fe.Field)
		}

		if !r.skipPolicy {
			result, err := r.engine.Evaluate(ctx, &parsed.Stack, nil)
			if err != nil {
				telemetry.EndValidationContext(ctx, runID, parsed.Stack.Name, string(stores.RunStatusFailed), err)
				return nil, fmt.Errorf("policy evaluation failed: %w", err)
			}
			report.PolicyResult = result
			for _, v := range result.Violations {
				r.tel.Metrics.RecordPolicyViolation(v.Policy, string(v.Severity))
				_ = r.tel.Events.PublishPolicyViolation(parsed.Stack.Name, v.Policy, v.Message)
			}
		}
	}

	if len(report.ParseErrors) > 0 || len(report.FieldErrors) > 0 ||
		(report.PolicyResult != nil && !report.PolicyResult.Allowed) {
		report.Status = string(stores.RunStatusFailed)
	}
	report.Duration = time.Since(started)

	var runErr error
	if report.failed() {
		runErr = fmt.Errorf("validation failed")
	}
	telemetry.EndValidationContext(ctx, runID, parsed.Stack.Name, report.Status, runErr)

	if r.store != nil {
		if err := r.persist(ctx, report, started); err != nil {
			return nil, err
		}
	}

	return report, nil
}

// persist records the completed pass in the history database.
func (r *validationRunner) persist(ctx context.Context, report *validationReport, started time.Time) error {
	errsJSON, err := json.Marshal(report.FieldErrors)
	if err != nil {
		return fmt.Errorf("failed to encode field errors: %w", err)
	}

	completed := started.Add(report.Duration)
	run := &stores.ValidationRun{
		ID:             report.RunID,
		StackName:      report.Stack,
		Environment:    report.Environment,
		SourcePath:     report.Path,
		Status:         stores.RunStatus(report.Status),
		ErrorCount:     len(report.ParseErrors) + len(report.FieldErrors),
		ViolationCount: violationCount(report),
		Errors:         string(errsJSON),
		StartedAt:      started,
		CompletedAt:    &completed,
	}

	if err := r.store.CreateValidationRun(ctx, run); err != nil {
		return fmt.Errorf("failed to record validation run: %w", err)
	}
	return nil
}

// watch re-validates whenever a CUE source under the path changes.
func (r *validationRunner) watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	dirs := map[string]struct{}{}
	info, err := os.Stat(r.path)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", r.path, err)
	}
	if info.IsDir() {
		sources, err := config.FindSources(r.path)
		if err != nil {
			return err
		}
		dirs[r.path] = struct{}{}
		for _, src := range sources {
			dirs[filepath.Dir(src)] = struct{}{}
		}
	} else {
		dirs[filepath.Dir(r.path)] = struct{}{}
	}

	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		log.Debug().Str("dir", dir).Msg("Watching for changes")
	}
	r.tel.Metrics.SetActiveWatches(float64(len(dirs)))

	// Initial pass before waiting for changes.
	if report, err := r.run(ctx, "watch"); err != nil {
		log.Error().Err(err).Msg("Validation pass failed")
	} else {
		printReport(report)
	}

	var debounce *time.Timer
	reload := make(chan string, 1)

	for {
		select {
		case <-ctx.Done():
			r.tel.Metrics.SetActiveWatches(0)
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if !strings.HasSuffix(event.Name, ".cue") {
				continue
			}
			// Editors fire several events per save; coalesce them.
			if debounce != nil {
				debounce.Stop()
			}
			name := event.Name
			debounce = time.AfterFunc(500*time.Millisecond, func() {
				select {
				case reload <- name:
				default:
				}
			})

		case name := <-reload:
			log.Info().Str("file", name).Msg("Change detected, re-validating")
			r.tel.Metrics.RecordWatchReload()
			_ = r.tel.Events.PublishWatchReload(name)
			if report, err := r.run(ctx, "watch"); err != nil {
				log.Error().Err(err).Msg("Validation pass failed")
			} else {
				printReport(report)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Error().Err(err).Msg("Watcher error")
		}
	}
}

func violationCount(report *validationReport) int {
	if report.PolicyResult == nil {
		return 0
	}
	return len(report.PolicyResult.Violations)
}

// printReport writes the pass result to stdout, honoring --json.
func printReport(report *validationReport) {
	if jsonOutput {
		out, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			log.Error().Err(err).Msg("Failed to encode report")
			return
		}
		fmt.Println(string(out))
		return
	}

	if !report.failed() {
		fmt.Printf("✅ %s is valid (run %s, %s)\n", report.Path, report.RunID, report.Duration.Round(time.Millisecond))
		return
	}

	fmt.Printf("❌ %s failed validation (run %s)\n\n", report.Path, report.RunID)

	for _, pe := range report.ParseErrors {
		if pe.File != "" {
			fmt.Printf("  %s:%d:%d: %s\n", pe.File, pe.Line, pe.Column, pe.Message)
		} else {
			fmt.Printf("  %s: %s\n", pe.Path, pe.Message)
		}
	}
	for _, fe := range report.FieldErrors {
		fmt.Printf("  %s\n", fe.Error())
	}
	if report.PolicyResult != nil {
		for _, v := range report.PolicyResult.Violations {
			fmt.Printf("  [%s] %s: %s\n", v.Severity, v.Policy, v.Message)
			if v.Remediation != "" {
				fmt.Printf("      remediation: %s\n", v.Remediation)
			}
		}
		for _, w := range report.PolicyResult.Warnings {
			fmt.Printf("  warning: %s\n", w)
		}
	}
}
