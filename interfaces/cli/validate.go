package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	api "github.com/dispatchkit/fleet/interfaces/api"
)

// validateOptions holds options for the validate command.
type validateOptions struct {
	configPath string
	strict     bool
}

// newValidateCmd creates the validate command.
func (a *App) newValidateCmd() *cobra.Command {
	opts := &validateOptions{}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a fleet configuration file",
		Long: `Validate a fleet configuration file for correctness.

This command checks:
  - File format (YAML or JSON)
  - Field types and value ranges (pool sizing, backoff curve, thresholds)
  - Environment variable references (in strict mode)

Examples:
  fleet validate -c fleet.yaml
  fleet validate -c fleet.yaml --strict`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.validateConfig(opts)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Path to configuration file (required)")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "Fail on missing environment variables")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}

func (a *App) validateConfig(opts *validateOptions) error {
	loaderOpts := []api.ConfigLoaderOption{api.WithValidation(true)}
	if opts.strict {
		loaderOpts = append(loaderOpts, api.WithStrictEnv(true))
	}

	loader := api.NewConfigLoaderWithOptions(loaderOpts...)
	cfg, err := loader.LoadFile(opts.configPath)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	fmt.Fprintf(a.stdout, "Configuration is valid\n")
	if cfg.Name != "" {
		fmt.Fprintf(a.stdout, "  Name: %s\n", cfg.Name)
	}
	if cfg.Description != "" {
		fmt.Fprintf(a.stdout, "  Description: %s\n", cfg.Description)
	}
	fmt.Fprintf(a.stdout, "\nPool:\n")
	fmt.Fprintf(a.stdout, "  Workers: %d-%d\n", cfg.Pool.MinWorkers, cfg.Pool.MaxWorkers)
	fmt.Fprintf(a.stdout, "  Idle timeout: %s\n", cfg.Pool.IdleTimeoutMS.Duration())
	fmt.Fprintf(a.stdout, "  Task timeout: %s\n", cfg.Pool.TaskTimeoutMS.Duration())
	fmt.Fprintf(a.stdout, "Queue:\n")
	fmt.Fprintf(a.stdout, "  Max concurrent: %d\n", cfg.Queue.MaxConcurrent)
	fmt.Fprintf(a.stdout, "  Default max attempts: %d\n", cfg.Queue.DefaultMaxAttempts)
	fmt.Fprintf(a.stdout, "Backoff:\n")
	fmt.Fprintf(a.stdout, "  %s, base=%s max=%s mult=%.1f jitter=%.2f\n",
		cfg.Backoff.Type, cfg.Backoff.BaseMS.Duration(), cfg.Backoff.MaxMS.Duration(),
		cfg.Backoff.Multiplier, cfg.Backoff.Jitter)
	fmt.Fprintf(a.stdout, "Heartbeat:\n")
	fmt.Fprintf(a.stdout, "  Every %s, timeout %s, max miss %d, auto-restart %v\n",
		cfg.Heartbeat.IntervalMS.Duration(), cfg.Heartbeat.TimeoutMS.Duration(),
		cfg.Heartbeat.MaxMiss, cfg.Heartbeat.AutoRestart)
	fmt.Fprintf(a.stdout, "Router:\n")
	fmt.Fprintf(a.stdout, "  Main-thread below %d, shared-worker above %d\n",
		cfg.Router.MainThreadThreshold, cfg.Router.SharedWorkerThreshold)
	fmt.Fprintf(a.stdout, "Collector:\n")
	fmt.Fprintf(a.stdout, "  Max retained results: %d\n", cfg.Collector.MaxRetainedResults)

	return nil
}
