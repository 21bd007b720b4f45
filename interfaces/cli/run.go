package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dispatchkit/fleet/domain/dispatch"
	"github.com/dispatchkit/fleet/infrastructure/pool"
	"github.com/dispatchkit/fleet/infrastructure/pool/fakeworker"
	api "github.com/dispatchkit/fleet/interfaces/api"
)

// runOptions holds options for the run command.
type runOptions struct {
	configPath  string
	payloadPath string
	fingerprint string
	priority    int
	maxAttempts int
	timeout     time.Duration
	jsonOutput  bool
	metrics     string
}

// newRunCmd creates the run command.
func (a *App) newRunCmd() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Submit a single code bundle and wait for its result",
		Long: `Start a fleet from the given configuration, submit one code bundle
read from a file (or stdin with --payload -), and print its result once
the dispatch reaches a terminal state.

This uses the bundled in-process demo worker, which evaluates tiny
arithmetic JSON programs; it exists to exercise the dispatch/retry/
routing/heartbeat machinery without depending on any real isolation
technology. Production deployments supply their own worker process.

Examples:
  fleet run -c fleet.yaml --payload bundle.json
  echo '{"op":"add","args":[1,2]}' | fleet run -c fleet.yaml --payload -`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runFleet(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Path to configuration file (required)")
	cmd.Flags().StringVar(&opts.payloadPath, "payload", "-", "Path to the bundle payload JSON (- for stdin)")
	cmd.Flags().StringVar(&opts.fingerprint, "fingerprint", "", "Content fingerprint for routing cache")
	cmd.Flags().IntVar(&opts.priority, "priority", 0, "Dispatch priority (lower runs first; 0 is critical)")
	cmd.Flags().IntVar(&opts.maxAttempts, "max-attempts", 3, "Maximum attempts before giving up")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "Per-dispatch deadline")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output the result as JSON")
	cmd.Flags().StringVar(&opts.metrics, "metrics", "noop", "Metrics exporter: noop or stdout")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}

func fakeFactory(id string) (pool.WorkerProc, error) {
	return fakeworker.New(id)
}

func (a *App) runFleet(ctx context.Context, opts *runOptions) error {
	cfg, err := api.NewConfigLoader().LoadFile(opts.configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	var payload []byte
	if opts.payloadPath == "-" {
		payload, err = io.ReadAll(os.Stdin)
	} else {
		payload, err = os.ReadFile(opts.payloadPath)
	}
	if err != nil {
		return fmt.Errorf("failed to read payload: %w", err)
	}

	metricsCfg := api.DefaultMetricsProviderConfig()
	if opts.metrics == "stdout" {
		metricsCfg.Exporter = api.MetricsExporterStdout
	}
	metricsProvider, metricsShutdown, err := api.NewMetricsProvider(metricsCfg)
	if err != nil {
		return fmt.Errorf("failed to start metrics exporter: %w", err)
	}
	defer metricsShutdown(context.Background())

	sup, err := api.NewSupervisor(cfg, fakeFactory, api.Options{Metrics: metricsProvider})
	if err != nil {
		return fmt.Errorf("failed to start fleet: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	sup.Start(runCtx)
	defer sup.Shutdown()

	bundle := dispatch.Bundle{
		Fingerprint: opts.fingerprint,
		SizeKB:      len(payload) / 1024,
		Payload:     payload,
	}

	d, fut, err := sup.Submit(bundle, opts.priority, opts.maxAttempts, opts.timeout)
	if err != nil {
		return fmt.Errorf("failed to submit dispatch: %w", err)
	}

	waitCtx, waitCancel := context.WithTimeout(ctx, opts.timeout+time.Second)
	defer waitCancel()
	result, runErr := fut.Wait(waitCtx)

	if opts.jsonOutput {
		out := map[string]any{"dispatchId": d.ID}
		if runErr != nil {
			out["error"] = runErr.Error()
		} else {
			out["result"] = json.RawMessage(result.Payload)
		}
		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	if runErr != nil {
		fmt.Fprintf(a.stdout, "Dispatch %s failed: %v\n", d.ID, runErr)
		return runErr
	}
	fmt.Fprintf(a.stdout, "Dispatch %s completed\n", d.ID)
	fmt.Fprintf(a.stdout, "  Result: %s\n", string(result.Payload))
	return nil
}
