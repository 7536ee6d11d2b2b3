// Command asdscreen-smoke exercises a running screening service with
// generated payloads and verifies every response.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/asdscreen/internal/smoke"
	"github.com/okian/asdscreen/pkg/logger"
)

const (
	defaultWorkersPerCPU = 2
	defaultRunTimeout    = 10 * time.Minute
)

func newSmokeCommand() *cobra.Command {
	cfg := smoke.Config{}
	var logFile string

	cmd := &cobra.Command{
		Use:   "asdscreen-smoke",
		Short: "Smoke-test a running ASD screening service",
		Long: `Smoke-test a running ASD screening service.

Generates seeded random screening payloads, posts them concurrently to
/predict and checks each response: probability in [0,1] with at most three
decimals, label and severity consistent with the probability, and key factors
matching the submitted answers. Each feature is then dropped in turn and the
service must answer 400 naming it.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var opts []logger.Option
			if logFile != "" {
				opts = append(opts, logger.WithFile(logFile))
			}
			if err := logger.Init(opts...); err != nil {
				return fmt.Errorf("initialize logging: %w", err)
			}
			defer func() { _ = logger.Sync() }()

			ctx, cancel := context.WithTimeout(cmd.Context(), defaultRunTimeout)
			defer cancel()

			stats, err := smoke.Run(ctx, &cfg, logger.Named("smoke"))
			if stats != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "%d/%d checks passed in %s\n",
					stats.Passed, stats.Submitted, stats.Duration.Round(time.Millisecond))
			}
			return err
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&cfg.BaseURL, "url", smoke.DefaultBaseURL, "Base URL of the service")
	fl.IntVar(&cfg.Requests, "requests", smoke.DefaultRequests, "Number of payloads to generate and submit")
	fl.IntVar(&cfg.Workers, "workers", runtime.NumCPU()*defaultWorkersPerCPU, "Number of concurrent workers")
	fl.Int64Var(&cfg.Seed, "seed", smoke.DefaultSeed, "Seed for payload generation")
	fl.DurationVar(&cfg.Timeout, "timeout", smoke.DefaultTimeout, "HTTP request timeout")
	fl.BoolVarP(&cfg.Verbose, "verbose", "v", false, "Log every failure")
	fl.StringVar(&logFile, "log", "", "Also write logs to this rotated file")

	return cmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newSmokeCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}
