// Command asdscreen-train fits the screening forest from the toddler CSV and
// writes the model artifact the server loads.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	service "github.com/okian/asdscreen/internal/app"
	"github.com/okian/asdscreen/internal/config"
	"github.com/okian/asdscreen/pkg/logger"
)

type trainFlags struct {
	data           string
	model          string
	testRatio      float64
	seed           int64
	trees          int
	maxDepth       int
	minSamplesLeaf int
	workers        int
	logLevel       string
	logFile        string
}

func newTrainCommand() *cobra.Command {
	var f trainFlags
	cmd := &cobra.Command{
		Use:   "asdscreen-train",
		Short: "Train the ASD screening classifier",
		Long: `Train the ASD screening classifier.

Loads the labelled toddler screening CSV, normalises the categorical columns,
holds out a seeded test split, fits a random forest, reports held-out metrics
and saves the artifact as JSON.

Settings come from defaults, then the YAML file named by ASDSCREEN_CONFIG,
then ASDSCREEN_* environment variables; flags given on the command line win.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTrain(cmd, &f)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.data, "data", config.DefaultDatasetPath, "Path to the labelled screening CSV")
	fl.StringVar(&f.model, "model", config.DefaultModelPath, "Where to write the model artifact")
	fl.Float64Var(&f.testRatio, "test-ratio", config.DefaultTestRatio, "Fraction of rows held out for evaluation")
	fl.Int64Var(&f.seed, "seed", config.DefaultSeed, "Seed for the split and the forest")
	fl.IntVar(&f.trees, "trees", config.DefaultTrees, "Number of trees")
	fl.IntVar(&f.maxDepth, "max-depth", 0, "Maximum tree depth (0 = unlimited)")
	fl.IntVar(&f.minSamplesLeaf, "min-samples-leaf", 1, "Minimum rows per leaf")
	fl.IntVar(&f.workers, "workers", 0, "Trees fitted in parallel (0 = number of CPUs)")
	fl.StringVar(&f.logLevel, "log-level", config.DefaultLogLevel, "Log level: debug, info, warn, error")
	fl.StringVar(&f.logFile, "log-file", "", "Also write logs to this rotated file")

	return cmd
}

// applyFlags overrides cfg with the flags set explicitly on the command line.
func applyFlags(cmd *cobra.Command, f *trainFlags, cfg *config.TrainerConfig) {
	changed := cmd.Flags().Changed
	if changed("data") {
		cfg.DatasetPath = f.data
	}
	if changed("model") {
		cfg.ModelPath = f.model
	}
	if changed("test-ratio") {
		cfg.TestRatio = f.testRatio
	}
	if changed("seed") {
		cfg.Seed = f.seed
	}
	if changed("trees") {
		cfg.Trees = f.trees
	}
	if changed("max-depth") {
		cfg.MaxDepth = f.maxDepth
	}
	if changed("min-samples-leaf") {
		cfg.MinSamplesLeaf = f.minSamplesLeaf
	}
	if changed("workers") {
		cfg.Workers = f.workers
	}
	if changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if changed("log-file") {
		cfg.LogFile = f.logFile
	}
}

func runTrain(cmd *cobra.Command, f *trainFlags) error {
	ctx := cmd.Context()

	cfg, err := config.LoadTrainer(ctx)
	if err != nil {
		return err
	}
	applyFlags(cmd, f, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	var logOpts []logger.Option
	if cfg.LogFile != "" {
		logOpts = append(logOpts, logger.WithFile(cfg.LogFile))
	}
	if err := logger.Init(logOpts...); err != nil {
		return fmt.Errorf("initialize logging: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		return err
	}

	report, err := service.NewTrainer(cfg, logger.Named("trainer")).Run(ctx)
	if err != nil {
		return fmt.Errorf("training failed: %w", err)
	}

	e := report.Evaluation
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Rows used: %d of %d (train %d, test %d)\n",
		report.Data.RowsUsed, report.Data.RowsRead, report.TrainRows, report.TestRows)
	fmt.Fprintf(out, "Held-out accuracy %.3f  precision %.3f  recall %.3f  f1 %.3f\n",
		e.Accuracy, e.Precision, e.Recall, e.F1)
	fmt.Fprintf(out, "Confusion: TP %d  FP %d  TN %d  FN %d\n",
		e.TruePositives, e.FalsePositives, e.TrueNegatives, e.FalseNegatives)
	fmt.Fprintf(out, "Model saved to %s\n", report.ModelPath)
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newTrainCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}
