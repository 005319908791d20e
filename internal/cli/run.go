package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ecompipe/pkg/connector"
	"ecompipe/pkg/pipeline"
)

var runFlags struct {
	jsonOut bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full weekly pipeline",
	Long: `Run executes the weekly pipeline stages in order: validation of the
warehouse state, ingestion of the source CSV files, transformation
(standardization plus aggregate refresh), and the quality gate.

A failed stage marks the remaining stages as skipped. The stage report
is written as JSON into the processed data directory either way.`,
	Args: cobra.NoArgs,
	RunE: runPipeline,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolVar(&runFlags.jsonOut, "json", false,
		"Print the metrics summary as JSON instead of text")
}

func runPipeline(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	ctx := cmd.Context()

	store, err := connector.Connect(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	runner := pipeline.NewRunner(cfg, store, logger)
	result, runErr := runner.Run(ctx)

	fmt.Printf("Pipeline run %s\n", result.RunID)
	for _, st := range result.Stages {
		fmt.Printf("  %-15s %-8s %6.2fs\n", st.Name, st.Status, st.Seconds)
		if st.Error != "" {
			fmt.Printf("      %s\n", st.Error)
		}
	}

	path, err := result.WriteReport(cfg.ProcessedDataDir)
	if err != nil {
		logger.Warn("Could not write pipeline report", zap.Error(err))
	} else {
		fmt.Printf("\nReport written to %s\n", path)
	}

	fmt.Println()
	if err := printMetrics(runner.Metrics(), runFlags.jsonOut); err != nil {
		return err
	}
	return runErr
}
