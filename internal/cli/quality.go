package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"ecompipe/pkg/connector"
	"ecompipe/pkg/quality"
)

var qualityFlags struct {
	threshold float64
	noReport  bool
}

var qualityCmd = &cobra.Command{
	Use:   "quality",
	Short: "Inspect the quality of the loaded data",
	Long: `Quality inspects the warehouse after a load: rule-based checks across
completeness, validity, consistency and uniqueness, statistical anomaly
detection over order amounts and revenue, and per-table column
profiling.

Each subcommand writes a timestamped JSON report into the processed
data directory unless --no-report is set.`,
}

var qualityChecksCmd = &cobra.Command{
	Use:   "checks",
	Short: "Run the rule-based quality checks",
	Long: `Checks runs the standard check suite over the base and summary tables
and grades the result. The command fails when the configured severity
gate trips: with QUALITY_CHECK_SEVERITY=ERROR (the default) only
ERROR-severity failures block, with WARNING any failure does.`,
	Args: cobra.NoArgs,
	RunE: runQualityChecks,
}

var qualityAnomaliesCmd = &cobra.Command{
	Use:   "anomalies",
	Short: "Detect statistical outliers and rule violations",
	Long: `Anomalies flags order amounts, customer spending and daily revenue
that sit beyond the configured z-score thresholds, along with hard
rule violations such as non-positive totals. Findings are reported,
not fatal.`,
	Args: cobra.NoArgs,
	RunE: runQualityAnomalies,
}

var qualityProfileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Profile the base and aggregate tables",
	Long: `Profile reports row counts and per-column types, null counts and
distinct counts for every base and aggregate table.`,
	Args: cobra.NoArgs,
	RunE: runQualityProfile,
}

func init() {
	rootCmd.AddCommand(qualityCmd)
	qualityCmd.AddCommand(qualityChecksCmd)
	qualityCmd.AddCommand(qualityAnomaliesCmd)
	qualityCmd.AddCommand(qualityProfileCmd)

	qualityCmd.PersistentFlags().BoolVar(&qualityFlags.noReport, "no-report", false,
		"Skip writing the JSON report file")
	qualityAnomaliesCmd.Flags().Float64Var(&qualityFlags.threshold, "threshold", 0,
		"Z-score threshold for order amount outliers\n"+
			"(default: $ANOMALY_ZSCORE_THRESHOLD)")
}

func runQualityChecks(cmd *cobra.Command, args []string) error {
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

	report, err := quality.NewChecker(store, logger).Run(ctx)
	if err != nil {
		return err
	}

	for _, c := range report.Checks {
		if c.Status == quality.StatusError {
			fmt.Printf("  [%-5s] %s: %s\n", c.Status, c.Name, c.Error)
			continue
		}
		fmt.Printf("  [%-5s] %s (expected %d, got %d)\n", c.Status, c.Name, c.Expected, c.Actual)
	}
	fmt.Printf("\n%d passed, %d failed (%.1f%%), grade %s\n",
		report.Passed, report.Failed, report.PassRate, report.Grade)

	if !qualityFlags.noReport {
		path, err := writeJSONReport(cfg.ProcessedDataDir, "quality_report", report)
		if err != nil {
			return err
		}
		fmt.Printf("Report written to %s\n", path)
	}

	if report.Blocking(cfg.QualitySeverity) {
		return fmt.Errorf("quality gate failed: %d of %d checks failing (grade %s)",
			report.Failed, len(report.Checks), report.Grade)
	}
	return nil
}

func runQualityAnomalies(cmd *cobra.Command, args []string) error {
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

	threshold := cfg.AnomalyZScoreThreshold
	if qualityFlags.threshold > 0 {
		threshold = qualityFlags.threshold
	}

	reports, err := quality.NewDetector(store, logger).WithThreshold(threshold).DetectAll(ctx)
	if err != nil {
		return err
	}

	if len(reports) == 0 {
		fmt.Println("No anomalies detected")
	}
	for _, r := range reports {
		fmt.Printf("  [%-7s] %s: %d found. %s\n", r.Severity, r.Type, r.Count, r.Details)
		for _, s := range r.Samples {
			if s.ZScore != 0 {
				fmt.Printf("      %s = %.2f (z=%.2f)\n", s.Label, s.Value, s.ZScore)
			} else {
				fmt.Printf("      %s = %.2f\n", s.Label, s.Value)
			}
		}
	}

	if !qualityFlags.noReport {
		path, err := writeJSONReport(cfg.ProcessedDataDir, "anomaly_report", reports)
		if err != nil {
			return err
		}
		fmt.Printf("Report written to %s\n", path)
	}
	return nil
}

func runQualityProfile(cmd *cobra.Command, args []string) error {
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

	profiles := quality.NewProfiler(store, logger).ProfileAll(ctx)
	for _, p := range profiles {
		fmt.Printf("  %-25s %8d rows, %d columns\n", p.Table, p.TotalRows, len(p.Columns))
	}

	if !qualityFlags.noReport {
		path, err := writeJSONReport(cfg.ProcessedDataDir, "data_profile", profiles)
		if err != nil {
			return err
		}
		fmt.Printf("Report written to %s\n", path)
	}
	return nil
}

// writeJSONReport writes v as indented JSON into dir under a
// timestamped file name and returns the path.
func writeJSONReport(dir, prefix string, v any) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("%s_%s.json", prefix, time.Now().Format("20060102_150405")))
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return path, nil
}
