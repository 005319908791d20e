package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"ecompipe/pkg/aggregate"
	"ecompipe/pkg/connector"
)

var aggregateCmd = &cobra.Command{
	Use:   "aggregate",
	Short: "Rebuild and verify the aggregate tables",
	Long: `Aggregate rebuilds the summary tables (customer_summary,
product_summary, daily_sales_summary, monthly_sales_summary) from the
base tables inside per-table transactions, then reconciles them
against the orders table and reports any drift.

A failed table leaves its previous contents in place; verification
warnings are reported but do not fail the command.`,
	Args: cobra.NoArgs,
	RunE: runAggregate,
}

func init() {
	rootCmd.AddCommand(aggregateCmd)
}

func runAggregate(cmd *cobra.Command, args []string) error {
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

	refresher := aggregate.NewRefresher(store, logger)
	result, err := refresher.RefreshAll(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Refreshed %d of %d aggregate tables (%d rows) in %s\n",
		result.Refreshed, len(result.Tables), result.TotalRows(),
		result.Duration().Round(time.Millisecond))
	for _, t := range result.Tables {
		if t.Err != nil {
			fmt.Printf("  %-25s FAILED: %v\n", t.Table, t.Err)
			continue
		}
		fmt.Printf("  %-25s %8d rows  %s\n", t.Table, t.Rows, t.Duration.Round(time.Millisecond))
	}

	summary, err := refresher.Verify(ctx)
	if err != nil {
		return fmt.Errorf("verification failed: %w", err)
	}
	fmt.Println()
	for _, c := range summary.Checks {
		fmt.Printf("  [%-7s] %s: %s\n", c.Status, c.Name, c.Description)
	}
	if summary.Clean() {
		fmt.Println("All aggregate checks passed")
	} else {
		fmt.Printf("%d aggregate checks reported warnings\n", summary.Warnings)
	}

	if result.Failed > 0 {
		return fmt.Errorf("aggregate refresh failed for %d of %d tables", result.Failed, len(result.Tables))
	}
	return nil
}
