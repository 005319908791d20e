// pkg/pipeline/stages.go
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"ecompipe/pkg/aggregate"
	"ecompipe/pkg/cleaner"
	"ecompipe/pkg/converter"
	"ecompipe/pkg/loader"
	"ecompipe/pkg/model"
	"ecompipe/pkg/quality"
	"ecompipe/pkg/schema"
)

const validationTimeout = 2 * time.Minute

// runValidation checks connectivity, base-table existence, expected
// columns, and identity-key duplicates before anything touches the
// warehouse.
func (r *Runner) runValidation(ctx context.Context) (map[string]any, error) {
	if err := r.store.Validate(ctx); err != nil {
		return nil, fmt.Errorf("store connectivity check failed: %w", err)
	}

	mgr := schema.NewManager(r.store, r.logger)
	details := map[string]any{}

	var missing []string
	for _, ds := range r.datasets {
		exists, err := mgr.TableExists(ctx, ds.Table)
		if err != nil {
			return nil, err
		}
		if !exists {
			missing = append(missing, ds.Table)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required tables: %s", strings.Join(missing, ", "))
	}
	details["tables_exist"] = true

	for _, ds := range r.datasets {
		count, err := r.scanValue(ctx,
			fmt.Sprintf("SELECT COUNT(*) FROM %s", converter.QuoteIdentifier(ds.Table)))
		if err != nil {
			return nil, fmt.Errorf("failed to count rows in %s: %w", ds.Table, err)
		}
		details[ds.Name+"_count"] = count
	}

	for _, ds := range r.datasets {
		columns, err := mgr.TableColumns(ctx, ds.Table)
		if err != nil {
			return nil, err
		}
		if absent := missingColumns(ds, columns); len(absent) > 0 {
			return nil, fmt.Errorf("table %s is missing expected columns: %s",
				ds.Table, strings.Join(absent, ", "))
		}
	}
	details["schema_valid"] = true

	for _, ds := range r.datasets {
		dups, err := r.scanValue(ctx, duplicateQuery(ds))
		if err != nil {
			return nil, fmt.Errorf("failed to count duplicates in %s: %w", ds.Table, err)
		}
		details[ds.Name+"_duplicates"] = dups
	}

	return details, nil
}

// runIngestion ensures the target tables and loads every dataset in
// dependency order, feeding the metrics collector as it goes.
func (r *Runner) runIngestion(ctx context.Context) (map[string]any, error) {
	if err := schema.NewManager(r.store, r.logger).EnsureTables(ctx, r.datasets); err != nil {
		return nil, err
	}

	ordered, err := model.SortByDependency(r.datasets)
	if err != nil {
		return nil, err
	}

	ld := loader.NewLoader(r.store, r.logger).WithChunkSize(r.cfg.ChunkSize)

	var tracker *loader.RejectTracker
	if writer, ok := r.store.(loader.BatchWriter); ok {
		tracker = loader.NewRejectTracker(writer, r.logger)
		ld = ld.WithRejectTracker(tracker)
	}

	details := map[string]any{}
	var totalRows int64
	for _, ds := range ordered {
		path := filepath.Join(r.cfg.RawDataDir, ds.File)
		if info, statErr := os.Stat(path); statErr == nil {
			r.metrics.RecordBytes(ds.Table, info.Size())
		}

		result, loadErr := ld.Load(ctx, ds, path)
		r.metrics.RecordLoad(result, loadErr == nil)
		if loadErr != nil {
			return details, fmt.Errorf("failed to load dataset %s: %w", ds.Name, loadErr)
		}

		details[ds.Name+"_loaded"] = result.RowsInserted + result.RowsUpdated
		if result.RowsFailed > 0 {
			details[ds.Name+"_failed"] = result.RowsFailed
		}
		totalRows += result.RowsRead
	}
	details["total_rows"] = totalRows

	if tracker != nil {
		if err := tracker.Flush(ctx); err != nil {
			r.logger.Warn("Could not persist rejected rows", zap.Error(err))
		}
	}

	return details, nil
}

// runTransformation standardizes the base tables and rebuilds the
// aggregates, then reconciles them against the bases.
func (r *Runner) runTransformation(ctx context.Context) (map[string]any, error) {
	details := map[string]any{}

	cleanResult, err := cleaner.NewCleaner(r.store, r.logger).Standardize(ctx)
	if err != nil {
		return nil, err
	}
	details["rows_standardized"] = cleanResult.RowsAffected

	refresher := aggregate.NewRefresher(r.store, r.logger)
	refreshResult, err := refresher.RefreshAll(ctx)
	if err != nil {
		return details, err
	}
	var failedTables []string
	for _, table := range refreshResult.Tables {
		if table.Err != nil {
			failedTables = append(failedTables, table.Table)
			continue
		}
		details[table.Table] = table.Rows
	}
	if len(failedTables) > 0 {
		return details, fmt.Errorf("aggregate refresh failed for: %s", strings.Join(failedTables, ", "))
	}

	verification, err := refresher.Verify(ctx)
	if err != nil {
		return details, err
	}
	details["verification_warnings"] = verification.Warnings

	return details, nil
}

// runQuality gates the run on the check suite, then records anomaly
// findings without failing on them.
func (r *Runner) runQuality(ctx context.Context) (map[string]any, error) {
	report, err := quality.NewChecker(r.store, r.logger).Run(ctx)
	if err != nil {
		return nil, err
	}

	details := map[string]any{
		"checks_passed": report.Passed,
		"checks_failed": report.Failed,
		"pass_rate":     report.PassRate,
		"grade":         report.Grade,
	}

	if report.Blocking(r.cfg.QualitySeverity) {
		return details, fmt.Errorf("quality gate failed: %d of %d checks failing (grade %s)",
			report.Failed, len(report.Checks), report.Grade)
	}

	anomalies, err := quality.NewDetector(r.store, r.logger).
		WithThreshold(r.cfg.AnomalyZScoreThreshold).
		DetectAll(ctx)
	if err != nil {
		return details, err
	}
	details["anomaly_reports"] = len(anomalies)

	return details, nil
}

// scanValue runs a single-value query and returns the scalar.
func (r *Runner) scanValue(ctx context.Context, query string) (int64, error) {
	rows, err := r.store.QueryWithTimeout(ctx, query, validationTimeout)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	var value int64
	if rows.Next() {
		if err := rows.Scan(&value); err != nil {
			return 0, err
		}
	}
	return value, rows.Err()
}

// duplicateQuery counts rows sharing an identity key in the dataset's
// target table.
func duplicateQuery(ds model.Dataset) string {
	keys := make([]string, len(ds.IdentityKey))
	for i, key := range ds.IdentityKey {
		keys[i] = converter.QuoteIdentifier(key)
	}
	expr := keys[0]
	if len(keys) > 1 {
		expr = "(" + strings.Join(keys, ", ") + ")"
	}
	return fmt.Sprintf("SELECT COUNT(*) - COUNT(DISTINCT %s) FROM %s",
		expr, converter.QuoteIdentifier(ds.Table))
}

// missingColumns lists schema columns absent from the live table.
func missingColumns(ds model.Dataset, actual []string) []string {
	have := make(map[string]bool, len(actual))
	for _, col := range actual {
		have[col] = true
	}

	var missing []string
	for _, col := range ds.Schema.ColumnNames() {
		if !have[col] {
			missing = append(missing, col)
		}
	}
	return missing
}
