// pkg/aggregate/refresher.go
package aggregate

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"ecompipe/pkg/connector"
)

const ddlTimeout = 30 * time.Second

// TableResult reports the outcome of rebuilding one aggregate table.
type TableResult struct {
	Table    string
	Rows     int64
	Duration time.Duration
	Err      error
}

// RefreshResult summarizes an aggregate refresh run.
type RefreshResult struct {
	StartTime time.Time
	EndTime   time.Time
	Refreshed int
	Failed    int
	Tables    []TableResult
}

// Duration returns the elapsed time of the run.
func (r *RefreshResult) Duration() time.Duration {
	if r.EndTime.IsZero() {
		return time.Since(r.StartTime)
	}
	return r.EndTime.Sub(r.StartTime)
}

// TotalRows returns the combined row count across refreshed tables.
func (r *RefreshResult) TotalRows() int64 {
	var total int64
	for _, t := range r.Tables {
		total += t.Rows
	}
	return total
}

// Refresher rebuilds the materialized summary tables from the base tables.
type Refresher struct {
	store  connector.DatabaseConnector
	logger *zap.Logger
}

// NewRefresher creates a refresher backed by the given store.
func NewRefresher(store connector.DatabaseConnector, logger *zap.Logger) *Refresher {
	return &Refresher{
		store:  store,
		logger: logger.Named("aggregate"),
	}
}

// EnsureTables creates any missing aggregate tables.
func (r *Refresher) EnsureTables(ctx context.Context) error {
	for _, t := range Tables() {
		if _, err := r.store.ExecWithTimeout(ctx, t.DDL, ddlTimeout); err != nil {
			return fmt.Errorf("failed to create aggregate table %s: %w", t.Name, err)
		}
	}
	return nil
}

// RefreshAll rebuilds every aggregate table, each in its own transaction.
// A failed table is rolled back and recorded; the remaining tables still
// refresh. The returned error covers setup failures only.
func (r *Refresher) RefreshAll(ctx context.Context) (*RefreshResult, error) {
	result := &RefreshResult{StartTime: time.Now()}

	if err := r.EnsureTables(ctx); err != nil {
		return nil, err
	}

	for _, t := range Tables() {
		tr := r.refreshTable(ctx, t)
		result.Tables = append(result.Tables, tr)

		if tr.Err != nil {
			result.Failed++
			r.logger.Warn("Aggregate refresh failed",
				zap.String("table", t.Name),
				zap.Error(tr.Err))
			continue
		}

		result.Refreshed++
		r.logger.Info("Refreshed aggregate",
			zap.String("table", t.Name),
			zap.Int64("rows", tr.Rows),
			zap.Duration("duration", tr.Duration))
	}

	result.EndTime = time.Now()

	if result.Failed > 0 {
		r.logger.Warn("Aggregate refresh completed with failures",
			zap.Int("refreshed", result.Refreshed),
			zap.Int("failed", result.Failed),
			zap.Duration("duration", result.Duration()))
	} else {
		r.logger.Info("Aggregate refresh complete",
			zap.Int("refreshed", result.Refreshed),
			zap.Int64("totalRows", result.TotalRows()),
			zap.Duration("duration", result.Duration()))
	}

	return result, nil
}

// refreshTable truncates and repopulates one table inside a transaction.
func (r *Refresher) refreshTable(ctx context.Context, t Table) TableResult {
	start := time.Now()
	res := TableResult{Table: t.Name}

	tx, err := r.store.DB().BeginTx(ctx, nil)
	if err != nil {
		res.Err = fmt.Errorf("failed to begin transaction for %s: %w", t.Name, err)
		res.Duration = time.Since(start)
		return res
	}

	if _, err := tx.ExecContext(ctx, "TRUNCATE TABLE "+t.Name); err != nil {
		tx.Rollback()
		res.Err = fmt.Errorf("failed to truncate %s: %w", t.Name, err)
		res.Duration = time.Since(start)
		return res
	}

	ins, err := tx.ExecContext(ctx, t.Refresh)
	if err != nil {
		tx.Rollback()
		res.Err = fmt.Errorf("failed to refresh %s: %w", t.Name, err)
		res.Duration = time.Since(start)
		return res
	}

	if err := tx.Commit(); err != nil {
		res.Err = fmt.Errorf("failed to commit refresh of %s: %w", t.Name, err)
		res.Duration = time.Since(start)
		return res
	}

	if rows, err := ins.RowsAffected(); err == nil {
		res.Rows = rows
	}
	res.Duration = time.Since(start)
	return res
}
