// pkg/cleaner/cleaner.go
package cleaner

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"ecompipe/pkg/connector"
)

const (
	logTimeout   = 30 * time.Second
	cleanTimeout = 5 * time.Minute
)

// cleaningLogDDL tracks every standardization pass so cleaned values
// stay auditable after the fact.
const cleaningLogDDL = `
CREATE TABLE IF NOT EXISTS cleaning_log (
	id SERIAL PRIMARY KEY,
	table_name TEXT NOT NULL,
	column_name TEXT NOT NULL,
	operation TEXT NOT NULL,
	reason TEXT NOT NULL,
	rows_affected BIGINT NOT NULL,
	cleaned_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
)`

const insertCleaningLog = `
INSERT INTO cleaning_log
(table_name, column_name, operation, reason, rows_affected)
VALUES ($1, $2, $3, $4, $5)`

// OperationResult is one applied operation with its affected row count.
type OperationResult struct {
	Operation
	RowsAffected int64
}

// CleanResult summarizes one standardization pass.
type CleanResult struct {
	Operations   []OperationResult
	RowsAffected int64
	Duration     time.Duration
}

// Cleaner standardizes text columns in the warehouse in place. Every
// applied operation is written to the cleaning_log table.
type Cleaner struct {
	store  connector.DatabaseConnector
	logger *zap.Logger
}

// NewCleaner creates a cleaner against the given store.
func NewCleaner(store connector.DatabaseConnector, logger *zap.Logger) *Cleaner {
	return &Cleaner{
		store:  store,
		logger: logger.Named("cleaner"),
	}
}

// EnsureLog creates the cleaning_log tracking table when missing.
func (c *Cleaner) EnsureLog(ctx context.Context) error {
	if _, err := c.store.ExecWithTimeout(ctx, cleaningLogDDL, logTimeout); err != nil {
		return fmt.Errorf("failed to create cleaning log table: %w", err)
	}
	return nil
}

// Standardize applies every standardization operation and records the
// ones that touched rows. Operations whose rows are already clean
// affect nothing and are skipped in the log.
func (c *Cleaner) Standardize(ctx context.Context) (*CleanResult, error) {
	start := time.Now()

	if err := c.EnsureLog(ctx); err != nil {
		return nil, err
	}

	result := &CleanResult{}
	defer func() { result.Duration = time.Since(start) }()

	for _, op := range Operations() {
		res, err := c.store.ExecWithTimeout(ctx, op.Update, cleanTimeout)
		if err != nil {
			return nil, fmt.Errorf("failed to apply %s on %s.%s: %w", op.Name, op.Table, op.Column, err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("failed to count affected rows for %s: %w", op.Name, err)
		}
		if affected == 0 {
			continue
		}

		result.Operations = append(result.Operations, OperationResult{Operation: op, RowsAffected: affected})
		result.RowsAffected += affected

		c.logger.Info("Standardized column",
			zap.String("table", op.Table),
			zap.String("column", op.Column),
			zap.String("operation", op.Name),
			zap.Int64("rowsAffected", affected))
	}

	if len(result.Operations) > 0 {
		if err := c.recordOperations(ctx, result.Operations); err != nil {
			return result, fmt.Errorf("failed to record cleaning operations: %w", err)
		}
	}

	c.logger.Info("Standardization complete",
		zap.Int("operations", len(result.Operations)),
		zap.Int64("rowsAffected", result.RowsAffected),
		zap.Duration("duration", time.Since(start)))

	return result, nil
}

// recordOperations batch inserts applied operations into cleaning_log
// in a single transaction.
func (c *Cleaner) recordOperations(ctx context.Context, ops []OperationResult) error {
	ctx, cancel := context.WithTimeout(ctx, logTimeout)
	defer cancel()

	tx, err := c.store.DB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, insertCleaningLog)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare cleaning log insert: %w", err)
	}
	defer stmt.Close()

	for _, op := range ops {
		if _, err := stmt.ExecContext(ctx, op.Table, op.Column, op.Name, op.Reason, op.RowsAffected); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert cleaning log entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cleaning log: %w", err)
	}

	c.logger.Info("Recorded cleaning operations", zap.Int("count", len(ops)))
	return nil
}
