// pkg/loader/rejects.go
package loader

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"ecompipe/pkg/model"
)

const rejectTable = "load_rejects"

var rejectTableDefs = []string{
	`"id" BIGSERIAL PRIMARY KEY`,
	`"dataset" TEXT NOT NULL`,
	`"target_table" TEXT NOT NULL`,
	`"chunk_index" INTEGER NOT NULL`,
	`"line" BIGINT NOT NULL`,
	`"column_name" TEXT`,
	`"raw_value" TEXT`,
	`"reason" TEXT NOT NULL`,
	`"rejected_at" TIMESTAMPTZ NOT NULL`,
}

var rejectColumns = []string{
	"dataset", "target_table", "chunk_index", "line",
	"column_name", "raw_value", "reason", "rejected_at",
}

// BatchWriter is the slice of the store the tracker needs to persist
// quarantined rows.
type BatchWriter interface {
	CreateTableIfNotExists(ctx context.Context, table string, columnDefs []string, primaryKey []string) error
	BatchInsert(ctx context.Context, table string, columns []string, valueRows [][]any, batchSize int) (int64, error)
}

// RejectTracker collects rows that failed type coercion and writes
// them to a quarantine table after the load, outside the chunk
// transactions, so a human can inspect and replay them. Persistence is
// best effort: a failed flush never fails the load that produced the
// rejects.
type RejectTracker struct {
	writer BatchWriter
	logger *zap.Logger

	mu   sync.Mutex
	rows []model.RejectedRow
}

// NewRejectTracker creates a tracker writing to the given store.
func NewRejectTracker(writer BatchWriter, logger *zap.Logger) *RejectTracker {
	return &RejectTracker{
		writer: writer,
		logger: logger.Named("rejects"),
	}
}

// Track buffers one rejected row. Safe to call on a nil tracker so the
// loader needs no guard when quarantining is disabled.
func (t *RejectTracker) Track(row model.RejectedRow) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rows = append(t.rows, row)
}

// Count returns the number of buffered rejects.
func (t *RejectTracker) Count() int {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.rows)
}

// Flush writes the buffered rejects to the quarantine table and clears
// the buffer.
func (t *RejectTracker) Flush(ctx context.Context) error {
	if t == nil {
		return nil
	}

	t.mu.Lock()
	rows := t.rows
	t.rows = nil
	t.mu.Unlock()

	if len(rows) == 0 {
		return nil
	}

	if err := t.writer.CreateTableIfNotExists(ctx, rejectTable, rejectTableDefs, nil); err != nil {
		t.logger.Warn("Could not ensure quarantine table", zap.Error(err))
		return err
	}

	values := make([][]any, len(rows))
	for i, r := range rows {
		values[i] = []any{
			r.Dataset, r.Table, r.ChunkIndex, r.Line,
			emptyAsNull(r.Column), emptyAsNull(r.RawValue), r.Reason, r.RejectedAt,
		}
	}

	inserted, err := t.writer.BatchInsert(ctx, rejectTable, rejectColumns, values, 500)
	if err != nil {
		t.logger.Warn("Failed to persist rejected rows",
			zap.Int("rows", len(rows)),
			zap.Error(err))
		return err
	}

	t.logger.Info("Persisted rejected rows", zap.Int64("rows", inserted))
	return nil
}

func emptyAsNull(s string) any {
	if s == "" {
		return nil
	}
	return s
}
