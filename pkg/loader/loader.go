// pkg/loader/loader.go
package loader

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"ecompipe/pkg/connector"
	"ecompipe/pkg/converter"
	"ecompipe/pkg/model"
	"ecompipe/pkg/retry"
	"ecompipe/pkg/source"
)

// DefaultChunkSize is the number of rows applied per transaction when
// no explicit size is configured.
const DefaultChunkSize = 1000

// Loader transfers delimited files into relational tables in bounded
// chunks, one transaction per chunk, with insert-or-update semantics
// keyed on each dataset's identity key. One bad chunk does not abort
// the file; chunks are processed strictly sequentially in file order so
// later rows win on identity key collisions.
type Loader struct {
	store     connector.DatabaseConnector
	conv      *converter.Converter
	upserter  Upserter
	rejects   *RejectTracker
	logger    *zap.Logger
	chunkSize int
}

// NewLoader creates a loader bound to a store handle. The store is
// owned by the caller and must outlive every Load call.
func NewLoader(store connector.DatabaseConnector, logger *zap.Logger) *Loader {
	return &Loader{
		store:     store,
		conv:      converter.New(logger),
		upserter:  PostgresUpserter{},
		logger:    logger.Named("loader"),
		chunkSize: DefaultChunkSize,
	}
}

// WithChunkSize sets the rows-per-transaction bound.
func (l *Loader) WithChunkSize(size int) *Loader {
	if size > 0 {
		l.chunkSize = size
	}
	return l
}

// WithUpserter swaps the insert-or-update implementation.
func (l *Loader) WithUpserter(u Upserter) *Loader {
	l.upserter = u
	return l
}

// WithRejectTracker records coercion-failed rows for quarantine.
func (l *Loader) WithRejectTracker(t *RejectTracker) *Loader {
	l.rejects = t
	return l
}

// Load transfers every row of the file at path into the dataset's
// target table. Row- and chunk-level faults are folded into the result
// and never escape; a schema mismatch or loss of the store aborts the
// load and is returned alongside whatever the result captured up to
// that point.
func (l *Loader) Load(ctx context.Context, ds model.Dataset, path string) (*LoadResult, error) {
	if err := ds.Validate(); err != nil {
		return nil, err
	}

	src, err := source.OpenCSV(path, l.logger)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	if smErr := validateHeader(ds, src.Header()); smErr != nil {
		l.logger.Error("Source header does not match schema",
			zap.String("dataset", ds.Name),
			zap.String("table", ds.Table),
			zap.Strings("expected", smErr.Expected),
			zap.Strings("actual", smErr.Actual))
		return nil, smErr
	}

	result := NewLoadResult(ds.Name, ds.Table)
	l.logger.Info("Starting load",
		zap.String("loadID", result.LoadID),
		zap.String("dataset", ds.Name),
		zap.String("table", ds.Table),
		zap.String("path", path),
		zap.Int("chunkSize", l.chunkSize))

	fatal := l.run(ctx, ds, src, result)
	result.Complete()
	l.logSummary(result, fatal)

	if fatal != nil {
		return result, fatal
	}
	return result, nil
}

// run drives the chunk loop. It returns nil on a completed load, even
// one with failed chunks, and the fatal error otherwise.
func (l *Loader) run(ctx context.Context, ds model.Dataset, src *source.CSV, result *LoadResult) error {
	chunkIndex := 0
	for {
		rows, readErr := src.ReadChunk(l.chunkSize)
		if errors.Is(readErr, io.EOF) {
			return nil
		}
		if readErr != nil {
			return l.failRead(ds, rows, readErr, result, &chunkIndex)
		}

		chunkIndex++
		if err := l.applyChunk(ctx, ds, chunkIndex, rows, result); err != nil {
			l.drainAfterDisconnect(src, err, result, &chunkIndex)
			return err
		}
	}
}

// applyChunk runs one chunk inside its own transaction. Coercion
// failures skip the row and the rest of the chunk still commits; any
// store error rolls the whole chunk back with nothing partially
// applied. The returned error is non-nil only for connectivity loss.
func (l *Loader) applyChunk(ctx context.Context, ds model.Dataset, chunkIndex int, rows []source.Row, result *LoadResult) error {
	start := time.Now()
	result.RowsRead += int64(len(rows))
	result.ChunksAttempted++

	tx, err := l.store.DB().BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return l.failChunk(result, chunkIndex, len(rows), err, start)
	}

	var inserted, updated, rejected int64
	for _, row := range rows {
		record, cerr := l.conv.CoerceRecord(ds.Schema, row.Fields)
		if cerr != nil {
			rejected++
			l.rejectRow(ds, chunkIndex, row, cerr)
			continue
		}

		ins, uerr := l.upserter.InsertOrUpdate(ctx, tx, ds.Table, ds.Schema, ds.IdentityKey, record)
		if uerr != nil {
			tx.Rollback()
			return l.failChunk(result, chunkIndex, len(rows), uerr, start)
		}
		if ins {
			inserted++
		} else {
			updated++
		}
	}

	if err := tx.Commit(); err != nil {
		return l.failChunk(result, chunkIndex, len(rows), err, start)
	}

	result.RowsInserted += inserted
	result.RowsUpdated += updated
	result.RowsFailed += rejected

	l.logger.Info("Chunk committed",
		zap.Int("chunk", chunkIndex),
		zap.Int("rows", len(rows)),
		zap.Int64("inserted", inserted),
		zap.Int64("updated", updated),
		zap.Int64("rejected", rejected),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

// failChunk folds a chunk-level fault into the result. Losing the
// store escalates to a fatal error; anything else is recoverable and
// the load moves on to the next chunk.
func (l *Loader) failChunk(result *LoadResult, chunkIndex, rows int, cause error, start time.Time) error {
	if retry.ConnectionLost(cause) {
		connErr := &StoreConnectivityError{ChunkIndex: chunkIndex, Err: cause}
		result.AddChunkFailure(chunkIndex, rows, connErr)
		l.logger.Error("Lost connection to target store",
			zap.Int("chunk", chunkIndex),
			zap.Int("rows", rows),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(cause))
		return connErr
	}

	chunkErr := &ChunkCommitError{ChunkIndex: chunkIndex, Rows: rows, Err: cause}
	result.AddChunkFailure(chunkIndex, rows, chunkErr)
	l.logger.Warn("Chunk rolled back",
		zap.Int("chunk", chunkIndex),
		zap.Int("rows", rows),
		zap.Duration("elapsed", time.Since(start)),
		zap.Error(cause))
	return nil
}

// rejectRow logs a coercion failure and hands it to the quarantine
// tracker. The row has already been counted as failed by the caller.
func (l *Loader) rejectRow(ds model.Dataset, chunkIndex int, row source.Row, cause error) {
	rowErr := &RowCoercionError{ChunkIndex: chunkIndex, Line: row.Line, Err: cause}
	var ve *converter.ValueError
	if errors.As(cause, &ve) {
		rowErr.Column = ve.Column
		rowErr.RawValue = ve.Raw
	}

	l.logger.Warn("Row failed type coercion",
		zap.String("dataset", ds.Name),
		zap.Int("chunk", chunkIndex),
		zap.Int64("line", row.Line),
		zap.String("column", rowErr.Column),
		zap.Error(rowErr))

	l.rejects.Track(model.RejectedRow{
		Dataset:    ds.Name,
		Table:      ds.Table,
		ChunkIndex: chunkIndex,
		Line:       row.Line,
		Column:     rowErr.Column,
		RawValue:   rowErr.RawValue,
		Reason:     cause.Error(),
		RejectedAt: time.Now(),
	})
}

// failRead converts a mid-read fault into the load's fatal error. Rows
// already read for the incomplete chunk never reached the store; they
// are counted as failed so the totals still reconcile.
func (l *Loader) failRead(ds model.Dataset, rows []source.Row, readErr error, result *LoadResult, chunkIndex *int) error {
	var fatal error
	var fce *source.FieldCountError
	if errors.As(readErr, &fce) {
		fatal = &SchemaMismatchError{
			Table:    ds.Table,
			Expected: ds.Schema.ColumnNames(),
			Reason:   fce.Error(),
		}
		l.logger.Error("Source file framing does not match schema",
			zap.String("dataset", ds.Name),
			zap.Int64("line", fce.Line),
			zap.Int("fields", fce.Actual),
			zap.Int("expected", fce.Expected))
	} else {
		fatal = fmt.Errorf("read source for %s: %w", ds.Name, readErr)
		l.logger.Error("Source read failed",
			zap.String("dataset", ds.Name),
			zap.Error(readErr))
	}

	if len(rows) > 0 {
		*chunkIndex++
		result.RowsRead += int64(len(rows))
		result.AddChunkFailure(*chunkIndex, len(rows), fatal)
	}
	return fatal
}

// drainAfterDisconnect reads out the rest of the file so chunks never
// attempted are still accounted for. The store is gone but the file is
// not; stop quietly if the file turns bad too.
func (l *Loader) drainAfterDisconnect(src *source.CSV, cause error, result *LoadResult, chunkIndex *int) {
	for {
		rows, err := src.ReadChunk(l.chunkSize)
		if len(rows) > 0 {
			*chunkIndex++
			result.RowsRead += int64(len(rows))
			result.AddChunkFailure(*chunkIndex, len(rows), cause)
		}
		if err != nil {
			return
		}
	}
}

// validateHeader checks that the header names the schema's columns in
// order. Comparison is case-insensitive; arbitrary column order is not
// tolerated because records bind to the schema positionally.
func validateHeader(ds model.Dataset, header []string) *SchemaMismatchError {
	expected := ds.Schema.ColumnNames()

	mismatch := len(header) != len(expected)
	if !mismatch {
		for i := range expected {
			if !strings.EqualFold(strings.TrimSpace(header[i]), expected[i]) {
				mismatch = true
				break
			}
		}
	}

	if mismatch {
		return &SchemaMismatchError{
			Table:    ds.Table,
			Expected: expected,
			Actual:   header,
			Reason:   "header does not name the schema columns in order",
		}
	}
	return nil
}

// logSummary writes the one-line rollup every load ends with, whatever
// the outcome.
func (l *Loader) logSummary(result *LoadResult, fatal error) {
	fields := []zap.Field{
		zap.String("loadID", result.LoadID),
		zap.String("dataset", result.Dataset),
		zap.String("table", result.Table),
		zap.Int64("rowsRead", result.RowsRead),
		zap.Int64("rowsInserted", result.RowsInserted),
		zap.Int64("rowsUpdated", result.RowsUpdated),
		zap.Int64("rowsFailed", result.RowsFailed),
		zap.Int("chunksAttempted", result.ChunksAttempted),
		zap.Int("chunkFailures", len(result.ChunkFailures)),
		zap.Duration("duration", result.Duration),
	}

	switch {
	case fatal != nil:
		l.logger.Error("Load aborted", append(fields, zap.Error(fatal))...)
	case result.RowsFailed > 0:
		l.logger.Warn("Load completed with failures", fields...)
	default:
		l.logger.Info("Load completed", fields...)
	}
}
