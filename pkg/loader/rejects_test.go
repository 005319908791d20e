// pkg/loader/rejects_test.go
package loader

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ecompipe/pkg/model"
)

type recordingWriter struct {
	createdTables []string
	createdDefs   []string
	table         string
	columns       []string
	valueRows     [][]any
	createErr     error
	insertErr     error
}

func (w *recordingWriter) CreateTableIfNotExists(ctx context.Context, table string, columnDefs []string, primaryKey []string) error {
	w.createdTables = append(w.createdTables, table)
	w.createdDefs = columnDefs
	return w.createErr
}

func (w *recordingWriter) BatchInsert(ctx context.Context, table string, columns []string, valueRows [][]any, batchSize int) (int64, error) {
	w.table = table
	w.columns = columns
	w.valueRows = valueRows
	if w.insertErr != nil {
		return 0, w.insertErr
	}
	return int64(len(valueRows)), nil
}

func sampleReject() model.RejectedRow {
	return model.RejectedRow{
		Dataset:    "customers",
		Table:      "customers",
		ChunkIndex: 2,
		Line:       17,
		Column:     "total_spent",
		RawValue:   "n/a",
		Reason:     `column "total_spent": cannot coerce "n/a" to decimal`,
		RejectedAt: time.Date(2025, 11, 6, 9, 30, 0, 0, time.UTC),
	}
}

func TestRejectTrackerNilReceiver(t *testing.T) {
	var tracker *RejectTracker

	tracker.Track(sampleReject())
	assert.Equal(t, 0, tracker.Count())
	assert.NoError(t, tracker.Flush(context.Background()))
}

func TestRejectTrackerFlushWritesQuarantine(t *testing.T) {
	writer := &recordingWriter{}
	tracker := NewRejectTracker(writer, zap.NewNop())

	tracker.Track(sampleReject())
	empty := sampleReject()
	empty.Column = ""
	empty.RawValue = ""
	tracker.Track(empty)
	require.Equal(t, 2, tracker.Count())

	require.NoError(t, tracker.Flush(context.Background()))

	require.Equal(t, []string{"load_rejects"}, writer.createdTables)
	assert.Contains(t, writer.createdDefs[0], "BIGSERIAL PRIMARY KEY")
	assert.Equal(t, "load_rejects", writer.table)
	assert.Equal(t, rejectColumns, writer.columns)
	require.Len(t, writer.valueRows, 2)

	first := writer.valueRows[0]
	assert.Equal(t, "customers", first[0])
	assert.Equal(t, 2, first[2])
	assert.Equal(t, int64(17), first[3])
	assert.Equal(t, "total_spent", first[4])

	// Blank column and raw value land as NULL, not empty strings.
	second := writer.valueRows[1]
	assert.Nil(t, second[4])
	assert.Nil(t, second[5])

	// The buffer is cleared so a second flush writes nothing.
	assert.Equal(t, 0, tracker.Count())
	require.NoError(t, tracker.Flush(context.Background()))
	assert.Len(t, writer.createdTables, 1)
}

func TestRejectTrackerFlushEmptySkipsStore(t *testing.T) {
	writer := &recordingWriter{}
	tracker := NewRejectTracker(writer, zap.NewNop())

	require.NoError(t, tracker.Flush(context.Background()))
	assert.Empty(t, writer.createdTables)
	assert.Empty(t, writer.valueRows)
}

func TestRejectTrackerFlushSurfacesInsertError(t *testing.T) {
	writer := &recordingWriter{insertErr: assert.AnError}
	tracker := NewRejectTracker(writer, zap.NewNop())

	tracker.Track(sampleReject())
	err := tracker.Flush(context.Background())
	assert.ErrorIs(t, err, assert.AnError)
}

func TestRejectTrackerFlushSurfacesProvisioningError(t *testing.T) {
	writer := &recordingWriter{createErr: assert.AnError}
	tracker := NewRejectTracker(writer, zap.NewNop())

	tracker.Track(sampleReject())
	err := tracker.Flush(context.Background())
	assert.ErrorIs(t, err, assert.AnError)
	assert.Empty(t, writer.valueRows)
}
