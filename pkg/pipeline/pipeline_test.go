// pkg/pipeline/pipeline_test.go
package pipeline

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ecompipe/pkg/aggregate"
	"ecompipe/pkg/cleaner"
	"ecompipe/pkg/config"
	"ecompipe/pkg/converter"
	"ecompipe/pkg/generator"
	"ecompipe/pkg/model"
	"ecompipe/pkg/quality"
)

type stubStore struct {
	db *sql.DB
}

func (s *stubStore) DB() *sql.DB                        { return s.db }
func (s *stubStore) Validate(ctx context.Context) error { return nil }
func (s *stubStore) Close() error                       { return s.db.Close() }

func (s *stubStore) QueryWithTimeout(ctx context.Context, query string, timeout time.Duration, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, query, args...)
}

func (s *stubStore) ExecWithTimeout(ctx context.Context, query string, timeout time.Duration, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, query, args...)
}

func newTestRunner(t *testing.T, rawDir string) (*Runner, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := &config.Config{
		ChunkSize:              500,
		RawDataDir:             rawDir,
		ProcessedDataDir:       t.TempDir(),
		AnomalyZScoreThreshold: 3.0,
		QualitySeverity:        "ERROR",
	}
	return NewRunner(cfg, &stubStore{db: db}, zap.NewNop()), mock
}

// generateSourceFiles writes small but fully-shaped source CSVs.
func generateSourceFiles(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	gen := generator.New(generator.Config{
		Customers: 3,
		Products:  2,
		Orders:    4,
		Seed:      7,
		OutDir:    dir,
	}, zap.NewNop())

	_, err := gen.GenerateAll()
	require.NoError(t, err)
	return dir
}

func countRow(n int64) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"count"}).AddRow(n)
}

func expectValidation(mock sqlmock.Sqlmock, counts map[string]int64) {
	datasets := model.DefaultDatasets()

	for _, ds := range datasets {
		mock.ExpectQuery("SELECT EXISTS").WithArgs(ds.Table).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	}
	for _, ds := range datasets {
		mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM " + converter.QuoteIdentifier(ds.Table))).
			WillReturnRows(countRow(counts[ds.Name]))
	}
	for _, ds := range datasets {
		rows := sqlmock.NewRows([]string{"column_name"})
		for _, col := range ds.Schema.ColumnNames() {
			rows.AddRow(col)
		}
		mock.ExpectQuery("information_schema.columns").WithArgs(ds.Table).WillReturnRows(rows)
	}
	for _, ds := range datasets {
		mock.ExpectQuery(regexp.QuoteMeta(duplicateQuery(ds))).WillReturnRows(countRow(0))
	}
}

func expectEnsureTables(mock sqlmock.Sqlmock) {
	for _, ds := range model.DefaultDatasets() {
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS " + converter.QuoteIdentifier(ds.Table)).
			WillReturnResult(sqlmock.NewResult(0, 0))
	}
}

// expectLoads queues one single-chunk upsert transaction per dataset.
func expectLoads(mock sqlmock.Sqlmock, rowCounts map[string]int) {
	for _, ds := range model.DefaultDatasets() {
		mock.ExpectBegin()
		for i := 0; i < rowCounts[ds.Name]; i++ {
			mock.ExpectQuery("INSERT INTO " + converter.QuoteIdentifier(ds.Table)).
				WillReturnRows(sqlmock.NewRows([]string{"inserted"}).AddRow(true))
		}
		mock.ExpectCommit()
	}
}

func expectTransformation(mock sqlmock.Sqlmock) {
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS cleaning_log").
		WillReturnResult(sqlmock.NewResult(0, 0))
	for range cleaner.Operations() {
		mock.ExpectExec("UPDATE ").WillReturnResult(sqlmock.NewResult(0, 0))
	}

	for _, table := range aggregate.Tables() {
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS " + table.Name).
			WillReturnResult(sqlmock.NewResult(0, 0))
	}
	for _, table := range aggregate.Tables() {
		mock.ExpectBegin()
		mock.ExpectExec("TRUNCATE TABLE " + table.Name).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec("INSERT INTO " + table.Name).
			WillReturnResult(sqlmock.NewResult(0, 25))
		mock.ExpectCommit()
	}

	earliest := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	latest := time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("FROM daily_sales_summary").WillReturnRows(
		sqlmock.NewRows([]string{"daily_sum", "order_sum"}).AddRow(1000.0, 1000.0))
	mock.ExpectQuery("FROM monthly_sales_summary").WillReturnRows(
		sqlmock.NewRows([]string{"total_months", "months_with_growth", "earliest_month", "latest_month"}).
			AddRow(int64(2), int64(1), earliest, latest))
	mock.ExpectQuery("FROM customer_summary").WillReturnRows(
		sqlmock.NewRows([]string{"customers_in_summary", "orders_in_summary", "actual_orders"}).
			AddRow(int64(3), int64(4), int64(4)))
	mock.ExpectQuery("FROM product_summary").WillReturnRows(
		sqlmock.NewRows([]string{"products_in_summary", "product_revenue", "actual_revenue"}).
			AddRow(int64(2), 1000.0, 1000.0))
}

// expectQualityChecks queues the whole suite; checks named in failing
// report that many offending rows, everything else zero.
func expectQualityChecks(mock sqlmock.Sqlmock, failing map[string]int64) {
	for _, chk := range quality.DefaultChecks() {
		mock.ExpectQuery(regexp.QuoteMeta(chk.Query)).
			WillReturnRows(countRow(failing[chk.Name]))
	}
}

func expectNoAnomalies(mock sqlmock.Sqlmock) {
	mock.ExpectQuery("FROM orders WHERE order_status").
		WillReturnRows(sqlmock.NewRows([]string{"order_id", "total_amount"}))
	mock.ExpectQuery("quantity > 5").
		WillReturnRows(sqlmock.NewRows([]string{"order_id", "product_name", "quantity"}))
	mock.ExpectQuery("FROM customer_summary").
		WillReturnRows(sqlmock.NewRows([]string{"customer_name", "total_orders", "total_spent"}))
	mock.ExpectQuery("FROM daily_sales_summary").
		WillReturnRows(sqlmock.NewRows([]string{"date", "total_orders", "total_revenue"}))
	mock.ExpectQuery("total_amount > 200000").WillReturnRows(countRow(0))
	mock.ExpectQuery("total_orders > 20").WillReturnRows(countRow(0))
	mock.ExpectQuery(regexp.QuoteMeta("total_amount <= 0")).WillReturnRows(countRow(0))
}

func TestRunAllStagesSucceed(t *testing.T) {
	dir := generateSourceFiles(t)
	runner, mock := newTestRunner(t, dir)

	expectValidation(mock, map[string]int64{"customers": 100, "products": 40, "orders": 250})
	expectEnsureTables(mock)
	expectLoads(mock, map[string]int{"customers": 3, "products": 2, "orders": 4})
	expectTransformation(mock)
	expectQualityChecks(mock, nil)
	expectNoAnomalies(mock)

	result, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, result.Succeeded)
	assert.NotEmpty(t, result.RunID)
	require.Len(t, result.Stages, 4)
	for _, stage := range result.Stages {
		assert.Equal(t, StatusSuccess, stage.Status, stage.Name)
	}

	validation := result.Stage(StageValidation)
	require.NotNil(t, validation)
	assert.Equal(t, true, validation.Details["tables_exist"])
	assert.Equal(t, int64(250), validation.Details["orders_count"])
	assert.Equal(t, int64(0), validation.Details["customers_duplicates"])

	ingestion := result.Stage(StageIngestion)
	assert.Equal(t, int64(3), ingestion.Details["customers_loaded"])
	assert.Equal(t, int64(9), ingestion.Details["total_rows"])

	transformation := result.Stage(StageTransformation)
	assert.Equal(t, int64(0), transformation.Details["rows_standardized"])
	assert.Equal(t, int64(25), transformation.Details["customer_summary"])
	assert.Equal(t, 0, transformation.Details["verification_warnings"])

	qualityStage := result.Stage(StageQuality)
	assert.Equal(t, 20, qualityStage.Details["checks_passed"])
	assert.Equal(t, "A+ (Excellent)", qualityStage.Details["grade"])
	assert.Equal(t, 0, qualityStage.Details["anomaly_reports"])

	m := runner.Metrics()
	assert.Equal(t, 3, m.LoadsSucceeded)
	assert.Equal(t, int64(9), m.TotalRowsRead)
	assert.Greater(t, m.TotalBytesRead, int64(0))
	assert.False(t, m.EndTime.IsZero())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunFailsFastWhenTablesMissing(t *testing.T) {
	runner, mock := newTestRunner(t, t.TempDir())

	for i, ds := range model.DefaultDatasets() {
		mock.ExpectQuery("SELECT EXISTS").WithArgs(ds.Table).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(i != 0))
	}

	result, err := runner.Run(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "stage validation failed")
	assert.ErrorContains(t, err, "missing required tables: customers")

	assert.False(t, result.Succeeded)
	require.Len(t, result.Stages, 4)
	assert.Equal(t, StatusFailed, result.Stages[0].Status)
	assert.Equal(t, StatusSkipped, result.Stages[1].Status)
	assert.Equal(t, StatusSkipped, result.Stages[2].Status)
	assert.Equal(t, StatusSkipped, result.Stages[3].Status)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunSkipsRemainingAfterIngestionFailure(t *testing.T) {
	// Raw data directory exists but holds no source files.
	runner, mock := newTestRunner(t, t.TempDir())

	expectValidation(mock, map[string]int64{})
	expectEnsureTables(mock)

	result, err := runner.Run(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "stage ingestion failed")
	assert.ErrorContains(t, err, "failed to load dataset customers")

	require.Len(t, result.Stages, 4)
	assert.Equal(t, StatusSuccess, result.Stages[0].Status)
	assert.Equal(t, StatusFailed, result.Stages[1].Status)
	assert.Equal(t, StatusSkipped, result.Stages[2].Status)
	assert.Equal(t, StatusSkipped, result.Stages[3].Status)

	assert.Equal(t, 1, runner.Metrics().LoadsFailed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunQualityGateBlocksRun(t *testing.T) {
	dir := generateSourceFiles(t)
	runner, mock := newTestRunner(t, dir)

	expectValidation(mock, map[string]int64{})
	expectEnsureTables(mock)
	expectLoads(mock, map[string]int{"customers": 3, "products": 2, "orders": 4})
	expectTransformation(mock)
	expectQualityChecks(mock, map[string]int64{"Customers: No NULL emails": 4})

	result, err := runner.Run(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "quality gate failed: 1 of 20")

	stage := result.Stage(StageQuality)
	require.NotNil(t, stage)
	assert.Equal(t, StatusFailed, stage.Status)
	assert.Equal(t, 19, stage.Details["checks_passed"])
	assert.Equal(t, 1, stage.Details["checks_failed"])

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWriteReport(t *testing.T) {
	result := &Result{
		RunID:     "0b38b9e2-8f4e-4dbb-9a26-5cf6e19f1f10",
		StartTime: time.Date(2025, 11, 9, 4, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2025, 11, 9, 4, 2, 30, 0, time.UTC),
		Succeeded: true,
		Stages: []StageResult{
			{Name: StageValidation, Status: StatusSuccess, Seconds: 1.5},
			{Name: StageIngestion, Status: StatusSuccess, Seconds: 42.7,
				Details: map[string]any{"total_rows": 55400}},
		},
	}

	dir := t.TempDir()
	path, err := result.WriteReport(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "pipeline_report_20251109_040000.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, true, decoded["succeeded"])
	assert.Equal(t, result.RunID, decoded["run_id"])

	stages, ok := decoded["stages"].([]any)
	require.True(t, ok)
	require.Len(t, stages, 2)
	first, ok := stages[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "validation", first["stage"])
	assert.Equal(t, "SUCCESS", first["status"])
}
