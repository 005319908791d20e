// pkg/quality/profile_test.go
package quality

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestProfiler(t *testing.T) (*Profiler, sqlmock.Sqlmock) {
	t.Helper()
	store, mock := newTestStore(t)
	return NewProfiler(store, zap.NewNop()), mock
}

func expectTableRowCount(mock sqlmock.Sqlmock, table string, total int64) {
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM "`+table+`"`)).
		WillReturnRows(countRow(total))
}

func expectColumnDiscovery(mock sqlmock.Sqlmock, table string, columns [][]string) {
	rows := sqlmock.NewRows([]string{"column_name", "data_type", "is_nullable"})
	for _, col := range columns {
		rows.AddRow(col[0], col[1], col[2])
	}
	mock.ExpectQuery("information_schema.columns").
		WithArgs(table).
		WillReturnRows(rows)
}

func expectColumnCounts(mock sqlmock.Sqlmock, table, column string, unique, nulls int64) {
	query := `SELECT COUNT(DISTINCT "` + column + `") AS unique_values, COUNT(*) - COUNT("` + column + `") AS null_count FROM "` + table + `"`
	mock.ExpectQuery(regexp.QuoteMeta(query)).
		WillReturnRows(sqlmock.NewRows([]string{"unique_values", "null_count"}).AddRow(unique, nulls))
}

func TestProfileTableCollectsColumns(t *testing.T) {
	profiler, mock := newTestProfiler(t)

	expectTableRowCount(mock, "customers", 100)
	expectColumnDiscovery(mock, "customers", [][]string{
		{"customer_id", "bigint", "NO"},
		{"email", "text", "YES"},
		{"age", "bigint", "YES"},
	})
	expectColumnCounts(mock, "customers", "customer_id", 100, 0)
	expectColumnCounts(mock, "customers", "email", 100, 25)
	expectColumnCounts(mock, "customers", "age", 53, 0)

	profile, err := profiler.ProfileTable(context.Background(), "customers")
	require.NoError(t, err)

	assert.Equal(t, "customers", profile.Table)
	assert.Equal(t, int64(100), profile.TotalRows)
	require.Len(t, profile.Columns, 3)

	id := profile.Columns[0]
	assert.Equal(t, "customer_id", id.Name)
	assert.Equal(t, "bigint", id.DataType)
	assert.False(t, id.Nullable)
	assert.Equal(t, int64(100), id.UniqueValues)
	assert.Zero(t, id.NullCount)

	email := profile.Columns[1]
	assert.True(t, email.Nullable)
	assert.Equal(t, int64(25), email.NullCount)
	assert.Equal(t, 25.0, email.NullPercentage)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProfileTableNullPercentage(t *testing.T) {
	t.Run("empty table reports zero", func(t *testing.T) {
		profiler, mock := newTestProfiler(t)

		expectTableRowCount(mock, "orders", 0)
		expectColumnDiscovery(mock, "orders", [][]string{{"order_id", "bigint", "NO"}})
		expectColumnCounts(mock, "orders", "order_id", 0, 0)

		profile, err := profiler.ProfileTable(context.Background(), "orders")
		require.NoError(t, err)
		assert.Zero(t, profile.Columns[0].NullPercentage)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rounds to two decimals", func(t *testing.T) {
		profiler, mock := newTestProfiler(t)

		expectTableRowCount(mock, "orders", 3)
		expectColumnDiscovery(mock, "orders", [][]string{{"payment_method", "text", "YES"}})
		expectColumnCounts(mock, "orders", "payment_method", 2, 1)

		profile, err := profiler.ProfileTable(context.Background(), "orders")
		require.NoError(t, err)
		assert.Equal(t, 33.33, profile.Columns[0].NullPercentage)

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestProfileContinuesPastBrokenTable(t *testing.T) {
	profiler, mock := newTestProfiler(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM "customers"`)).
		WillReturnError(&pgconn.PgError{Code: "42P01", Message: "relation does not exist"})

	expectTableRowCount(mock, "orders", 10)
	expectColumnDiscovery(mock, "orders", [][]string{{"order_id", "bigint", "NO"}})
	expectColumnCounts(mock, "orders", "order_id", 10, 0)

	profiles := profiler.Profile(context.Background(), []string{"customers", "orders"})

	require.Len(t, profiles, 1)
	assert.Equal(t, "orders", profiles[0].Table)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProfileTableWithoutColumnsFails(t *testing.T) {
	profiler, mock := newTestProfiler(t)

	expectTableRowCount(mock, "ghost", 0)
	expectColumnDiscovery(mock, "ghost", nil)

	_, err := profiler.ProfileTable(context.Background(), "ghost")
	require.Error(t, err)
	assert.ErrorContains(t, err, "no columns")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProfileTablesCoverBaseAndAggregates(t *testing.T) {
	tables := ProfileTables()

	assert.Equal(t, []string{
		"customers",
		"products",
		"orders",
		"customer_summary",
		"product_summary",
		"daily_sales_summary",
		"monthly_sales_summary",
	}, tables)
}
