// pkg/quality/anomalies_test.go
package quality

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestDetector(t *testing.T) (*Detector, sqlmock.Sqlmock) {
	t.Helper()
	store, mock := newTestStore(t)
	return NewDetector(store, zap.NewNop()), mock
}

func expectOrderAmounts(mock sqlmock.Sqlmock, amounts map[int64]float64) {
	rows := sqlmock.NewRows([]string{"order_id", "total_amount"})
	for id, amount := range amounts {
		rows.AddRow(id, amount)
	}
	mock.ExpectQuery("SELECT order_id, total_amount FROM orders").WillReturnRows(rows)
}

func expectFlatOrderAmounts(mock sqlmock.Sqlmock, n int, amount float64, extra map[int64]float64) {
	rows := sqlmock.NewRows([]string{"order_id", "total_amount"})
	for i := 1; i <= n; i++ {
		rows.AddRow(int64(i), amount)
	}
	for id, a := range extra {
		rows.AddRow(id, a)
	}
	mock.ExpectQuery("SELECT order_id, total_amount FROM orders").WillReturnRows(rows)
}

func expectQuantities(mock sqlmock.Sqlmock, quantities ...int64) {
	rows := sqlmock.NewRows([]string{"order_id", "product_name", "quantity"})
	for i, q := range quantities {
		rows.AddRow(int64(3001+i), "Smartphones Pro", q)
	}
	mock.ExpectQuery("o.quantity > 5").WillReturnRows(rows)
}

func expectCustomerSpending(mock sqlmock.Sqlmock, spends map[string]float64) {
	rows := sqlmock.NewRows([]string{"customer_name", "total_orders", "total_spent"})
	for name, spent := range spends {
		rows.AddRow(name, int64(4), spent)
	}
	mock.ExpectQuery("FROM customer_summary").WillReturnRows(rows)
}

func expectFlatCustomerSpending(mock sqlmock.Sqlmock, n int, spent float64, extra map[string]float64) {
	rows := sqlmock.NewRows([]string{"customer_name", "total_orders", "total_spent"})
	for i := 0; i < n; i++ {
		rows.AddRow("Regular Shopper", int64(3), spent)
	}
	for name, s := range extra {
		rows.AddRow(name, int64(12), s)
	}
	mock.ExpectQuery("FROM customer_summary").WillReturnRows(rows)
}

func expectDailyRevenue(mock sqlmock.Sqlmock, n int, revenue float64, extra map[string]float64) {
	rows := sqlmock.NewRows([]string{"date", "total_orders", "total_revenue"})
	base := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		rows.AddRow(base.AddDate(0, 0, i), int64(10), revenue)
	}
	for day, r := range extra {
		parsed, _ := time.Parse("2006-01-02", day)
		rows.AddRow(parsed, int64(33), r)
	}
	mock.ExpectQuery("FROM daily_sales_summary").WillReturnRows(rows)
}

func expectRuleCounts(mock sqlmock.Sqlmock, highValue, frequent, zeroRevenue int64) {
	mock.ExpectQuery("total_amount > 200000").WillReturnRows(countRow(highValue))
	mock.ExpectQuery("total_orders > 20").WillReturnRows(countRow(frequent))
	mock.ExpectQuery("total_amount <= 0").WillReturnRows(countRow(zeroRevenue))
}

func TestDetectOrderAmountOutliers(t *testing.T) {
	detector, mock := newTestDetector(t)

	expectFlatOrderAmounts(mock, 20, 100, map[int64]float64{99: 10000})
	expectQuantities(mock)
	expectCustomerSpending(mock, nil)
	expectDailyRevenue(mock, 0, 0, nil)
	expectRuleCounts(mock, 0, 0, 0)

	reports, err := detector.DetectAll(context.Background())
	require.NoError(t, err)

	require.Len(t, reports, 1)
	report := reports[0]
	assert.Equal(t, "Order Amount Outliers", report.Type)
	assert.Equal(t, SeverityInfo, report.Severity)
	assert.Equal(t, 1, report.Count)

	require.Len(t, report.Samples, 1)
	assert.Equal(t, "order 99", report.Samples[0].Label)
	assert.Equal(t, 10000.0, report.Samples[0].Value)
	assert.Greater(t, report.Samples[0].ZScore, 3.0)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDetectHighQuantityOrders(t *testing.T) {
	detector, mock := newTestDetector(t)

	expectOrderAmounts(mock, nil)
	expectQuantities(mock, 6, 7, 8, 9, 10, 11)
	expectCustomerSpending(mock, nil)
	expectDailyRevenue(mock, 0, 0, nil)
	expectRuleCounts(mock, 0, 0, 0)

	reports, err := detector.DetectAll(context.Background())
	require.NoError(t, err)

	require.Len(t, reports, 1)
	report := reports[0]
	assert.Equal(t, "High Quantity Orders", report.Type)
	assert.Equal(t, 6, report.Count)

	// samples keep only the five largest quantities
	require.Len(t, report.Samples, 5)
	assert.Equal(t, 11.0, report.Samples[0].Value)
	assert.Equal(t, 7.0, report.Samples[4].Value)
	assert.Contains(t, report.Samples[0].Label, "Smartphones Pro")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDetectSpendingAndRevenueSpikes(t *testing.T) {
	detector, mock := newTestDetector(t)

	expectOrderAmounts(mock, nil)
	expectQuantities(mock)
	expectFlatCustomerSpending(mock, 10, 1000, map[string]float64{"Asha Mehta": 100000})
	expectDailyRevenue(mock, 10, 5000, map[string]float64{"2025-07-14": 200000})
	expectRuleCounts(mock, 0, 0, 0)

	reports, err := detector.DetectAll(context.Background())
	require.NoError(t, err)

	require.Len(t, reports, 2)
	assert.Equal(t, "High-Value Customers", reports[0].Type)
	assert.Equal(t, "Asha Mehta (12 orders)", reports[0].Samples[0].Label)
	assert.Equal(t, "Daily Sales Spikes", reports[1].Type)
	assert.Equal(t, "2025-07-14 (33 orders)", reports[1].Samples[0].Label)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDetectRuleViolations(t *testing.T) {
	detector, mock := newTestDetector(t)

	expectOrderAmounts(mock, nil)
	expectQuantities(mock)
	expectCustomerSpending(mock, nil)
	expectDailyRevenue(mock, 0, 0, nil)
	expectRuleCounts(mock, 2, 1, 3)

	reports, err := detector.DetectAll(context.Background())
	require.NoError(t, err)

	require.Len(t, reports, 1)
	report := reports[0]
	assert.Equal(t, "Business Rule Violations", report.Type)
	assert.Equal(t, SeverityWarning, report.Severity)
	assert.Equal(t, 3, report.Count)
	assert.Equal(t, "2 very high-value orders, 1 highly active customers, 3 zero-revenue orders", report.Details)
	assert.Empty(t, report.Samples)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDetectAllCleanStoreFindsNothing(t *testing.T) {
	detector, mock := newTestDetector(t)

	expectFlatOrderAmounts(mock, 15, 2500, nil)
	expectQuantities(mock)
	expectFlatCustomerSpending(mock, 8, 9000, nil)
	expectDailyRevenue(mock, 12, 30000, nil)
	expectRuleCounts(mock, 0, 0, 0)

	reports, err := detector.DetectAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, reports)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDetectAllAbortsOnQueryFailure(t *testing.T) {
	detector, mock := newTestDetector(t)

	mock.ExpectQuery("SELECT order_id, total_amount FROM orders").
		WillReturnError(&pgconn.PgError{Code: "57014", Message: "statement timeout"})

	reports, err := detector.DetectAll(context.Background())
	require.Error(t, err)
	assert.Nil(t, reports)
	assert.ErrorContains(t, err, "order amount scan failed")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithThresholdRaisesBar(t *testing.T) {
	detector, mock := newTestDetector(t)
	detector.WithThreshold(5)

	expectFlatOrderAmounts(mock, 20, 100, map[int64]float64{99: 10000})
	expectQuantities(mock)
	expectCustomerSpending(mock, nil)
	expectDailyRevenue(mock, 0, 0, nil)
	expectRuleCounts(mock, 0, 0, 0)

	reports, err := detector.DetectAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, reports)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithThresholdIgnoresNonPositive(t *testing.T) {
	store, _ := newTestStore(t)
	detector := NewDetector(store, zap.NewNop()).WithThreshold(-1)
	assert.Equal(t, DefaultZScoreThreshold, detector.threshold)
}

func TestZScoreOutliers(t *testing.T) {
	points := []point{
		{label: "a", value: 1},
		{label: "b", value: 2},
		{label: "c", value: 3},
		{label: "d", value: 4},
		{label: "e", value: 100},
	}

	outliers := zScoreOutliers(points, 1.5)
	require.Len(t, outliers, 1)
	assert.Equal(t, "e", outliers[0].Label)
	assert.InDelta(t, 1.788, outliers[0].ZScore, 0.01)

	assert.Empty(t, zScoreOutliers(points, 2.0))
}

func TestZScoreSkipsDegenerateInputs(t *testing.T) {
	flat := []point{{label: "a", value: 5}, {label: "b", value: 5}, {label: "c", value: 5}}
	assert.Empty(t, zScoreOutliers(flat, 1.0))

	assert.Empty(t, zScoreOutliers([]point{{label: "only", value: 42}}, 1.0))
	assert.Empty(t, zScoreOutliers(nil, 1.0))
}
