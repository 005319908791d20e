// pkg/aggregate/verify_test.go
package aggregate

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func expectDailyCheck(mock sqlmock.Sqlmock, dailySum, orderSum float64) {
	mock.ExpectQuery("FROM daily_sales_summary").WillReturnRows(
		sqlmock.NewRows([]string{"daily_sum", "order_sum"}).AddRow(dailySum, orderSum))
}

func expectMonthlyCheck(mock sqlmock.Sqlmock, months, withGrowth int64, earliest, latest any) {
	mock.ExpectQuery("FROM monthly_sales_summary").WillReturnRows(
		sqlmock.NewRows([]string{"total_months", "months_with_growth", "earliest_month", "latest_month"}).
			AddRow(months, withGrowth, earliest, latest))
}

func expectCustomerCheck(mock sqlmock.Sqlmock, customers, summaryOrders, actualOrders int64) {
	mock.ExpectQuery("FROM customer_summary").WillReturnRows(
		sqlmock.NewRows([]string{"customers_in_summary", "orders_in_summary", "actual_orders"}).
			AddRow(customers, summaryOrders, actualOrders))
}

func expectProductCheck(mock sqlmock.Sqlmock, products int64, productRevenue, actualRevenue float64) {
	mock.ExpectQuery("FROM product_summary").WillReturnRows(
		sqlmock.NewRows([]string{"products_in_summary", "product_revenue", "actual_revenue"}).
			AddRow(products, productRevenue, actualRevenue))
}

func TestVerifyAllChecksPass(t *testing.T) {
	refresher, mock := newTestRefresher(t)

	earliest := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	latest := time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)

	expectDailyCheck(mock, 1529344.50, 1529344.50)
	expectMonthlyCheck(mock, 7, 6, earliest, latest)
	expectCustomerCheck(mock, 100, 375, 375)
	expectProductCheck(mock, 150, 1529344.50, 1529344.50)

	summary, err := refresher.Verify(context.Background())
	require.NoError(t, err)

	require.Len(t, summary.Checks, 4)
	assert.Equal(t, "daily_vs_orders", summary.Checks[0].Name)
	assert.Equal(t, "monthly_consistency", summary.Checks[1].Name)
	assert.Equal(t, "customer_reconciliation", summary.Checks[2].Name)
	assert.Equal(t, "product_revenue", summary.Checks[3].Name)

	for _, check := range summary.Checks {
		assert.Equal(t, StatusPass, check.Status, check.Name)
	}
	assert.True(t, summary.Clean())
	assert.Contains(t, summary.Checks[1].Description, "from 2025-05 to 2025-11")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVerifyFlagsMismatches(t *testing.T) {
	refresher, mock := newTestRefresher(t)

	earliest := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	latest := time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)

	expectDailyCheck(mock, 1529344.50, 1529347.00)
	expectMonthlyCheck(mock, 7, 6, earliest, latest)
	expectCustomerCheck(mock, 100, 372, 375)
	expectProductCheck(mock, 150, 1529344.20, 1529344.50)

	summary, err := refresher.Verify(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StatusWarning, summary.Checks[0].Status)
	assert.InDelta(t, 2.5, summary.Checks[0].Difference, 0.001)

	assert.Equal(t, StatusWarning, summary.Checks[2].Status)
	assert.InDelta(t, 3, summary.Checks[2].Difference, 0.001)

	// fractional drift stays below the one-unit tolerance
	assert.Equal(t, StatusPass, summary.Checks[3].Status)

	assert.Equal(t, 2, summary.Warnings)
	assert.False(t, summary.Clean())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVerifyEmptyAggregatesStayConsistent(t *testing.T) {
	refresher, mock := newTestRefresher(t)

	expectDailyCheck(mock, 0, 0)
	expectMonthlyCheck(mock, 0, 0, nil, nil)
	expectCustomerCheck(mock, 0, 0, 0)
	expectProductCheck(mock, 0, 0, 0)

	summary, err := refresher.Verify(context.Background())
	require.NoError(t, err)

	assert.True(t, summary.Clean())
	assert.Equal(t, "0 months, 0 with growth", summary.Checks[1].Description)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVerifyAbortsOnQueryFailure(t *testing.T) {
	refresher, mock := newTestRefresher(t)

	mock.ExpectQuery("FROM daily_sales_summary").
		WillReturnError(&pgconn.PgError{Code: "57014", Message: "canceling statement due to statement timeout"})

	summary, err := refresher.Verify(context.Background())
	require.Error(t, err)
	assert.Nil(t, summary)
	assert.ErrorContains(t, err, "check daily_vs_orders failed")

	assert.NoError(t, mock.ExpectationsWereMet())
}
