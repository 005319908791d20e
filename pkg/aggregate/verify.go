// pkg/aggregate/verify.go
package aggregate

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
)

const verifyTimeout = 5 * time.Minute

// Check statuses reported after an aggregate refresh.
const (
	StatusPass    = "PASS"
	StatusWarning = "WARNING"
)

// CheckResult is the outcome of a single reconciliation check.
type CheckResult struct {
	Name        string
	Status      string
	Description string
	Difference  float64
}

// VerificationSummary collects the reconciliation checks for one run.
type VerificationSummary struct {
	Checks   []CheckResult
	Warnings int
	Duration time.Duration
}

// Clean reports whether every check passed.
func (s *VerificationSummary) Clean() bool {
	return s.Warnings == 0
}

// Verify reconciles the refreshed aggregates against the orders table.
// It stops at the first check that cannot be executed.
func (r *Refresher) Verify(ctx context.Context) (*VerificationSummary, error) {
	start := time.Now()
	summary := &VerificationSummary{}

	checks := []func(context.Context) (CheckResult, error){
		r.checkDailyRevenue,
		r.checkMonthlyConsistency,
		r.checkCustomerOrders,
		r.checkProductRevenue,
	}

	for _, check := range checks {
		cr, err := check(ctx)
		if err != nil {
			return nil, err
		}

		summary.Checks = append(summary.Checks, cr)
		if cr.Status == StatusWarning {
			summary.Warnings++
			r.logger.Warn("Aggregate check flagged",
				zap.String("check", cr.Name),
				zap.String("detail", cr.Description),
				zap.Float64("difference", cr.Difference))
		} else {
			r.logger.Info("Aggregate check passed",
				zap.String("check", cr.Name),
				zap.String("detail", cr.Description))
		}
	}

	summary.Duration = time.Since(start)

	r.logger.Info("Aggregate verification complete",
		zap.Int("checks", len(summary.Checks)),
		zap.Int("warnings", summary.Warnings),
		zap.Duration("duration", summary.Duration))

	return summary, nil
}

// checkDailyRevenue compares daily summary revenue against delivered orders.
func (r *Refresher) checkDailyRevenue(ctx context.Context) (CheckResult, error) {
	const query = `
		SELECT
			COALESCE(ROUND(SUM(total_revenue), 2), 0) AS daily_sum,
			(SELECT COALESCE(ROUND(SUM(total_amount), 2), 0)
			 FROM orders WHERE order_status = 'Delivered') AS order_sum
		FROM daily_sales_summary`

	var dailySum, orderSum float64
	if err := r.scanCheck(ctx, "daily_vs_orders", query, &dailySum, &orderSum); err != nil {
		return CheckResult{}, err
	}

	diff := math.Abs(dailySum - orderSum)
	cr := CheckResult{
		Name:        "daily_vs_orders",
		Status:      StatusPass,
		Description: fmt.Sprintf("daily revenue %.2f vs order revenue %.2f", dailySum, orderSum),
		Difference:  diff,
	}
	if diff >= 1 {
		cr.Status = StatusWarning
	}
	return cr, nil
}

// checkMonthlyConsistency sanity-checks the month-over-month series.
func (r *Refresher) checkMonthlyConsistency(ctx context.Context) (CheckResult, error) {
	const query = `
		SELECT
			COUNT(*) AS total_months,
			COALESCE(SUM(CASE WHEN mom_growth_pct IS NULL THEN 0 ELSE 1 END), 0) AS months_with_growth,
			MIN(month) AS earliest_month,
			MAX(month) AS latest_month
		FROM monthly_sales_summary`

	var totalMonths, withGrowth int64
	var earliest, latest sql.NullTime
	if err := r.scanCheck(ctx, "monthly_consistency", query, &totalMonths, &withGrowth, &earliest, &latest); err != nil {
		return CheckResult{}, err
	}

	detail := fmt.Sprintf("%d months, %d with growth", totalMonths, withGrowth)
	if earliest.Valid && latest.Valid {
		detail = fmt.Sprintf("%d months from %s to %s, %d with growth",
			totalMonths,
			earliest.Time.Format("2006-01"),
			latest.Time.Format("2006-01"),
			withGrowth)
	}

	return CheckResult{
		Name:        "monthly_consistency",
		Status:      StatusPass,
		Description: detail,
	}, nil
}

// checkCustomerOrders reconciles summary order counts with delivered orders.
func (r *Refresher) checkCustomerOrders(ctx context.Context) (CheckResult, error) {
	const query = `
		SELECT
			COUNT(*) AS customers_in_summary,
			COALESCE(SUM(total_orders), 0) AS orders_in_summary,
			(SELECT COUNT(*) FROM orders WHERE order_status = 'Delivered') AS actual_orders
		FROM customer_summary`

	var customers, summaryOrders, actualOrders int64
	if err := r.scanCheck(ctx, "customer_reconciliation", query, &customers, &summaryOrders, &actualOrders); err != nil {
		return CheckResult{}, err
	}

	diff := summaryOrders - actualOrders
	if diff < 0 {
		diff = -diff
	}

	cr := CheckResult{
		Name:        "customer_reconciliation",
		Status:      StatusPass,
		Description: fmt.Sprintf("%d customers report %d orders, store has %d", customers, summaryOrders, actualOrders),
		Difference:  float64(diff),
	}
	if diff != 0 {
		cr.Status = StatusWarning
	}
	return cr, nil
}

// checkProductRevenue reconciles summary revenue with delivered orders.
func (r *Refresher) checkProductRevenue(ctx context.Context) (CheckResult, error) {
	const query = `
		SELECT
			COUNT(*) AS products_in_summary,
			COALESCE(ROUND(SUM(total_revenue), 2), 0) AS product_revenue,
			(SELECT COALESCE(ROUND(SUM(total_amount), 2), 0)
			 FROM orders WHERE order_status = 'Delivered') AS actual_revenue
		FROM product_summary`

	var products int64
	var productRevenue, actualRevenue float64
	if err := r.scanCheck(ctx, "product_revenue", query, &products, &productRevenue, &actualRevenue); err != nil {
		return CheckResult{}, err
	}

	diff := math.Abs(productRevenue - actualRevenue)
	cr := CheckResult{
		Name:        "product_revenue",
		Status:      StatusPass,
		Description: fmt.Sprintf("%d products report revenue %.2f, store has %.2f", products, productRevenue, actualRevenue),
		Difference:  diff,
	}
	if diff >= 1 {
		cr.Status = StatusWarning
	}
	return cr, nil
}

// scanCheck runs a single-row check query and scans its columns.
func (r *Refresher) scanCheck(ctx context.Context, name, query string, dest ...any) error {
	rows, err := r.store.QueryWithTimeout(ctx, query, verifyTimeout)
	if err != nil {
		return fmt.Errorf("check %s failed: %w", name, err)
	}
	defer rows.Close()

	if rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return fmt.Errorf("failed to scan check %s: %w", name, err)
		}
	}
	return rows.Err()
}
