// pkg/quality/anomalies.go
package quality

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"ecompipe/pkg/connector"
)

// DefaultZScoreThreshold flags order amounts beyond this many standard
// deviations from the mean.
const DefaultZScoreThreshold = 3.0

const (
	customerSpendingThreshold = 2.5
	dailyRevenueThreshold     = 2.0
	anomalySampleLimit        = 5
)

// Outlier is one flagged value with its distance from the mean.
type Outlier struct {
	Label  string  `json:"label"`
	Value  float64 `json:"value"`
	ZScore float64 `json:"z_score,omitempty"`
}

// AnomalyReport groups the findings of one detection pass.
type AnomalyReport struct {
	Type     string    `json:"type"`
	Severity Severity  `json:"severity"`
	Count    int       `json:"count"`
	Details  string    `json:"details"`
	Samples  []Outlier `json:"samples,omitempty"`
}

// Detector scans the store for statistical outliers and rule violations.
type Detector struct {
	store     connector.DatabaseConnector
	logger    *zap.Logger
	threshold float64
}

// NewDetector creates a detector with the default order-amount threshold.
func NewDetector(store connector.DatabaseConnector, logger *zap.Logger) *Detector {
	return &Detector{
		store:     store,
		logger:    logger.Named("anomaly"),
		threshold: DefaultZScoreThreshold,
	}
}

// WithThreshold overrides the order-amount Z-score threshold.
func (d *Detector) WithThreshold(threshold float64) *Detector {
	if threshold > 0 {
		d.threshold = threshold
	}
	return d
}

// DetectAll runs every detection and returns the reports for anomalies
// actually found. It stops at the first query that cannot be executed.
func (d *Detector) DetectAll(ctx context.Context) ([]AnomalyReport, error) {
	start := time.Now()
	detections := []func(context.Context) (*AnomalyReport, error){
		d.detectOrderAmounts,
		d.detectHighQuantities,
		d.detectCustomerSpending,
		d.detectDailyRevenue,
		d.detectRuleViolations,
	}

	var reports []AnomalyReport
	for _, detect := range detections {
		report, err := detect(ctx)
		if err != nil {
			return nil, err
		}
		if report == nil {
			continue
		}

		reports = append(reports, *report)
		d.logger.Info("Anomalies detected",
			zap.String("type", report.Type),
			zap.Int("count", report.Count),
			zap.String("severity", string(report.Severity)))
	}

	d.logger.Info("Anomaly detection complete",
		zap.Int("anomalyTypes", len(reports)),
		zap.Duration("duration", time.Since(start)))

	return reports, nil
}

// detectOrderAmounts flags delivered orders with unusual totals.
func (d *Detector) detectOrderAmounts(ctx context.Context) (*AnomalyReport, error) {
	const query = `SELECT order_id, total_amount FROM orders WHERE order_status = 'Delivered'`

	rows, err := d.store.QueryWithTimeout(ctx, query, checkTimeout)
	if err != nil {
		return nil, fmt.Errorf("order amount scan failed: %w", err)
	}
	defer rows.Close()

	var points []point
	for rows.Next() {
		var orderID int64
		var amount float64
		if err := rows.Scan(&orderID, &amount); err != nil {
			return nil, fmt.Errorf("failed to scan order amount: %w", err)
		}
		points = append(points, point{label: fmt.Sprintf("order %d", orderID), value: amount})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	outliers := zScoreOutliers(points, d.threshold)
	if len(outliers) == 0 {
		return nil, nil
	}

	return &AnomalyReport{
		Type:     "Order Amount Outliers",
		Severity: SeverityInfo,
		Count:    len(outliers),
		Details:  fmt.Sprintf("orders with amounts more than %.1f standard deviations from the mean", d.threshold),
		Samples:  sampleTop(outliers),
	}, nil
}

// detectHighQuantities flags bulk-sized delivered orders.
func (d *Detector) detectHighQuantities(ctx context.Context) (*AnomalyReport, error) {
	const query = `SELECT o.order_id, p.product_name, o.quantity
		FROM orders o
		JOIN products p ON o.product_id = p.product_id
		WHERE o.order_status = 'Delivered' AND o.quantity > 5`

	rows, err := d.store.QueryWithTimeout(ctx, query, checkTimeout)
	if err != nil {
		return nil, fmt.Errorf("quantity scan failed: %w", err)
	}
	defer rows.Close()

	var outliers []Outlier
	for rows.Next() {
		var orderID, quantity int64
		var productName string
		if err := rows.Scan(&orderID, &productName, &quantity); err != nil {
			return nil, fmt.Errorf("failed to scan order quantity: %w", err)
		}
		outliers = append(outliers, Outlier{
			Label: fmt.Sprintf("order %d: %s", orderID, productName),
			Value: float64(quantity),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(outliers) == 0 {
		return nil, nil
	}

	sort.Slice(outliers, func(i, j int) bool { return outliers[i].Value > outliers[j].Value })
	return &AnomalyReport{
		Type:     "High Quantity Orders",
		Severity: SeverityInfo,
		Count:    len(outliers),
		Details:  "orders with quantities > 5 (potential bulk purchases)",
		Samples:  sampleTop(outliers),
	}, nil
}

// detectCustomerSpending flags customers far above typical lifetime spend.
func (d *Detector) detectCustomerSpending(ctx context.Context) (*AnomalyReport, error) {
	const query = `SELECT customer_name, total_orders, total_spent FROM customer_summary`

	rows, err := d.store.QueryWithTimeout(ctx, query, checkTimeout)
	if err != nil {
		return nil, fmt.Errorf("customer spending scan failed: %w", err)
	}
	defer rows.Close()

	var points []point
	for rows.Next() {
		var name string
		var orders int64
		var spent float64
		if err := rows.Scan(&name, &orders, &spent); err != nil {
			return nil, fmt.Errorf("failed to scan customer spending: %w", err)
		}
		points = append(points, point{label: fmt.Sprintf("%s (%d orders)", name, orders), value: spent})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	outliers := zScoreOutliers(points, customerSpendingThreshold)
	if len(outliers) == 0 {
		return nil, nil
	}

	return &AnomalyReport{
		Type:     "High-Value Customers",
		Severity: SeverityInfo,
		Count:    len(outliers),
		Details:  "VIP customers with exceptional spending patterns",
		Samples:  sampleTop(outliers),
	}, nil
}

// detectDailyRevenue flags days with unusual total revenue.
func (d *Detector) detectDailyRevenue(ctx context.Context) (*AnomalyReport, error) {
	const query = `SELECT date, total_orders, total_revenue FROM daily_sales_summary`

	rows, err := d.store.QueryWithTimeout(ctx, query, checkTimeout)
	if err != nil {
		return nil, fmt.Errorf("daily revenue scan failed: %w", err)
	}
	defer rows.Close()

	var points []point
	for rows.Next() {
		var day time.Time
		var orders int64
		var revenue float64
		if err := rows.Scan(&day, &orders, &revenue); err != nil {
			return nil, fmt.Errorf("failed to scan daily revenue: %w", err)
		}
		points = append(points, point{
			label: fmt.Sprintf("%s (%d orders)", day.Format("2006-01-02"), orders),
			value: revenue,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	outliers := zScoreOutliers(points, dailyRevenueThreshold)
	if len(outliers) == 0 {
		return nil, nil
	}

	return &AnomalyReport{
		Type:     "Daily Sales Spikes",
		Severity: SeverityInfo,
		Count:    len(outliers),
		Details:  "days with exceptional sales performance",
		Samples:  sampleTop(outliers),
	}, nil
}

// detectRuleViolations runs the fixed business-rule scans.
func (d *Detector) detectRuleViolations(ctx context.Context) (*AnomalyReport, error) {
	highValue, err := scanCount(ctx, d.store, `SELECT COUNT(*) FROM orders WHERE total_amount > 200000 AND order_status = 'Delivered'`)
	if err != nil {
		return nil, fmt.Errorf("high-value rule scan failed: %w", err)
	}

	frequent, err := scanCount(ctx, d.store, `SELECT COUNT(*) FROM customer_summary WHERE total_orders > 20`)
	if err != nil {
		return nil, fmt.Errorf("frequent-customer rule scan failed: %w", err)
	}

	zeroRevenue, err := scanCount(ctx, d.store, `SELECT COUNT(*) FROM orders WHERE total_amount <= 0 AND order_status <> 'Cancelled'`)
	if err != nil {
		return nil, fmt.Errorf("zero-revenue rule scan failed: %w", err)
	}

	var violations []string
	if highValue > 0 {
		violations = append(violations, fmt.Sprintf("%d very high-value orders", highValue))
		d.logger.Warn("Orders exceed review threshold", zap.Int64("count", highValue))
	}
	if frequent > 0 {
		violations = append(violations, fmt.Sprintf("%d highly active customers", frequent))
		d.logger.Info("Customers exceed 20 orders", zap.Int64("count", frequent))
	}
	if zeroRevenue > 0 {
		violations = append(violations, fmt.Sprintf("%d zero-revenue orders", zeroRevenue))
		d.logger.Error("Non-cancelled orders with zero revenue", zap.Int64("count", zeroRevenue))
	}

	if len(violations) == 0 {
		return nil, nil
	}

	return &AnomalyReport{
		Type:     "Business Rule Violations",
		Severity: SeverityWarning,
		Count:    len(violations),
		Details:  strings.Join(violations, ", "),
	}, nil
}

// point is one labeled measurement fed to the Z-score pass.
type point struct {
	label string
	value float64
}

// zScoreOutliers returns the points whose Z-score exceeds the threshold,
// sorted by value descending. Columns with zero spread produce nothing.
func zScoreOutliers(points []point, threshold float64) []Outlier {
	if len(points) < 2 {
		return nil
	}

	var sum float64
	for _, p := range points {
		sum += p.value
	}
	mean := sum / float64(len(points))

	var sqSum float64
	for _, p := range points {
		dev := p.value - mean
		sqSum += dev * dev
	}
	stddev := math.Sqrt(sqSum / float64(len(points)-1))
	if stddev == 0 {
		return nil
	}

	var outliers []Outlier
	for _, p := range points {
		z := math.Abs(p.value-mean) / stddev
		if z > threshold {
			outliers = append(outliers, Outlier{Label: p.label, Value: p.value, ZScore: z})
		}
	}

	sort.Slice(outliers, func(i, j int) bool { return outliers[i].Value > outliers[j].Value })
	return outliers
}

// sampleTop keeps the first few outliers for reporting.
func sampleTop(outliers []Outlier) []Outlier {
	if len(outliers) <= anomalySampleLimit {
		return outliers
	}
	return outliers[:anomalySampleLimit]
}
