// pkg/quality/checks.go
package quality

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"ecompipe/pkg/connector"
	"ecompipe/pkg/retry"
)

const checkTimeout = 2 * time.Minute

// Severity ranks how much a failed check matters.
type Severity string

const (
	SeverityError   Severity = "ERROR"
	SeverityWarning Severity = "WARNING"
	SeverityInfo    Severity = "INFO"
)

// Check outcome statuses.
const (
	StatusPass  = "PASS"
	StatusFail  = "FAIL"
	StatusError = "ERROR"
)

// Quality dimensions.
const (
	DimensionCompleteness = "completeness"
	DimensionValidity     = "validity"
	DimensionConsistency  = "consistency"
	DimensionUniqueness   = "uniqueness"
)

// Check is a single scalar SQL probe compared against an expected value.
type Check struct {
	Name      string
	Dimension string
	Query     string
	Expected  int64
	Severity  Severity
}

// CheckOutcome records the result of one executed check.
type CheckOutcome struct {
	Name      string    `json:"check_name"`
	Dimension string    `json:"dimension"`
	Severity  Severity  `json:"severity"`
	Status    string    `json:"status"`
	Expected  int64     `json:"expected"`
	Actual    int64     `json:"actual"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"timestamp"`
}

// CheckReport summarizes a full quality check run.
type CheckReport struct {
	StartedAt time.Time      `json:"started_at"`
	Checks    []CheckOutcome `json:"checks"`
	Passed    int            `json:"passed"`
	Failed    int            `json:"failed"`
	PassRate  float64        `json:"pass_rate"`
	Grade     string         `json:"grade"`
	Duration  time.Duration  `json:"-"`
}

// HasBlockingFailures reports whether any ERROR-severity check did not pass.
func (r *CheckReport) HasBlockingFailures() bool {
	for _, c := range r.Checks {
		if c.Severity == SeverityError && c.Status != StatusPass {
			return true
		}
	}
	return false
}

// Blocking applies the configured severity gate: "WARNING" blocks on
// any non-passing check, anything else on ERROR-severity ones only.
func (r *CheckReport) Blocking(severity string) bool {
	if strings.EqualFold(severity, string(SeverityWarning)) {
		return r.Failed > 0
	}
	return r.HasBlockingFailures()
}

func (r *CheckReport) finalize() {
	total := r.Passed + r.Failed
	if total > 0 {
		r.PassRate = float64(r.Passed) / float64(total) * 100
	}
	r.Grade = grade(r.PassRate)
	r.Duration = time.Since(r.StartedAt)
}

// grade maps a pass rate to a letter grade.
func grade(passRate float64) string {
	switch {
	case passRate == 100:
		return "A+ (Excellent)"
	case passRate >= 95:
		return "A (Very Good)"
	case passRate >= 90:
		return "B (Good)"
	case passRate >= 80:
		return "C (Acceptable)"
	default:
		return "F (Needs Attention)"
	}
}

// DefaultChecks returns the standard check suite over the base and
// summary tables, grouped by dimension.
func DefaultChecks() []Check {
	return []Check{
		// completeness
		{
			Name:      "Customers: No NULL emails",
			Dimension: DimensionCompleteness,
			Query:     "SELECT COUNT(*) FROM customers WHERE email IS NULL",
			Severity:  SeverityError,
		},
		{
			Name:      "Customers: No NULL customer_ids",
			Dimension: DimensionCompleteness,
			Query:     "SELECT COUNT(*) FROM customers WHERE customer_id IS NULL",
			Severity:  SeverityError,
		},
		{
			Name:      "Products: No NULL product names",
			Dimension: DimensionCompleteness,
			Query:     "SELECT COUNT(*) FROM products WHERE product_name IS NULL",
			Severity:  SeverityError,
		},
		{
			Name:      "Products: No NULL prices",
			Dimension: DimensionCompleteness,
			Query:     "SELECT COUNT(*) FROM products WHERE price IS NULL",
			Severity:  SeverityError,
		},
		{
			Name:      "Orders: No NULL order_ids",
			Dimension: DimensionCompleteness,
			Query:     "SELECT COUNT(*) FROM orders WHERE order_id IS NULL",
			Severity:  SeverityError,
		},
		{
			Name:      "Orders: No NULL total_amounts",
			Dimension: DimensionCompleteness,
			Query:     "SELECT COUNT(*) FROM orders WHERE total_amount IS NULL",
			Severity:  SeverityError,
		},

		// validity
		{
			Name:      "Customers: Age between 18-120",
			Dimension: DimensionValidity,
			Query:     "SELECT COUNT(*) FROM customers WHERE age < 18 OR age > 120",
			Severity:  SeverityError,
		},
		{
			Name:      "Products: Price > 0",
			Dimension: DimensionValidity,
			Query:     "SELECT COUNT(*) FROM products WHERE price <= 0",
			Severity:  SeverityError,
		},
		{
			Name:      "Orders: Total amount > 0",
			Dimension: DimensionValidity,
			Query:     "SELECT COUNT(*) FROM orders WHERE total_amount <= 0",
			Severity:  SeverityError,
		},
		{
			Name:      "Orders: Quantity > 0",
			Dimension: DimensionValidity,
			Query:     "SELECT COUNT(*) FROM orders WHERE quantity <= 0",
			Severity:  SeverityError,
		},
		{
			Name:      "Customers: Valid email format",
			Dimension: DimensionValidity,
			Query:     "SELECT COUNT(*) FROM customers WHERE email NOT LIKE '%@%.%'",
			Severity:  SeverityError,
		},
		{
			Name:      "Orders: No future order dates",
			Dimension: DimensionValidity,
			Query:     "SELECT COUNT(*) FROM orders WHERE order_date > CURRENT_TIMESTAMP",
			Severity:  SeverityError,
		},

		// consistency
		{
			Name:      "Orders: All customer_ids exist in customers",
			Dimension: DimensionConsistency,
			Query: `SELECT COUNT(*) FROM orders o
				LEFT JOIN customers c ON o.customer_id = c.customer_id
				WHERE c.customer_id IS NULL`,
			Severity: SeverityError,
		},
		{
			Name:      "Orders: All product_ids exist in products",
			Dimension: DimensionConsistency,
			Query: `SELECT COUNT(*) FROM orders o
				LEFT JOIN products p ON o.product_id = p.product_id
				WHERE p.product_id IS NULL`,
			Severity: SeverityError,
		},
		{
			Name:      "Orders: Quantity * Price = Total (within 1%)",
			Dimension: DimensionConsistency,
			Query: `SELECT COUNT(*) FROM orders o
				JOIN products p ON o.product_id = p.product_id
				WHERE ABS(o.total_amount - (o.quantity * p.price)) > (o.quantity * p.price * 0.01)`,
			Severity: SeverityWarning,
		},
		{
			Name:      "Customer Summary: Row count matches active customers",
			Dimension: DimensionConsistency,
			Query: `SELECT ABS(
				(SELECT COUNT(DISTINCT customer_id) FROM orders WHERE order_status = 'Delivered') -
				(SELECT COUNT(*) FROM customer_summary))`,
			Severity: SeverityWarning,
		},

		// uniqueness
		{
			Name:      "Customers: No duplicate customer_ids",
			Dimension: DimensionUniqueness,
			Query:     "SELECT COUNT(*) - COUNT(DISTINCT customer_id) FROM customers",
			Severity:  SeverityError,
		},
		{
			Name:      "Products: No duplicate product_ids",
			Dimension: DimensionUniqueness,
			Query:     "SELECT COUNT(*) - COUNT(DISTINCT product_id) FROM products",
			Severity:  SeverityError,
		},
		{
			Name:      "Orders: No duplicate order_ids",
			Dimension: DimensionUniqueness,
			Query:     "SELECT COUNT(*) - COUNT(DISTINCT order_id) FROM orders",
			Severity:  SeverityError,
		},
		{
			Name:      "Customers: No duplicate emails",
			Dimension: DimensionUniqueness,
			Query:     "SELECT COUNT(*) - COUNT(DISTINCT email) FROM customers",
			Severity:  SeverityError,
		},
	}
}

// Checker runs scalar quality checks against the store.
type Checker struct {
	store  connector.DatabaseConnector
	logger *zap.Logger
}

// NewChecker creates a quality checker.
func NewChecker(store connector.DatabaseConnector, logger *zap.Logger) *Checker {
	return &Checker{
		store:  store,
		logger: logger.Named("quality"),
	}
}

// Run executes the default check suite.
func (c *Checker) Run(ctx context.Context) (*CheckReport, error) {
	return c.RunChecks(ctx, DefaultChecks())
}

// RunChecks executes the given checks in order. A check whose query fails
// is recorded with status ERROR and the run continues, unless the store
// connection itself is gone.
func (c *Checker) RunChecks(ctx context.Context, checks []Check) (*CheckReport, error) {
	report := &CheckReport{StartedAt: time.Now()}

	c.logger.Info("Quality check run started", zap.Int("checks", len(checks)))

	for _, check := range checks {
		outcome := CheckOutcome{
			Name:      check.Name,
			Dimension: check.Dimension,
			Severity:  check.Severity,
			Expected:  check.Expected,
			CheckedAt: time.Now(),
		}

		actual, err := scanCount(ctx, c.store, check.Query)
		if err != nil {
			if retry.ConnectionLost(err) {
				report.finalize()
				return report, fmt.Errorf("quality check %q lost store connection: %w", check.Name, err)
			}

			outcome.Status = StatusError
			outcome.Error = err.Error()
			report.Checks = append(report.Checks, outcome)
			report.Failed++
			c.logger.Error("Quality check errored",
				zap.String("check", check.Name),
				zap.Error(err))
			continue
		}

		outcome.Actual = actual
		if actual == check.Expected {
			outcome.Status = StatusPass
			report.Passed++
			c.logger.Info("Quality check passed", zap.String("check", check.Name))
		} else {
			outcome.Status = StatusFail
			report.Failed++
			c.logger.Warn("Quality check failed",
				zap.String("check", check.Name),
				zap.String("severity", string(check.Severity)),
				zap.Int64("expected", check.Expected),
				zap.Int64("actual", actual))
		}
		report.Checks = append(report.Checks, outcome)
	}

	report.finalize()

	c.logger.Info("Quality check run complete",
		zap.Int("passed", report.Passed),
		zap.Int("failed", report.Failed),
		zap.Float64("passRate", report.PassRate),
		zap.String("grade", report.Grade),
		zap.Duration("duration", report.Duration))

	return report, nil
}

// scanCount runs a single-value count query.
func scanCount(ctx context.Context, store connector.DatabaseConnector, query string) (int64, error) {
	rows, err := store.QueryWithTimeout(ctx, query, checkTimeout)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	var count int64
	if rows.Next() {
		if err := rows.Scan(&count); err != nil {
			return 0, err
		}
	}
	return count, rows.Err()
}
