// pkg/loader/verifier.go
package loader

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"ecompipe/pkg/connector"
	"ecompipe/pkg/converter"
	"ecompipe/pkg/model"
)

// IntegrityIssue represents a data integrity issue found in a loaded table
type IntegrityIssue struct {
	IssueType    string
	Description  string
	ColumnName   string
	AffectedRows int64
}

// VerificationReport contains the results of a post-load verification
type VerificationReport struct {
	Dataset           string
	Table             string
	VerificationTime  time.Time
	RowCountMatches   bool
	ExpectedRowCount  int64
	ActualRowCount    int64
	IntegrityVerified bool
	IntegrityIssues   []IntegrityIssue
	Duration          time.Duration
}

// Clean reports whether every check passed.
func (r *VerificationReport) Clean() bool {
	return r.RowCountMatches && r.IntegrityVerified && len(r.IntegrityIssues) == 0
}

// Verifier provides post-load verification utilities against the target store
type Verifier struct {
	store   connector.DatabaseConnector
	logger  *zap.Logger
	timeout time.Duration
}

// NewVerifier creates a new verifier
func NewVerifier(store connector.DatabaseConnector, logger *zap.Logger) *Verifier {
	return &Verifier{
		store:   store,
		logger:  logger.Named("verifier"),
		timeout: time.Minute * 5, // Default 5-minute timeout
	}
}

// WithTimeout sets a custom timeout for verification queries
func (v *Verifier) WithTimeout(timeout time.Duration) *Verifier {
	v.timeout = timeout
	return v
}

// CountRows returns the number of rows currently in a table
func (v *Verifier) CountRows(ctx context.Context, table string) (int64, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", converter.QuoteIdentifier(table))

	rows, err := v.store.QueryWithTimeout(ctx, query, v.timeout)
	if err != nil {
		return 0, fmt.Errorf("failed to count rows in %s: %w", table, err)
	}
	defer rows.Close()

	if !rows.Next() {
		return 0, fmt.Errorf("no results returned from count query on %s", table)
	}

	var count int64
	if err := rows.Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to scan row count for %s: %w", table, err)
	}
	return count, rows.Err()
}

// VerifyRowCount checks that the table holds the expected number of rows
func (v *Verifier) VerifyRowCount(
	ctx context.Context,
	table string,
	expected int64,
) (bool, int64, error) {
	v.logger.Info("Verifying row count",
		zap.String("table", table),
		zap.Int64("expected", expected))

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	actual, err := v.CountRows(ctx, table)
	if err != nil {
		return false, 0, err
	}

	matches := actual == expected
	if matches {
		v.logger.Info("Row count verification successful",
			zap.String("table", table),
			zap.Int64("count", actual))
	} else {
		v.logger.Warn("Row count mismatch",
			zap.String("table", table),
			zap.Int64("expected", expected),
			zap.Int64("actual", actual),
			zap.Int64("difference", expected-actual))
	}

	return matches, actual, nil
}

// CheckKeyUniqueness verifies the identity key is unique in the target
// table. The upsert keeps it unique on its own, so duplicates indicate
// rows written outside the loader.
func (v *Verifier) CheckKeyUniqueness(
	ctx context.Context,
	table string,
	keyColumns []string,
) ([]IntegrityIssue, error) {
	issues := make([]IntegrityIssue, 0)

	if len(keyColumns) == 0 {
		// No identity key to check
		return issues, nil
	}

	quoted := make([]string, len(keyColumns))
	for i, col := range keyColumns {
		quoted[i] = converter.QuoteIdentifier(col)
	}
	keyList := strings.Join(quoted, ", ")

	query := fmt.Sprintf(`
		SELECT %s, COUNT(*) as count
		FROM %s
		GROUP BY %s
		HAVING COUNT(*) > 1
		LIMIT 100
	`, keyList, converter.QuoteIdentifier(table), keyList)

	rows, err := v.store.QueryWithTimeout(ctx, query, v.timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to check key uniqueness on %s: %w", table, err)
	}
	defer rows.Close()

	duplicateGroups := 0
	var totalAffectedRows int64 = 0

	for rows.Next() {
		duplicateGroups++
		// Create scannable values for all key columns plus the count
		values := make([]interface{}, len(keyColumns)+1)
		for i := range values {
			var val interface{}
			values[i] = &val
		}

		if err := rows.Scan(values...); err != nil {
			return nil, fmt.Errorf("failed to scan duplicate key row: %w", err)
		}

		// The last value is the count
		countVal := values[len(values)-1].(*interface{})
		count, ok := (*countVal).(int64)
		if !ok {
			countStr := fmt.Sprintf("%v", *countVal)
			parsedCount, err := strconv.ParseInt(countStr, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("failed to parse duplicate count: %w", err)
			}
			count = parsedCount
		}

		// Each duplicate group affects (count-1) rows
		totalAffectedRows += count - 1
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating duplicate keys: %w", err)
	}

	if duplicateGroups > 0 {
		keyDescription := strings.Join(keyColumns, ",")
		issues = append(issues, IntegrityIssue{
			IssueType:    "IDENTITY_KEY_VIOLATION",
			Description:  fmt.Sprintf("Duplicate values found for identity key (%s)", keyDescription),
			ColumnName:   keyDescription,
			AffectedRows: totalAffectedRows,
		})
		v.logger.Warn("Identity key uniqueness violation",
			zap.String("table", table),
			zap.Strings("keyColumns", keyColumns),
			zap.Int("duplicateGroups", duplicateGroups),
			zap.Int64("affectedRows", totalAffectedRows))
	}

	return issues, nil
}

// CheckReferences counts orphaned rows in the child table: rows whose
// reference column points at a parent key that does not exist. A child
// column references a parent when it shares the name of the parent's
// single-column identity key.
func (v *Verifier) CheckReferences(
	ctx context.Context,
	child model.Dataset,
	parents []model.Dataset,
) ([]IntegrityIssue, error) {
	issues := make([]IntegrityIssue, 0)

	for _, parent := range parents {
		if len(parent.IdentityKey) != 1 {
			// Composite parent keys have no column-name convention to match on
			continue
		}
		keyCol := parent.IdentityKey[0]
		if child.Schema.Index(keyCol) < 0 {
			continue
		}

		quotedKey := converter.QuoteIdentifier(keyCol)
		query := fmt.Sprintf(`
			SELECT COUNT(*)
			FROM %s c
			LEFT JOIN %s p ON c.%s = p.%s
			WHERE c.%s IS NOT NULL AND p.%s IS NULL
		`, converter.QuoteIdentifier(child.Table), converter.QuoteIdentifier(parent.Table),
			quotedKey, quotedKey, quotedKey, quotedKey)

		rows, err := v.store.QueryWithTimeout(ctx, query, v.timeout)
		if err != nil {
			return nil, fmt.Errorf("failed to check references from %s to %s: %w",
				child.Table, parent.Table, err)
		}

		var orphans int64
		if rows.Next() {
			if err := rows.Scan(&orphans); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan orphan count: %w", err)
			}
		}
		rows.Close()

		if orphans > 0 {
			issues = append(issues, IntegrityIssue{
				IssueType:    "REFERENCE_VIOLATION",
				Description:  fmt.Sprintf("Rows reference %s values missing from %s", keyCol, parent.Table),
				ColumnName:   keyCol,
				AffectedRows: orphans,
			})
			v.logger.Warn("Dangling references found",
				zap.String("table", child.Table),
				zap.String("parentTable", parent.Table),
				zap.String("column", keyCol),
				zap.Int64("orphans", orphans))
		}
	}

	return issues, nil
}

// GenerateReport runs every check for one dataset and collects the
// results. Individual check failures are logged and leave their section
// of the report unset rather than aborting the remaining checks.
func (v *Verifier) GenerateReport(
	ctx context.Context,
	ds model.Dataset,
	expectedRows int64,
	parents []model.Dataset,
) (*VerificationReport, error) {
	v.logger.Info("Generating verification report",
		zap.String("dataset", ds.Name),
		zap.String("table", ds.Table))

	startTime := time.Now()
	report := &VerificationReport{
		Dataset:          ds.Name,
		Table:            ds.Table,
		VerificationTime: startTime,
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	// 1. Verify row count
	rowCountMatch, actual, err := v.VerifyRowCount(ctx, ds.Table, expectedRows)
	if err != nil {
		v.logger.Warn("Row count verification failed",
			zap.String("table", ds.Table),
			zap.Error(err))
	} else {
		report.RowCountMatches = rowCountMatch
		report.ExpectedRowCount = expectedRows
		report.ActualRowCount = actual
	}

	// 2. Check identity key uniqueness
	keyIssues, err := v.CheckKeyUniqueness(ctx, ds.Table, ds.IdentityKey)
	if err != nil {
		v.logger.Warn("Key uniqueness check failed",
			zap.String("table", ds.Table),
			zap.Error(err))
	} else {
		report.IntegrityVerified = true
		report.IntegrityIssues = append(report.IntegrityIssues, keyIssues...)
	}

	// 3. Check references to parent tables
	if len(parents) > 0 {
		refIssues, err := v.CheckReferences(ctx, ds, parents)
		if err != nil {
			v.logger.Warn("Reference check failed",
				zap.String("table", ds.Table),
				zap.Error(err))
			report.IntegrityVerified = false
		} else {
			report.IntegrityIssues = append(report.IntegrityIssues, refIssues...)
		}
	}

	report.Duration = time.Since(startTime)

	v.logger.Info("Verification report completed",
		zap.String("dataset", ds.Name),
		zap.String("table", ds.Table),
		zap.Duration("duration", report.Duration),
		zap.Bool("rowCountMatch", report.RowCountMatches),
		zap.Int("issues", len(report.IntegrityIssues)))

	return report, nil
}
