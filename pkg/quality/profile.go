// pkg/quality/profile.go
package quality

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"ecompipe/pkg/aggregate"
	"ecompipe/pkg/connector"
	"ecompipe/pkg/converter"
	"ecompipe/pkg/model"
)

// ColumnProfile describes one column's shape in the store.
type ColumnProfile struct {
	Name           string  `json:"name"`
	DataType       string  `json:"type"`
	Nullable       bool    `json:"nullable"`
	UniqueValues   int64   `json:"unique_values"`
	NullCount      int64   `json:"null_count"`
	NullPercentage float64 `json:"null_percentage"`
}

// TableProfile describes one table's shape in the store.
type TableProfile struct {
	Table      string          `json:"table_name"`
	TotalRows  int64           `json:"total_rows"`
	Columns    []ColumnProfile `json:"columns"`
	ProfiledAt time.Time       `json:"timestamp"`
}

// ProfileTables lists the base and aggregate tables covered by ProfileAll.
func ProfileTables() []string {
	tables := make([]string, 0, 7)
	for _, ds := range model.DefaultDatasets() {
		tables = append(tables, ds.Table)
	}
	for _, t := range aggregate.Tables() {
		tables = append(tables, t.Name)
	}
	return tables
}

// Profiler collects per-table and per-column statistics.
type Profiler struct {
	store  connector.DatabaseConnector
	logger *zap.Logger
}

// NewProfiler creates a profiler backed by the given store.
func NewProfiler(store connector.DatabaseConnector, logger *zap.Logger) *Profiler {
	return &Profiler{
		store:  store,
		logger: logger.Named("profile"),
	}
}

// ProfileAll profiles the standard table set, skipping tables that
// cannot be profiled.
func (p *Profiler) ProfileAll(ctx context.Context) []*TableProfile {
	return p.Profile(ctx, ProfileTables())
}

// Profile profiles the named tables in order, continuing past failures.
func (p *Profiler) Profile(ctx context.Context, tables []string) []*TableProfile {
	profiles := make([]*TableProfile, 0, len(tables))

	for _, table := range tables {
		profile, err := p.ProfileTable(ctx, table)
		if err != nil {
			p.logger.Warn("Could not profile table",
				zap.String("table", table),
				zap.Error(err))
			continue
		}
		profiles = append(profiles, profile)
	}

	p.logger.Info("Profiling complete",
		zap.Int("tables", len(profiles)),
		zap.Int("skipped", len(tables)-len(profiles)))

	return profiles
}

// ProfileTable collects row count and per-column null/distinct counts
// for one table, discovering columns through information_schema.
func (p *Profiler) ProfileTable(ctx context.Context, table string) (*TableProfile, error) {
	profile := &TableProfile{Table: table, ProfiledAt: time.Now()}

	total, err := scanCount(ctx, p.store, "SELECT COUNT(*) FROM "+converter.QuoteIdentifier(table))
	if err != nil {
		return nil, fmt.Errorf("failed to count rows in %s: %w", table, err)
	}
	profile.TotalRows = total

	columns, err := p.tableColumns(ctx, table)
	if err != nil {
		return nil, err
	}

	for _, col := range columns {
		unique, nulls, err := p.columnCounts(ctx, table, col.Name)
		if err != nil {
			return nil, err
		}

		col.UniqueValues = unique
		col.NullCount = nulls
		if total > 0 {
			col.NullPercentage = math.Round(float64(nulls)/float64(total)*100*100) / 100
		}
		profile.Columns = append(profile.Columns, col)
	}

	p.logger.Info("Profiled table",
		zap.String("table", table),
		zap.Int64("rows", profile.TotalRows),
		zap.Int("columns", len(profile.Columns)))

	return profile, nil
}

// tableColumns discovers column names, types and nullability.
func (p *Profiler) tableColumns(ctx context.Context, table string) ([]ColumnProfile, error) {
	const query = `
		SELECT column_name, data_type, is_nullable
		FROM information_schema.columns
		WHERE table_schema = 'public' AND table_name = $1
		ORDER BY ordinal_position`

	rows, err := p.store.QueryWithTimeout(ctx, query, checkTimeout, table)
	if err != nil {
		return nil, fmt.Errorf("failed to read columns of %s: %w", table, err)
	}
	defer rows.Close()

	var columns []ColumnProfile
	for rows.Next() {
		var name, dataType, nullable string
		if err := rows.Scan(&name, &dataType, &nullable); err != nil {
			return nil, fmt.Errorf("failed to scan column of %s: %w", table, err)
		}
		columns = append(columns, ColumnProfile{
			Name:     name,
			DataType: dataType,
			Nullable: nullable == "YES",
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("table %s has no columns in information_schema", table)
	}
	return columns, nil
}

// columnCounts returns the distinct and null counts for one column.
func (p *Profiler) columnCounts(ctx context.Context, table, column string) (int64, int64, error) {
	query := fmt.Sprintf(
		"SELECT COUNT(DISTINCT %s) AS unique_values, COUNT(*) - COUNT(%s) AS null_count FROM %s",
		converter.QuoteIdentifier(column),
		converter.QuoteIdentifier(column),
		converter.QuoteIdentifier(table))

	rows, err := p.store.QueryWithTimeout(ctx, query, checkTimeout)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to profile column %s.%s: %w", table, column, err)
	}
	defer rows.Close()

	var unique, nulls int64
	if rows.Next() {
		if err := rows.Scan(&unique, &nulls); err != nil {
			return 0, 0, fmt.Errorf("failed to scan column profile %s.%s: %w", table, column, err)
		}
	}
	return unique, nulls, rows.Err()
}
