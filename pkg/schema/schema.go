// pkg/schema/schema.go
package schema

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"ecompipe/pkg/connector"
	"ecompipe/pkg/converter"
	"ecompipe/pkg/model"
)

const ddlTimeout = 30 * time.Second

// Manager creates and resets the warehouse tables the datasets load
// into. DDL is derived from the dataset definitions so a manifest
// change never needs a matching hand-written migration.
type Manager struct {
	store  connector.DatabaseConnector
	logger *zap.Logger
}

// NewManager creates a schema manager bound to a store handle.
func NewManager(store connector.DatabaseConnector, logger *zap.Logger) *Manager {
	return &Manager{
		store:  store,
		logger: logger.Named("schema"),
	}
}

// BuildDDL returns the CREATE TABLE statement for one dataset: typed
// columns from the schema, a primary key on the identity key, and a
// foreign key for each dependency whose single-column identity key
// appears in this schema.
func BuildDDL(ds model.Dataset, parents map[string]model.Dataset) string {
	defs := converter.ColumnDefinitions(ds.Schema, ds.IdentityKey)

	if len(ds.IdentityKey) > 0 {
		quoted := make([]string, len(ds.IdentityKey))
		for i, col := range ds.IdentityKey {
			quoted[i] = converter.QuoteIdentifier(col)
		}
		defs = append(defs, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(quoted, ", ")))
	}

	for _, dep := range ds.DependsOn {
		parent, ok := parents[dep]
		if !ok || len(parent.IdentityKey) != 1 {
			continue
		}
		keyCol := parent.IdentityKey[0]
		if ds.Schema.Index(keyCol) < 0 {
			continue
		}
		quotedKey := converter.QuoteIdentifier(keyCol)
		defs = append(defs, fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s (%s)",
			quotedKey, converter.QuoteIdentifier(parent.Table), quotedKey))
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)",
		converter.QuoteIdentifier(ds.Table), strings.Join(defs, ",\n\t"))
}

// EnsureTables creates every missing target table, parents before
// children so foreign keys resolve.
func (m *Manager) EnsureTables(ctx context.Context, datasets []model.Dataset) error {
	ordered, err := model.SortByDependency(datasets)
	if err != nil {
		return err
	}

	parents := make(map[string]model.Dataset, len(ordered))
	for _, ds := range ordered {
		parents[ds.Name] = ds
	}

	for _, ds := range ordered {
		ddl := BuildDDL(ds, parents)
		if _, err := m.store.ExecWithTimeout(ctx, ddl, ddlTimeout); err != nil {
			return fmt.Errorf("failed to create table %s: %w", ds.Table, err)
		}
		m.logger.Info("Ensured table", zap.String("table", ds.Table))
	}
	return nil
}

// TableExists reports whether the table is present in the public schema.
func (m *Manager) TableExists(ctx context.Context, table string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = 'public' AND table_name = $1
		)`

	rows, err := m.store.QueryWithTimeout(ctx, query, ddlTimeout, table)
	if err != nil {
		return false, fmt.Errorf("failed to check table %s: %w", table, err)
	}
	defer rows.Close()

	var exists bool
	if rows.Next() {
		if err := rows.Scan(&exists); err != nil {
			return false, fmt.Errorf("failed to scan existence of %s: %w", table, err)
		}
	}
	return exists, rows.Err()
}

// TableColumns returns the table's column names in ordinal order.
func (m *Manager) TableColumns(ctx context.Context, table string) ([]string, error) {
	query := `
		SELECT column_name
		FROM information_schema.columns
		WHERE table_schema = 'public' AND table_name = $1
		ORDER BY ordinal_position`

	rows, err := m.store.QueryWithTimeout(ctx, query, ddlTimeout, table)
	if err != nil {
		return nil, fmt.Errorf("failed to list columns of %s: %w", table, err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan column of %s: %w", table, err)
		}
		columns = append(columns, name)
	}
	return columns, rows.Err()
}

// TruncateAll clears every target table for a full reload, children
// before parents so foreign keys never block the wipe.
func (m *Manager) TruncateAll(ctx context.Context, datasets []model.Dataset) error {
	ordered, err := model.SortByDependency(datasets)
	if err != nil {
		return err
	}

	for i := len(ordered) - 1; i >= 0; i-- {
		table := ordered[i].Table
		query := fmt.Sprintf("TRUNCATE TABLE %s CASCADE", converter.QuoteIdentifier(table))
		if _, err := m.store.ExecWithTimeout(ctx, query, ddlTimeout); err != nil {
			return fmt.Errorf("failed to truncate %s: %w", table, err)
		}
		m.logger.Info("Truncated table", zap.String("table", table))
	}
	return nil
}
