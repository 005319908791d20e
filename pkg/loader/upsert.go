// pkg/loader/upsert.go
package loader

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"ecompipe/pkg/converter"
	"ecompipe/pkg/model"
)

// Upserter applies one record to the target table inside the chunk's
// transaction: insert when the identity key is absent, otherwise update
// every non-key column. The same loader works against stores with and
// without a native upsert primitive by swapping this implementation.
type Upserter interface {
	InsertOrUpdate(ctx context.Context, tx *sql.Tx, table string, schema model.Schema, keyColumns []string, record model.Record) (inserted bool, err error)
}

// PostgresUpserter uses the store's native upsert. The RETURNING
// clause distinguishes a fresh insert from a conflict update: a row
// version of zero means the row was created by this statement.
type PostgresUpserter struct{}

func (PostgresUpserter) InsertOrUpdate(
	ctx context.Context,
	tx *sql.Tx,
	table string,
	schema model.Schema,
	keyColumns []string,
	record model.Record,
) (bool, error) {
	columns := schema.ColumnNames()
	nonKey := schema.NonKeyColumns(keyColumns)

	quotedCols := make([]string, len(columns))
	placeholders := make([]string, len(columns))
	for i, col := range columns {
		quotedCols[i] = converter.QuoteIdentifier(col)
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	quotedKeys := make([]string, len(keyColumns))
	for i, key := range keyColumns {
		quotedKeys[i] = converter.QuoteIdentifier(key)
	}

	var query string
	if len(nonKey) == 0 {
		// Every column is part of the key: a conflict means the row
		// already matches, so there is nothing to update.
		query = fmt.Sprintf(
			"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO NOTHING RETURNING true",
			converter.QuoteIdentifier(table),
			strings.Join(quotedCols, ", "),
			strings.Join(placeholders, ", "),
			strings.Join(quotedKeys, ", "),
		)
	} else {
		assignments := make([]string, len(nonKey))
		for i, col := range nonKey {
			quoted := converter.QuoteIdentifier(col)
			assignments[i] = fmt.Sprintf("%s = EXCLUDED.%s", quoted, quoted)
		}
		query = fmt.Sprintf(
			"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s RETURNING (xmax = 0)",
			converter.QuoteIdentifier(table),
			strings.Join(quotedCols, ", "),
			strings.Join(placeholders, ", "),
			strings.Join(quotedKeys, ", "),
			strings.Join(assignments, ", "),
		)
	}

	var inserted bool
	err := tx.QueryRowContext(ctx, query, record...).Scan(&inserted)
	if errors.Is(err, sql.ErrNoRows) {
		// DO NOTHING suppressed the insert; the existing row stands.
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return inserted, nil
}

// StandardUpserter issues an update first and falls back to an insert
// when no row matched the identity key. It needs no store-native upsert
// support, at the cost of two statements for fresh rows.
type StandardUpserter struct{}

func (StandardUpserter) InsertOrUpdate(
	ctx context.Context,
	tx *sql.Tx,
	table string,
	schema model.Schema,
	keyColumns []string,
	record model.Record,
) (bool, error) {
	nonKey := schema.NonKeyColumns(keyColumns)

	if len(nonKey) > 0 {
		assignments := make([]string, len(nonKey))
		args := make([]any, 0, len(schema))
		for i, col := range nonKey {
			assignments[i] = fmt.Sprintf("%s = $%d", converter.QuoteIdentifier(col), i+1)
			args = append(args, record.Value(schema, col))
		}

		conditions := make([]string, len(keyColumns))
		for i, key := range keyColumns {
			conditions[i] = fmt.Sprintf("%s = $%d", converter.QuoteIdentifier(key), len(nonKey)+i+1)
			args = append(args, record.Value(schema, key))
		}

		query := fmt.Sprintf(
			"UPDATE %s SET %s WHERE %s",
			converter.QuoteIdentifier(table),
			strings.Join(assignments, ", "),
			strings.Join(conditions, " AND "),
		)

		result, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return false, err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return false, err
		}
		if affected > 0 {
			return false, nil
		}
	} else {
		// Key-only schema: probe for existence instead of updating.
		conditions := make([]string, len(keyColumns))
		args := make([]any, 0, len(keyColumns))
		for i, key := range keyColumns {
			conditions[i] = fmt.Sprintf("%s = $%d", converter.QuoteIdentifier(key), i+1)
			args = append(args, record.Value(schema, key))
		}

		var exists bool
		query := fmt.Sprintf(
			"SELECT EXISTS (SELECT 1 FROM %s WHERE %s)",
			converter.QuoteIdentifier(table),
			strings.Join(conditions, " AND "),
		)
		if err := tx.QueryRowContext(ctx, query, args...).Scan(&exists); err != nil {
			return false, err
		}
		if exists {
			return false, nil
		}
	}

	columns := schema.ColumnNames()
	quotedCols := make([]string, len(columns))
	placeholders := make([]string, len(columns))
	for i, col := range columns {
		quotedCols[i] = converter.QuoteIdentifier(col)
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		converter.QuoteIdentifier(table),
		strings.Join(quotedCols, ", "),
		strings.Join(placeholders, ", "),
	)

	if _, err := tx.ExecContext(ctx, query, record...); err != nil {
		return false, err
	}
	return true, nil
}
