// pkg/converter/mapping.go
package converter

import (
	"fmt"
	"strings"

	"ecompipe/pkg/model"
)

// PostgresType maps a schema column type to the PostgreSQL type used
// when a table is created from a manifest rather than built-in DDL.
func PostgresType(t model.ColumnType) string {
	switch t {
	case model.TypeString:
		return "TEXT"
	case model.TypeInteger:
		return "BIGINT"
	case model.TypeDecimal:
		return "NUMERIC(12,2)"
	case model.TypeDate:
		return "DATE"
	case model.TypeTimestamp:
		return "TIMESTAMP"
	default:
		return "TEXT"
	}
}

// ColumnDefinitions renders one DDL fragment per schema column, with
// NOT NULL applied to identity key columns.
func ColumnDefinitions(schema model.Schema, keyColumns []string) []string {
	keys := make(map[string]bool, len(keyColumns))
	for _, k := range keyColumns {
		keys[strings.ToLower(k)] = true
	}

	defs := make([]string, 0, len(schema))
	for _, col := range schema {
		def := fmt.Sprintf("%s %s", QuoteIdentifier(col.Name), PostgresType(col.Type))
		if keys[strings.ToLower(col.Name)] {
			def += " NOT NULL"
		}
		defs = append(defs, def)
	}
	return defs
}

// QuoteIdentifier safely quotes a PostgreSQL identifier.
func QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
