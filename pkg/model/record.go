// pkg/model/record.go
package model

import (
	"fmt"
	"strings"
)

// ColumnType identifies the logical type of a schema column. Source
// files carry every value as text; the converter coerces text into the
// Go representation for the column's type before it reaches the store.
type ColumnType string

const (
	TypeString    ColumnType = "string"
	TypeInteger   ColumnType = "integer"
	TypeDecimal   ColumnType = "decimal"
	TypeDate      ColumnType = "date"
	TypeTimestamp ColumnType = "timestamp"
)

// ValidColumnType reports whether t is one of the supported types.
func ValidColumnType(t ColumnType) bool {
	switch t {
	case TypeString, TypeInteger, TypeDecimal, TypeDate, TypeTimestamp:
		return true
	}
	return false
}

// Column describes a single column of a dataset schema.
type Column struct {
	Name string     `yaml:"name"`
	Type ColumnType `yaml:"type"`
}

// Schema is the ordered column list for one dataset. The order matches
// the source file's header and the positional layout of every Record
// produced against this schema.
type Schema []Column

// ColumnNames returns the column names in schema order.
func (s Schema) ColumnNames() []string {
	names := make([]string, len(s))
	for i, col := range s {
		names[i] = col.Name
	}
	return names
}

// Index returns the position of the named column, or -1 if absent.
// Lookup is case-insensitive to tolerate header capitalization drift.
func (s Schema) Index(name string) int {
	for i, col := range s {
		if strings.EqualFold(col.Name, name) {
			return i
		}
	}
	return -1
}

// Column returns the named column definition.
func (s Schema) Column(name string) (Column, bool) {
	if i := s.Index(name); i >= 0 {
		return s[i], true
	}
	return Column{}, false
}

// Validate checks that the schema is non-empty, has unique column names,
// and uses only supported column types.
func (s Schema) Validate() error {
	if len(s) == 0 {
		return fmt.Errorf("schema must declare at least one column")
	}

	seen := make(map[string]struct{}, len(s))
	for _, col := range s {
		if col.Name == "" {
			return fmt.Errorf("schema contains a column with an empty name")
		}
		key := strings.ToLower(col.Name)
		if _, dup := seen[key]; dup {
			return fmt.Errorf("schema declares column %q more than once", col.Name)
		}
		seen[key] = struct{}{}

		if !ValidColumnType(col.Type) {
			return fmt.Errorf("column %q has unsupported type %q", col.Name, col.Type)
		}
	}
	return nil
}

// ValidateKey checks that every identity key column exists in the schema.
func (s Schema) ValidateKey(key []string) error {
	if len(key) == 0 {
		return fmt.Errorf("identity key must name at least one column")
	}
	for _, name := range key {
		if s.Index(name) < 0 {
			return fmt.Errorf("identity key column %q is not in the schema", name)
		}
	}
	return nil
}

// NonKeyColumns returns the names of all columns not in the identity key,
// preserving schema order.
func (s Schema) NonKeyColumns(key []string) []string {
	isKey := make(map[string]struct{}, len(key))
	for _, k := range key {
		isKey[strings.ToLower(k)] = struct{}{}
	}

	var names []string
	for _, col := range s {
		if _, ok := isKey[strings.ToLower(col.Name)]; !ok {
			names = append(names, col.Name)
		}
	}
	return names
}

// Record holds one row's coerced values, positionally aligned with the
// schema it was built against. A nil element represents SQL NULL.
type Record []any

// Value returns the record's value for the named column, or nil when the
// column is absent from the schema.
func (r Record) Value(s Schema, name string) any {
	i := s.Index(name)
	if i < 0 || i >= len(r) {
		return nil
	}
	return r[i]
}
