// pkg/converter/values.go
package converter

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"ecompipe/pkg/model"
)

// timestampLayouts are tried in order when parsing timestamp fields.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999",
	"2006-01-02",
	time.RFC1123,
	time.RFC1123Z,
}

// dateLayouts are tried in order when parsing date fields.
var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"02-01-2006",
}

// ValueError reports a field that could not be coerced to its column's
// declared type. The raw value is preserved for quarantine reporting.
type ValueError struct {
	Column string
	Type   model.ColumnType
	Raw    string
	Err    error
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("column %q: cannot coerce %q to %s: %v", e.Column, e.Raw, e.Type, e.Err)
}

func (e *ValueError) Unwrap() error { return e.Err }

// CoerceRecord converts one CSV row into a typed Record ordered by the
// schema. Fields must align positionally with the schema's columns; a
// count mismatch is an error because the row cannot be attributed to
// columns at all. The first field that fails coercion aborts the row.
func (c *Converter) CoerceRecord(schema model.Schema, fields []string) (model.Record, error) {
	if len(fields) != len(schema) {
		return nil, fmt.Errorf("row has %d fields, schema has %d columns", len(fields), len(schema))
	}

	record := make(model.Record, len(schema))
	for i, col := range schema {
		value, err := c.coerceValue(col, fields[i])
		if err != nil {
			return nil, err
		}
		record[i] = value
	}
	return record, nil
}

// coerceValue converts a single raw field according to its column type.
// A nil return with nil error means SQL NULL.
func (c *Converter) coerceValue(col model.Column, raw string) (any, error) {
	if c.config.TrimSpace {
		raw = strings.TrimSpace(raw)
	}
	if c.isNull(raw) {
		return nil, nil
	}

	switch col.Type {
	case model.TypeString:
		return raw, nil
	case model.TypeInteger:
		v, err := c.coerceInteger(raw)
		if err != nil {
			return nil, &ValueError{Column: col.Name, Type: col.Type, Raw: raw, Err: err}
		}
		return v, nil
	case model.TypeDecimal:
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, &ValueError{Column: col.Name, Type: col.Type, Raw: raw, Err: fmt.Errorf("not a number")}
		}
		return v, nil
	case model.TypeDate:
		v, err := c.parseTime(raw, dateLayouts)
		if err != nil {
			return nil, &ValueError{Column: col.Name, Type: col.Type, Raw: raw, Err: err}
		}
		return v, nil
	case model.TypeTimestamp:
		v, err := c.parseTime(raw, timestampLayouts)
		if err != nil {
			return nil, &ValueError{Column: col.Name, Type: col.Type, Raw: raw, Err: err}
		}
		return v, nil
	default:
		return nil, &ValueError{Column: col.Name, Type: col.Type, Raw: raw, Err: fmt.Errorf("unsupported column type")}
	}
}

// isNull determines if a raw field should be treated as SQL NULL.
func (c *Converter) isNull(raw string) bool {
	if raw == "" {
		return c.config.EmptyAsNull
	}
	for _, literal := range c.config.NullLiterals {
		if raw == literal {
			return true
		}
	}
	return false
}

// coerceInteger parses an integer field. Exports from dataframe tools
// render integer columns that ever held a NULL as floats ("3.0"), so a
// float that carries no fractional part is accepted.
func (c *Converter) coerceInteger(raw string) (int64, error) {
	if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("not an integer")
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("fractional value")
	}
	if f > math.MaxInt64 || f < math.MinInt64 {
		return 0, fmt.Errorf("out of range")
	}
	return int64(f), nil
}

// parseTime tries each layout in order. Layouts without an explicit
// zone are interpreted in the configured location.
func (c *Converter) parseTime(raw string, layouts []string) (time.Time, error) {
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, raw, c.config.Location); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time format")
}
