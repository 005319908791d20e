// pkg/model/reject.go
package model

import (
	"time"
)

// RejectedRow records a single source row that failed type coercion and
// was excluded from its chunk. Rows are captured for the quarantine
// table so failed input can be inspected and replayed after a fix.
type RejectedRow struct {
	Dataset    string    // Dataset name the row belongs to
	Table      string    // Target table name
	ChunkIndex int       // 1-based chunk the row arrived in
	Line       int64     // Source file line number (header = line 1)
	Column     string    // Column whose value failed coercion
	RawValue   string    // Offending raw text value
	Reason     string    // Human-readable failure description
	RejectedAt time.Time // When the rejection was recorded (set by database)
}
