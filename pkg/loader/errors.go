// pkg/loader/errors.go
package loader

import (
	"fmt"
	"strings"
)

// SchemaMismatchError is fatal and means the source file cannot be
// trusted against the declared schema: either the header names the
// wrong columns, or a data line carries the wrong number of fields.
// No further rows are applied once it is raised.
type SchemaMismatchError struct {
	Table    string
	Expected []string
	Actual   []string
	Reason   string
}

func (e *SchemaMismatchError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "schema mismatch on table %s", e.Table)
	if e.Reason != "" {
		fmt.Fprintf(&sb, ": %s", e.Reason)
	}
	fmt.Fprintf(&sb, " (expected columns %v", e.Expected)
	if e.Actual != nil {
		fmt.Fprintf(&sb, ", got %v", e.Actual)
	}
	sb.WriteString(")")
	return sb.String()
}

// RowCoercionError is a row-level fault: one row's raw value failed to
// parse into its declared column type. The row is excluded from its
// chunk and counted as failed; the rest of the chunk still commits.
type RowCoercionError struct {
	ChunkIndex int
	Line       int64
	Column     string
	RawValue   string
	Err        error
}

func (e *RowCoercionError) Error() string {
	return fmt.Sprintf("row coercion failed at line %d (chunk %d): %v", e.Line, e.ChunkIndex, e.Err)
}

func (e *RowCoercionError) Unwrap() error { return e.Err }

// ChunkCommitError is a chunk-level fault: the chunk's transaction
// failed and was rolled back in full. Every row of the chunk counts as
// failed and the load continues with the next chunk.
type ChunkCommitError struct {
	ChunkIndex int
	Rows       int
	Err        error
}

func (e *ChunkCommitError) Error() string {
	return fmt.Sprintf("chunk %d failed to commit (%d rows rolled back): %v", e.ChunkIndex, e.Rows, e.Err)
}

func (e *ChunkCommitError) Unwrap() error { return e.Err }

// StoreConnectivityError is fatal for the remainder of an invocation:
// the target store was lost. The failing chunk and every chunk not yet
// attempted are marked failed, and the partial result is returned to
// the caller alongside this error.
type StoreConnectivityError struct {
	ChunkIndex int
	Err        error
}

func (e *StoreConnectivityError) Error() string {
	return fmt.Sprintf("lost connection to target store at chunk %d: %v", e.ChunkIndex, e.Err)
}

func (e *StoreConnectivityError) Unwrap() error { return e.Err }
