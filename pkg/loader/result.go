// pkg/loader/result.go
package loader

import (
	"time"

	"github.com/google/uuid"
)

// ChunkFailure records one chunk that did not commit.
type ChunkFailure struct {
	ChunkIndex int
	Rows       int
	Error      string
}

// LoadResult aggregates the outcome of one load invocation against one
// file/table pair. It is fully populated when the invocation returns
// and never mutated afterwards; the loader holds no state across
// invocations.
type LoadResult struct {
	LoadID          string
	Dataset         string
	Table           string
	RowsRead        int64
	RowsInserted    int64
	RowsUpdated     int64
	RowsFailed      int64
	ChunksAttempted int
	ChunkFailures   []ChunkFailure
	StartTime       time.Time
	EndTime         time.Time
	Duration        time.Duration
}

// NewLoadResult initializes a result for one load invocation.
func NewLoadResult(dataset, table string) *LoadResult {
	return &LoadResult{
		LoadID:    uuid.New().String(),
		Dataset:   dataset,
		Table:     table,
		StartTime: time.Now(),
	}
}

// Complete stamps the end time and computes the duration.
func (r *LoadResult) Complete() {
	r.EndTime = time.Now()
	r.Duration = r.EndTime.Sub(r.StartTime)
}

// AddChunkFailure records a failed chunk and counts its rows as failed.
func (r *LoadResult) AddChunkFailure(chunkIndex, rows int, err error) {
	r.RowsFailed += int64(rows)
	r.ChunkFailures = append(r.ChunkFailures, ChunkFailure{
		ChunkIndex: chunkIndex,
		Rows:       rows,
		Error:      err.Error(),
	})
}

// Consistent reports whether the row counts reconcile: every row read
// ended up inserted, updated, or failed.
func (r *LoadResult) Consistent() bool {
	return r.RowsRead == r.RowsInserted+r.RowsUpdated+r.RowsFailed
}

// Clean reports whether the load finished without any failed rows.
func (r *LoadResult) Clean() bool {
	return r.RowsFailed == 0 && len(r.ChunkFailures) == 0
}

// Throughput returns applied rows per second, or zero before Complete.
func (r *LoadResult) Throughput() float64 {
	if r.Duration.Seconds() <= 0 {
		return 0
	}
	return float64(r.RowsInserted+r.RowsUpdated) / r.Duration.Seconds()
}
