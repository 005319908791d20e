// pkg/metrics/metrics.go
package metrics

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"ecompipe/pkg/loader"
)

// TableMetrics tracks load counters for one target table.
type TableMetrics struct {
	Table         string        `json:"table"`
	RowsRead      int64         `json:"rowsRead"`
	RowsInserted  int64         `json:"rowsInserted"`
	RowsUpdated   int64         `json:"rowsUpdated"`
	RowsFailed    int64         `json:"rowsFailed"`
	BytesRead     int64         `json:"bytesRead"`
	Chunks        int           `json:"chunks"`
	ChunkFailures int           `json:"chunkFailures"`
	Duration      time.Duration `json:"duration"`
}

// AvgChunkDuration returns the mean time spent per attempted chunk.
func (tm *TableMetrics) AvgChunkDuration() time.Duration {
	if tm.Chunks == 0 {
		return 0
	}
	return tm.Duration / time.Duration(tm.Chunks)
}

// LoadMetrics aggregates counters across a pipeline invocation.
type LoadMetrics struct {
	mu     sync.Mutex
	logger *zap.Logger

	StartTime time.Time
	EndTime   time.Time

	Tables         map[string]*TableMetrics
	LoadsSucceeded int
	LoadsFailed    int

	TotalRowsRead     int64
	TotalRowsInserted int64
	TotalRowsUpdated  int64
	TotalRowsFailed   int64
	TotalBytesRead    int64
}

// NewLoadMetrics creates a metrics collector.
func NewLoadMetrics(logger *zap.Logger) *LoadMetrics {
	return &LoadMetrics{
		logger:    logger.Named("metrics"),
		StartTime: time.Now(),
		Tables:    make(map[string]*TableMetrics),
	}
}

// RecordLoad folds one load result into the totals. A nil result still
// counts as a failed load.
func (m *LoadMetrics) RecordLoad(result *loader.LoadResult, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if success {
		m.LoadsSucceeded++
	} else {
		m.LoadsFailed++
	}

	if result == nil {
		return
	}

	tm := m.tableLocked(result.Table)
	tm.RowsRead += result.RowsRead
	tm.RowsInserted += result.RowsInserted
	tm.RowsUpdated += result.RowsUpdated
	tm.RowsFailed += result.RowsFailed
	tm.Chunks += result.ChunksAttempted
	tm.ChunkFailures += len(result.ChunkFailures)
	tm.Duration += result.Duration

	m.TotalRowsRead += result.RowsRead
	m.TotalRowsInserted += result.RowsInserted
	m.TotalRowsUpdated += result.RowsUpdated
	m.TotalRowsFailed += result.RowsFailed

	m.logger.Info("Recorded load",
		zap.String("table", result.Table),
		zap.Bool("success", success),
		zap.Int64("rowsRead", result.RowsRead),
		zap.Int64("rowsInserted", result.RowsInserted),
		zap.Int64("rowsUpdated", result.RowsUpdated),
		zap.Int64("rowsFailed", result.RowsFailed),
		zap.Duration("duration", result.Duration))
}

// RecordBytes adds a source-size estimate for one table.
func (m *LoadMetrics) RecordBytes(table string, n int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.tableLocked(table).BytesRead += n
	m.TotalBytesRead += n
}

func (m *LoadMetrics) tableLocked(table string) *TableMetrics {
	tm, ok := m.Tables[table]
	if !ok {
		tm = &TableMetrics{Table: table}
		m.Tables[table] = tm
	}
	return tm
}

// Complete stamps the end of the run.
func (m *LoadMetrics) Complete() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.EndTime = time.Now()

	m.logger.Info("Load metrics complete",
		zap.Duration("duration", m.durationLocked()),
		zap.Int("loadsSucceeded", m.LoadsSucceeded),
		zap.Int("loadsFailed", m.LoadsFailed),
		zap.Int64("totalRowsRead", m.TotalRowsRead),
		zap.Float64("throughput", m.throughputLocked()))
}

// Duration returns elapsed time since the collector was created.
func (m *LoadMetrics) Duration() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.durationLocked()
}

func (m *LoadMetrics) durationLocked() time.Duration {
	if m.EndTime.IsZero() {
		return time.Since(m.StartTime)
	}
	return m.EndTime.Sub(m.StartTime)
}

// Throughput returns applied rows (inserted + updated) per second.
func (m *LoadMetrics) Throughput() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.throughputLocked()
}

func (m *LoadMetrics) throughputLocked() float64 {
	seconds := m.durationLocked().Seconds()
	if seconds <= 0 {
		return 0
	}
	return float64(m.TotalRowsInserted+m.TotalRowsUpdated) / seconds
}

// sortedTablesLocked returns per-table metrics in name order.
func (m *LoadMetrics) sortedTablesLocked() []*TableMetrics {
	tables := make([]*TableMetrics, 0, len(m.Tables))
	for _, tm := range m.Tables {
		tables = append(tables, tm)
	}
	sort.Slice(tables, func(i, j int) bool { return tables[i].Table < tables[j].Table })
	return tables
}

// Report renders a plain-text summary block.
func (m *LoadMetrics) Report() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	endTime := m.EndTime
	if endTime.IsZero() {
		endTime = time.Now()
	}

	report := fmt.Sprintf(`
Load Metrics Report
===================
Duration:            %s
Start Time:          %s
End Time:            %s

Loads
-----
Succeeded:           %d
Failed:              %d

Rows
----
Rows Read:           %d
Rows Inserted:       %d
Rows Updated:        %d
Rows Failed:         %d
Data Read:           %s
Throughput:          %.2f rows/sec
`,
		formatDuration(m.durationLocked()),
		m.StartTime.Format(time.RFC3339),
		endTime.Format(time.RFC3339),

		m.LoadsSucceeded,
		m.LoadsFailed,

		m.TotalRowsRead,
		m.TotalRowsInserted,
		m.TotalRowsUpdated,
		m.TotalRowsFailed,
		formatBytes(m.TotalBytesRead),
		m.throughputLocked(),
	)

	if len(m.Tables) > 0 {
		report += "\nPer-Table Breakdown\n-------------------\n"
		for _, tm := range m.sortedTablesLocked() {
			report += fmt.Sprintf("- %s: read %d, inserted %d, updated %d, failed %d, %d chunks (%d failed), %s\n",
				tm.Table,
				tm.RowsRead,
				tm.RowsInserted,
				tm.RowsUpdated,
				tm.RowsFailed,
				tm.Chunks,
				tm.ChunkFailures,
				formatDuration(tm.Duration))
		}
	}

	return report
}

// ToJSON serializes the metrics snapshot.
func (m *LoadMetrics) ToJSON() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return json.Marshal(struct {
		Duration          string          `json:"duration"`
		LoadsSucceeded    int             `json:"loadsSucceeded"`
		LoadsFailed       int             `json:"loadsFailed"`
		TotalRowsRead     int64           `json:"totalRowsRead"`
		TotalRowsInserted int64           `json:"totalRowsInserted"`
		TotalRowsUpdated  int64           `json:"totalRowsUpdated"`
		TotalRowsFailed   int64           `json:"totalRowsFailed"`
		TotalBytesRead    int64           `json:"totalBytesRead"`
		Throughput        float64         `json:"throughput"`
		Tables            []*TableMetrics `json:"tables"`
	}{
		Duration:          formatDuration(m.durationLocked()),
		LoadsSucceeded:    m.LoadsSucceeded,
		LoadsFailed:       m.LoadsFailed,
		TotalRowsRead:     m.TotalRowsRead,
		TotalRowsInserted: m.TotalRowsInserted,
		TotalRowsUpdated:  m.TotalRowsUpdated,
		TotalRowsFailed:   m.TotalRowsFailed,
		TotalBytesRead:    m.TotalBytesRead,
		Throughput:        m.throughputLocked(),
		Tables:            m.sortedTablesLocked(),
	})
}

// formatBytes converts bytes to a human-readable string.
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// formatDuration formats a duration to a human-readable string.
func formatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	} else if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%.2fs", d.Seconds())
}
