// pkg/pipeline/pipeline.go
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ecompipe/pkg/config"
	"ecompipe/pkg/connector"
	"ecompipe/pkg/metrics"
	"ecompipe/pkg/model"
)

// Stage status values.
const (
	StatusSuccess = "SUCCESS"
	StatusFailed  = "FAILED"
	StatusSkipped = "SKIPPED"
)

// Stage names in execution order.
const (
	StageValidation     = "validation"
	StageIngestion      = "ingestion"
	StageTransformation = "transformation"
	StageQuality        = "quality"
)

// StageResult captures one stage's outcome. Details carries the
// stage-specific counters that end up in the run report.
type StageResult struct {
	Name     string         `json:"stage"`
	Status   string         `json:"status"`
	Details  map[string]any `json:"details,omitempty"`
	Error    string         `json:"error,omitempty"`
	Seconds  float64        `json:"execution_time"`
	Duration time.Duration  `json:"-"`
}

// Result is the outcome of one full pipeline run.
type Result struct {
	RunID     string        `json:"run_id"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Succeeded bool          `json:"succeeded"`
	Stages    []StageResult `json:"stages"`
}

// Duration returns the wall time of the run.
func (r *Result) Duration() time.Duration {
	if r.EndTime.IsZero() {
		return time.Since(r.StartTime)
	}
	return r.EndTime.Sub(r.StartTime)
}

// Stage returns the named stage result, or nil when the stage never ran.
func (r *Result) Stage(name string) *StageResult {
	for i := range r.Stages {
		if r.Stages[i].Name == name {
			return &r.Stages[i]
		}
	}
	return nil
}

// WriteReport serializes the run result to a timestamped JSON file
// under dir and returns the file path.
func (r *Result) WriteReport(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("pipeline_report_%s.json", r.StartTime.Format("20060102_150405")))
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal pipeline report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write pipeline report: %w", err)
	}
	return path, nil
}

// Runner executes the weekly pipeline stages in order, failing fast:
// a stage error skips everything after it.
type Runner struct {
	cfg      *config.Config
	store    connector.DatabaseConnector
	logger   *zap.Logger
	metrics  *metrics.LoadMetrics
	datasets []model.Dataset
}

// NewRunner creates a pipeline runner over the default datasets.
func NewRunner(cfg *config.Config, store connector.DatabaseConnector, logger *zap.Logger) *Runner {
	return &Runner{
		cfg:      cfg,
		store:    store,
		logger:   logger.Named("pipeline"),
		metrics:  metrics.NewLoadMetrics(logger),
		datasets: model.DefaultDatasets(),
	}
}

// WithDatasets replaces the datasets the run ingests and validates.
func (r *Runner) WithDatasets(datasets []model.Dataset) *Runner {
	if len(datasets) > 0 {
		r.datasets = datasets
	}
	return r
}

// WithMetrics shares an existing metrics collector instead of the
// runner's own.
func (r *Runner) WithMetrics(m *metrics.LoadMetrics) *Runner {
	if m != nil {
		r.metrics = m
	}
	return r
}

// Metrics exposes the collector the ingestion stage feeds.
func (r *Runner) Metrics() *metrics.LoadMetrics {
	return r.metrics
}

// Run executes validation, ingestion, transformation, and quality in
// order. The returned result always carries an entry per stage, with
// stages after a failure marked SKIPPED.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	result := &Result{
		RunID:     uuid.NewString(),
		StartTime: time.Now(),
	}

	stages := []struct {
		name string
		run  func(context.Context) (map[string]any, error)
	}{
		{StageValidation, r.runValidation},
		{StageIngestion, r.runIngestion},
		{StageTransformation, r.runTransformation},
		{StageQuality, r.runQuality},
	}

	r.logger.Info("Starting pipeline run",
		zap.String("runID", result.RunID),
		zap.Int("stages", len(stages)),
		zap.Int("datasets", len(r.datasets)))

	var failed error
	for _, stage := range stages {
		if failed != nil {
			result.Stages = append(result.Stages, StageResult{Name: stage.name, Status: StatusSkipped})
			continue
		}

		r.logger.Info("Starting stage",
			zap.String("runID", result.RunID),
			zap.String("stage", stage.name))

		stageStart := time.Now()
		details, err := stage.run(ctx)
		elapsed := time.Since(stageStart)

		sr := StageResult{
			Name:     stage.name,
			Status:   StatusSuccess,
			Details:  details,
			Seconds:  elapsed.Seconds(),
			Duration: elapsed,
		}
		if err != nil {
			sr.Status = StatusFailed
			sr.Error = err.Error()
			failed = fmt.Errorf("stage %s failed: %w", stage.name, err)
			r.logger.Error("Stage failed",
				zap.String("runID", result.RunID),
				zap.String("stage", stage.name),
				zap.Duration("duration", elapsed),
				zap.Error(err))
		} else {
			r.logger.Info("Stage complete",
				zap.String("runID", result.RunID),
				zap.String("stage", stage.name),
				zap.Duration("duration", elapsed))
		}
		result.Stages = append(result.Stages, sr)
	}

	result.EndTime = time.Now()
	result.Succeeded = failed == nil
	r.metrics.Complete()

	if failed != nil {
		r.logger.Error("Pipeline run failed",
			zap.String("runID", result.RunID),
			zap.Duration("duration", result.Duration()),
			zap.Error(failed))
		return result, failed
	}

	r.logger.Info("Pipeline run complete",
		zap.String("runID", result.RunID),
		zap.Duration("duration", result.Duration()),
		zap.Int64("totalRowsRead", r.metrics.TotalRowsRead))
	return result, nil
}
