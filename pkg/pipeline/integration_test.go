//go:build integration

// pkg/pipeline/integration_test.go
package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"ecompipe/pkg/config"
	"ecompipe/pkg/connector"
	"ecompipe/pkg/generator"
	"ecompipe/pkg/loader"
	"ecompipe/pkg/model"
	"ecompipe/pkg/schema"
)

const postgresImage = "postgres:16-alpine"

// startWarehouse runs a disposable PostgreSQL and returns a config
// pointing at it.
func startWarehouse(ctx context.Context, t *testing.T) *config.DatabaseConfig {
	t.Helper()

	ctr, err := postgres.Run(ctx,
		postgresImage,
		postgres.WithUsername("dataeng"),
		postgres.WithPassword("pipeline123"),
		postgres.WithDatabase("ecommerce_db"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { ctr.Terminate(context.Background()) })

	host, err := ctr.Host(ctx)
	require.NoError(t, err)
	port, err := ctr.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	return &config.DatabaseConfig{
		Host:     host,
		Port:     port.Int(),
		User:     "dataeng",
		Password: "pipeline123",
		Database: "ecommerce_db",
		SSLMode:  "disable",

		ConnectTimeout:   10 * time.Second,
		MaxOpenConns:     5,
		MaxIdleConns:     2,
		ConnMaxLifetime:  30 * time.Minute,
		ConnMaxIdleTime:  10 * time.Minute,
		StatementTimeout: 2 * time.Minute,
	}
}

// TestPipelineEndToEnd drives generate, load, aggregate, and quality
// against a real PostgreSQL, then runs the pipeline a second time to
// confirm reloading the same files upserts instead of duplicating.
func TestPipelineEndToEnd(t *testing.T) {
	ctx := context.Background()
	logger := zap.NewNop()

	dbCfg := startWarehouse(ctx, t)
	cfg := &config.Config{
		Database:               dbCfg,
		ChunkSize:              100,
		RetryAttempts:          2,
		RetryDelay:             time.Second,
		RawDataDir:             t.TempDir(),
		ProcessedDataDir:       t.TempDir(),
		AnomalyZScoreThreshold: 3.0,
		QualitySeverity:        "ERROR",
	}

	gen := generator.New(generator.Config{
		Customers: 50,
		Products:  20,
		Orders:    200,
		Seed:      42,
		OutDir:    cfg.RawDataDir,
	}, logger)
	_, err := gen.GenerateAll()
	require.NoError(t, err)

	store, err := connector.Connect(ctx, cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	// The weekly run expects a provisioned warehouse; create the base
	// tables the way the load command would.
	datasets := model.DefaultDatasets()
	require.NoError(t, schema.NewManager(store, logger).EnsureTables(ctx, datasets))

	runner := NewRunner(cfg, store, logger)
	result, err := runner.Run(ctx)
	require.NoError(t, err)

	require.Len(t, result.Stages, 4)
	for _, stage := range result.Stages {
		assert.Equal(t, StatusSuccess, stage.Status, stage.Name)
	}
	assert.True(t, result.Succeeded)

	ingestion := result.Stage(StageIngestion)
	require.NotNil(t, ingestion)
	assert.Equal(t, int64(270), ingestion.Details["total_rows"])

	m := runner.Metrics()
	assert.Equal(t, 3, m.LoadsSucceeded)
	assert.Equal(t, int64(270), m.TotalRowsInserted)
	assert.Zero(t, m.TotalRowsFailed)

	// Aggregates were rebuilt from the loaded rows.
	verifier := loader.NewVerifier(store, logger)
	customers, err := verifier.CountRows(ctx, "customers")
	require.NoError(t, err)
	assert.Equal(t, int64(50), customers)

	summaryRows, err := verifier.CountRows(ctx, "customer_summary")
	require.NoError(t, err)
	assert.Greater(t, summaryRows, int64(0))

	path, err := result.WriteReport(cfg.ProcessedDataDir)
	require.NoError(t, err)
	assert.FileExists(t, path)

	// Second run over the same files: every row conflicts on its key
	// and updates in place, so counts stay flat.
	rerun := NewRunner(cfg, store, logger)
	result2, err := rerun.Run(ctx)
	require.NoError(t, err)
	assert.True(t, result2.Succeeded)

	validation2 := result2.Stage(StageValidation)
	require.NotNil(t, validation2)
	assert.Equal(t, int64(50), validation2.Details["customers_count"])
	assert.Equal(t, int64(0), validation2.Details["orders_duplicates"])

	m2 := rerun.Metrics()
	assert.Equal(t, int64(270), m2.TotalRowsUpdated)
	assert.Zero(t, m2.TotalRowsInserted)

	customersAfter, err := verifier.CountRows(ctx, "customers")
	require.NoError(t, err)
	assert.Equal(t, int64(50), customersAfter)
}
