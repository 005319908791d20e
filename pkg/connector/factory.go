// pkg/connector/factory.go
package connector

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"ecompipe/pkg/config"
	"ecompipe/pkg/retry"
)

// Connect establishes a validated PostgreSQL connection, retrying
// transient failures with exponential backoff. Retries apply only to
// connection establishment; once a run is underway, losing the store
// is fatal for the remaining work.
func Connect(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*PostgresConnector, error) {
	backoff := retry.NewBackoff(cfg.RetryAttempts,
		retry.WithInitialDelay(cfg.RetryDelay),
	)

	var conn *PostgresConnector
	err := retry.Do(ctx, backoff,
		func(ctx context.Context) error {
			var err error
			conn, err = NewPostgresConnector(ctx, cfg.Database, logger)
			return err
		},
		func(attempt int, err error, delay time.Duration) {
			logger.Warn("Database connection failed, retrying",
				zap.Int("attempt", attempt+1),
				zap.Duration("retry_in", delay),
				zap.Error(err))
		})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := conn.Validate(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("database validation failed: %w", err)
	}

	return conn, nil
}
