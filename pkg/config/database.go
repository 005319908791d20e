// pkg/config/database.go
package config

import (
	"fmt"
	"time"
)

// DatabaseConfig holds PostgreSQL connection parameters for the
// e-commerce warehouse. Every variable carries a development default so
// the pipeline runs against the docker-compose database with no setup.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	// Connection behavior
	ConnectTimeout time.Duration

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration

	// Statement timeout
	StatementTimeout time.Duration
}

// LoadDatabaseConfig loads PostgreSQL configuration from environment variables
func LoadDatabaseConfig() (*DatabaseConfig, error) {
	cfg := &DatabaseConfig{
		Host:     getEnv("ECOMMERCE_DB_HOST", "ecommerce-postgres"),
		Port:     getEnvAsInt("ECOMMERCE_DB_PORT", 5432),
		User:     getEnv("ECOMMERCE_DB_USER", "dataeng"),
		Password: getEnv("ECOMMERCE_DB_PASSWORD", "pipeline123"),
		Database: getEnv("ECOMMERCE_DB_NAME", "ecommerce_db"),
		SSLMode:  getEnv("ECOMMERCE_DB_SSLMODE", "disable"),

		ConnectTimeout: time.Duration(getEnvAsInt("ECOMMERCE_DB_TIMEOUT", 5)) * time.Second,

		MaxOpenConns:    getEnvAsInt("ECOMMERCE_DB_MAX_OPEN_CONNS", 10),
		MaxIdleConns:    getEnvAsInt("ECOMMERCE_DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: time.Duration(getEnvAsInt("ECOMMERCE_DB_CONN_MAX_LIFETIME_SECONDS", 1800)) * time.Second,
		ConnMaxIdleTime: time.Duration(getEnvAsInt("ECOMMERCE_DB_CONN_MAX_IDLE_TIME_SECONDS", 600)) * time.Second,

		StatementTimeout: time.Duration(getEnvAsInt("ECOMMERCE_DB_STATEMENT_TIMEOUT_SECONDS", 300)) * time.Second,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the database configuration for obvious mistakes.
func (c *DatabaseConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("database port %d is out of range", c.Port)
	}
	if c.User == "" {
		return fmt.Errorf("database user is required")
	}
	if c.Database == "" {
		return fmt.Errorf("database name is required")
	}
	return nil
}

// ConnectionString returns a formatted PostgreSQL connection string
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s connect_timeout=%d",
		c.Host,
		c.Port,
		c.User,
		c.Password,
		c.Database,
		c.SSLMode,
		int(c.ConnectTimeout.Seconds()),
	)
}
