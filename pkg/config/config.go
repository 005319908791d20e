// pkg/config/config.go
package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the application configuration
type Config struct {
	// Database connection
	Database *DatabaseConfig

	// Load settings
	ChunkSize     int
	RetryAttempts int
	RetryDelay    time.Duration

	// Generation settings
	NumCustomers int
	NumProducts  int
	NumOrders    int
	RandomSeed   int64 // 0 means derive from the clock

	// Quality settings
	AnomalyZScoreThreshold float64
	QualitySeverity        string

	// Paths
	RawDataDir       string
	ProcessedDataDir string

	// Logging
	LogLevel  string
	LogFormat string
}

// Load reads configuration from the environment, first merging an
// optional .env file when one exists at envFile (empty means skip).
// Variables already set in the environment win over the file.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return nil, errors.New("failed to load env file: " + err.Error())
			}
		}
	}

	cfg := &Config{
		// Default values
		ChunkSize:     getEnvAsInt("BATCH_SIZE", 1000),
		RetryAttempts: getEnvAsInt("MAX_RETRIES", 3),
		RetryDelay:    time.Duration(getEnvAsInt("RETRY_DELAY_SECONDS", 5)) * time.Second,

		NumCustomers: getEnvAsInt("NUM_CUSTOMERS", 10000),
		NumProducts:  getEnvAsInt("NUM_PRODUCTS", 500),
		NumOrders:    getEnvAsInt("NUM_ORDERS", 50000),
		RandomSeed:   getEnvAsInt64("RANDOM_SEED", 0),

		AnomalyZScoreThreshold: getEnvAsFloat("ANOMALY_ZSCORE_THRESHOLD", 3.0),
		QualitySeverity:        getEnv("QUALITY_CHECK_SEVERITY", "ERROR"),

		RawDataDir:       getEnv("RAW_DATA_DIR", "data/raw"),
		ProcessedDataDir: getEnv("PROCESSED_DATA_DIR", "data/processed"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),
	}

	dbConfig, err := LoadDatabaseConfig()
	if err != nil {
		return nil, errors.New("failed to load database configuration: " + err.Error())
	}
	cfg.Database = dbConfig

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures all required configuration is present and valid
func (c *Config) Validate() error {
	if c.Database == nil {
		return errors.New("database configuration is required")
	}

	if c.ChunkSize <= 0 {
		return errors.New("chunk size must be positive")
	}

	if c.RetryAttempts < 0 {
		return errors.New("retry attempts cannot be negative")
	}

	if c.AnomalyZScoreThreshold <= 0 {
		return errors.New("anomaly z-score threshold must be positive")
	}

	if c.NumCustomers <= 0 || c.NumProducts <= 0 || c.NumOrders <= 0 {
		return errors.New("generation counts must be positive")
	}

	return nil
}

// Helper functions for environment variables
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}
