package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"ecompipe/pkg/config"
)

var rootCmd = &cobra.Command{
	Use:   "ecompipe",
	Short: "E-commerce warehouse loader and pipeline",
	Long: `ecompipe generates synthetic e-commerce source files, loads them into
a PostgreSQL warehouse in chunked upserting transactions, rebuilds the
aggregate reporting tables, and runs data quality checks against the
result.

Configuration comes from environment variables, optionally merged from
a .env file. See .env.example for the full list.`,
	SilenceUsage: true,
}

var (
	envFile  string
	logLevel string
)

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env",
		"Path to an optional .env file merged into the environment\n"+
			"Variables already set in the environment win over the file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Override the configured log level: debug|info|warn|error\n"+
			"(default: $LOG_LEVEL or info)")
}

// setup loads the configuration and builds the logger every command
// shares. The --log-level flag wins over the environment when set.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	logger, err := buildLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// buildLogger constructs the process logger. Logs go to stderr so
// command output on stdout stays machine-parseable.
func buildLogger(level, format string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	zcfg.OutputPaths = []string{"stderr"}
	zcfg.ErrorOutputPaths = []string{"stderr"}
	zcfg.DisableStacktrace = true
	if format != "json" {
		zcfg.Encoding = "console"
		zcfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	return zcfg.Build()
}
