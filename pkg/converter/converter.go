// pkg/converter/converter.go
package converter

import (
	"time"

	"go.uber.org/zap"
)

// Config controls how raw CSV fields are coerced into typed values.
type Config struct {
	// EmptyAsNull treats empty fields as SQL NULL for every column type.
	EmptyAsNull bool
	// NullLiterals are field values treated as SQL NULL in addition to
	// the empty string. Matching is exact, not case-folded.
	NullLiterals []string
	// TrimSpace strips surrounding whitespace before coercion.
	TrimSpace bool
	// Location is the timezone applied to timestamp layouts that carry
	// no zone of their own.
	Location *time.Location
}

// DefaultConfig returns sensible defaults for warehouse CSV exports.
func DefaultConfig() Config {
	return Config{
		EmptyAsNull:  true,
		NullLiterals: []string{"null", "NULL", "nil", "NIL", "NaN", `\N`},
		TrimSpace:    true,
		Location:     time.UTC,
	}
}

// Converter coerces raw CSV fields into the typed values a dataset
// schema declares.
type Converter struct {
	logger *zap.Logger
	config Config
}

// New creates a Converter with default configuration.
func New(logger *zap.Logger) *Converter {
	return NewWithConfig(logger, DefaultConfig())
}

// NewWithConfig creates a Converter with custom configuration.
func NewWithConfig(logger *zap.Logger, config Config) *Converter {
	if config.Location == nil {
		config.Location = time.UTC
	}
	return &Converter{
		logger: logger.Named("converter"),
		config: config,
	}
}
