package criteria

import (
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogConfig holds logger configuration.
type LogConfig struct {
	Level       string   `json:"level" yaml:"level" env:"LEVEL"`
	Development bool     `json:"development" yaml:"development" env:"DEVELOPMENT"`
	OutputPaths []string `json:"output_paths" yaml:"output_paths" env:"OUTPUT_PATHS" envSeparator:","`
}

// NewLogger creates a zap logger from configuration. Unknown levels fall back
// to info.
func NewLogger(cfg LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	var config zap.Config
	if cfg.Development {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		config = zap.NewProductionConfig()
	}

	config.Level = zap.NewAtomicLevelAt(level)
	if len(cfg.OutputPaths) > 0 {
		config.OutputPaths = cfg.OutputPaths
	}

	return config.Build()
}

// LogOperation records the outcome of a repository operation: debug on
// success, warn on failure.
func LogOperation(logger *zap.Logger, repository, op string, c Criteria, started time.Time, err error) {
	fields := []zap.Field{
		zap.String("repository", repository),
		zap.String("op", op),
		zap.Duration("duration", time.Since(started)),
	}
	if c != nil {
		fields = append(fields, zap.Stringer("criteria", stringer{c}))
	}
	if err != nil {
		logger.Warn("repository operation failed", append(fields, zap.Error(err))...)
		return
	}
	logger.Debug("repository operation", fields...)
}

type stringer struct{ c Criteria }

func (s stringer) String() string { return String(s.c) }
