package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log is the process-wide logger. It is a no-op logger until Initialize runs.
var Log = zap.NewNop()

// Option tweaks the logger configuration
type Option func(*zap.Config)

// WithVerbose enables debug level output
func WithVerbose(verbose bool) Option {
	return func(c *zap.Config) {
		if verbose {
			c.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
	}
}

// WithOutput redirects log output, e.g. to keep stdout clean for command results
func WithOutput(paths ...string) Option {
	return func(c *zap.Config) {
		if len(paths) > 0 {
			c.OutputPaths = paths
		}
	}
}

// Initialize sets up the global logger
func Initialize(opts ...Option) {
	// Determine environment (default to production)
	env := os.Getenv("ENV")
	if env == "" {
		env = "production"
	}

	var config zap.Config
	if env == "development" || env == "dev" {
		// Human-readable console output
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		// JSON structured logs
		config = zap.NewProductionConfig()
		config.EncoderConfig.TimeKey = "timestamp"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	for _, opt := range opts {
		opt(&config)
	}

	logger, err := config.Build(zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	Log = logger
}

// Sync flushes any buffered log entries
func Sync() {
	if Log != nil {
		_ = Log.Sync()
	}
}
