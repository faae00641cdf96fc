// Package logger builds the application's zap logger. Components
// receive named children of one base logger so log lines carry the
// component that emitted them.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level can be adjusted at run time (for example from a debug
// endpoint) without rebuilding the logger.
var Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)

// New constructs the base logger. In the "dev" environment output
// is colored console text; elsewhere it is plain console with the
// same fields.
func New(env string) *zap.Logger {
	encodeLevel := zapcore.CapitalLevelEncoder
	if env == "dev" {
		encodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg := zap.Config{
		Level:            Level,
		Development:      env == "dev",
		Encoding:         "console",
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "time",
			LevelKey:       "level",
			NameKey:        "name",
			MessageKey:     "message",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    encodeLevel,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.MillisDurationEncoder,
		},
	}
	return zap.Must(cfg.Build())
}
