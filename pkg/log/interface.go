// Package log provides the structured logging interface used across the
// estimators and the experiment pipeline.
//
// The interface is slog-shaped (alternating key/value fields) so call sites do
// not depend on a backend. The process-wide implementation is zerolog, set up
// once by Setup; tests use TestLogger.
//
// Example usage:
//
//	logger := log.GetLogger().With(log.ModelNameKey, "RandomForestClassifier")
//	logger.Info("fold scored",
//	    log.OperationKey, log.OperationScore,
//	    log.FoldKey, 3,
//	    log.AccuracyKey, 0.81,
//	)
package log

import (
	"context"
)

// Logger defines a structured logging interface compatible with Go's log/slog.
//
// Fields are alternating key/value pairs. Error treats a leading error value
// specially: it is attached as the error of the record together with its
// stack trace.
type Logger interface {
	Debug(msg string, fields ...any)
	Info(msg string, fields ...any)
	Warn(msg string, fields ...any)
	Error(msg string, fields ...any)

	// With returns a new Logger with the given fields pre-populated.
	With(fields ...any) Logger

	// Enabled reports whether the logger emits records at the given level.
	// Use it to skip building expensive fields.
	Enabled(ctx context.Context, level Level) bool
}

// Level represents a logging level, compatible with slog.Level.
type Level int

// Standard logging levels, values are compatible with slog.Level.
const (
	LevelDebug Level = -4
	LevelInfo  Level = 0
	LevelWarn  Level = 4
	LevelError Level = 8
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}
