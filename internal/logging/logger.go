// Package logging defines a minimal structured-logging interface used across
// the project, with slog and zap implementations.
package logging

import (
	"context"
	"fmt"
)

// Logger is a context-aware, structured logger.
//
// The variadic args are interpreted as key–value pairs, e.g.:
//
//	log.Info(ctx, "starting server", "addr", addr, "mode", mode)
type Logger interface {
	// Debug logs a diagnostic message.
	Debug(ctx context.Context, msg string, args ...any)

	// Info logs an informational message.
	Info(ctx context.Context, msg string, args ...any)

	// Warn logs a warning message for unusual but non-fatal conditions.
	Warn(ctx context.Context, msg string, args ...any)

	// Error logs an error message for failures.
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that always includes the given key–value pairs.
	With(args ...any) Logger
}

// Supported values for the LogFormat setting.
const (
	FormatZap  = "zap"
	FormatSlog = "slog"
)

// New builds a Logger for the given format and level.
func New(format, level string) (Logger, error) {
	switch format {
	case FormatZap, "":
		return NewZapLogger(level)
	case FormatSlog:
		return NewSlogJSONLogger(level)
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}
