package utils

import (
	"context"
	"log/slog"
)

type contextKey string

const ContextLoggerKey contextKey = "logger"

// WithLogger stores a request-scoped logger in ctx.
func WithLogger(ctx context.Context, log *slog.Logger) context.Context {
	return context.WithValue(ctx, ContextLoggerKey, log)
}

// LoggerFrom returns the request-scoped logger, or fallback when none is set.
func LoggerFrom(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if log, ok := ctx.Value(ContextLoggerKey).(*slog.Logger); ok {
		return log
	}
	return fallback
}
