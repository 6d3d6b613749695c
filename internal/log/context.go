package log

import (
	"context"
	"log/slog"
)

type contextKey struct{}

// NewContext returns a copy of ctx carrying logger.
func NewContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext returns the logger stored in ctx, or the process default
// tagged as the app component.
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(contextKey{}).(*Logger); ok {
		return logger
	}
	return &Logger{Logger: slog.Default(), component: ComponentApp}
}
