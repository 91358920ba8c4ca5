package arvos

import (
	"context"
	"log/slog"
)

type ctxKey struct{}

var (
	slogCtxKey = ctxKey{}
)

// logger returns the *slog.Logger stored by LoggingContext, or one that
// discards everything.
func logger(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(slogCtxKey).(*slog.Logger); ok && logger != nil {
		return logger
	}
	return slog.New(slog.DiscardHandler)
}

// LoggingContext returns a copy of ctx carrying logger. Render and the
// Renderer log through it; without one they're silent.
func LoggingContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, slogCtxKey, logger)
}
