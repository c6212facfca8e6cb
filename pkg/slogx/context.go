package slogx

import (
	"context"
	"log/slog"
)

type ctxKey struct{}

func WithContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext returns the request logger, or slog.Default when none is set.
func FromContext(ctx context.Context) *slog.Logger {
	l, ok := ctx.Value(ctxKey{}).(*slog.Logger)
	if !ok {
		return slog.Default()
	}
	return l
}

// With returns ctx carrying the current logger extended with args.
func With(ctx context.Context, args ...any) context.Context {
	return WithContext(ctx, FromContext(ctx).With(args...))
}

// Ensure attaches logger to ctx unless ctx already carries one.
func Ensure(ctx context.Context, logger *slog.Logger) context.Context {
	if _, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok || logger == nil {
		return ctx
	}
	return WithContext(ctx, logger)
}
