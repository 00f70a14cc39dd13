package sqlmux

import "context"

// Logger is the structured logging interface used by the pools and drivers.
//
// It is intentionally a subset of *slog.Logger, so a slog logger can be passed
// in directly:
//
//	cap, err := sqlite.NewConfigAndPool(ctx, cfg, sqlmux.WithLogger(slog.Default()))
//
// The default is a no-op logger; nothing is ever logged unless a logger is
// configured.
type Logger interface {
	// DebugContext logs pool internals: checkouts, evictions, drop rollbacks.
	DebugContext(ctx context.Context, msg string, args ...any)

	// WarnContext logs recoverable trouble, like a failing liveness ping.
	WarnContext(ctx context.Context, msg string, args ...any)

	// ErrorContext logs failures that surface to the caller.
	ErrorContext(ctx context.Context, msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) DebugContext(context.Context, string, ...any) {}
func (noopLogger) WarnContext(context.Context, string, ...any)  {}
func (noopLogger) ErrorContext(context.Context, string, ...any) {}

// NopLogger returns the no-op logger used when none is configured.
func NopLogger() Logger { return noopLogger{} }
