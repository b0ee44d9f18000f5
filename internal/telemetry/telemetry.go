// Package telemetry defines the structured logging interface used throughout
// the engine. Every component (compiler, interpreter, dispatcher, automation
// router) accepts a Logger at construction time instead of reaching for a
// package-level logger, so callers can swap in the clue-backed adapter in
// production and the noop adapter in tests.
package telemetry

import "context"

// Logger captures structured logging used throughout the engine.
// Implementations typically delegate to clue but the interface is
// intentionally small so tests can provide lightweight stubs.
type Logger interface {
	Debug(ctx context.Context, msg string, keyvals ...any)
	Info(ctx context.Context, msg string, keyvals ...any)
	Warn(ctx context.Context, msg string, keyvals ...any)
	Error(ctx context.Context, msg string, keyvals ...any)
}
