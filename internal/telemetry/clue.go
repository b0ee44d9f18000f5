package telemetry

import (
	"context"

	"goa.design/clue/log"
)

// ClueLogger wraps goa.design/clue/log for engine logging, tagging every
// entry with a fixed "component" field so step, dispatch, and automation log
// lines stay greppable across the execution engine's otherwise-undifferentiated
// clue log stream.
type ClueLogger struct {
	component string
}

// NewClueLogger constructs a Logger that delegates to goa.design/clue/log,
// tagging every entry with component. The logger reads formatting and debug
// settings from the context (set via log.Context and log.WithFormat/log.WithDebug).
func NewClueLogger(component string) Logger {
	return ClueLogger{component: component}
}

// Debug emits a debug-level log message with structured key-value pairs.
func (l ClueLogger) Debug(ctx context.Context, msg string, keyvals ...any) {
	log.Debug(ctx, l.fielders(msg, keyvals)...)
}

// Info emits an info-level log message with structured key-value pairs.
func (l ClueLogger) Info(ctx context.Context, msg string, keyvals ...any) {
	log.Info(ctx, l.fielders(msg, keyvals)...)
}

// Warn emits a warning-level log message with structured key-value pairs.
func (l ClueLogger) Warn(ctx context.Context, msg string, keyvals ...any) {
	fielders := l.fielders(msg, keyvals)
	fielders = append(fielders, log.KV{K: "severity", V: "warning"})
	log.Warn(ctx, fielders...)
}

// Error emits an error-level log message with structured key-value pairs.
func (l ClueLogger) Error(ctx context.Context, msg string, keyvals ...any) {
	log.Error(ctx, nil, l.fielders(msg, keyvals)...)
}

// fielders builds the clue field list common to every log level: the message,
// the logger's component tag, and the caller's key-value pairs.
func (l ClueLogger) fielders(msg string, keyvals []any) []log.Fielder {
	fielders := []log.Fielder{log.KV{K: "msg", V: msg}}
	if l.component != "" {
		fielders = append(fielders, log.KV{K: "component", V: l.component})
	}
	return append(fielders, kvSliceToClue(keyvals)...)
}

// kvSliceToClue converts variadic key-value pairs (k1, v1, k2, v2, ...) into
// Clue's log.Fielder slice. If the slice has an odd length, the last key is
// paired with nil. Non-string keys are skipped.
func kvSliceToClue(keyvals []any) []log.Fielder {
	var fielders []log.Fielder
	for i := 0; i < len(keyvals); i += 2 {
		k := keyvals[i]
		var v any
		if i+1 < len(keyvals) {
			v = keyvals[i+1]
		}
		keyStr, ok := k.(string)
		if !ok {
			continue
		}
		fielders = append(fielders, log.KV{K: keyStr, V: v})
	}
	return fielders
}
