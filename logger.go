package flagcube

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with flagcube-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithAgent adds the agent slot and name to the logger.
func (l *Logger) WithAgent(id int, name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("agent", id, "agent_name", name),
	}
}

// WithTime adds a time index field to the logger.
func (l *Logger) WithTime(t int) *Logger {
	return &Logger{
		Logger: l.Logger.With("time", t),
	}
}

// LogAllocate logs the allocation of shared flag storage.
func (l *Logger) LogAllocate(mode Mode, agents, depth int, bytes int64, err error) {
	if err != nil {
		l.Error("flag storage allocation failed",
			"agents", agents,
			"error", err,
		)
	} else {
		l.Info("flag storage allocated",
			"mode", mode.String(),
			"agents", agents,
			"depth", depth,
			"bytes", bytes,
		)
	}
}

// LogFree logs the release of shared flag storage.
func (l *Logger) LogFree(bytes int64) {
	l.Info("flag storage freed",
		"bytes", bytes,
	)
}

// LogLoad logs a load of pre-existing flags.
func (l *Logger) LogLoad(ctx context.Context, t int, policy Policy, absent int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "flag load failed",
			"time", t,
			"policy", policy.String(),
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "flags loaded",
			"time", t,
			"policy", policy.String(),
			"absent_rows", absent,
		)
	}
}

// LogPublish logs a publish of merged flags.
func (l *Logger) LogPublish(ctx context.Context, t, flaggedRows int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "flag publish failed",
			"time", t,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "flags published",
			"time", t,
			"flagged_rows", flaggedRows,
		)
	}
}
