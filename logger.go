package gridgo

import (
	"context"
	"log/slog"
	"os"

	"github.com/hupe1980/gridgo/dtype"
)

// Logger wraps slog.Logger with gridgo-specific context.
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
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithGroupPath adds a group path field to the logger.
func (l *Logger) WithGroupPath(path string) *Logger {
	return &Logger{
		Logger: l.Logger.With("group", path),
	}
}

// WithAttr adds an attribute name field to the logger.
func (l *Logger) WithAttr(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("attr", name),
	}
}

// WithType adds a type field to the logger.
func (l *Logger) WithType(t dtype.ID) *Logger {
	return &Logger{
		Logger: l.Logger.With("type", t.String()),
	}
}

// LogAttrPut logs an attribute put operation.
func (l *Logger) LogAttrPut(ctx context.Context, target, name string, t dtype.ID, n int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "attribute put failed",
			"target", target,
			"attr", name,
			"type", t.String(),
			"len", n,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "attribute put completed",
			"target", target,
			"attr", name,
			"type", t.String(),
			"len", n,
		)
	}
}

// LogAttrGet logs an attribute get operation.
func (l *Logger) LogAttrGet(ctx context.Context, target, name string, t dtype.ID, err error) {
	if err != nil {
		l.ErrorContext(ctx, "attribute get failed",
			"target", target,
			"attr", name,
			"type", t.String(),
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "attribute get completed",
			"target", target,
			"attr", name,
			"type", t.String(),
		)
	}
}

// LogAttrRename logs an attribute rename operation.
func (l *Logger) LogAttrRename(ctx context.Context, target, oldName, newName string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "attribute rename failed",
			"target", target,
			"from", oldName,
			"to", newName,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "attribute rename completed",
			"target", target,
			"from", oldName,
			"to", newName,
		)
	}
}

// LogAttrDelete logs an attribute delete operation.
func (l *Logger) LogAttrDelete(ctx context.Context, target, name string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "attribute delete failed",
			"target", target,
			"attr", name,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "attribute delete completed",
			"target", target,
			"attr", name,
		)
	}
}

// LogCommit logs a metadata commit.
func (l *Logger) LogCommit(ctx context.Context, attrs, containers int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "commit failed",
			"attrs", attrs,
			"containers", containers,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "commit completed",
			"attrs", attrs,
			"containers", containers,
		)
	}
}
