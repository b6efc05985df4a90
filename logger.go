package crc32c

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with checksum-specific helpers.
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
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
			Level: slog.Level(1000), // Unreachable level
		})),
	}
}

// WithName adds the object name (blob, segment, peer) to the logger.
func (l *Logger) WithName(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("name", name),
	}
}

// WithComponent tags records with the emitting component.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		Logger: l.Logger.With("component", component),
	}
}

// LogSelection logs which kernel an engine selected.
func (l *Logger) LogSelection(ctx context.Context, caps Capabilities, impl string, overridden bool) {
	l.DebugContext(ctx, "crc32c implementation selected",
		"implementation", impl,
		"arch", caps.Arch,
		"features", caps.Features.String(),
		"overridden", overridden,
	)
}

// LogMismatch logs a failed verification.
func (l *Logger) LogMismatch(ctx context.Context, name string, expected, actual uint32) {
	l.WarnContext(ctx, "checksum mismatch",
		"name", name,
		"expected", expected,
		"actual", actual,
	)
}

// LogVerify logs the outcome of verifying one object.
func (l *Logger) LogVerify(ctx context.Context, name string, size int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "verify failed",
			"name", name,
			"size", size,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "verify completed",
			"name", name,
			"size", size,
		)
	}
}

// LogScrub logs a completed scrub pass.
func (l *Logger) LogScrub(ctx context.Context, scanned, corrupt int, err error) {
	switch {
	case err != nil:
		l.ErrorContext(ctx, "scrub failed",
			"scanned", scanned,
			"corrupt", corrupt,
			"error", err,
		)
	case corrupt > 0:
		l.WarnContext(ctx, "scrub completed with corrupt blobs",
			"scanned", scanned,
			"corrupt", corrupt,
		)
	default:
		l.InfoContext(ctx, "scrub completed",
			"scanned", scanned,
		)
	}
}

// LogUpload logs a completed object upload and its stored checksum.
func (l *Logger) LogUpload(ctx context.Context, name string, size int64, parts int, crc uint32, err error) {
	if err != nil {
		l.ErrorContext(ctx, "upload failed",
			"name", name,
			"size", size,
			"parts", parts,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "upload completed",
			"name", name,
			"size", size,
			"parts", parts,
			"crc32c", crc,
		)
	}
}
