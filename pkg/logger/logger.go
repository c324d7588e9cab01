// Package logger provides structured logging for the luma runtime.
package logger

import (
	"io"
	"log/slog"
	"os"
)

// Logger provides the structured logging interface used across the runtime.
type Logger interface {
	// Debug logs debug-level messages with optional key-value pairs.
	Debug(msg string, keysAndValues ...any)

	// Info logs info-level messages with optional key-value pairs.
	Info(msg string, keysAndValues ...any)

	// Error logs error-level messages with optional key-value pairs.
	Error(msg string, keysAndValues ...any)

	// With returns a new logger with additional key-value pairs.
	With(keysAndValues ...any) Logger
}

// LogFilePermissions defines the file permissions for log files (owner read/write only).
const LogFilePermissions = 0o600

// slogLogger implements Logger on top of log/slog.
type slogLogger struct {
	sl *slog.Logger
}

// New creates a Logger writing line-formatted records to w.
func New(w io.Writer, level Level) Logger {
	return &slogLogger{sl: slog.New(NewLineHandler(w, level))}
}

// NewFileLogger creates a Logger appending to the log file at path.
func NewFileLogger(path string, level Level) (Logger, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, LogFilePermissions)
	if err != nil {
		return nil, err
	}

	return New(file, level), nil
}

func (l *slogLogger) Debug(msg string, keysAndValues ...any) {
	l.sl.Debug(msg, keysAndValues...)
}

func (l *slogLogger) Info(msg string, keysAndValues ...any) {
	l.sl.Info(msg, keysAndValues...)
}

func (l *slogLogger) Error(msg string, keysAndValues ...any) {
	l.sl.Error(msg, keysAndValues...)
}

func (l *slogLogger) With(keysAndValues ...any) Logger {
	return &slogLogger{sl: l.sl.With(keysAndValues...)}
}

// NoOpLogger discards all log output. Intended for tests.
type NoOpLogger struct{}

// NewNoOpLogger creates a logger that discards everything.
func NewNoOpLogger() Logger {
	return &NoOpLogger{}
}

func (*NoOpLogger) Debug(string, ...any) {}

func (*NoOpLogger) Info(string, ...any) {}

func (*NoOpLogger) Error(string, ...any) {}

// With returns the receiver; there is nothing to attach to.
func (n *NoOpLogger) With(...any) Logger { return n }
