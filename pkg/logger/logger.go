// Package logger defines the structured logging contract for sessiond.
// The zap-backed implementation lives in internal/infrastructure/monitoring.
package logger

import "context"

// Fields is a bag of structured key-value pairs attached to a log entry.
type Fields map[string]interface{}

// Logger is the interface all sessiond components log through. Every method
// takes a context so implementations can enrich entries with trace metadata.
type Logger interface {
	// Debug logs a debug message.
	Debug(ctx context.Context, msg string, fields ...Fields)

	// Info logs an informational message.
	Info(ctx context.Context, msg string, fields ...Fields)

	// Warn logs a warning message.
	Warn(ctx context.Context, msg string, fields ...Fields)

	// Error logs an error message with its cause.
	Error(ctx context.Context, msg string, err error, fields ...Fields)

	// Fatal logs a fatal message and exits the application.
	Fatal(ctx context.Context, msg string, err error, fields ...Fields)

	// WithFields returns a child logger carrying the given base fields.
	WithFields(fields Fields) Logger

	// WithComponent returns a child logger scoped to a named component.
	WithComponent(component string) Logger
}
