package ports

import "context"

// Logger is the structured logger every component receives. Fields are merged into the
// record; StdLogger renders them as sorted k=v pairs and ZapLogger as JSON keys.
type Logger interface {
	// Debug logs a message at Debug level.
	Debug(ctx context.Context, msg string, fields ...map[string]interface{})
	// Info logs a message at Info level.
	Info(ctx context.Context, msg string, fields ...map[string]interface{})
	// Warn logs a recoverable problem: a skipped configuration, a retried call.
	Warn(ctx context.Context, msg string, fields ...map[string]interface{})
	// Error logs an error message at Error level.
	Error(ctx context.Context, err error, msg string, fields ...map[string]interface{})
}
