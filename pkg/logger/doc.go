// Package logger constructs the process-wide slog.Logger: JSON output
// in production, colorized text elsewhere.
package logger
