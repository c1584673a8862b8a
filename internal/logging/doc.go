// Package logging provides slog-based loggers with console and JSON output,
// typed attribute helpers, and the standardized field names used across the
// ingestion pipeline.
package logging
