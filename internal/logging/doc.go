// Package logging assembles structured slog loggers and formatting helpers used
// across the transcription pipeline.
//
// It owns the console/JSON handlers, centralizes level and output plumbing,
// and exposes context-aware helpers so pipeline code can tag log lines with
// the input path, stage, and correlation ID. Logs go to stderr so rendered
// transcripts written to stdout stay clean. A no-op logger is provided for
// tests and wiring code that cannot fail.
package logging
