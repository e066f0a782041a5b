// Package logging assembles structured slog loggers and formatting helpers used
// across the ingestor daemon and CLI.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so job code can automatically
// tag log lines with job IDs, stages, kinds, and correlation IDs. The package
// also provides a no-op logger for tests and wiring code that cannot fail, and
// a ProgressSampler that keeps progress logging readable.
//
// Prefer these constructors over hand-rolled slog setup to ensure new
// components emit data with the same shape as the rest of the system.
package logging
