// Package logging assembles the structured slog loggers used across the
// tool.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes attribute helpers so command and pipeline code tag
// log lines with the same keys (component, bvid, collection_id). The
// package also provides a no-op logger for tests and wiring code that
// cannot fail.
//
// Prefer these constructors over hand-rolled slog setup so every component
// emits data with the same shape.
package logging
