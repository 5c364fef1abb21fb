// Package logging assembles structured slog loggers and formatting helpers.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so scoring code can tag log
// lines with the invocation, round, run, and part being processed. The
// package also provides a no-op logger for tests and wiring code that cannot
// fail.
package logging
