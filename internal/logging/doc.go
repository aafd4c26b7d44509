// Package logging assembles structured slog loggers used across the cadence
// daemon and CLI.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so reconciliation and import
// code can tag log lines with job IDs, owners, and correlation IDs. A no-op
// logger is provided for tests and wiring code that cannot fail.
package logging
