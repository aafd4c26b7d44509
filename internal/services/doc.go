// Package services defines shared utilities consumed by the reconciliation
// engine, the import jobs, and the HTTP layer.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, owners, source types, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper so callers can classify
//     failures (validation, not found, conflict) without string matching.
//
// Use these helpers when wiring new components so error handling and
// observability stay uniform across the daemon.
package services
