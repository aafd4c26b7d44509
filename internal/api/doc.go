// Package api defines wire-format types, converters, and the service facade
// used by the daemon's HTTP layer and the CLI. It translates reconciliation,
// import, and conflict models into transport-friendly DTOs so clients never
// depend on internal types.
//
// # Key Types
//
// Report/CommitReport: dry-run and commit summaries with per-item match
// results, counters, and per-item write errors.
//
// ImportEvent: one streamed progress notification of an import job.
//
// Job/JobsResponse: running and historical import jobs.
//
// Conflict: an outstanding divergence between a local lesson and its calendar
// event, carrying both snapshots and the differing field names.
//
// Status: daemon state, database path, active jobs, and conflict count.
//
// # Converters
//
// FromReport, FromCommitReport: reconcile reports -> DTOs.
//
// FromImportEvent, FromJobStatus, FromJobRecord: importer models -> DTOs.
//
// FromConflict, FromStudent: store models -> DTOs.
//
// # Service
//
// Service resolves a request's source name to an item provider, then drives
// the reconciliation executor, import manager, and conflict manager. Errors
// keep their services sentinel so the HTTP layer can map them to status codes.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Enums (outcomes, job states, resolutions) are
// exposed as lowercase strings. Timestamps use RFC3339 with milliseconds.
package api
