// Package preflight provides readiness checks for the filesystem paths and
// external services Cadence depends on.
//
// The daemon runs RunAll at startup and refuses to start when a required
// check fails. Optional checks (Google credentials, track search) only
// report: a missing credential disables the matching source instead of
// aborting the daemon.
package preflight
