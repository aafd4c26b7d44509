// Package daemon coordinates the long-running Cadence process and its HTTP
// surface.
//
// It wires configuration and the api service into a single lifecycle with
// flock-based locking to prevent multiple instances. The HTTP server exposes
// reconciliation preview and commit, streaming imports over server-sent
// events, import cancellation and history, conflict listing and resolution,
// shadow-student claims, and a status endpoint. An optional bearer token
// guards every route.
//
// Keep orchestration logic here: reconciliation, import, and conflict rules
// live in their own packages while the daemon focuses on startup, shutdown,
// and transport concerns.
package daemon
