// Package main hosts the Cadence CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into HTTP calls
// against the cadenced API: reconciliation preview and commit, streaming
// imports, job history, conflict resolution, shadow-student claims, and daemon
// status. Configuration resolution, server discovery, and bearer-token
// handling live in commandContext so subcommands can focus on rendering.
//
// Keep this package lean: behaviour belongs in the internal packages and is
// reached through the daemon; commands here only shape requests and output.
package main
