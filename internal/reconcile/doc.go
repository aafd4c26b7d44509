// Package reconcile runs the parse, score, and classify pipeline over a batch
// of external items and either reports the outcome (dry run) or writes the
// resulting links and catalog records (commit).
//
// Every write is preceded by a fresh Dedup Guard read, and the store's unique
// indexes act as the backstop, so re-running a commit over the same items is
// a no-op after the first successful pass.
package reconcile
