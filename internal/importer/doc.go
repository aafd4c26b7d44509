// Package importer runs streaming calendar imports.
//
// A job splits the requested range into calendar-month chunks, drains each
// chunk's pages in order, and turns relevant lesson events into lessons,
// creating shadow students for attendees the school has not seen before.
// Every decision is published on the job's event channel in the order the
// work completes. Cancellation is cooperative and is observed at every chunk,
// page, and item boundary; writes made before it are kept.
//
// At most one job runs per owner. The Registry enforces this and is the only
// way to reach a running job from outside (for cancellation and status).
package importer
