// Package matching turns raw external labels into comparable candidates and
// scores them against a catalog snapshot.
//
// Everything here is pure and synchronous: ParseLabel never fails, the
// CatalogIndex is an immutable snapshot, scores are a function of the
// candidate and a single entry, and Classify buckets a scored result using
// Thresholds plus the caller-supplied dedup and exclusion facts. Calendar
// events are handled by LessonVocabulary.ClassifyEvent, which decides
// relevance and extracts the participating student.
//
// Persistence, dedup lookups, and writes live in the reconcile and importer
// packages; this package must stay free of I/O so previews and commits share
// identical classification.
package matching
