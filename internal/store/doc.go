// Package store persists the catalog, external links, conflicts, and import
// job history in SQLite.
//
// Schema changes are embedded SQL migrations applied on Open. External links
// carry the uniqueness constraints the dedup guard relies on: one link per
// (source type, external id) and one link per catalog entity per source type.
// Lookups that find nothing return (nil, nil).
package store
