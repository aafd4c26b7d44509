package importer

import "time"

// EventType discriminates progress events.
type EventType string

const (
	EventInit         EventType = "init"
	EventChunkStart   EventType = "chunk_start"
	EventItemImported EventType = "event_imported"
	EventItemSkipped  EventType = "event_skipped"
	EventItemError    EventType = "event_error"
	EventComplete     EventType = "complete"
	EventCancelled    EventType = "cancelled"
	EventError        EventType = "error"
)

// Terminal reports whether no event follows t.
func (t EventType) Terminal() bool {
	return t == EventComplete || t == EventCancelled || t == EventError
}

// Skip reasons beyond the relevance reasons from the matching package.
const (
	ReasonAlreadyImported   = "already_imported"
	ReasonUpdatedFromRemote = "updated_from_remote"
	ReasonConflict          = "conflict"
)

// Progress holds the job counters. Every field only grows while the job runs.
type Progress struct {
	ChunksTotal int `json:"chunksTotal"`
	ChunksDone  int `json:"chunksDone"`
	Imported    int `json:"imported"`
	Skipped     int `json:"skipped"`
	Errors      int `json:"errors"`
}

// Event is one progress notification. Fields not relevant to Type are zero.
type Event struct {
	Type     EventType
	JobID    string
	Time     time.Time
	Progress Progress

	Chunk *Chunk

	ItemID        string
	Title         string
	Reason        string
	StudentEmail  string
	ShadowCreated bool
	ConflictID    string

	Message string
}
