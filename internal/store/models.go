package store

import (
	"time"

	"cadence/internal/matching"
)

// EntityKind names the catalog table a link points at.
type EntityKind string

const (
	EntitySong   EntityKind = "song"
	EntityLesson EntityKind = "lesson"
)

// Song is a catalog song record.
type Song struct {
	ID        int64
	Title     string
	Artist    string
	CreatedAt time.Time
}

// CatalogEntry converts the song into the matching view.
func (s Song) CatalogEntry() matching.CatalogEntry {
	return matching.CatalogEntry{ID: s.ID, Title: s.Title, Artist: s.Artist}
}

// Student is a student identity. Shadow students were created from an
// external participant and have not been claimed by a real account.
type Student struct {
	ID          int64
	Email       string
	DisplayName string
	Shadow      bool
	ClaimedAt   *time.Time
	CreatedAt   time.Time
}

// LessonSnapshot is the set of lesson fields kept in sync with the remote
// calendar.
type LessonSnapshot struct {
	Title       string    `json:"title"`
	ScheduledAt time.Time `json:"scheduledAt"`
	EndsAt      time.Time `json:"endsAt"`
	Notes       string    `json:"notes"`
}

// Equal compares snapshots field by field.
func (s LessonSnapshot) Equal(other LessonSnapshot) bool {
	return s.Title == other.Title &&
		s.ScheduledAt.Equal(other.ScheduledAt) &&
		s.EndsAt.Equal(other.EndsAt) &&
		s.Notes == other.Notes
}

// DiffFields lists the names of fields that differ between s and other.
func (s LessonSnapshot) DiffFields(other LessonSnapshot) []string {
	var fields []string
	if s.Title != other.Title {
		fields = append(fields, "title")
	}
	if !s.ScheduledAt.Equal(other.ScheduledAt) {
		fields = append(fields, "scheduled_at")
	}
	if !s.EndsAt.Equal(other.EndsAt) {
		fields = append(fields, "ends_at")
	}
	if s.Notes != other.Notes {
		fields = append(fields, "notes")
	}
	return fields
}

// Lesson is a scheduled lesson owned by a teacher account.
type Lesson struct {
	ID          int64
	Owner       string
	StudentID   int64
	Title       string
	ScheduledAt time.Time
	EndsAt      time.Time
	Notes       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Snapshot returns the synced field set of the lesson.
func (l Lesson) Snapshot() LessonSnapshot {
	return LessonSnapshot{Title: l.Title, ScheduledAt: l.ScheduledAt, EndsAt: l.EndsAt, Notes: l.Notes}
}

// Link records that an external item has been reconciled to a catalog entity.
// Snapshot holds the last state both sides agreed on for synced lessons.
type Link struct {
	ID         int64
	SourceType matching.SourceType
	ExternalID string
	EntityKind EntityKind
	EntityID   int64
	Owner      string
	Snapshot   *LessonSnapshot
	SyncedAt   time.Time
	CreatedAt  time.Time
}

// Resolution is the human choice applied to a conflict.
type Resolution string

const (
	ResolutionUseLocal  Resolution = "use_local"
	ResolutionUseRemote Resolution = "use_remote"
)

// Valid reports whether r is a supported resolution.
func (r Resolution) Valid() bool {
	return r == ResolutionUseLocal || r == ResolutionUseRemote
}

// Conflict is a persisted divergence between local and remote lesson state.
type Conflict struct {
	ID         string
	LinkID     int64
	SourceType matching.SourceType
	ExternalID string
	EntityKind EntityKind
	EntityID   int64
	Owner      string
	Local      LessonSnapshot
	Remote     LessonSnapshot
	DetectedAt time.Time
	Resolution Resolution
	ResolvedAt *time.Time
}

// Outstanding reports whether the conflict still awaits resolution.
func (c Conflict) Outstanding() bool {
	return c.ResolvedAt == nil
}

// JobRecord is the persisted history row of a streaming import job.
type JobRecord struct {
	ID          string
	Owner       string
	State       string
	RangeStart  time.Time
	RangeEnd    time.Time
	ChunksTotal int
	ChunksDone  int
	Imported    int
	Skipped     int
	Errors      int
	Message     string
	StartedAt   time.Time
	FinishedAt  *time.Time
}
