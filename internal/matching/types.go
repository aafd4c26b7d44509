package matching

import (
	"strings"
)

// SourceType identifies which external system produced an item.
type SourceType string

const (
	SourceFile           SourceType = "file"
	SourceCalendarEvent  SourceType = "calendar_event"
	SourceTrackSearchHit SourceType = "track_search_hit"
)

// Valid reports whether s is one of the known source types.
func (s SourceType) Valid() bool {
	switch s {
	case SourceFile, SourceCalendarEvent, SourceTrackSearchHit:
		return true
	default:
		return false
	}
}

// ExternalItem is one record fetched from a source adapter. It is immutable
// for the lifetime of a fetch.
type ExternalItem struct {
	ExternalID  string
	SourceType  SourceType
	RawLabel    string
	RawMetadata map[string]string
}

// Candidate is the normalized title/artist guess derived from a raw label.
type Candidate struct {
	Title         string
	Artist        string
	NormalizedKey string
}

// Empty reports whether parsing produced no usable title.
func (c Candidate) Empty() bool {
	return strings.TrimSpace(c.Title) == ""
}

// HasArtist reports whether the candidate carries an artist component.
func (c Candidate) HasArtist() bool {
	return strings.TrimSpace(c.Artist) != ""
}

// CatalogEntry is a read-only view of a song or student identity.
type CatalogEntry struct {
	ID         int64
	Title      string
	Artist     string
	Attributes map[string]string
}

// Scored pairs a catalog entry with its confidence score in [0, 100].
type Scored struct {
	Entry CatalogEntry
	Score int
}

// Outcome is the classification bucket for a processed external item.
type Outcome string

const (
	OutcomeAutoLinkable Outcome = "auto_linkable"
	OutcomeReviewQueue  Outcome = "review_queue"
	OutcomeUnmatched    Outcome = "unmatched"
	OutcomeDuplicate    Outcome = "duplicate"
	OutcomeSkipped      Outcome = "skipped"
)

// Reasons attached to an item that scored high enough to link but was held
// back for review.
const (
	// ReasonEntityLinked: the best catalog entry already has a link from
	// another item of the same source.
	ReasonEntityLinked = "entity_linked"
	// ReasonClaimedInBatch: an earlier item of the same batch and source
	// resolves to the same catalog entry or the same new song.
	ReasonClaimedInBatch = "claimed_in_batch"
)

// MatchResult is produced once per external item per invocation and never
// mutated after classification.
type MatchResult struct {
	Item      ExternalItem
	Candidate Candidate
	Best      *Scored
	RunnerUp  *Scored
	Outcome   Outcome
	Reason    string
}

// HoldForReview moves the result into the review queue with reason.
func (r *MatchResult) HoldForReview(reason string) {
	r.Outcome = OutcomeReviewQueue
	r.Reason = reason
}

// BestScore returns the best score or zero when nothing matched.
func (r MatchResult) BestScore() int {
	if r.Best == nil {
		return 0
	}
	return r.Best.Score
}
