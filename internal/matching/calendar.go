package matching

import (
	"strings"
	"time"
)

// Relevance reasons reported for calendar events that are not imported.
const (
	ReasonNotLesson         = "not_lesson"
	ReasonNoStudentAttendee = "no_student_attendee"
	ReasonCancelled         = "cancelled"
)

// Attendee is one invited participant of a calendar event.
type Attendee struct {
	Email       string
	DisplayName string
	Self        bool
	Organizer   bool
	Resource    bool
}

// CalendarEvent is the subset of a remote calendar event the engine reads.
type CalendarEvent struct {
	ID          string
	Summary     string
	Description string
	Status      string
	Start       time.Time
	End         time.Time
	Updated     time.Time
	Attendees   []Attendee
}

// ExternalItem describes the event in the shape shared by every source.
func (ev CalendarEvent) ExternalItem() ExternalItem {
	meta := map[string]string{}
	if !ev.Start.IsZero() {
		meta["start"] = ev.Start.UTC().Format(time.RFC3339)
	}
	if !ev.End.IsZero() {
		meta["end"] = ev.End.UTC().Format(time.RFC3339)
	}
	if ev.Status != "" {
		meta["status"] = ev.Status
	}
	return ExternalItem{
		ExternalID:  ev.ID,
		SourceType:  SourceCalendarEvent,
		RawLabel:    ev.Summary,
		RawMetadata: meta,
	}
}

// Relevance is the result of classifying a calendar event.
type Relevance struct {
	Relevant    bool
	Participant *Attendee
	Reason      string
}

// LessonVocabulary holds the keyword set that marks an event as a lesson.
type LessonVocabulary struct {
	words   map[string]struct{}
	phrases []string
}

// NewLessonVocabulary builds a vocabulary from keywords. Multi-word keywords
// match as whole phrases.
func NewLessonVocabulary(keywords []string) LessonVocabulary {
	v := LessonVocabulary{words: make(map[string]struct{}, len(keywords))}
	for _, kw := range keywords {
		normalized := Normalize(kw)
		if normalized == "" {
			continue
		}
		if strings.Contains(normalized, " ") {
			v.phrases = append(v.phrases, " "+normalized+" ")
			continue
		}
		v.words[normalized] = struct{}{}
	}
	return v
}

// Matches reports whether summary contains a lesson keyword as a whole word.
func (v LessonVocabulary) Matches(summary string) bool {
	normalized := Normalize(summary)
	if normalized == "" {
		return false
	}
	for _, word := range strings.Fields(normalized) {
		if _, ok := v.words[word]; ok {
			return true
		}
	}
	padded := " " + normalized + " "
	for _, phrase := range v.phrases {
		if strings.Contains(padded, phrase) {
			return true
		}
	}
	return false
}

// ClassifyEvent decides whether ev is a lesson worth importing for the
// calendar owned by ownerEmail. An event is relevant when its summary matches
// the vocabulary and at least one attendee other than the owner is present;
// that attendee is returned as the participant.
func (v LessonVocabulary) ClassifyEvent(ev CalendarEvent, ownerEmail string) Relevance {
	if strings.EqualFold(ev.Status, "cancelled") {
		return Relevance{Reason: ReasonCancelled}
	}
	if !v.Matches(ev.Summary) {
		return Relevance{Reason: ReasonNotLesson}
	}
	owner := strings.ToLower(strings.TrimSpace(ownerEmail))
	for i := range ev.Attendees {
		attendee := ev.Attendees[i]
		email := strings.ToLower(strings.TrimSpace(attendee.Email))
		if email == "" || attendee.Self || attendee.Resource || email == owner {
			continue
		}
		attendee.Email = email
		return Relevance{Relevant: true, Participant: &attendee}
	}
	return Relevance{Reason: ReasonNoStudentAttendee}
}
