package conflicts

import (
	"cadence/internal/matching"
	"cadence/internal/store"
)

// RemoteSnapshot extracts the synced field set from a calendar event.
func RemoteSnapshot(ev matching.CalendarEvent) store.LessonSnapshot {
	return store.LessonSnapshot{
		Title:       ev.Summary,
		ScheduledAt: ev.Start.UTC(),
		EndsAt:      ev.End.UTC(),
		Notes:       ev.Description,
	}
}

// EventPatch turns a lesson snapshot into the event fields written back to
// the calendar.
func EventPatch(eventID string, snapshot store.LessonSnapshot) matching.CalendarEvent {
	return matching.CalendarEvent{
		ID:          eventID,
		Summary:     snapshot.Title,
		Description: snapshot.Notes,
		Start:       snapshot.ScheduledAt,
		End:         snapshot.EndsAt,
	}
}
