package testsupport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cadence/internal/matching"
)

// LessonEvent builds a relevant lesson event for owner with one student.
func LessonEvent(id, summary, ownerEmail, studentEmail string, start time.Time) matching.CalendarEvent {
	return matching.CalendarEvent{
		ID:      id,
		Summary: summary,
		Start:   start,
		End:     start.Add(45 * time.Minute),
		Updated: start,
		Attendees: []matching.Attendee{
			{Email: ownerEmail, Self: true, Organizer: true},
			{Email: studentEmail},
		},
	}
}

// FakeCalendar serves events from memory, paginated by PageSize, filtered by
// the requested window. Calls are recorded for assertions.
type FakeCalendar struct {
	mu       sync.Mutex
	Events   []matching.CalendarEvent
	PageSize int
	// FailOn makes ListEvents fail when the window starts at this instant.
	FailOn time.Time
	// OnList runs after each successful call with the 1-based call count.
	OnList  func(call int)
	calls   int
	patches map[string]matching.CalendarEvent
}

// ListEvents returns one page of events whose start falls in [from, to).
func (f *FakeCalendar) ListEvents(ctx context.Context, from, to time.Time, pageToken string) ([]matching.CalendarEvent, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	f.mu.Lock()
	f.calls++
	call := f.calls
	if !f.FailOn.IsZero() && f.FailOn.Equal(from) {
		f.mu.Unlock()
		return nil, "", fmt.Errorf("calendar unavailable for %s", from.Format("2006-01"))
	}
	var window []matching.CalendarEvent
	for _, ev := range f.Events {
		if !ev.Start.Before(from) && ev.Start.Before(to) {
			window = append(window, ev)
		}
	}
	size := f.PageSize
	if size <= 0 {
		size = len(window) + 1
	}
	offset := 0
	if pageToken != "" {
		fmt.Sscanf(pageToken, "%d", &offset)
	}
	end := offset + size
	next := ""
	if end < len(window) {
		next = fmt.Sprintf("%d", end)
	} else {
		end = len(window)
	}
	page := append([]matching.CalendarEvent(nil), window[offset:end]...)
	hook := f.OnList
	f.mu.Unlock()

	if hook != nil {
		hook(call)
	}
	return page, next, nil
}

// PatchEvent records the write-back for later inspection.
func (f *FakeCalendar) PatchEvent(ctx context.Context, eventID string, ev matching.CalendarEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.patches == nil {
		f.patches = make(map[string]matching.CalendarEvent)
	}
	f.patches[eventID] = ev
	return nil
}

// Calls returns the number of ListEvents invocations so far.
func (f *FakeCalendar) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// Patched returns the last write-back for eventID.
func (f *FakeCalendar) Patched(eventID string) (matching.CalendarEvent, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ev, ok := f.patches[eventID]
	return ev, ok
}

// StaticItems is an item provider that returns the same items for every
// scope.
type StaticItems []matching.ExternalItem

// Items returns a copy of the fixed items.
func (s StaticItems) Items(context.Context, string) ([]matching.ExternalItem, error) {
	return append([]matching.ExternalItem(nil), s...), nil
}
