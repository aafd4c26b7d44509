package gcal_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"google.golang.org/api/option"

	"cadence/internal/logging"
	"cadence/internal/matching"
	"cadence/internal/sources/gcal"
	"cadence/internal/testsupport"
)

type calendarServer struct {
	mu      sync.Mutex
	queries []map[string]string
	patches map[string]map[string]any
}

func (s *calendarServer) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /calendars/primary/events", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		s.mu.Lock()
		s.queries = append(s.queries, map[string]string{
			"timeMin":      q.Get("timeMin"),
			"timeMax":      q.Get("timeMax"),
			"pageToken":    q.Get("pageToken"),
			"singleEvents": q.Get("singleEvents"),
		})
		s.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if q.Get("pageToken") == "" {
			_, _ = io.WriteString(w, `{
				"items": [
					{"id": "evt-1", "summary": " Guitar lesson ", "status": "confirmed",
					 "start": {"dateTime": "2026-01-05T17:00:00Z"}, "end": {"dateTime": "2026-01-05T17:45:00Z"},
					 "updated": "2026-01-01T10:00:00Z",
					 "attendees": [{"email": "teacher@example.com", "self": true, "organizer": true}, {"email": "sam@example.com", "displayName": "Sam"}]},
					{"id": "evt-early", "summary": "Overlap", "start": {"dateTime": "2025-12-31T23:00:00Z"}, "end": {"dateTime": "2026-01-01T01:00:00Z"}}
				],
				"nextPageToken": "page-2"
			}`)
			return
		}
		_, _ = io.WriteString(w, `{"items": [
			{"id": "evt-2", "summary": "Holiday", "start": {"date": "2026-01-20"}, "end": {"date": "2026-01-21"}}
		]}`)
	})
	mux.HandleFunc("PATCH /calendars/primary/events/{id}", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode patch: %v", err)
		}
		s.mu.Lock()
		if s.patches == nil {
			s.patches = map[string]map[string]any{}
		}
		s.patches[r.PathValue("id")] = body
		s.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id": "`+r.PathValue("id")+`"}`)
	})
	return mux
}

func newClient(t *testing.T) (*gcal.Client, *calendarServer) {
	t.Helper()
	fake := &calendarServer{}
	srv := httptest.NewServer(fake.handler(t))
	t.Cleanup(srv.Close)

	cfg := testsupport.NewConfig(t)
	client, err := gcal.New(context.Background(), cfg, logging.NewNop(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithoutAuthentication(),
		option.WithHTTPClient(srv.Client()),
	)
	if err != nil {
		t.Fatalf("gcal.New failed: %v", err)
	}
	return client, fake
}

func TestListEventsPagesAndConverts(t *testing.T) {
	client, fake := newClient(t)
	ctx := context.Background()
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	events, next, err := client.ListEvents(ctx, from, to, "")
	if err != nil {
		t.Fatalf("ListEvents failed: %v", err)
	}
	if next != "page-2" {
		t.Fatalf("expected next token page-2, got %q", next)
	}
	if len(events) != 1 {
		t.Fatalf("expected overlap event dropped, got %+v", events)
	}
	ev := events[0]
	if ev.ID != "evt-1" || ev.Summary != "Guitar lesson" || len(ev.Attendees) != 2 {
		t.Fatalf("unexpected event %+v", ev)
	}
	if !ev.Start.Equal(time.Date(2026, 1, 5, 17, 0, 0, 0, time.UTC)) || ev.End.Sub(ev.Start) != 45*time.Minute {
		t.Fatalf("unexpected times %v - %v", ev.Start, ev.End)
	}
	if !ev.Attendees[0].Self || ev.Attendees[1].DisplayName != "Sam" {
		t.Fatalf("unexpected attendees %+v", ev.Attendees)
	}

	events, next, err = client.ListEvents(ctx, from, to, next)
	if err != nil {
		t.Fatalf("second page failed: %v", err)
	}
	if next != "" || len(events) != 1 || events[0].ID != "evt-2" {
		t.Fatalf("unexpected second page %+v next=%q", events, next)
	}
	if !events[0].Start.Equal(time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("all-day start parsed as %v", events[0].Start)
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	if len(fake.queries) != 2 {
		t.Fatalf("expected two requests, got %d", len(fake.queries))
	}
	first := fake.queries[0]
	if first["timeMin"] != "2026-01-01T00:00:00Z" || first["timeMax"] != "2026-02-01T00:00:00Z" || first["singleEvents"] != "true" {
		t.Fatalf("unexpected query %v", first)
	}
	if fake.queries[1]["pageToken"] != "page-2" {
		t.Fatalf("expected page token forwarded, got %v", fake.queries[1])
	}
}

func TestPatchEventSendsSyncedFields(t *testing.T) {
	client, fake := newClient(t)
	start := time.Date(2026, 1, 5, 18, 0, 0, 0, time.UTC)
	err := client.PatchEvent(context.Background(), "evt-1", matching.CalendarEvent{
		Summary: "Guitar lesson",
		Start:   start,
		End:     start.Add(45 * time.Minute),
	})
	if err != nil {
		t.Fatalf("PatchEvent failed: %v", err)
	}
	fake.mu.Lock()
	defer fake.mu.Unlock()
	body := fake.patches["evt-1"]
	if body == nil {
		t.Fatal("expected patch request")
	}
	if body["summary"] != "Guitar lesson" {
		t.Fatalf("unexpected summary %v", body["summary"])
	}
	startField, _ := body["start"].(map[string]any)
	if startField["dateTime"] != "2026-01-05T18:00:00Z" {
		t.Fatalf("unexpected start %v", body["start"])
	}
	if value, ok := body["description"]; !ok || value != nil {
		t.Fatalf("expected description explicitly cleared, got %v (present=%v)", value, ok)
	}
}
