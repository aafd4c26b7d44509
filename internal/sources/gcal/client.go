// Package gcal adapts Google Calendar to the streaming importer's paged event
// feed and to the conflict resolver's write-back.
package gcal

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"cadence/internal/config"
	"cadence/internal/logging"
	"cadence/internal/matching"
	"cadence/internal/services"
	"cadence/internal/sources"
)

const maxPageSize = 2500

// Client reads and patches events of one calendar.
type Client struct {
	svc        *calendar.Service
	calendarID string
	pageSize   int
	logger     *slog.Logger
}

// New builds a client from configuration. Credentials come from cfg.Google
// unless opts is non-empty, in which case opts alone configure the service.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...option.ClientOption) (*Client, error) {
	if len(opts) == 0 {
		var err error
		opts, err = sources.GoogleOptions(ctx, cfg.Google, calendar.CalendarEventsScope)
		if err != nil {
			return nil, err
		}
	}
	svc, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "gcal", "new service", "", err)
	}
	pageSize := cfg.Import.PageSize
	if pageSize <= 0 || pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return &Client{
		svc:        svc,
		calendarID: cfg.Google.CalendarID,
		pageSize:   pageSize,
		logger:     logging.NewComponentLogger(logger, "gcal"),
	}, nil
}

// ListEvents returns one page of single (expanded) events starting in
// [from, to). Events that began before from but overlap it are dropped; the
// previous window already saw them.
func (c *Client) ListEvents(ctx context.Context, from, to time.Time, pageToken string) ([]matching.CalendarEvent, string, error) {
	call := c.svc.Events.List(c.calendarID).
		Context(ctx).
		TimeMin(from.Format(time.RFC3339)).
		TimeMax(to.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(int64(c.pageSize))
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}
	resp, err := call.Do()
	if err != nil {
		return nil, "", fmt.Errorf("list calendar events: %w", err)
	}
	events := make([]matching.CalendarEvent, 0, len(resp.Items))
	for _, item := range resp.Items {
		ev, err := convertEvent(item)
		if err != nil {
			c.logger.Debug("skipping calendar event with unreadable times",
				logging.String("event_id", item.Id),
				logging.Error(err),
			)
			continue
		}
		if ev.Start.Before(from) {
			continue
		}
		events = append(events, ev)
	}
	c.logger.Debug("calendar page fetched",
		logging.Time("from", from),
		logging.Int("events", len(events)),
		logging.Bool("more", resp.NextPageToken != ""),
	)
	return events, resp.NextPageToken, nil
}

// PatchEvent overwrites the synced fields of eventID with ev.
func (c *Client) PatchEvent(ctx context.Context, eventID string, ev matching.CalendarEvent) error {
	patch := &calendar.Event{
		Summary:     ev.Summary,
		Description: ev.Description,
		Start:       &calendar.EventDateTime{DateTime: ev.Start.Format(time.RFC3339)},
		End:         &calendar.EventDateTime{DateTime: ev.End.Format(time.RFC3339)},
		// Clearing notes must reach the API, which omits empty strings.
		NullFields: nullFields(ev),
	}
	if _, err := c.svc.Events.Patch(c.calendarID, eventID, patch).Context(ctx).Do(); err != nil {
		return fmt.Errorf("patch calendar event %s: %w", eventID, err)
	}
	return nil
}

func nullFields(ev matching.CalendarEvent) []string {
	if ev.Description == "" {
		return []string{"Description"}
	}
	return nil
}

func convertEvent(item *calendar.Event) (matching.CalendarEvent, error) {
	start, err := parseEventTime(item.Start)
	if err != nil {
		return matching.CalendarEvent{}, fmt.Errorf("start: %w", err)
	}
	end, err := parseEventTime(item.End)
	if err != nil {
		return matching.CalendarEvent{}, fmt.Errorf("end: %w", err)
	}
	ev := matching.CalendarEvent{
		ID:          item.Id,
		Summary:     strings.TrimSpace(item.Summary),
		Description: item.Description,
		Status:      item.Status,
		Start:       start,
		End:         end,
	}
	if updated, err := time.Parse(time.RFC3339, item.Updated); err == nil {
		ev.Updated = updated
	}
	for _, a := range item.Attendees {
		if a == nil {
			continue
		}
		ev.Attendees = append(ev.Attendees, matching.Attendee{
			Email:       a.Email,
			DisplayName: a.DisplayName,
			Self:        a.Self,
			Organizer:   a.Organizer,
			Resource:    a.Resource,
		})
	}
	return ev, nil
}

func parseEventTime(value *calendar.EventDateTime) (time.Time, error) {
	if value == nil {
		return time.Time{}, fmt.Errorf("missing time")
	}
	if value.DateTime != "" {
		return time.Parse(time.RFC3339, value.DateTime)
	}
	if value.Date != "" {
		loc := time.UTC
		if value.TimeZone != "" {
			if tz, err := time.LoadLocation(value.TimeZone); err == nil {
				loc = tz
			}
		}
		return time.ParseInLocation("2006-01-02", value.Date, loc)
	}
	return time.Time{}, fmt.Errorf("empty time")
}
