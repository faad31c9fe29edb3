package google

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"concierge/internal/agent"
	"concierge/internal/core"

	gcal "google.golang.org/api/calendar/v3"
	goption "google.golang.org/api/option"
)

const maxCalendarResults = 50

// Calendar lists events from a Google Calendar inside the request window.
type Calendar struct {
	svc        *gcal.Service
	calendarID string
}

var _ agent.CalendarBackend = (*Calendar)(nil)

// NewCalendarFromEnv creates a Calendar backend using service-account
// credentials. GOOGLE_CALENDAR_ID selects the calendar (default
// "primary").
func NewCalendarFromEnv(ctx context.Context) (*Calendar, error) {
	creds, err := credentialsJSON()
	if err != nil {
		return nil, err
	}

	svc, err := gcal.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gcal.CalendarReadonlyScope))
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}

	calendarID := strings.TrimSpace(os.Getenv("GOOGLE_CALENDAR_ID"))
	if calendarID == "" {
		calendarID = "primary"
	}
	return &Calendar{svc: svc, calendarID: calendarID}, nil
}

// Events implements agent.CalendarBackend.
func (c *Calendar) Events(ctx context.Context, window core.TimeWindow) ([]agent.Event, error) {
	call := c.svc.Events.List(c.calendarID).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(maxCalendarResults).
		Context(ctx)

	if since, ok := window.Since(); ok {
		call = call.TimeMin(since.Format(time.RFC3339))
	}
	if until, ok := window.Until(); ok {
		call = call.TimeMax(until.Format(time.RFC3339))
	}

	res, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("list events for %s: %w", c.calendarID, err)
	}

	events := make([]agent.Event, 0, len(res.Items))
	for _, it := range res.Items {
		events = append(events, agent.Event{
			Title:    it.Summary,
			Start:    eventTime(it.Start),
			End:      eventTime(it.End),
			Location: it.Location,
		})
	}
	return events, nil
}

// eventTime renders an event boundary, handling both timed and all-day
// entries.
func eventTime(t *gcal.EventDateTime) string {
	if t == nil {
		return ""
	}
	if t.DateTime != "" {
		return t.DateTime
	}
	return t.Date
}
