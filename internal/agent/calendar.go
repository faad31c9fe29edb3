package agent

import (
	"context"
	"fmt"
	"time"

	"concierge/internal/core"
)

// Event is one calendar entry in the agent's response payload.
type Event struct {
	Title    string `json:"title"`
	Start    string `json:"start"`
	End      string `json:"end,omitempty"`
	Location string `json:"location,omitempty"`
}

// CalendarBackend lists events inside a window. Implementations: the
// static demo backend below and the Google Calendar backend in the
// google subpackage.
type CalendarBackend interface {
	Events(ctx context.Context, window core.TimeWindow) ([]Event, error)
}

// StaticCalendar serves a fixed set of events regardless of the window.
// It stands in for a real calendar in demos and tests.
type StaticCalendar struct {
	Items []Event
}

func (s StaticCalendar) Events(ctx context.Context, window core.TimeWindow) ([]Event, error) {
	return s.Items, nil
}

// Calendar summarizes upcoming events for the resolved window.
type Calendar struct {
	backend CalendarBackend
}

func NewCalendar(backend CalendarBackend) *Calendar {
	return &Calendar{backend: backend}
}

func (c *Calendar) Target() core.Target { return core.TargetCalendar }

func (c *Calendar) Invoke(ctx context.Context, p core.Payload) (core.ResponseEnvelope, error) {
	window := core.ResolveWindow(p.Window, time.Now())

	events, err := c.backend.Events(ctx, window)
	if err != nil {
		return core.ResponseEnvelope{}, fmt.Errorf("list calendar events: %w", err)
	}
	if events == nil {
		events = []Event{}
	}

	return core.ResponseEnvelope{
		Status:  core.StatusOK,
		Data:    map[string]any{"events": events},
		Summary: fmt.Sprintf("%d upcoming events in your calendar.", len(events)),
		SMS:     fmt.Sprintf("Calendar: %d upcoming events.", len(events)),
		TraceID: p.TraceID,
	}, nil
}
