package core

import (
	"errors"
	"fmt"
	"time"
)

// TimeWindow is a validated [since, until] interval. A zero bound means the
// window is open on that side. Values are immutable once constructed.
type TimeWindow struct {
	since time.Time
	until time.Time
}

// NewTimeWindow builds a window from two optional bounds. When both are set
// the invariant since <= until is enforced.
func NewTimeWindow(since, until time.Time) (TimeWindow, error) {
	if !since.IsZero() && !until.IsZero() && since.After(until) {
		return TimeWindow{}, errors.New("window since is after until")
	}
	return TimeWindow{since: since, until: until}, nil
}

// Since returns the lower bound; ok is false when the window is open below.
func (w TimeWindow) Since() (time.Time, bool) { return w.since, !w.since.IsZero() }

// Until returns the upper bound; ok is false when the window is open above.
func (w TimeWindow) Until() (time.Time, bool) { return w.until, !w.until.IsZero() }

// Bounded reports whether both bounds are known.
func (w TimeWindow) Bounded() bool { return !w.since.IsZero() && !w.until.IsZero() }

// Contains reports whether t lies inside the window. Bounds are inclusive.
// A zero t (unknown timestamp) is never inside any window.
func (w TimeWindow) Contains(t time.Time) bool {
	if t.IsZero() {
		return false
	}
	if !w.since.IsZero() && t.Before(w.since) {
		return false
	}
	if !w.until.IsZero() && t.After(w.until) {
		return false
	}
	return true
}

// Caption renders the window for human-readable summaries: "last N days"
// when both bounds are known (N is the day difference, minimum 1),
// otherwise "selected window".
func (w TimeWindow) Caption() string {
	if !w.Bounded() {
		return "selected window"
	}
	days := int(w.until.Sub(w.since).Hours() / 24)
	if days < 1 {
		days = 1
	}
	return fmt.Sprintf("last %d days", days)
}

// Spec serializes the window back into the wire shape so an identical
// boundary can be handed to every fanned-out agent.
func (w TimeWindow) Spec() *WindowSpec {
	spec := &WindowSpec{}
	if !w.since.IsZero() {
		spec.Since = w.since.Format(time.RFC3339)
	}
	if !w.until.IsZero() {
		spec.Until = w.until.Format(time.RFC3339)
	}
	return spec
}

// timestampLayouts are tried in order when a bound lacks an explicit
// offset; such timestamps are assumed to already mean UTC. This is a
// documented simplification, not a timezone-aware computation.
var timestampLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses an ISO-8601 timestamp. A trailing UTC marker or
// explicit offset is honored; an offsetless timestamp is taken as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// ResolveWindow turns an optional caller-supplied spec into a concrete
// window. Each unparseable bound degrades to open rather than failing the
// request. With no spec at all the window defaults to today's local
// wall-clock day, 00:00:00 through 23:59:59, so every agent in a fan-out
// sees an identical boundary.
func ResolveWindow(spec *WindowSpec, now time.Time) TimeWindow {
	if spec == nil || (spec.Since == "" && spec.Until == "") {
		y, m, d := now.Date()
		loc := now.Location()
		return TimeWindow{
			since: time.Date(y, m, d, 0, 0, 0, 0, loc),
			until: time.Date(y, m, d, 23, 59, 59, 0, loc),
		}
	}

	var since, until time.Time
	if spec.Since != "" {
		if t, err := ParseTimestamp(spec.Since); err == nil {
			since = t
		}
	}
	if spec.Until != "" {
		if t, err := ParseTimestamp(spec.Until); err == nil {
			until = t
		}
	}
	w, err := NewTimeWindow(since, until)
	if err != nil {
		// Inverted bounds degrade the upper bound to open.
		w = TimeWindow{since: since}
	}
	return w
}
