package core

import (
	"testing"
	"time"
)

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    time.Time
		wantErr bool
	}{
		{
			name: "rfc3339 utc",
			in:   "2024-03-10T09:30:00Z",
			want: time.Date(2024, 3, 10, 9, 30, 0, 0, time.UTC),
		},
		{
			name: "rfc3339 with offset normalized to utc",
			in:   "2024-03-10T09:30:00+02:00",
			want: time.Date(2024, 3, 10, 7, 30, 0, 0, time.UTC),
		},
		{
			name: "offsetless datetime taken as utc",
			in:   "2024-03-10T09:30:00",
			want: time.Date(2024, 3, 10, 9, 30, 0, 0, time.UTC),
		},
		{
			name: "date only",
			in:   "2024-03-10",
			want: time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
		},
		{name: "empty", in: "", wantErr: true},
		{name: "garbage", in: "march 10th", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTimestamp(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseTimestamp(%q) = %v, want error", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseTimestamp(%q) error: %v", tt.in, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ParseTimestamp(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestNewTimeWindow_RejectsInvertedBounds(t *testing.T) {
	since := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)
	until := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	if _, err := NewTimeWindow(since, until); err == nil {
		t.Error("NewTimeWindow with since after until must fail")
	}
}

func TestTimeWindow_Contains(t *testing.T) {
	since := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	until := time.Date(2024, 3, 31, 23, 59, 59, 0, time.UTC)
	closed, _ := NewTimeWindow(since, until)
	openBelow, _ := NewTimeWindow(time.Time{}, until)
	openAbove, _ := NewTimeWindow(since, time.Time{})

	tests := []struct {
		name   string
		window TimeWindow
		t      time.Time
		want   bool
	}{
		{"at lower bound", closed, since, true},
		{"at upper bound", closed, until, true},
		{"inside", closed, time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC), true},
		{"just before", closed, since.Add(-time.Second), false},
		{"just after", closed, until.Add(time.Second), false},
		{"zero time never contained", closed, time.Time{}, false},
		{"open below accepts ancient", openBelow, time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC), true},
		{"open above accepts future", openAbove, time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.window.Contains(tt.t); got != tt.want {
				t.Errorf("Contains(%v) = %v, want %v", tt.t, got, tt.want)
			}
		})
	}
}

func TestTimeWindow_Caption(t *testing.T) {
	tests := []struct {
		name  string
		since string
		until string
		want  string
	}{
		{"thirty days", "2024-03-01", "2024-03-31", "last 30 days"},
		{"sub-day clamps to one", "2024-03-01T00:00:00", "2024-03-01T23:59:59", "last 1 days"},
		{"open window", "", "2024-03-31", "selected window"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var since, until time.Time
			if tt.since != "" {
				since, _ = ParseTimestamp(tt.since)
			}
			if tt.until != "" {
				until, _ = ParseTimestamp(tt.until)
			}
			w, err := NewTimeWindow(since, until)
			if err != nil {
				t.Fatalf("window: %v", err)
			}
			if got := w.Caption(); got != tt.want {
				t.Errorf("Caption() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolveWindow_DefaultsToToday(t *testing.T) {
	now := time.Date(2024, 3, 10, 15, 42, 7, 0, time.Local)

	w := ResolveWindow(nil, now)

	since, ok := w.Since()
	if !ok || !since.Equal(time.Date(2024, 3, 10, 0, 0, 0, 0, time.Local)) {
		t.Errorf("Since() = %v, %v; want local midnight", since, ok)
	}
	until, ok := w.Until()
	if !ok || !until.Equal(time.Date(2024, 3, 10, 23, 59, 59, 0, time.Local)) {
		t.Errorf("Until() = %v, %v; want local end of day", until, ok)
	}
}

func TestResolveWindow_EmptySpecSameAsNil(t *testing.T) {
	now := time.Date(2024, 3, 10, 8, 0, 0, 0, time.Local)
	a := ResolveWindow(nil, now)
	b := ResolveWindow(&WindowSpec{}, now)
	if a != b {
		t.Errorf("nil and empty spec resolve differently: %+v vs %+v", a, b)
	}
}

func TestResolveWindow_DegradesBounds(t *testing.T) {
	now := time.Now()

	t.Run("unparseable bound becomes open", func(t *testing.T) {
		w := ResolveWindow(&WindowSpec{Since: "whenever", Until: "2024-03-31"}, now)
		if _, ok := w.Since(); ok {
			t.Error("unparseable since must degrade to open")
		}
		if until, ok := w.Until(); !ok || until.IsZero() {
			t.Error("valid until must survive")
		}
	})

	t.Run("inverted bounds drop until", func(t *testing.T) {
		w := ResolveWindow(&WindowSpec{Since: "2024-04-01", Until: "2024-03-01"}, now)
		if since, ok := w.Since(); !ok || since.IsZero() {
			t.Error("since must survive an inverted spec")
		}
		if _, ok := w.Until(); ok {
			t.Error("inverted until must degrade to open")
		}
	})
}

func TestTimeWindow_SpecRoundTrip(t *testing.T) {
	since, _ := ParseTimestamp("2024-03-01T00:00:00Z")
	until, _ := ParseTimestamp("2024-03-31T23:59:59Z")
	w, _ := NewTimeWindow(since, until)

	spec := w.Spec()
	if spec.Since != "2024-03-01T00:00:00Z" || spec.Until != "2024-03-31T23:59:59Z" {
		t.Errorf("Spec() = %+v, want RFC3339 bounds", spec)
	}

	back := ResolveWindow(spec, time.Now())
	if back != w {
		t.Errorf("round trip changed window: %+v vs %+v", back, w)
	}
}
