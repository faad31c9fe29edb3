package agent

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"concierge/internal/analytics"
	"concierge/internal/core"
	"concierge/internal/ledger"
)

const inlineLedger = `{
  "user": {
    "accounts": [
      {
        "account_type": "checking",
        "transactions": [
          {
            "transaction_id": "t-1",
            "posted_at": "2024-03-10T09:00:00Z",
            "amount": -42.53,
            "type": "debit",
            "description": "coffee",
            "merchant": {"name": "Coffee Shop", "category": "dining"}
          },
          {
            "transaction_id": "t-2",
            "posted_at": "2024-03-11T09:00:00Z",
            "amount": 811.85,
            "type": "credit",
            "description": "payroll"
          }
        ]
      }
    ]
  }
}`

func marchWindow() *core.WindowSpec {
	return &core.WindowSpec{Since: "2024-03-01", Until: "2024-03-31T23:59:59"}
}

func TestBanking_InlineLedger(t *testing.T) {
	b := NewBanking(nil)

	env, err := b.Invoke(context.Background(), core.Payload{
		Query:      "how much did I spend",
		Window:     marchWindow(),
		InlineJSON: json.RawMessage(inlineLedger),
		TraceID:    "t-inline",
	})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}

	if env.Status != core.StatusOK || env.TraceID != "t-inline" {
		t.Fatalf("envelope = %+v", env)
	}

	data := env.Data.(map[string]any)
	report, ok := data["findings"].(analytics.Report)
	if !ok {
		t.Fatalf("findings has type %T", data["findings"])
	}
	if report.Totals.Count != 1 {
		t.Errorf("Count = %d, want 1 (credit excluded)", report.Totals.Count)
	}
	if !strings.Contains(env.Summary, "USD 42.53 across 1 transactions") {
		t.Errorf("Summary = %q", env.Summary)
	}
	if !strings.Contains(env.SMS, "42.53") {
		t.Errorf("SMS = %q", env.SMS)
	}
}

func TestBanking_MalformedLedgerDegrades(t *testing.T) {
	b := NewBanking(nil)

	env, err := b.Invoke(context.Background(), core.Payload{
		Query:      "spend",
		Window:     marchWindow(),
		InlineJSON: json.RawMessage("{broken"),
	})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if env.Status != core.StatusOK {
		t.Fatalf("Status = %s, want ok over a broken ledger", env.Status)
	}

	report := env.Data.(map[string]any)["findings"].(analytics.Report)
	if report.Totals.Count != 0 {
		t.Errorf("Count = %d, want 0", report.Totals.Count)
	}
}

func TestBanking_NoSourceAtAll(t *testing.T) {
	b := NewBanking(nil)

	env, err := b.Invoke(context.Background(), core.Payload{Query: "spend"})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if env.Status != core.StatusOK {
		t.Errorf("Status = %s, want ok", env.Status)
	}
}

func TestBanking_DefaultSource(t *testing.T) {
	b := NewBanking(ledger.InlineSource{Data: []byte(inlineLedger)})

	env, err := b.Invoke(context.Background(), core.Payload{Query: "spend", Window: marchWindow()})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	report := env.Data.(map[string]any)["findings"].(analytics.Report)
	if report.Totals.Count != 1 {
		t.Errorf("Count = %d, want 1 from the default source", report.Totals.Count)
	}
}

func TestCalendar_StaticBackend(t *testing.T) {
	cal := NewCalendar(StaticCalendar{Items: []Event{
		{Title: "standup", Start: "2024-03-10T09:00:00Z"},
		{Title: "review", Start: "2024-03-10T14:00:00Z"},
	}})

	env, err := cal.Invoke(context.Background(), core.Payload{Query: "calendar", TraceID: "t-cal"})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if env.Summary != "2 upcoming events in your calendar." {
		t.Errorf("Summary = %q", env.Summary)
	}
	if env.SMS != "Calendar: 2 upcoming events." {
		t.Errorf("SMS = %q", env.SMS)
	}
	if env.TraceID != "t-cal" {
		t.Errorf("TraceID = %q", env.TraceID)
	}
}

func TestCalendar_EmptyBackend(t *testing.T) {
	cal := NewCalendar(StaticCalendar{})

	env, err := cal.Invoke(context.Background(), core.Payload{Query: "calendar"})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	events, ok := env.Data.(map[string]any)["events"].([]Event)
	if !ok || events == nil {
		t.Errorf("events = %#v, want empty non-nil slice", env.Data)
	}
	if env.Summary != "0 upcoming events in your calendar." {
		t.Errorf("Summary = %q", env.Summary)
	}
}

type failingCalendar struct{}

func (failingCalendar) Events(context.Context, core.TimeWindow) ([]Event, error) {
	return nil, errors.New("api down")
}

func TestCalendar_BackendFailure(t *testing.T) {
	cal := NewCalendar(failingCalendar{})
	if _, err := cal.Invoke(context.Background(), core.Payload{Query: "calendar"}); err == nil {
		t.Error("backend failure must surface as an error")
	}
}

func TestGmail_StaticBackend(t *testing.T) {
	g := NewGmail(StaticMail{Items: []Task{
		{Subject: "renew passport", From: "alerts@example.com"},
	}})

	env, err := g.Invoke(context.Background(), core.Payload{Query: "inbox"})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if env.Summary != "1 tasks detected from inbox." {
		t.Errorf("Summary = %q", env.Summary)
	}
	if env.SMS != "Gmail: 1 tasks." {
		t.Errorf("SMS = %q", env.SMS)
	}
}

type failingMail struct{}

func (failingMail) Tasks(context.Context, core.TimeWindow) ([]Task, error) {
	return nil, errors.New("api down")
}

func TestGmail_BackendFailure(t *testing.T) {
	g := NewGmail(failingMail{})
	if _, err := g.Invoke(context.Background(), core.Payload{Query: "inbox"}); err == nil {
		t.Error("backend failure must surface as an error")
	}
}
