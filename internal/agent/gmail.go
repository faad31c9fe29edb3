package agent

import (
	"context"
	"fmt"
	"time"

	"concierge/internal/core"
)

// Task is one inbox-derived task in the gmail agent's response payload.
type Task struct {
	Subject string `json:"subject"`
	Due     string `json:"due,omitempty"`
	From    string `json:"from,omitempty"`
}

// MailBackend extracts tasks from a mailbox for a window. Implementations:
// the static demo backend below and the Gmail API backend in the google
// subpackage.
type MailBackend interface {
	Tasks(ctx context.Context, window core.TimeWindow) ([]Task, error)
}

// StaticMail serves a fixed task list, standing in for a real mailbox.
type StaticMail struct {
	Items []Task
}

func (s StaticMail) Tasks(ctx context.Context, window core.TimeWindow) ([]Task, error) {
	return s.Items, nil
}

// Gmail summarizes tasks detected in the inbox for the resolved window.
type Gmail struct {
	backend MailBackend
}

func NewGmail(backend MailBackend) *Gmail {
	return &Gmail{backend: backend}
}

func (g *Gmail) Target() core.Target { return core.TargetGmail }

func (g *Gmail) Invoke(ctx context.Context, p core.Payload) (core.ResponseEnvelope, error) {
	window := core.ResolveWindow(p.Window, time.Now())

	tasks, err := g.backend.Tasks(ctx, window)
	if err != nil {
		return core.ResponseEnvelope{}, fmt.Errorf("list inbox tasks: %w", err)
	}
	if tasks == nil {
		tasks = []Task{}
	}

	return core.ResponseEnvelope{
		Status:  core.StatusOK,
		Data:    map[string]any{"tasks": tasks},
		Summary: fmt.Sprintf("%d tasks detected from inbox.", len(tasks)),
		SMS:     fmt.Sprintf("Gmail: %d tasks.", len(tasks)),
		TraceID: p.TraceID,
	}, nil
}
