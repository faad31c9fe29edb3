package agent

import (
	"context"
	"log/slog"
	"time"

	"concierge/internal/analytics"
	"concierge/internal/core"
	"concierge/internal/ledger"
)

// Banking summarizes spending over a ledger snapshot. The snapshot comes
// from the payload when one is supplied (inline document first, then a
// file path) and otherwise from the configured default source.
type Banking struct {
	source ledger.Source
}

// NewBanking creates the banking adapter. source may be nil, in which case
// requests without their own ledger produce an empty-but-valid report.
func NewBanking(source ledger.Source) *Banking {
	return &Banking{source: source}
}

func (b *Banking) Target() core.Target { return core.TargetBanking }

func (b *Banking) Invoke(ctx context.Context, p core.Payload) (core.ResponseEnvelope, error) {
	window := core.ResolveWindow(p.Window, time.Now())
	snap := b.snapshot(ctx, p)

	report := analytics.Summarize(snap, window, analytics.ParseRecurringScope(p.Recurring))

	return core.ResponseEnvelope{
		Status:  core.StatusOK,
		Data:    map[string]any{"findings": report},
		Summary: analytics.SummaryText(report, window, p.Currency),
		SMS:     analytics.SMSText(report, window, p.Currency),
		TraceID: p.TraceID,
	}, nil
}

// snapshot materializes the ledger for one request. Any failure degrades
// to an empty snapshot: the engine must always return a structurally valid
// report, even over a malformed or missing dataset.
func (b *Banking) snapshot(ctx context.Context, p core.Payload) ledger.Snapshot {
	var src ledger.Source
	switch {
	case len(p.InlineJSON) > 0:
		src = ledger.InlineSource{Data: p.InlineJSON}
	case p.JSONPath != "":
		src = ledger.FileSource{Path: p.JSONPath}
	case b.source != nil:
		src = b.source
	default:
		return ledger.Snapshot{}
	}

	snap, err := src.Snapshot(ctx)
	if err != nil {
		slog.WarnContext(ctx, "Ledger unavailable, degrading to empty snapshot",
			"error", err, "trace_id", p.TraceID)
		return ledger.Snapshot{}
	}
	return snap
}
