package core

import (
	"encoding/json"
	"strings"
)

// Target identifies one of the backend agents the router can dispatch to.
type Target string

const (
	TargetBanking  Target = "banking"
	TargetCalendar Target = "calendar"
	TargetGmail    Target = "gmail"
)

// AllTargets lists every dispatchable agent in daily-report order.
// The order is fixed so merged output is reproducible.
var AllTargets = []Target{TargetBanking, TargetCalendar, TargetGmail}

// Status is the outcome tag carried by every response envelope.
type Status string

const (
	StatusOK       Status = "ok"
	StatusError    Status = "error"
	StatusConflict Status = "conflict"
)

// TaskUserQuery is the only task kind the router currently accepts.
const TaskUserQuery = "USER_QUERY"

type (
	// WindowSpec is the raw [since, until] interval as supplied by a caller,
	// before timestamp parsing. Either bound may be empty.
	WindowSpec struct {
		Since string `json:"since,omitempty"`
		Until string `json:"until,omitempty"`
	}

	// Payload carries the routable request parameters. The same shape is
	// accepted by the router and by every agent service.
	Payload struct {
		Query      string          `json:"query,omitempty"`
		Prompt     string          `json:"prompt,omitempty"`
		Window     *WindowSpec     `json:"window,omitempty"`
		JSONPath   string          `json:"json_path,omitempty"`
		InlineJSON json.RawMessage `json:"inline_json,omitempty"`
		Currency   string          `json:"currency,omitempty"`
		TZ         string          `json:"tz,omitempty"`
		Recurring  string          `json:"recurring,omitempty"`
		TraceID    string          `json:"traceId,omitempty"`
	}

	// RequestEnvelope is the inbound contract consumed by the router.
	RequestEnvelope struct {
		Task    string  `json:"task"`
		Payload Payload `json:"payload"`
		TraceID string  `json:"traceId,omitempty"`
	}

	// ResponseEnvelope is the uniform outbound contract produced by the
	// router and by every agent. Wire keys follow the A2A contract:
	// status, data, summary, sms, error, traceId.
	ResponseEnvelope struct {
		Status  Status `json:"status"`
		Data    any    `json:"data,omitempty"`
		Summary string `json:"summary,omitempty"`
		SMS     string `json:"sms,omitempty"`
		Error   string `json:"error,omitempty"`
		TraceID string `json:"traceId,omitempty"`
	}
)

// QueryText returns the normalized query string, preferring query over
// prompt, trimmed of surrounding whitespace.
func (p Payload) QueryText() string {
	if q := strings.TrimSpace(p.Query); q != "" {
		return q
	}
	return strings.TrimSpace(p.Prompt)
}

// Validate checks the envelope at the boundary. A missing query is a
// validation error; an unknown task kind is tolerated and treated as
// USER_QUERY to match lenient upstream callers.
func (e RequestEnvelope) Validate() error {
	if e.Payload.QueryText() == "" {
		return ErrEmptyQuery
	}
	return nil
}

// EffectiveTraceID resolves the trace ID, preferring the envelope-level
// value over the payload-level one.
func (e RequestEnvelope) EffectiveTraceID() string {
	if e.TraceID != "" {
		return e.TraceID
	}
	return e.Payload.TraceID
}

// OK builds a success envelope around the given data.
func OK(data any, traceID string) ResponseEnvelope {
	return ResponseEnvelope{Status: StatusOK, Data: data, TraceID: traceID}
}

// Failure builds an error envelope with a diagnostic message.
func Failure(msg, traceID string) ResponseEnvelope {
	return ResponseEnvelope{Status: StatusError, Error: msg, TraceID: traceID}
}
