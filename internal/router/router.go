// Package router classifies incoming queries and dispatches them to the
// right agent, fanning out to all of them for daily-report requests and
// merging the replies into a single envelope.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"concierge/internal/agent"
	"concierge/internal/cache"
	"concierge/internal/core"
)

const defaultAgentTimeout = 10 * time.Second

// selfAnswer is returned when no agent bucket matches the query.
const selfAnswer = "I could not match that request to a connected agent. " +
	"Try asking about your bank activity, calendar, or email."

// Router owns the classify-dispatch-merge pipeline. Adapters may be
// in-process or remote; the router treats them uniformly.
type Router struct {
	adapters map[core.Target]agent.Adapter
	store    cache.Store
	timeout  time.Duration
	currency string
}

// Option configures a Router.
type Option func(*Router)

// WithCache enables response caching for successful dispatches.
func WithCache(store cache.Store) Option {
	return func(r *Router) { r.store = store }
}

// WithAgentTimeout bounds every individual agent invocation.
func WithAgentTimeout(d time.Duration) Option {
	return func(r *Router) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithDefaultCurrency fills in the currency for payloads that omit one.
func WithDefaultCurrency(currency string) Option {
	return func(r *Router) { r.currency = currency }
}

// New builds a router over the given adapters.
func New(adapters []agent.Adapter, opts ...Option) *Router {
	byTarget := make(map[core.Target]agent.Adapter, len(adapters))
	for _, a := range adapters {
		byTarget[a.Target()] = a
	}
	r := &Router{adapters: byTarget, timeout: defaultAgentTimeout}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Route handles one request end to end. It always returns a well-formed
// envelope; dispatch failures become error envelopes, never panics or
// empty replies.
func (r *Router) Route(ctx context.Context, env core.RequestEnvelope) core.ResponseEnvelope {
	traceID := env.EffectiveTraceID()
	if traceID == "" {
		traceID = uuid.NewString()
	}

	if err := env.Validate(); err != nil {
		return core.Failure(err.Error(), traceID)
	}

	payload := env.Payload
	payload.TraceID = traceID
	if payload.Currency == "" {
		payload.Currency = r.currency
	}
	query := payload.QueryText()

	decision := Classify(query)

	switch decision.Kind {
	case DecideDaily:
		return r.daily(ctx, payload, traceID)
	case DecideSingle:
		return r.single(ctx, decision.Target, payload, traceID)
	default:
		slog.InfoContext(ctx, "No agent bucket matched, answering directly",
			"trace_id", traceID, "query", query)
		return core.ResponseEnvelope{
			Status:  core.StatusOK,
			Data:    map[string]any{"answer": selfAnswer},
			TraceID: traceID,
		}
	}
}

// single dispatches to one agent and passes its envelope through,
// rewriting only the trace ID.
func (r *Router) single(ctx context.Context, target core.Target, p core.Payload, traceID string) core.ResponseEnvelope {
	key := cache.Key(string(target), p.QueryText(), p.Window, p.Currency)
	if hit, ok := r.lookup(ctx, key); ok {
		hit.TraceID = traceID
		return hit
	}

	slog.InfoContext(ctx, "Dispatching to agent",
		"trace_id", traceID, "target", string(target))

	reply := r.invoke(ctx, target, p)
	reply.TraceID = traceID
	r.remember(ctx, key, reply)
	return reply
}

// daily fans out to every agent with an identical resolved window and
// merges the replies. A failed agent degrades to an error slot; the
// report itself still comes back ok.
func (r *Router) daily(ctx context.Context, p core.Payload, traceID string) core.ResponseEnvelope {
	window := core.ResolveWindow(p.Window, time.Now())
	p.Window = window.Spec()

	key := cache.Key("daily", p.QueryText(), p.Window, p.Currency)
	if hit, ok := r.lookup(ctx, key); ok {
		hit.TraceID = traceID
		return hit
	}

	slog.InfoContext(ctx, "Fanning out daily report",
		"trace_id", traceID, "since", p.Window.Since, "until", p.Window.Until)

	slots := make([]core.ResponseEnvelope, len(core.AllTargets))
	g, gctx := errgroup.WithContext(ctx)
	for i, target := range core.AllTargets {
		g.Go(func() error {
			slots[i] = r.invoke(gctx, target, p)
			return nil
		})
	}
	g.Wait()

	reply := mergeDaily(slots, window, traceID)
	r.remember(ctx, key, reply)
	return reply
}

// invoke runs one adapter under the per-agent timeout, converting every
// failure mode into an error envelope.
func (r *Router) invoke(ctx context.Context, target core.Target, p core.Payload) core.ResponseEnvelope {
	a, ok := r.adapters[target]
	if !ok {
		return core.Failure(fmt.Sprintf("%s agent is not configured", target), p.TraceID)
	}

	cctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	reply, err := a.Invoke(cctx, p)
	if err != nil {
		slog.WarnContext(ctx, "Agent invocation failed",
			"trace_id", p.TraceID, "target", string(target), "error", err)
		return core.Failure(fmt.Sprintf("%s agent unavailable", target), p.TraceID)
	}
	return reply
}

// mergeDaily assembles the fan-out replies into the daily report
// envelope. Data is keyed by agent name, one slot per target, present
// whether the agent succeeded or not.
func mergeDaily(slots []core.ResponseEnvelope, window core.TimeWindow, traceID string) core.ResponseEnvelope {
	data := make(map[string]core.ResponseEnvelope, len(slots))
	var sms string
	for i, target := range core.AllTargets {
		data[string(target)] = slots[i]
		if slots[i].Status == core.StatusOK && slots[i].SMS != "" {
			if sms != "" {
				sms += " "
			}
			sms += slots[i].SMS
		}
	}

	day := time.Now()
	if since, ok := window.Since(); ok {
		day = since
	}

	return core.ResponseEnvelope{
		Status:  core.StatusOK,
		Data:    data,
		Summary: fmt.Sprintf("Daily report for %s", day.Format("2006-01-02")),
		SMS:     sms,
		TraceID: traceID,
	}
}

func (r *Router) lookup(ctx context.Context, key string) (core.ResponseEnvelope, bool) {
	if r.store == nil {
		return core.ResponseEnvelope{}, false
	}
	return r.store.Get(ctx, key)
}

// remember caches successful replies only; errors are always retried.
func (r *Router) remember(ctx context.Context, key string, env core.ResponseEnvelope) {
	if r.store == nil || env.Status != core.StatusOK {
		return
	}
	r.store.Set(ctx, key, env)
}
