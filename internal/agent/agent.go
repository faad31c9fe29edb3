// Package agent defines the uniform invocation contract each backend
// (banking, calendar, gmail) exposes to the router, plus the local
// adapter implementations and the HTTP client for remote agent services.
package agent

import (
	"context"

	"concierge/internal/core"
)

// Adapter is the capability every backend exposes to the router: accept a
// structured payload, return a structured envelope. Implementations hold
// no cross-request mutable state.
type Adapter interface {
	Target() core.Target
	Invoke(ctx context.Context, p core.Payload) (core.ResponseEnvelope, error)
}
