package core

import "errors"

// Boundary error taxonomy. Every failure in the subsystem maps onto one of
// these before it reaches a caller; none of them is fatal to the process.
var (
	// ErrEmptyQuery is a validation failure: the request carried no
	// query or prompt text. Surfaced immediately, never retried.
	ErrEmptyQuery = errors.New("payload missing query text")

	// ErrUpstreamUnavailable marks an agent that was unreachable or timed
	// out. In fan-out mode it only poisons that agent's slot.
	ErrUpstreamUnavailable = errors.New("upstream agent unavailable")

	// ErrMalformedUpstream marks an agent reply that did not conform to
	// the envelope contract. The raw payload is never exposed.
	ErrMalformedUpstream = errors.New("malformed upstream response")
)
