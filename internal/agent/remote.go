package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"concierge/internal/core"
)

// maxResponseBytes bounds how much of an agent reply is read; anything
// larger is treated as malformed.
const maxResponseBytes = 1 << 20

// Remote invokes an independently addressable agent service over HTTP.
// Each call is a blocking RPC with a hard timeout so one slow backend
// cannot stall a fan-out.
type Remote struct {
	target  core.Target
	url     string
	client  *http.Client
	timeout time.Duration
}

// NewRemote builds a remote adapter for the agent service at url
// (the endpoint accepting POST with a payload body, e.g.
// http://127.0.0.1:7001/invoke).
func NewRemote(target core.Target, url string, timeout time.Duration) *Remote {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Remote{
		target:  target,
		url:     url,
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
	}
}

func (r *Remote) Target() core.Target { return r.target }

func (r *Remote) Invoke(ctx context.Context, p core.Payload) (core.ResponseEnvelope, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return core.ResponseEnvelope{}, fmt.Errorf("marshal payload for %s: %w", r.target, err)
	}

	cctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(cctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return core.ResponseEnvelope{}, fmt.Errorf("build request for %s: %w", r.target, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.TraceID != "" {
		req.Header.Set("X-Trace-Id", p.TraceID)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return core.ResponseEnvelope{}, fmt.Errorf("%w: %s agent at %s: %v",
			core.ErrUpstreamUnavailable, r.target, r.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return core.ResponseEnvelope{}, fmt.Errorf("%w: %s agent replied %d",
			core.ErrUpstreamUnavailable, r.target, resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return core.ResponseEnvelope{}, fmt.Errorf("%w: reading %s reply: %v",
			core.ErrMalformedUpstream, r.target, err)
	}

	var env core.ResponseEnvelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Status == "" {
		// The raw upstream payload is deliberately not included here.
		return core.ResponseEnvelope{}, fmt.Errorf("%w: %s agent", core.ErrMalformedUpstream, r.target)
	}
	return env, nil
}
