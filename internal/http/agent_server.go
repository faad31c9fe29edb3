package http

import (
	"log/slog"
	"net/http"
	"time"

	"concierge/internal/agent"
	"concierge/internal/core"
	"concierge/internal/middleware/security"
	"concierge/internal/middleware/trace"
)

// AgentServer hosts a single agent behind POST /invoke so the router can
// reach it through the remote adapter.
type AgentServer struct {
	http.Server
	adapter agent.Adapter
}

// NewAgentServer configures the standalone agent surface.
func NewAgentServer(addr string, a agent.Adapter) *AgentServer {
	s := &AgentServer{adapter: a}

	ips := security.NewClientIPResolver()
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	traced := trace.NewMiddleware(ips.ExtractClientIP)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("POST /invoke", s.handleInvoke)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           traced.Middleware(headers.Middleware(mux)),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *AgentServer) handleInvoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	traceID := trace.FromContext(ctx)

	var p core.Payload
	if err := decodeJSON(w, r, &p); err != nil {
		writeJSON(w, http.StatusBadRequest, core.Failure(err.Error(), traceID))
		return
	}
	if p.TraceID == "" {
		p.TraceID = traceID
	}

	env, err := s.adapter.Invoke(ctx, p)
	if err != nil {
		slog.ErrorContext(ctx, "Agent invocation failed",
			"trace_id", p.TraceID, "target", string(s.adapter.Target()), "error", err)
		writeJSON(w, http.StatusOK, core.Failure("agent failed to answer", p.TraceID))
		return
	}
	writeJSON(w, http.StatusOK, env)
}
