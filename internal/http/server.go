// Package http exposes the concierge services over HTTP: the router
// surface (route and ingest endpoints) and the standalone agent surface.
package http

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"concierge/internal/core"
	"concierge/internal/middleware/ratelimit"
	"concierge/internal/middleware/security"
	"concierge/internal/middleware/trace"
	"concierge/internal/router"
)

// Publisher enqueues a request for asynchronous routing. Implemented by
// the AMQP client; nil means ingest is handled inline.
type Publisher interface {
	PublishRequest(ctx context.Context, env core.RequestEnvelope) error
}

// Server is the router-facing HTTP server.
type Server struct {
	http.Server

	router       *router.Router
	publisher    Publisher
	ingestSecret string
	readyCheck   func(context.Context) error

	limiter      *ratelimit.Limiter
	shutdownOnce sync.Once
}

// ServerOption configures the router server.
type ServerOption func(*Server)

// WithIngest enables the ingest endpoint, guarded by the shared secret.
// When publisher is non-nil ingested queries are enqueued instead of
// routed inline.
func WithIngest(secret string, publisher Publisher) ServerOption {
	return func(s *Server) {
		s.ingestSecret = secret
		s.publisher = publisher
	}
}

// WithReadyCheck installs the readiness probe dependency check.
func WithReadyCheck(check func(context.Context) error) ServerOption {
	return func(s *Server) { s.readyCheck = check }
}

// WithRateLimit overrides the default per-client request budget.
func WithRateLimit(requestsPerMinute int) ServerOption {
	return func(s *Server) {
		s.limiter.Stop()
		s.limiter = ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: requestsPerMinute})
	}
}

// NewServer configures routes and middleware, returning a ready-to-run
// server.
func NewServer(addr string, rt *router.Router, opts ...ServerOption) *Server {
	s := &Server{
		router:  rt,
		limiter: ratelimit.NewLimiter(ratelimit.DefaultConfig()),
	}
	for _, opt := range opts {
		opt(s)
	}

	ips := security.NewClientIPResolver()
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	traced := trace.NewMiddleware(ips.ExtractClientIP)
	limited := s.limiter.Middleware(ips.ExtractClientIP, nil)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("POST /route", limited(http.HandlerFunc(s.handleRoute)))
	mux.Handle("POST /ingest", limited(http.HandlerFunc(s.handleIngest)))

	s.Server = http.Server{
		Addr:              addr,
		Handler:           traced.Middleware(headers.Middleware(mux)),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Shutdown stops the server and its background routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	var env core.RequestEnvelope
	if err := decodeJSON(w, r, &env); err != nil {
		writeJSON(w, http.StatusBadRequest, core.Failure(err.Error(), trace.FromContext(r.Context())))
		return
	}
	if env.TraceID == "" {
		env.TraceID = trace.FromContext(r.Context())
	}

	// Routed envelopes always come back 200; the outcome lives in the
	// envelope's status field.
	writeJSON(w, http.StatusOK, s.router.Route(r.Context(), env))
}

// ingestMessage is the chat-bot ingestion shape: the message text plus
// who sent it and where.
type ingestMessage struct {
	Content string `json:"content"`
	Author  struct {
		Name string `json:"name"`
	} `json:"author"`
	Channel struct {
		Name string `json:"name"`
	} `json:"channel"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	traceID := trace.FromContext(ctx)

	if s.ingestSecret == "" {
		writeJSON(w, http.StatusNotFound, core.Failure("ingest is not enabled", traceID))
		return
	}
	supplied := r.Header.Get("X-Ingest-Secret")
	if subtle.ConstantTimeCompare([]byte(supplied), []byte(s.ingestSecret)) != 1 {
		slog.WarnContext(ctx, "Ingest rejected: bad secret", "trace_id", traceID)
		writeJSON(w, http.StatusUnauthorized, core.Failure("invalid ingest secret", traceID))
		return
	}

	var msg ingestMessage
	if err := decodeJSON(w, r, &msg); err != nil {
		writeJSON(w, http.StatusBadRequest, core.Failure(err.Error(), traceID))
		return
	}

	env := core.RequestEnvelope{
		Task:    core.TaskUserQuery,
		Payload: core.Payload{Query: msg.Content, TraceID: traceID},
		TraceID: traceID,
	}
	if err := env.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, core.Failure(err.Error(), traceID))
		return
	}

	slog.InfoContext(ctx, "Ingested message",
		"trace_id", traceID, "author", msg.Author.Name, "channel", msg.Channel.Name)

	if s.publisher != nil {
		if err := s.publisher.PublishRequest(ctx, env); err != nil {
			slog.ErrorContext(ctx, "Failed enqueueing ingested message",
				"trace_id", traceID, "error", err)
			writeJSON(w, http.StatusServiceUnavailable, core.Failure("ingest queue unavailable", traceID))
			return
		}
		writeJSON(w, http.StatusAccepted, core.ResponseEnvelope{
			Status:  core.StatusOK,
			Summary: "queued",
			TraceID: traceID,
		})
		return
	}

	writeJSON(w, http.StatusOK, s.router.Route(ctx, env))
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.readyCheck != nil {
		if err := s.readyCheck(r.Context()); err != nil {
			slog.WarnContext(r.Context(), "Readiness check failed", "error", err)
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
