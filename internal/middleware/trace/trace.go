// Package trace propagates a per-request trace ID between services.
// The router mints an ID for requests that arrive without one; agents
// reuse whatever the X-Trace-Id header carries so one user query shows
// up under a single ID across every process it touches.
package trace

import (
	"context"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Header is the wire header carrying the trace ID between services.
const Header = "X-Trace-Id"

type contextKey string

const traceIDKey contextKey = "trace_id"

// FromContext returns the trace ID stored by the middleware, or "".
func FromContext(ctx context.Context) string {
	if id, ok := ctx.Value(traceIDKey).(string); ok {
		return id
	}
	return ""
}

// WithTraceID returns a context carrying the given trace ID.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceIDKey, id)
}

// Middleware handles trace propagation and request logging.
type Middleware struct {
	extractIP func(*http.Request) string
	requests  atomic.Int64
}

// NewMiddleware creates a trace middleware. extractIP may be nil.
func NewMiddleware(extractIP func(*http.Request) string) *Middleware {
	return &Middleware{extractIP: extractIP}
}

// Requests returns how many requests this middleware has seen.
func (m *Middleware) Requests() int64 { return m.requests.Load() }

// Middleware wraps next with trace-ID propagation plus start/completion
// logging. The inbound X-Trace-Id is honored when present; otherwise a
// fresh UUID is minted. The ID is echoed on the response.
func (m *Middleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		traceID := r.Header.Get(Header)
		if traceID == "" {
			traceID = uuid.NewString()
		}

		clientIP := ""
		if m.extractIP != nil {
			clientIP = m.extractIP(r)
		}

		ctx := WithTraceID(r.Context(), traceID)
		r = r.WithContext(ctx)
		w.Header().Set(Header, traceID)

		slog.InfoContext(ctx, "Request started",
			"trace_id", traceID,
			"method", r.Method,
			"path", r.URL.Path,
			"client_ip", clientIP,
			"content_length", r.ContentLength)

		m.requests.Add(1)

		rw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)

		duration := time.Since(start)
		level := slog.LevelInfo
		switch {
		case rw.status >= 500:
			level = slog.LevelError
		case rw.status >= 400:
			level = slog.LevelWarn
		}

		slog.Log(ctx, level, "Request completed",
			"trace_id", traceID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.status,
			"duration_ms", duration.Milliseconds(),
			"client_ip", clientIP)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
