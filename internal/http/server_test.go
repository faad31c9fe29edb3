package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"concierge/internal/agent"
	"concierge/internal/core"
	"concierge/internal/router"
)

// echoAdapter replies ok with its own target name for any payload.
type echoAdapter struct {
	target core.Target
}

func (e echoAdapter) Target() core.Target { return e.target }

func (e echoAdapter) Invoke(_ context.Context, p core.Payload) (core.ResponseEnvelope, error) {
	return core.ResponseEnvelope{
		Status:  core.StatusOK,
		Summary: string(e.target) + " answered",
		TraceID: p.TraceID,
	}, nil
}

type stubPublisher struct {
	published []core.RequestEnvelope
	err       error
}

func (s *stubPublisher) PublishRequest(_ context.Context, env core.RequestEnvelope) error {
	if s.err != nil {
		return s.err
	}
	s.published = append(s.published, env)
	return nil
}

func testRouter() *router.Router {
	return router.New([]agent.Adapter{
		echoAdapter{core.TargetBanking},
		echoAdapter{core.TargetCalendar},
		echoAdapter{core.TargetGmail},
	})
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) core.ResponseEnvelope {
	t.Helper()
	var env core.ResponseEnvelope
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return env
}

func TestServer_Route(t *testing.T) {
	srv := NewServer(":0", testRouter())

	body := `{"task":"USER_QUERY","payload":{"query":"what is my bank balance"}}`
	req := httptest.NewRequest(http.MethodPost, "/route", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if env.Status != core.StatusOK || env.Summary != "banking answered" {
		t.Errorf("envelope = %+v", env)
	}
	if rec.Header().Get("X-Trace-Id") == "" {
		t.Error("response must echo a trace ID header")
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers must be applied")
	}
}

func TestServer_Route_TraceHeaderHonored(t *testing.T) {
	srv := NewServer(":0", testRouter())

	req := httptest.NewRequest(http.MethodPost, "/route",
		strings.NewReader(`{"payload":{"query":"bank balance"}}`))
	req.Header.Set("X-Trace-Id", "t-inbound")
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)

	env := decodeEnvelope(t, rec)
	if env.TraceID != "t-inbound" {
		t.Errorf("TraceID = %q, want t-inbound", env.TraceID)
	}
	if rec.Header().Get("X-Trace-Id") != "t-inbound" {
		t.Errorf("header = %q, want t-inbound", rec.Header().Get("X-Trace-Id"))
	}
}

func TestServer_Route_BadJSON(t *testing.T) {
	srv := NewServer(":0", testRouter())

	req := httptest.NewRequest(http.MethodPost, "/route", strings.NewReader("{nope"))
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if env.Status != core.StatusError {
		t.Errorf("envelope = %+v", env)
	}
}

func TestServer_Route_EmptyQuery(t *testing.T) {
	srv := NewServer(":0", testRouter())

	req := httptest.NewRequest(http.MethodPost, "/route",
		strings.NewReader(`{"task":"USER_QUERY","payload":{}}`))
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)

	// Routed envelopes come back 200; the failure is in the status tag.
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if env.Status != core.StatusError {
		t.Errorf("envelope = %+v", env)
	}
}

func TestServer_Health(t *testing.T) {
	srv := NewServer(":0", testRouter())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Errorf("healthz = %d %q", rec.Code, rec.Body.String())
	}
}

func TestServer_Ready(t *testing.T) {
	t.Run("no check configured", func(t *testing.T) {
		srv := NewServer(":0", testRouter())
		req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
		rec := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("readyz = %d, want 200", rec.Code)
		}
	})

	t.Run("failing dependency", func(t *testing.T) {
		srv := NewServer(":0", testRouter(), WithReadyCheck(func(context.Context) error {
			return errors.New("db down")
		}))
		req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
		rec := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("readyz = %d, want 503", rec.Code)
		}
	})
}

func ingestRequest(secret, content string) *http.Request {
	msg := map[string]any{
		"content": content,
		"author":  map[string]string{"name": "alex"},
		"channel": map[string]string{"name": "concierge"},
	}
	body, _ := json.Marshal(msg)
	req := httptest.NewRequest(http.MethodPost, "/ingest", bytes.NewReader(body))
	if secret != "" {
		req.Header.Set("X-Ingest-Secret", secret)
	}
	return req
}

func TestServer_Ingest(t *testing.T) {
	t.Run("disabled without secret", func(t *testing.T) {
		srv := NewServer(":0", testRouter())
		rec := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rec, ingestRequest("whatever", "bank balance"))
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
	})

	t.Run("wrong secret", func(t *testing.T) {
		srv := NewServer(":0", testRouter(), WithIngest("s3cret", nil))
		rec := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rec, ingestRequest("wrong", "bank balance"))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("inline routing without publisher", func(t *testing.T) {
		srv := NewServer(":0", testRouter(), WithIngest("s3cret", nil))
		rec := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rec, ingestRequest("s3cret", "bank balance"))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		env := decodeEnvelope(t, rec)
		if env.Status != core.StatusOK || env.Summary != "banking answered" {
			t.Errorf("envelope = %+v", env)
		}
	})

	t.Run("queued with publisher", func(t *testing.T) {
		pub := &stubPublisher{}
		srv := NewServer(":0", testRouter(), WithIngest("s3cret", pub))
		rec := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rec, ingestRequest("s3cret", "daily report"))
		if rec.Code != http.StatusAccepted {
			t.Fatalf("status = %d, want 202", rec.Code)
		}
		if len(pub.published) != 1 {
			t.Fatalf("published = %d, want 1", len(pub.published))
		}
		got := pub.published[0]
		if got.Task != core.TaskUserQuery || got.Payload.Query != "daily report" {
			t.Errorf("published envelope = %+v", got)
		}
		if got.TraceID == "" {
			t.Error("published envelope must carry the trace ID")
		}
	})

	t.Run("queue failure", func(t *testing.T) {
		pub := &stubPublisher{err: errors.New("broker down")}
		srv := NewServer(":0", testRouter(), WithIngest("s3cret", pub))
		rec := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rec, ingestRequest("s3cret", "bank balance"))
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("status = %d, want 503", rec.Code)
		}
	})

	t.Run("empty content", func(t *testing.T) {
		srv := NewServer(":0", testRouter(), WithIngest("s3cret", nil))
		rec := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rec, ingestRequest("s3cret", ""))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestServer_RateLimit(t *testing.T) {
	srv := NewServer(":0", testRouter(), WithRateLimit(2))
	defer srv.Shutdown(context.Background())

	var last int
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/route",
			strings.NewReader(`{"payload":{"query":"bank balance"}}`))
		req.RemoteAddr = "203.0.113.9:1234"
		rec := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rec, req)
		last = rec.Code
	}

	if last != http.StatusTooManyRequests {
		t.Errorf("third request = %d, want 429", last)
	}
}
