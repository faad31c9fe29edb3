package trace

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestFromContext(t *testing.T) {
	if got := FromContext(context.Background()); got != "" {
		t.Errorf("FromContext(empty) = %q, want empty", got)
	}

	ctx := WithTraceID(context.Background(), "t-42")
	if got := FromContext(ctx); got != "t-42" {
		t.Errorf("FromContext = %q, want t-42", got)
	}
}

func TestMiddleware_MintsTraceID(t *testing.T) {
	m := NewMiddleware(nil)

	var seen string
	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = FromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if seen == "" {
		t.Fatal("handler must see a minted trace ID")
	}
	if rec.Header().Get(Header) != seen {
		t.Errorf("response header = %q, want %q", rec.Header().Get(Header), seen)
	}
	if m.Requests() != 1 {
		t.Errorf("Requests = %d, want 1", m.Requests())
	}
}

func TestMiddleware_HonorsInboundHeader(t *testing.T) {
	m := NewMiddleware(nil)

	var seen string
	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = FromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(Header, "t-upstream")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if seen != "t-upstream" {
		t.Errorf("handler saw %q, want t-upstream", seen)
	}
	if rec.Header().Get(Header) != "t-upstream" {
		t.Errorf("response header = %q, want t-upstream", rec.Header().Get(Header))
	}
}
