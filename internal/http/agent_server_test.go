package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"concierge/internal/core"
)

type brokenAdapter struct{}

func (brokenAdapter) Target() core.Target { return core.TargetCalendar }

func (brokenAdapter) Invoke(context.Context, core.Payload) (core.ResponseEnvelope, error) {
	return core.ResponseEnvelope{}, errors.New("backend exploded")
}

func TestAgentServer_Invoke(t *testing.T) {
	srv := NewAgentServer(":0", echoAdapter{core.TargetBanking})

	req := httptest.NewRequest(http.MethodPost, "/invoke",
		strings.NewReader(`{"query":"spend this month"}`))
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var env core.ResponseEnvelope
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Status != core.StatusOK || env.Summary != "banking answered" {
		t.Errorf("envelope = %+v", env)
	}
	if env.TraceID == "" {
		t.Error("agent must inherit the request trace ID")
	}
}

func TestAgentServer_Invoke_BadJSON(t *testing.T) {
	srv := NewAgentServer(":0", echoAdapter{core.TargetBanking})

	req := httptest.NewRequest(http.MethodPost, "/invoke", strings.NewReader("{oops"))
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestAgentServer_Invoke_AdapterFailure(t *testing.T) {
	srv := NewAgentServer(":0", brokenAdapter{})

	req := httptest.NewRequest(http.MethodPost, "/invoke",
		strings.NewReader(`{"query":"calendar"}`))
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)

	// Failures still come back 200 with an error envelope so the remote
	// adapter passes them through instead of retrying.
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var env core.ResponseEnvelope
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Status != core.StatusError || env.Error != "agent failed to answer" {
		t.Errorf("envelope = %+v", env)
	}
}

func TestAgentServer_Health(t *testing.T) {
	srv := NewAgentServer(":0", echoAdapter{core.TargetGmail})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("healthz = %d, want 200", rec.Code)
	}
}
