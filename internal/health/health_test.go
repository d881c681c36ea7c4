package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func serve(t *testing.T, handler http.Handler, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	var response map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	return rr, response
}

func TestHealthEndpoint(t *testing.T) {
	rr, response := serve(t, NewRouter(), "/healthz")
	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}
	if ok := response["ok"]; ok != true {
		t.Errorf("expected ok=true, got %v", ok)
	}
	if cache := rr.Header().Get("Cache-Control"); cache != "no-store" {
		t.Errorf("expected Cache-Control=no-store, got %v", cache)
	}
}

func TestReadyEndpoint_Success(t *testing.T) {
	healthy := pingFunc(func(context.Context) error { return nil })
	rr, response := serve(t, NewRouter(Check{Name: "database", Pinger: healthy}, Check{Name: "sessions", Pinger: healthy}), "/readyz")

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}
	if status := response["status"]; status != "ready" {
		t.Errorf("expected status=ready, got %v", status)
	}
	checks, ok := response["checks"].(map[string]any)
	if !ok || len(checks) != 2 {
		t.Fatalf("expected two checks, got %v", response["checks"])
	}
}

func TestReadyEndpoint_DependencyFailure(t *testing.T) {
	healthy := pingFunc(func(context.Context) error { return nil })
	down := pingFunc(func(context.Context) error { return errors.New("connection refused") })
	rr, response := serve(t, NewRouter(Check{Name: "database", Pinger: healthy}, Check{Name: "sessions", Pinger: down}), "/readyz")

	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", rr.Code)
	}
	if ok := response["ok"]; ok != false {
		t.Errorf("expected ok=false, got %v", ok)
	}
	checks := response["checks"].(map[string]any)
	sessions, ok := checks["sessions"].(map[string]any)
	if !ok {
		t.Fatalf("expected sessions check, got %v", checks["sessions"])
	}
	if sessions["status"] != "error" || sessions["error"] != "connection refused" {
		t.Errorf("unexpected sessions check %v", sessions)
	}
	if db := checks["database"].(map[string]any); db["status"] != "ok" {
		t.Errorf("expected database ok, got %v", db)
	}
}
