package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	w := doRequest(srv, "GET", "/api/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	resp := decodeBody[map[string]string](t, w)
	if resp["status"] != "healthy" {
		t.Fatalf("expected healthy, got %q", resp["status"])
	}
}

func TestHealthEndpointUnhealthy(t *testing.T) {
	srv, store := newTestServer(t)
	store.Close()

	w := doRequest(srv, "GET", "/api/health", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	resp := decodeBody[map[string]string](t, w)
	if resp["status"] != "unhealthy" {
		t.Fatalf("expected unhealthy, got %q", resp["status"])
	}
}

func TestTestEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	w := doRequest(srv, "GET", "/api/test", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	resp := decodeBody[map[string]string](t, w)
	if resp["status"] != "success" {
		t.Fatalf("expected success, got %q", resp["status"])
	}
	if !strings.Contains(resp["message"], "running") {
		t.Fatalf("unexpected message %q", resp["message"])
	}
	if _, err := time.Parse(time.RFC3339Nano, resp["timestamp"]); err != nil {
		t.Fatalf("timestamp not RFC3339: %v", err)
	}
}

func TestUnknownAPIPathIsJSON404(t *testing.T) {
	srv, _ := newTestServer(t)

	for _, tc := range []struct{ method, path string }{
		{"GET", "/api/nope"},
		{"POST", "/api/nope"},
		{"POST", "/api/admins"},
		{"GET", "/api/auth/admin"},
	} {
		w := doRequest(srv, tc.method, tc.path, nil)
		assertErrorCode(t, w, http.StatusNotFound, ErrCodeNotFound)
	}
}

func TestRequestIDPropagated(t *testing.T) {
	srv, _ := newTestServer(t)

	req, _ := http.NewRequest("GET", "/api/test", nil)
	req.Header.Set("X-Request-ID", "abc123")
	w := doRecorded(srv, req)
	if got := w.Header().Get("X-Request-ID"); got != "abc123" {
		t.Fatalf("expected propagated request id, got %q", got)
	}

	w = doRequest(srv, "GET", "/api/test", nil)
	if _, err := uuid.Parse(w.Header().Get("X-Request-ID")); err != nil {
		t.Fatalf("expected generated uuid request id, got %q", w.Header().Get("X-Request-ID"))
	}

	req, _ = http.NewRequest("GET", "/api/test", nil)
	req.Header.Set("X-Request-ID", "has spaces\tand tabs")
	w = doRecorded(srv, req)
	if got := w.Header().Get("X-Request-ID"); got == "has spaces\tand tabs" {
		t.Fatal("unprintable request id should be replaced")
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	h := chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}), requestContextMiddleware, recoveryMiddleware, accessMiddleware)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/api/centers", nil))
	assertErrorCode(t, w, http.StatusInternalServerError, ErrCodeInternal)
}

func TestUsableRequestID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"", false},
		{"abc-123", true},
		{strings.Repeat("a", 64), true},
		{strings.Repeat("a", 65), false},
		{"a b", false},
		{"caf\u00e9", false},
	}
	for _, tt := range tests {
		if got := usableRequestID(tt.id); got != tt.want {
			t.Errorf("usableRequestID(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	doRequest(srv, "GET", "/api/test", nil)
	w := doRequest(srv, "GET", "/metrics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "imtti_http_requests_total") {
		t.Fatal("expected http request counter in metrics output")
	}
}

func TestBodyTooLarge(t *testing.T) {
	srv, _ := newTestServerWithConfig(t, func(cfg *Config) {
		cfg.MaxBodyBytes = 64
	})

	body := fmt.Sprintf(`{"name":%q}`, strings.Repeat("x", 200))
	w := doRaw(srv, "POST", "/api/centers", body)
	assertErrorCode(t, w, http.StatusRequestEntityTooLarge, ErrCodeBodyTooLarge)
}

func TestStartAndShutdown(t *testing.T) {
	srv, _ := newTestServerWithConfig(t, func(cfg *Config) {
		cfg.ListenAddr = "127.0.0.1:0"
	})
	if err := srv.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	resp, err := http.Get("http://" + srv.Addr().String() + "/api/health")
	if err != nil {
		t.Fatalf("get health: %v", err)
	}
	var body map[string]string
	json.NewDecoder(resp.Body).Decode(&body)
	resp.Body.Close()
	if body["status"] != "healthy" {
		t.Fatalf("expected healthy, got %v", body)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("IMTTI_DB_PATH", "/tmp/x.db")
	t.Setenv("IMTTI_RATE_LIMIT_AUTH", "3")
	t.Setenv("IMTTI_CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("IMTTI_SHUTDOWN_TIMEOUT", "5s")

	cfg := LoadConfig()
	if cfg.ListenAddr != ":8080" {
		t.Fatalf("listen addr = %q", cfg.ListenAddr)
	}
	if cfg.DBPath != "/tmp/x.db" {
		t.Fatalf("db path = %q", cfg.DBPath)
	}
	if cfg.RateLimitAuth != 3 {
		t.Fatalf("rate limit = %d", cfg.RateLimitAuth)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.example" {
		t.Fatalf("cors origins = %v", cfg.CORSAllowedOrigins)
	}
	if cfg.ShutdownTimeout != 5*time.Second {
		t.Fatalf("shutdown timeout = %v", cfg.ShutdownTimeout)
	}
}
