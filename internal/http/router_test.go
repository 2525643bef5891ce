package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"session-auth/internal/service"
)

func TestRouter_UnknownRoute(t *testing.T) {
	authSvc, _ := newTestAuth()
	r := newTestRouter(authSvc, nil)

	rec := performRequest(r, http.MethodGet, "/api/auth/nothing-here", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if code, msg := decodeFailure(t, rec); code != CodeNotFound || msg != "route not found" {
		t.Fatalf("unexpected failure %s %q", code, msg)
	}
}

func TestRouter_Health(t *testing.T) {
	authSvc, repo := newTestAuth()
	r := newTestRouter(authSvc, repo)

	rec := performRequest(r, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Fatalf("expected healthy store, got %d %s", rec.Code, rec.Body.String())
	}

	broken := brokenUserRepo{repo}
	r = newTestRouter(newAuthService(broken), broken)
	rec = performRequest(r, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestRouter_Metrics(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()
	service.RegisterMetrics(reg)

	authSvc, _ := newTestAuth()
	registerUser(t, authSvc, "Ana", "ana@x.com", "secret1")

	h := NewAuthHandler(zap.NewNop(), authSvc, CookiePolicy{}, nil)
	r := NewRouter(zap.NewNop(), h, RouterOptions{Metrics: promhttp.HandlerFor(reg, promhttp.HandlerOpts{})})

	rec := performRequest(r, http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "session_auth_operations_total") {
		t.Fatalf("expected auth counters in scrape output")
	}
}

func TestRouter_MetricsDisabled(t *testing.T) {
	authSvc, _ := newTestAuth()
	r := newTestRouter(authSvc, nil)

	if rec := performRequest(r, http.MethodGet, "/metrics", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without metrics handler, got %d", rec.Code)
	}
}

func TestRouter_CORSPreflight(t *testing.T) {
	gin.SetMode(gin.TestMode)
	authSvc, _ := newTestAuth()
	h := NewAuthHandler(zap.NewNop(), authSvc, CookiePolicy{}, nil)
	r := NewRouter(zap.NewNop(), h, RouterOptions{AllowedOrigins: []string{"http://localhost:5173"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/auth/login", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Fatalf("unexpected allow-origin %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Fatalf("expected credentials allowed, got %q", got)
	}
}

func TestRouter_SecurityHeaders(t *testing.T) {
	authSvc, _ := newTestAuth()
	r := newTestRouter(authSvc, nil)

	rec := performRequest(r, http.MethodPost, "/api/auth/logout", nil)
	if got := rec.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Fatalf("expected X-Frame-Options DENY, got %q", got)
	}
	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("expected nosniff, got %q", got)
	}
	if got := rec.Header().Get("Strict-Transport-Security"); got != "" {
		t.Fatalf("HSTS must be off outside production, got %q", got)
	}
}
