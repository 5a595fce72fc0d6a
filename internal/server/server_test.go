package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"contact-gateway/middleware/ratelimit"
	"contact-gateway/middleware/ratelimit/application"
	"contact-gateway/middleware/ratelimit/infra"
)

func do(h http.Handler, method, target string, header map[string]string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(method, target, nil)
	r.RemoteAddr = "10.0.0.1:1234"
	for k, v := range header {
		r.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestServer_Healthz(t *testing.T) {
	h := New(Options{})
	if w := do(h, http.MethodGet, "http://example/healthz", nil); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestServer_NotFoundWithoutUpstream(t *testing.T) {
	h := New(Options{})
	if w := do(h, http.MethodGet, "http://example/blog/post", nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestServer_ProxiesToUpstream(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Upstream-Path", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	target, _ := url.Parse(upstream.URL)
	h := New(Options{Upstream: target})

	w := do(h, http.MethodGet, "http://example/projects/case-study", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got := w.Header().Get("X-Upstream-Path"); got != "/projects/case-study" {
		t.Fatalf("unexpected upstream path %q", got)
	}
}

func TestServer_ContactRoute(t *testing.T) {
	called := false
	contact := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})
	h := New(Options{Contact: contact})

	if w := do(h, http.MethodGet, "http://example/api/contact", nil); w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for GET, got %d", w.Code)
	}
	if w := do(h, http.MethodPost, "http://example/api/contact", nil); w.Code != http.StatusOK || !called {
		t.Fatalf("expected contact handler to be called, got %d", w.Code)
	}
}

func TestServer_StatsRequiresToken(t *testing.T) {
	stats := infra.NewMemoryStatsStore()
	h := New(Options{
		Stats:      func(context.Context) (infra.StatsSnapshot, error) { return stats.Snapshot(), nil },
		StatsToken: "s3cret",
	})

	if w := do(h, http.MethodGet, "http://example/internal/ratelimit/stats", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}
	if w := do(h, http.MethodGet, "http://example/internal/ratelimit/stats", map[string]string{"Authorization": "Bearer nope"}); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %d", w.Code)
	}

	w := do(h, http.MethodGet, "http://example/internal/ratelimit/stats", map[string]string{"Authorization": "Bearer s3cret"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var snap infra.StatsSnapshot
	if err := json.NewDecoder(w.Body).Decode(&snap); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
}

func TestServer_StatsError(t *testing.T) {
	h := New(Options{
		Stats:      func(context.Context) (infra.StatsSnapshot, error) { return infra.StatsSnapshot{}, errors.New("redis down") },
		StatsToken: "t",
	})
	w := do(h, http.MethodGet, "http://example/internal/ratelimit/stats", map[string]string{"Authorization": "Bearer t"})
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
}

func TestServer_SiteLimitWrapsEverything(t *testing.T) {
	h := New(Options{
		SiteLimit: &ratelimit.Options{
			Decider: application.Service{Store: infra.NewTokenStore(0.02, 1), RetryAfter: time.Second},
		},
	})

	if w := do(h, http.MethodGet, "http://example/healthz", nil); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w := do(h, http.MethodGet, "http://example/healthz", nil); w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
}
