// Package server monta o router HTTP do gateway.
package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"contact-gateway/middleware/ratelimit"
	"contact-gateway/middleware/ratelimit/infra"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

// StatsSource fornece o snapshot exposto em /internal/ratelimit/stats.
type StatsSource func(ctx context.Context) (infra.StatsSnapshot, error)

type Options struct {
	Contact http.Handler
	// Upstream é o renderizador do site; nil responde 404 fora da API.
	Upstream *url.URL

	SiteLimit   *ratelimit.Options
	Concurrency ratelimit.ConcurrencyOptions

	Stats      StatsSource
	StatsToken string
}

func New(opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if opts.Contact != nil {
		r.Method(http.MethodPost, "/api/contact", opts.Contact)
	}

	if opts.Stats != nil && opts.StatsToken != "" {
		r.With(bearerRequired(opts.StatsToken)).Get("/internal/ratelimit/stats", func(w http.ResponseWriter, r *http.Request) {
			snap, err := opts.Stats(r.Context())
			if err != nil {
				log.Error().Err(err).Msg("read rate limit stats failed")
				respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "stats unavailable"})
				return
			}
			respondJSON(w, http.StatusOK, snap)
		})
	}

	if opts.Upstream != nil {
		r.NotFound(newProxy(opts.Upstream).ServeHTTP)
	}

	h := http.Handler(r)
	h = ratelimit.ConcurrencyMiddleware(opts.Concurrency)(h)
	if opts.SiteLimit != nil {
		h = ratelimit.Middleware(*opts.SiteLimit)(h)
	}
	return h
}

func newProxy(target *url.URL) *httputil.ReverseProxy {
	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("proxy error")
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}
	return proxy
}

func bearerRequired(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				respondJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}

func respondJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
