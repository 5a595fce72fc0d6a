package ratelimit

import (
	"context"
	"net/http"
	"time"

	"contact-gateway/middleware/ratelimit/domain"

	"github.com/rs/zerolog/log"
)

// Decider é o que o middleware precisa da camada application.
// application.Service e application.WindowService implementam.
type Decider interface {
	Decide(ctx context.Context, key domain.Key) domain.Decision
}

type Options struct {
	Decider             Decider
	Stats               domain.StatsStore
	LimiterName         string
	KeyFn               KeyFunc
	KeyHeader           string
	TrustXForwardedFor  bool
	RejectStatus        int
	AddRateLimitHeaders bool
	// Info alimenta X-RateLimit-RPS/Burst quando AddRateLimitHeaders.
	Info RateInfo
}

type RateInfo interface {
	RPS() float64
	Burst() int
}

func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusTooManyRequests
	}
	if opts.KeyFn == nil {
		opts.KeyFn = DefaultKeyFunc(opts.KeyHeader, opts.TrustXForwardedFor)
	}
	if opts.LimiterName == "" {
		opts.LimiterName = domain.LimiterSite
	}

	return func(next http.Handler) http.Handler {
		if opts.Decider == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := domain.Key(opts.KeyFn(r))

			if opts.AddRateLimitHeaders {
				w.Header().Set("X-RateLimit-Key", string(key))
				if opts.Info != nil {
					w.Header().Set("X-RateLimit-RPS", formatFloat(opts.Info.RPS()))
					w.Header().Set("X-RateLimit-Burst", formatInt(opts.Info.Burst()))
				}
			}

			dec := opts.Decider.Decide(r.Context(), key)
			RecordDecision(r.Context(), opts.Stats, domain.StatsEvent{
				Limiter: opts.LimiterName,
				Key:     key,
				Allowed: dec.Allowed,
				Method:  r.Method,
				Path:    r.URL.Path,
				At:      time.Now(),
			})

			if opts.AddRateLimitHeaders && dec.Remaining >= 0 {
				w.Header().Set("X-RateLimit-Remaining", formatInt(dec.Remaining))
			}
			if !dec.Allowed {
				SetRetryAfter(w, dec.RetryAfter)
				http.Error(w, http.StatusText(opts.RejectStatus), opts.RejectStatus)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RecordDecision grava o evento em stats, best-effort: erro só vai para o log.
func RecordDecision(ctx context.Context, stats domain.StatsStore, ev domain.StatsEvent) {
	if stats == nil {
		return
	}
	if err := stats.Record(ctx, ev); err != nil {
		log.Warn().Err(err).Str("limiter", ev.Limiter).Msg("rate limit stats record failed")
	}
}

// SetRetryAfter escreve Retry-After em segundos inteiros, arredondando para cima.
// d <= 0 não escreve nada.
func SetRetryAfter(w http.ResponseWriter, d time.Duration) {
	if d <= 0 {
		return
	}
	secs := int((d + time.Second - 1) / time.Second)
	w.Header().Set("Retry-After", formatInt(secs))
}
