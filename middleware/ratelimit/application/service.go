package application

import (
	"context"
	"time"

	"contact-gateway/middleware/ratelimit/domain"
)

// Service concentra a regra de aplicação do throttle global (token bucket).
//
// Ele não sabe nada sobre HTTP (headers/status), apenas retorna uma decisão.
type Service struct {
	Store      domain.LimiterStore
	RetryAfter time.Duration
}

func (s Service) Decide(_ context.Context, key domain.Key) domain.Decision {
	if s.Store == nil {
		return domain.Decision{Allowed: true, Remaining: -1}
	}
	if s.RetryAfter <= 0 {
		s.RetryAfter = 1 * time.Second
	}

	lim := s.Store.Get(key)
	if lim == nil || lim.Allow() {
		return domain.Decision{Allowed: true, Remaining: -1}
	}
	return domain.Decision{Allowed: false, RetryAfter: s.RetryAfter, Remaining: -1}
}
