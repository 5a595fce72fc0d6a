package application

import (
	"context"

	"contact-gateway/middleware/ratelimit/domain"

	"github.com/rs/zerolog/log"
)

// WindowService aplica a janela fixa por cliente a uma ação (ex: enviar e-mail).
//
// O relógio é injetado; sem Clock usa o relógio do sistema. Se o limiter falhar
// (só acontece com backend remoto) a decisão é negar, a menos que FailOpen.
type WindowService struct {
	Limiter  domain.WindowLimiter
	Clock    domain.Clock
	FailOpen bool
}

func (s WindowService) Decide(ctx context.Context, key domain.Key) domain.Decision {
	if s.Limiter == nil {
		return domain.Decision{Allowed: true, Remaining: -1}
	}
	clock := s.Clock
	if clock == nil {
		clock = domain.SystemClock{}
	}

	dec, err := s.Limiter.Admit(ctx, key, clock.Now())
	if err != nil {
		log.Error().Err(err).Str("key", string(key)).Bool("fail_open", s.FailOpen).Msg("window limiter failed")
		return domain.Decision{Allowed: s.FailOpen, Remaining: -1}
	}
	return dec
}
