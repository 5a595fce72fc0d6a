package infra

import (
	"context"
	"sync"
	"time"

	"contact-gateway/middleware/ratelimit/domain"

	"github.com/rs/zerolog/log"
)

// WindowStore é o limiter de janela fixa em memória, uma entrada por chave.
//
// Todo o read-check-increment acontece sob o mesmo mutex, então o teto
// MaxPerWindow é exato mesmo com requests concorrentes da mesma chave.
// Registros expirados são removidos por Sweep (ou pelo janitor).
type WindowStore struct {
	mu      sync.Mutex
	records map[domain.Key]domain.ClientUsageRecord
	policy  domain.Policy

	sweepEvery time.Duration
	clock      domain.Clock
}

type WindowStoreOption func(*WindowStore)

// WithSweepEvery define o intervalo do janitor. <= 0 desliga o janitor.
func WithSweepEvery(d time.Duration) WindowStoreOption {
	return func(s *WindowStore) { s.sweepEvery = d }
}

// WithWindowClock define o relógio usado pelo janitor.
func WithWindowClock(c domain.Clock) WindowStoreOption {
	return func(s *WindowStore) { s.clock = c }
}

func NewWindowStore(policy domain.Policy, opts ...WindowStoreOption) *WindowStore {
	if policy.MaxPerWindow <= 0 {
		policy.MaxPerWindow = domain.DefaultPolicy.MaxPerWindow
	}
	if policy.Window <= 0 {
		policy.Window = domain.DefaultPolicy.Window
	}
	s := &WindowStore{
		records:    make(map[domain.Key]domain.ClientUsageRecord),
		policy:     policy,
		sweepEvery: 10 * time.Minute,
		clock:      domain.SystemClock{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *WindowStore) Policy() domain.Policy { return s.policy }

// Admit implementa domain.WindowLimiter. Nunca retorna erro.
func (s *WindowStore) Admit(_ context.Context, key domain.Key, now time.Time) (domain.Decision, error) {
	return s.AdmitAt(key, now), nil
}

// AdmitAt decide e registra a tentativa de key no instante now.
//
//   - sem registro ou janela expirada: reinicia com count=1 e admite
//   - count < MaxPerWindow: incrementa e admite
//   - caso contrário: nega sem incrementar
func (s *WindowStore) AdmitAt(key domain.Key, now time.Time) domain.Decision {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok || rec.Expired(now, s.policy.Window) {
		s.records[key] = domain.ClientUsageRecord{Count: 1, WindowStart: now}
		return domain.Decision{Allowed: true, Remaining: s.policy.MaxPerWindow - 1}
	}

	if rec.Count >= s.policy.MaxPerWindow {
		return domain.Decision{
			Allowed:    false,
			RetryAfter: rec.RetryAfter(now, s.policy.Window),
			Remaining:  0,
		}
	}

	rec.Count++
	s.records[key] = rec
	return domain.Decision{Allowed: true, Remaining: s.policy.MaxPerWindow - rec.Count}
}

// Record retorna uma cópia do registro de key, se existir.
func (s *WindowStore) Record(key domain.Key) (domain.ClientUsageRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key]
	return rec, ok
}

func (s *WindowStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Sweep remove registros cuja janela já expirou e retorna quantos saíram.
func (s *WindowStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for k, rec := range s.records {
		if rec.Expired(now, s.policy.Window) {
			delete(s.records, k)
			removed++
		}
	}
	return removed
}

// StartJanitor inicia uma goroutine que chama Sweep periodicamente.
// Pare cancelando o contexto.
func (s *WindowStore) StartJanitor(ctx DoneContext) {
	if s.sweepEvery <= 0 {
		return
	}

	t := time.NewTicker(s.sweepEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if n := s.Sweep(s.clock.Now()); n > 0 {
					log.Debug().Int("removed", n).Msg("window store sweep")
				}
			}
		}
	}()
}
