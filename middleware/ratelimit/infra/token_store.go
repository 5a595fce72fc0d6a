package infra

import (
	"sync"
	"time"

	"contact-gateway/middleware/ratelimit/domain"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// TokenStore é o throttle global do site: token bucket (x/time/rate) por chave,
// com cache e limpeza periódica de chaves ociosas.
type TokenStore struct {
	mu           sync.Mutex
	entries      map[domain.Key]*tokenEntry
	rps          rate.Limit
	burst        int
	idleTTL      time.Duration
	cleanupEvery time.Duration
	clock        domain.Clock
}

type tokenEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

type TokenStoreOption func(*TokenStore)

func WithIdleTTL(d time.Duration) TokenStoreOption {
	return func(s *TokenStore) { s.idleTTL = d }
}

func WithCleanupEvery(d time.Duration) TokenStoreOption {
	return func(s *TokenStore) { s.cleanupEvery = d }
}

func WithTokenClock(c domain.Clock) TokenStoreOption {
	return func(s *TokenStore) { s.clock = c }
}

func NewTokenStore(rps float64, burst int, opts ...TokenStoreOption) *TokenStore {
	s := &TokenStore{
		entries:      make(map[domain.Key]*tokenEntry),
		rps:          rate.Limit(rps),
		burst:        burst,
		idleTTL:      15 * time.Minute,
		cleanupEvery: 2 * time.Minute,
		clock:        domain.SystemClock{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *TokenStore) RPS() float64 { return float64(s.rps) }
func (s *TokenStore) Burst() int   { return s.burst }

// Get implementa domain.LimiterStore.
func (s *TokenStore) Get(key domain.Key) domain.Limiter {
	return s.limiter(key)
}

func (s *TokenStore) limiter(key domain.Key) *rate.Limiter {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if ent, ok := s.entries[key]; ok {
		ent.lastSeen = now
		return ent.lim
	}

	lim := rate.NewLimiter(s.rps, s.burst)
	s.entries[key] = &tokenEntry{lim: lim, lastSeen: now}
	return lim
}

func (s *TokenStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Cleanup remove chaves sem uso há mais de idleTTL e retorna quantas saíram.
func (s *TokenStore) Cleanup() int {
	cutoff := s.clock.Now().Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for k, ent := range s.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(s.entries, k)
			removed++
		}
	}
	return removed
}

// StartJanitor inicia uma goroutine que limpa chaves inativas periodicamente.
// Pare cancelando o contexto.
func (s *TokenStore) StartJanitor(ctx DoneContext) {
	if s.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(s.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if n := s.Cleanup(); n > 0 {
					log.Debug().Int("removed", n).Msg("token store cleanup")
				}
			}
		}
	}()
}

// DoneContext é o mínimo necessário para aceitar context.Context nos janitors.
type DoneContext interface {
	Done() <-chan struct{}
}
