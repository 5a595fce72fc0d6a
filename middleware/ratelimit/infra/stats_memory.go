package infra

import (
	"context"
	"sync"

	"contact-gateway/middleware/ratelimit/domain"
)

type Counters struct {
	Allowed int64 `json:"allowed"`
	Denied  int64 `json:"denied"`
}

func (c *Counters) add(allowed bool) {
	if allowed {
		c.Allowed++
		return
	}
	c.Denied++
}

// StatsSnapshot é uma cópia consistente dos contadores, pronta para JSON.
type StatsSnapshot struct {
	Total     Counters            `json:"total"`
	ByLimiter map[string]Counters `json:"by_limiter"`
	ByRoute   map[string]Counters `json:"by_route"`
	ByKey     map[string]Counters `json:"by_key,omitempty"`
}

// MemoryStatsStore guarda contadores em memória, por limiter, rota e (opcional) chave.
//
// Não faz expiração. Com trackKeys ligado cresce com o número de clientes distintos.
type MemoryStatsStore struct {
	mu        sync.Mutex
	total     Counters
	byLimiter map[string]Counters
	byRoute   map[string]Counters
	byKey     map[string]Counters

	trackKeys bool
}

type MemoryStatsOption func(*MemoryStatsStore)

func WithTrackKeys(track bool) MemoryStatsOption {
	return func(s *MemoryStatsStore) { s.trackKeys = track }
}

func NewMemoryStatsStore(opts ...MemoryStatsOption) *MemoryStatsStore {
	s := &MemoryStatsStore{
		byLimiter: make(map[string]Counters),
		byRoute:   make(map[string]Counters),
		byKey:     make(map[string]Counters),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	route := ev.Method + " " + ev.Path

	s.mu.Lock()
	defer s.mu.Unlock()

	s.total.add(ev.Allowed)
	bump(s.byLimiter, ev.Limiter, ev.Allowed)
	bump(s.byRoute, route, ev.Allowed)
	if s.trackKeys {
		bump(s.byKey, string(ev.Key), ev.Allowed)
	}
	return nil
}

func bump(m map[string]Counters, k string, allowed bool) {
	c := m[k]
	c.add(allowed)
	m[k] = c
}

func (s *MemoryStatsStore) Total() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

func (s *MemoryStatsStore) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := StatsSnapshot{
		Total:     s.total,
		ByLimiter: copyCounters(s.byLimiter),
		ByRoute:   copyCounters(s.byRoute),
	}
	if s.trackKeys {
		out.ByKey = copyCounters(s.byKey)
	}
	return out
}

func copyCounters(src map[string]Counters) map[string]Counters {
	out := make(map[string]Counters, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
