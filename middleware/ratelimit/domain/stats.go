package domain

import (
	"context"
	"time"
)

// Nomes de limiter usados em StatsEvent.Limiter.
const (
	LimiterSite    = "site"
	LimiterContact = "contact"
)

// StatsEvent representa uma decisão (admit/deny) de algum limiter.
//
// Method/Path são strings genéricas, sem dependência de HTTP.
//
// Observação: cuidado com cardinalidade. Key costuma ser um IP e só deve ser
// agregado quando o store estiver configurado para isso.
type StatsEvent struct {
	Limiter string
	Key     Key
	Allowed bool

	Method string
	Path   string

	At time.Time
}

// StatsStore persiste estatísticas de decisão.
//
// Quem chama trata erro como best-effort: falha de estatística nunca derruba o request.
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}
