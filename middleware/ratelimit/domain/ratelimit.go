package domain

// Camada de domínio do rate limit.
//
// Regras e contratos (interfaces/tipos) sem dependência de net/http.

import (
	"context"
	"time"
)

type Key string

// UnknownKey é a identidade compartilhada usada quando não dá para resolver o cliente.
//
// Todos os clientes sem endereço resolvível caem no mesmo bucket: um cliente legítimo
// pode esgotar a cota de todos os outros. Comportamento mantido de propósito.
const UnknownKey Key = "unknown"

// Limiter representa algo que pode decidir se uma ação é permitida agora.
//
// Observação: a implementação pode ser token-bucket, leaky-bucket, etc.
// A camada de infra usa golang.org/x/time/rate.
type Limiter interface {
	Allow() bool
}

// LimiterStore obtém um limiter por chave (ex: IP, API key, usuário).
// A implementação pode manter cache, TTL, etc.
type LimiterStore interface {
	Get(Key) Limiter
}

// WindowLimiter decide admit/deny em janela fixa por chave e registra a tentativa.
//
// A implementação em memória nunca retorna erro; implementações remotas (Redis)
// podem falhar e cabe à camada application decidir fail-open/fail-closed.
type WindowLimiter interface {
	Admit(ctx context.Context, key Key, now time.Time) (Decision, error)
}

// Policy é a política de janela fixa: no máximo MaxPerWindow ações por Window.
type Policy struct {
	MaxPerWindow int
	Window       time.Duration
}

// DefaultPolicy é a política do formulário de contato: 3 envios por hora.
var DefaultPolicy = Policy{MaxPerWindow: 3, Window: time.Hour}

// ClientUsageRecord é o estado de uma chave na janela corrente.
// Count é sempre >= 1 enquanto o registro existir.
type ClientUsageRecord struct {
	Count       int
	WindowStart time.Time
}

// Expired indica se a janela do registro já passou (now - start > window).
func (r ClientUsageRecord) Expired(now time.Time, window time.Duration) bool {
	return now.Sub(r.WindowStart) > window
}

// RetryAfter é quanto falta para a janela do registro expirar.
// No instante exato do fim da janela ainda nega, então o mínimo é 1ns.
func (r ClientUsageRecord) RetryAfter(now time.Time, window time.Duration) time.Duration {
	if d := r.WindowStart.Add(window).Sub(now); d > 0 {
		return d
	}
	return time.Nanosecond
}

type Decision struct {
	Allowed bool
	// RetryAfter é o valor a ser retornado em Retry-After quando bloquear.
	// Se 0, não há recomendação.
	RetryAfter time.Duration
	// Remaining é a cota restante na janela após esta decisão.
	// -1 quando o limiter não expõe essa informação (token bucket).
	Remaining int
}
