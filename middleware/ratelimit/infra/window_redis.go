package infra

import (
	"context"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"contact-gateway/middleware/ratelimit/domain"

	"github.com/redis/go-redis/v9"
)

//go:embed window.lua
var windowScriptSrc string

var windowScript = redis.NewScript(windowScriptSrc)

// RedisWindowStore é a mesma janela fixa de WindowStore, mas com o estado no Redis,
// para quando há mais de uma instância do gateway atrás do proxy.
//
// O algoritmo inteiro roda num script Lua, então é atômico por chave.
// O hash expira em 2x a janela; não precisa de janitor.
type RedisWindowStore struct {
	rdb    redis.Cmdable
	prefix string
	policy domain.Policy
}

type RedisWindowOption func(*RedisWindowStore)

func WithWindowPrefix(prefix string) RedisWindowOption {
	return func(s *RedisWindowStore) { s.prefix = strings.Trim(prefix, ":") }
}

func NewRedisWindowStore(rdb redis.Cmdable, policy domain.Policy, opts ...RedisWindowOption) *RedisWindowStore {
	if policy.MaxPerWindow <= 0 {
		policy.MaxPerWindow = domain.DefaultPolicy.MaxPerWindow
	}
	if policy.Window <= 0 {
		policy.Window = domain.DefaultPolicy.Window
	}
	s := &RedisWindowStore{
		rdb:    rdb,
		prefix: "ratelimit:window",
		policy: policy,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisWindowStore) Policy() domain.Policy { return s.policy }

func (s *RedisWindowStore) key(k domain.Key) string {
	return s.prefix + ":" + string(k)
}

// Admit implementa domain.WindowLimiter.
func (s *RedisWindowStore) Admit(ctx context.Context, key domain.Key, now time.Time) (domain.Decision, error) {
	res, err := windowScript.Run(ctx, s.rdb,
		[]string{s.key(key)},
		s.policy.MaxPerWindow,
		s.policy.Window.Milliseconds(),
		now.UnixMilli(),
	).Slice()
	if err != nil {
		return domain.Decision{}, fmt.Errorf("window script for key %s: %w", key, err)
	}
	if len(res) != 3 {
		return domain.Decision{}, fmt.Errorf("window script for key %s: unexpected reply length %d", key, len(res))
	}

	allowed, ok1 := res[0].(int64)
	count, ok2 := res[1].(int64)
	start, ok3 := res[2].(int64)
	if !ok1 || !ok2 || !ok3 {
		return domain.Decision{}, fmt.Errorf("window script for key %s: unexpected reply %v", key, res)
	}

	if allowed == 1 {
		return domain.Decision{Allowed: true, Remaining: s.policy.MaxPerWindow - int(count)}, nil
	}

	rec := domain.ClientUsageRecord{Count: int(count), WindowStart: time.UnixMilli(start)}
	return domain.Decision{Allowed: false, RetryAfter: rec.RetryAfter(now, s.policy.Window), Remaining: 0}, nil
}
