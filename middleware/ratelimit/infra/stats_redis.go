package infra

import (
	"context"
	"fmt"
	"strings"
	"time"

	"contact-gateway/middleware/ratelimit/domain"

	"github.com/redis/go-redis/v9"
)

// RedisStatsStore grava contadores de decisão em hashes do Redis:
//
//	<prefix>:total            allowed/denied cumulativo
//	<prefix>:limiter          "<limiter>:allowed" / "<limiter>:denied"
//	<prefix>:<bucket>:<ts>    série temporal por minuto ou hora (com TTL)
//	<prefix>:route            "<METHOD> <path>:allowed|denied"
//	<prefix>:key:<key>        por chave, só com trackKeys (com TTL)
type RedisStatsStore struct {
	rdb redis.Cmdable

	prefix string
	// ttl aplica apenas em chaves de série temporal / por key.
	ttl time.Duration

	bucket string // "minute" (padrão), "hour" ou "none"

	trackKeys bool
}

type RedisStatsOption func(*RedisStatsStore)

func WithStatsPrefix(prefix string) RedisStatsOption {
	return func(s *RedisStatsStore) {
		s.prefix = strings.Trim(prefix, ":")
	}
}

func WithStatsTTL(d time.Duration) RedisStatsOption {
	return func(s *RedisStatsStore) { s.ttl = d }
}

func WithStatsBucket(bucket string) RedisStatsOption {
	return func(s *RedisStatsStore) { s.bucket = strings.ToLower(strings.TrimSpace(bucket)) }
}

func WithStatsTrackKeys(track bool) RedisStatsOption {
	return func(s *RedisStatsStore) { s.trackKeys = track }
}

func NewRedisStatsStore(rdb redis.Cmdable, opts ...RedisStatsOption) *RedisStatsStore {
	s := &RedisStatsStore{
		rdb:    rdb,
		prefix: "ratelimit:stats",
		ttl:    24 * time.Hour,
		bucket: "minute",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStatsStore) bucketKey(at time.Time) string {
	switch s.bucket {
	case "minute":
		return fmt.Sprintf("%s:minute:%s", s.prefix, at.UTC().Format("200601021504"))
	case "hour":
		return fmt.Sprintf("%s:hour:%s", s.prefix, at.UTC().Format("2006010215"))
	}
	return ""
}

func (s *RedisStatsStore) Record(ctx context.Context, ev domain.StatsEvent) error {
	if s == nil || s.rdb == nil {
		return nil
	}

	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}

	field := "denied"
	if ev.Allowed {
		field = "allowed"
	}

	pipe := s.rdb.Pipeline()
	pipe.HIncrBy(ctx, s.prefix+":total", field, 1)

	if ev.Limiter != "" {
		pipe.HIncrBy(ctx, s.prefix+":limiter", ev.Limiter+":"+field, 1)
	}

	if bk := s.bucketKey(at); bk != "" {
		pipe.HIncrBy(ctx, bk, field, 1)
		if s.ttl > 0 {
			pipe.Expire(ctx, bk, s.ttl)
		}
	}

	routeField := strings.TrimSpace(strings.TrimSpace(ev.Method) + " " + strings.TrimSpace(ev.Path))
	if routeField != "" {
		pipe.HIncrBy(ctx, s.prefix+":route", routeField+":"+field, 1)
	}

	if s.trackKeys {
		if k := strings.TrimSpace(string(ev.Key)); k != "" {
			keyKey := s.prefix + ":key:" + k
			pipe.HIncrBy(ctx, keyKey, field, 1)
			if s.ttl > 0 {
				pipe.Expire(ctx, keyKey, s.ttl)
			}
		}
	}

	_, err := pipe.Exec(ctx)
	return err
}

// Snapshot lê os contadores agregados (total e por limiter).
func (s *RedisStatsStore) Snapshot(ctx context.Context) (StatsSnapshot, error) {
	total, err := s.rdb.HGetAll(ctx, s.prefix+":total").Result()
	if err != nil {
		return StatsSnapshot{}, fmt.Errorf("read total stats: %w", err)
	}
	limiters, err := s.rdb.HGetAll(ctx, s.prefix+":limiter").Result()
	if err != nil {
		return StatsSnapshot{}, fmt.Errorf("read limiter stats: %w", err)
	}
	routes, err := s.rdb.HGetAll(ctx, s.prefix+":route").Result()
	if err != nil {
		return StatsSnapshot{}, fmt.Errorf("read route stats: %w", err)
	}

	return StatsSnapshot{
		Total:     countersFromHash(total),
		ByLimiter: groupCounters(limiters),
		ByRoute:   groupCounters(routes),
	}, nil
}

func countersFromHash(h map[string]string) Counters {
	var c Counters
	_, _ = fmt.Sscan(h["allowed"], &c.Allowed)
	_, _ = fmt.Sscan(h["denied"], &c.Denied)
	return c
}

// groupCounters converte campos "<nome>:allowed|denied" em Counters por nome.
func groupCounters(h map[string]string) map[string]Counters {
	out := make(map[string]Counters)
	for field, raw := range h {
		i := strings.LastIndex(field, ":")
		if i < 0 {
			continue
		}
		name, kind := field[:i], field[i+1:]
		var n int64
		if _, err := fmt.Sscan(raw, &n); err != nil {
			continue
		}
		c := out[name]
		switch kind {
		case "allowed":
			c.Allowed += n
		case "denied":
			c.Denied += n
		}
		out[name] = c
	}
	return out
}
