package infra

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"clinic-gateway/middleware/ratelimit/domain"

	"github.com/redis/go-redis/v9"
)

// RedisStatsStore soma os contadores em hashes do Redis, compartilhados
// entre réplicas:
//
//	<prefix>:total          allowed / denied / denied:<reason>
//	<prefix>:minute:<ts>    allowed / denied (expira com ttl)
//	<prefix>:route          "<METHOD> <path>:allowed|denied"
//	<prefix>:key:<key>      allowed / denied (só com trackKeys)
type RedisStatsStore struct {
	rdb *redis.Client

	prefix string
	// ttl vale para séries por minuto e por chave; total não expira.
	ttl    time.Duration
	bucket string // "minute" ou "none"

	trackKeys bool
}

type RedisStatsOption func(*RedisStatsStore)

func WithStatsPrefix(prefix string) RedisStatsOption {
	return func(s *RedisStatsStore) { s.prefix = strings.Trim(prefix, ":") }
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

func NewRedisStatsStore(rdb *redis.Client, opts ...RedisStatsOption) *RedisStatsStore {
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
	totalKey := s.prefix + ":total"
	pipe.HIncrBy(ctx, totalKey, field, 1)
	if !ev.Allowed {
		pipe.HIncrBy(ctx, totalKey, "denied:"+string(reasonOf(ev)), 1)
	}

	if s.bucket == "minute" {
		bucketKey := fmt.Sprintf("%s:minute:%s", s.prefix, at.UTC().Format("200601021504"))
		pipe.HIncrBy(ctx, bucketKey, field, 1)
		if s.ttl > 0 {
			pipe.Expire(ctx, bucketKey, s.ttl)
		}
	}

	if route := routeOf(ev); route != "" {
		pipe.HIncrBy(ctx, s.prefix+":route", route+":"+field, 1)
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

// Snapshot lê o total e as rotas (somando todas as réplicas).
func (s *RedisStatsStore) Snapshot(ctx context.Context) (domain.StatsSnapshot, error) {
	out := domain.StatsSnapshot{
		Denied: make(map[domain.Reason]int64),
		Routes: make(map[string]domain.Counters),
	}

	total, err := s.rdb.HGetAll(ctx, s.prefix+":total").Result()
	if err != nil {
		return out, err
	}
	for f, v := range total {
		n, _ := strconv.ParseInt(v, 10, 64)
		switch {
		case f == "allowed":
			out.Total.Allowed = n
		case f == "denied":
			out.Total.Denied = n
		case strings.HasPrefix(f, "denied:"):
			out.Denied[domain.Reason(strings.TrimPrefix(f, "denied:"))] = n
		}
	}

	routes, err := s.rdb.HGetAll(ctx, s.prefix+":route").Result()
	if err != nil {
		return out, err
	}
	for f, v := range routes {
		i := strings.LastIndex(f, ":")
		if i <= 0 {
			continue
		}
		n, _ := strconv.ParseInt(v, 10, 64)
		c := out.Routes[f[:i]]
		if f[i+1:] == "allowed" {
			c.Allowed += n
		} else {
			c.Denied += n
		}
		out.Routes[f[:i]] = c
	}
	return out, nil
}

func routeOf(ev domain.StatsEvent) string {
	return strings.TrimSpace(strings.TrimSpace(ev.Method) + " " + strings.TrimSpace(ev.Path))
}
