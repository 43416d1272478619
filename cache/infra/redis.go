package infra

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"clinic-gateway/cache/domain"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
)

// RedisTier espelha entradas no Redis para sobreviverem a restarts e serem
// compartilhadas entre réplicas do gateway.
//
// O Redis expira as chaves sozinho (SET ... EX), então Get nunca devolve
// entradas vencidas.
type RedisTier struct {
	rdb    *redis.Client
	prefix string
	clock  clockwork.Clock
}

type RedisOption func(*RedisTier)

func WithRedisPrefix(prefix string) RedisOption {
	return func(t *RedisTier) {
		t.prefix = strings.Trim(prefix, ":")
	}
}

func WithRedisClock(c clockwork.Clock) RedisOption {
	return func(t *RedisTier) { t.clock = c }
}

func NewRedisTier(rdb *redis.Client, opts ...RedisOption) *RedisTier {
	t := &RedisTier{
		rdb:    rdb,
		prefix: "clinic:cache",
		clock:  clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

type redisEnvelope struct {
	Data      []byte    `json:"data"`
	StoredAt  time.Time `json:"stored_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (t *RedisTier) key(k string) string {
	return t.prefix + ":" + k
}

func (t *RedisTier) Get(ctx context.Context, key string) (domain.Entry, bool, error) {
	raw, err := t.rdb.Get(ctx, t.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Entry{}, false, nil
	}
	if err != nil {
		return domain.Entry{}, false, fmt.Errorf("redis get %s: %w", key, err)
	}

	var env redisEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		// conteúdo corrompido conta como miss; a próxima escrita sobrescreve
		return domain.Entry{}, false, nil
	}
	return domain.Entry{
		Key:       key,
		Data:      env.Data,
		StoredAt:  env.StoredAt,
		ExpiresAt: env.ExpiresAt,
		Source:    domain.SourceRedis,
	}, true, nil
}

func (t *RedisTier) Set(ctx context.Context, e domain.Entry) error {
	ttl := e.ExpiresAt.Sub(t.clock.Now())
	if ttl <= 0 {
		return nil
	}

	raw, err := json.Marshal(redisEnvelope{Data: e.Data, StoredAt: e.StoredAt, ExpiresAt: e.ExpiresAt})
	if err != nil {
		return err
	}
	if err := t.rdb.Set(ctx, t.key(e.Key), raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", e.Key, err)
	}
	return nil
}

func (t *RedisTier) Delete(ctx context.Context, key string) error {
	return t.rdb.Del(ctx, t.key(key)).Err()
}

// DeletePrefix usa SCAN para não bloquear o Redis com KEYS.
func (t *RedisTier) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	match := t.key(prefix) + "*"
	iter := t.rdb.Scan(ctx, 0, match, 100).Iterator()

	var batch []string
	n := 0
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		deleted, err := t.rdb.Del(ctx, batch...).Result()
		if err != nil {
			return err
		}
		n += int(deleted)
		batch = batch[:0]
		return nil
	}

	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) >= 100 {
			if err := flush(); err != nil {
				return n, err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return n, err
	}
	if err := flush(); err != nil {
		return n, err
	}
	return n, nil
}
