package infra

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
)

// reserveScript: limpa o que saiu da janela, conta e, havendo vaga, registra.
// Retorna {1, 0} quando reservou ou {0, ms_até_liberar}.
var reserveScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local max = tonumber(ARGV[3])
redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
if count >= max then
  local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
  return {0, tonumber(oldest[2]) + window - now}
end
redis.call('ZADD', key, now, ARGV[4])
redis.call('PEXPIRE', key, window)
return {1, 0}
`)

// RedisWindow é a janela deslizante compartilhada entre réplicas.
type RedisWindow struct {
	rdb    *redis.Client
	key    string
	max    int
	window time.Duration
	clock  clockwork.Clock
}

type RedisWindowOption func(*RedisWindow)

func WithRedisWindowKey(key string) RedisWindowOption {
	return func(w *RedisWindow) { w.key = key }
}

func WithRedisWindowClock(c clockwork.Clock) RedisWindowOption {
	return func(w *RedisWindow) { w.clock = c }
}

func NewRedisWindow(rdb *redis.Client, max int, window time.Duration, opts ...RedisWindowOption) *RedisWindow {
	w := &RedisWindow{
		rdb:    rdb,
		key:    "clinic:outbound:window",
		max:    max,
		window: window,
		clock:  clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *RedisWindow) Reserve(ctx context.Context) (bool, time.Duration, error) {
	if w.max <= 0 {
		return true, 0, nil
	}
	now := w.clock.Now().UnixMilli()
	member := strconv.FormatInt(now, 10) + "-" + uuid.NewString()

	res, err := reserveScript.Run(ctx, w.rdb, []string{w.key}, now, w.window.Milliseconds(), w.max, member).Int64Slice()
	if err != nil {
		return false, 0, fmt.Errorf("redis window reserve: %w", err)
	}
	if len(res) != 2 {
		return false, 0, fmt.Errorf("redis window reserve: unexpected reply %v", res)
	}
	if res[0] == 1 {
		return true, 0, nil
	}
	return false, time.Duration(res[1]) * time.Millisecond, nil
}

func (w *RedisWindow) Usage(ctx context.Context) (int, error) {
	cutoff := w.clock.Now().Add(-w.window).UnixMilli()
	n, err := w.rdb.ZCount(ctx, w.key, "("+strconv.FormatInt(cutoff, 10), "+inf").Result()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
