package infra

import (
	"context"
	"testing"
	"time"

	"clinic-gateway/cache/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestRedisTier_SetThenGet(t *testing.T) {
	mr, rdb := newTestRedis(t)
	clk := clockwork.NewFakeClockAt(time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC))
	tier := NewRedisTier(rdb, WithRedisPrefix("test:cache:"), WithRedisClock(clk))
	ctx := context.Background()

	now := clk.Now()
	require.NoError(t, tier.Set(ctx, domain.Entry{Key: "api/schedules@7", Data: []byte(`{"ok":true}`), StoredAt: now, ExpiresAt: now.Add(15 * time.Minute)}))

	assert.True(t, mr.Exists("test:cache:api/schedules@7"))
	assert.Equal(t, 15*time.Minute, mr.TTL("test:cache:api/schedules@7"))

	e, ok, err := tier.Get(ctx, "api/schedules@7")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.SourceRedis, e.Source)
	assert.JSONEq(t, `{"ok":true}`, string(e.Data))
	assert.True(t, e.ExpiresAt.Equal(now.Add(15*time.Minute)))
}

func TestRedisTier_MissAndExpiry(t *testing.T) {
	mr, rdb := newTestRedis(t)
	tier := NewRedisTier(rdb)
	ctx := context.Background()

	_, ok, err := tier.Get(ctx, "nope")
	require.NoError(t, err)
	assert.False(t, ok)

	now := time.Now()
	require.NoError(t, tier.Set(ctx, domain.Entry{Key: "k", Data: []byte("v"), StoredAt: now, ExpiresAt: now.Add(time.Minute)}))
	mr.FastForward(2 * time.Minute)

	_, ok, err = tier.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisTier_SkipsAlreadyExpiredEntries(t *testing.T) {
	mr, rdb := newTestRedis(t)
	tier := NewRedisTier(rdb)

	past := time.Now().Add(-time.Minute)
	require.NoError(t, tier.Set(context.Background(), domain.Entry{Key: "old", Data: []byte("v"), ExpiresAt: past}))
	assert.False(t, mr.Exists("clinic:cache:old"))
}

func TestRedisTier_CorruptPayloadIsMiss(t *testing.T) {
	mr, rdb := newTestRedis(t)
	tier := NewRedisTier(rdb)

	require.NoError(t, mr.Set("clinic:cache:bad", "not-json"))
	_, ok, err := tier.Get(context.Background(), "bad")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisTier_DeletePrefix(t *testing.T) {
	mr, rdb := newTestRedis(t)
	tier := NewRedisTier(rdb)
	ctx := context.Background()

	now := time.Now()
	for _, k := range []string{"api/attendance?d=1@1", "api/attendance?d=2@1", "api/dashboard@1"} {
		require.NoError(t, tier.Set(ctx, domain.Entry{Key: k, Data: []byte("x"), StoredAt: now, ExpiresAt: now.Add(time.Hour)}))
	}

	n, err := tier.DeletePrefix(ctx, "api/attendance")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.True(t, mr.Exists("clinic:cache:api/dashboard@1"))

	require.NoError(t, tier.Delete(ctx, "api/dashboard@1"))
	assert.False(t, mr.Exists("clinic:cache:api/dashboard@1"))
}
