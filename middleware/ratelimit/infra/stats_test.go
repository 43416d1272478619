package infra

import (
	"context"
	"testing"
	"time"

	"clinic-gateway/middleware/ratelimit/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var events = []domain.StatsEvent{
	{Key: "sub:1", Allowed: true, Method: "GET", Path: "/api/attendance"},
	{Key: "sub:1", Allowed: true, Method: "GET", Path: "/api/attendance"},
	{Key: "sub:1", Allowed: false, Reason: domain.ReasonRate, Method: "GET", Path: "/api/attendance"},
	{Key: "sub:2", Allowed: false, Reason: domain.ReasonConcurrency, Method: "POST", Path: "/location/resolve"},
}

func TestMemoryStatsStore_Snapshot(t *testing.T) {
	s := NewMemoryStatsStore(WithTrackKeys(true))
	ctx := context.Background()
	for _, ev := range events {
		require.NoError(t, s.Record(ctx, ev))
	}

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.Counters{Allowed: 2, Denied: 2}, snap.Total)
	assert.Equal(t, int64(1), snap.Denied[domain.ReasonRate])
	assert.Equal(t, int64(1), snap.Denied[domain.ReasonConcurrency])
	assert.Equal(t, domain.Counters{Allowed: 2, Denied: 1}, snap.Routes["GET /api/attendance"])
	assert.Equal(t, domain.Counters{Allowed: 2, Denied: 1}, s.ByKey()["sub:1"])
}

func TestRedisStatsStore_RecordAndSnapshot(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	s := NewRedisStatsStore(rdb, WithStatsPrefix("test:stats:"), WithStatsTTL(time.Hour), WithStatsTrackKeys(true))
	ctx := context.Background()
	at := time.Date(2026, 3, 2, 8, 15, 0, 0, time.UTC)
	for _, ev := range events {
		ev.At = at
		require.NoError(t, s.Record(ctx, ev))
	}

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.Counters{Allowed: 2, Denied: 2}, snap.Total)
	assert.Equal(t, int64(1), snap.Denied[domain.ReasonConcurrency])
	assert.Equal(t, domain.Counters{Denied: 1}, snap.Routes["POST /location/resolve"])

	assert.Equal(t, "2", mr.HGet("test:stats:minute:202603020815", "allowed"))
	assert.Equal(t, "1", mr.HGet("test:stats:key:sub:1", "denied"))
	assert.True(t, mr.TTL("test:stats:key:sub:1") > 0)
}
