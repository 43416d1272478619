package infra

import (
	"context"
	"testing"
	"time"

	"clinic-gateway/cache/domain"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entryAt(key string, now time.Time, ttl time.Duration) domain.Entry {
	return domain.Entry{Key: key, Data: []byte(key), StoredAt: now, ExpiresAt: now.Add(ttl)}
}

func TestMemoryTier_GetReturnsStoredEntryAsMemory(t *testing.T) {
	clk := clockwork.NewFakeClock()
	m := NewMemoryTier(WithClock(clk))
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, entryAt("api/attendance", clk.Now(), time.Minute)))

	e, ok, err := m.Get(ctx, "api/attendance")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.SourceMemory, e.Source)
	assert.Equal(t, []byte("api/attendance"), e.Data)
}

func TestMemoryTier_KeepsExpiredEntriesDuringStaleWindow(t *testing.T) {
	clk := clockwork.NewFakeClock()
	m := NewMemoryTier(WithClock(clk), WithStaleFor(time.Minute))
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, entryAt("k", clk.Now(), time.Second)))

	clk.Advance(30 * time.Second)
	e, ok, _ := m.Get(ctx, "k")
	require.True(t, ok, "expected expired entry to stay within stale window")
	assert.True(t, e.Expired(clk.Now()))

	clk.Advance(31 * time.Second)
	_, ok, _ = m.Get(ctx, "k")
	assert.False(t, ok, "expected entry dropped after stale window")
	assert.Equal(t, 0, m.Len())
}

func TestMemoryTier_WithoutStaleWindowDropsOnExpiry(t *testing.T) {
	clk := clockwork.NewFakeClock()
	m := NewMemoryTier(WithClock(clk))
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, entryAt("k", clk.Now(), time.Second)))
	clk.Advance(time.Second)

	_, ok, _ := m.Get(ctx, "k")
	assert.False(t, ok)
}

func TestMemoryTier_EvictsSoonestToExpireWhenFull(t *testing.T) {
	clk := clockwork.NewFakeClock()
	m := NewMemoryTier(WithClock(clk), WithMaxEntries(2))
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, entryAt("long", clk.Now(), time.Hour)))
	require.NoError(t, m.Set(ctx, entryAt("short", clk.Now(), time.Minute)))
	require.NoError(t, m.Set(ctx, entryAt("new", clk.Now(), time.Hour)))

	assert.Equal(t, 2, m.Len())
	_, ok, _ := m.Get(ctx, "short")
	assert.False(t, ok, "expected entry closest to expiry to be evicted")
	_, ok, _ = m.Get(ctx, "long")
	assert.True(t, ok)
}

func TestMemoryTier_OverwriteDoesNotEvict(t *testing.T) {
	clk := clockwork.NewFakeClock()
	m := NewMemoryTier(WithClock(clk), WithMaxEntries(1))
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, entryAt("k", clk.Now(), time.Minute)))
	require.NoError(t, m.Set(ctx, entryAt("k", clk.Now(), time.Hour)))
	assert.Equal(t, 1, m.Len())
}

func TestMemoryTier_DeletePrefixAndPurge(t *testing.T) {
	clk := clockwork.NewFakeClock()
	m := NewMemoryTier(WithClock(clk))
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, entryAt("api/attendance?date=1@7", clk.Now(), time.Minute)))
	require.NoError(t, m.Set(ctx, entryAt("api/attendance?date=2@7", clk.Now(), time.Minute)))
	require.NoError(t, m.Set(ctx, entryAt("api/schedules@7", clk.Now(), time.Hour)))

	n, err := m.DeletePrefix(ctx, "api/attendance")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.EqualValues(t, len("api/schedules@7"), m.Bytes())

	clk.Advance(2 * time.Hour)
	assert.Equal(t, 1, m.Purge())
	assert.Equal(t, 0, m.Len())
}
