package infra

import (
	"context"
	"testing"
	"time"

	"clinic-gateway/middleware/ratelimit/domain"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_SameKeySharesBucket(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := NewStore(1, 2, WithStoreClock(clock))

	assert.True(t, s.Get("k").Allow())
	assert.True(t, s.Get("k").Allow())
	assert.False(t, s.Get("k").Allow())
	assert.True(t, s.Get("other").Allow())
	assert.Equal(t, 2, s.Len())
}

func TestStore_RefillsWithClock(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := NewStore(0.5, 1, WithStoreClock(clock))

	lim := s.Get("k")
	require.True(t, lim.Allow())
	require.False(t, lim.Allow())

	clock.Advance(2 * time.Second)
	assert.InDelta(t, 1.0, lim.Tokens(), 1e-9)
	assert.True(t, lim.Allow())
}

func TestStore_CleanupRemovesIdleEntries(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := NewStore(10, 1, WithIdleTTL(time.Minute), WithCleanupEvery(0), WithStoreClock(clock))

	s.Get(domain.Key("old"))
	clock.Advance(2 * time.Minute)
	s.Get(domain.Key("fresh"))

	assert.Equal(t, 1, s.Cleanup())
	assert.Equal(t, 1, s.Len())
}

func TestStore_JanitorRunsOnTicker(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := NewStore(10, 1, WithIdleTTL(time.Minute), WithCleanupEvery(30*time.Second), WithStoreClock(clock))
	s.Get("k")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.StartJanitor(ctx)

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(90 * time.Second)

	assert.Eventually(t, func() bool { return s.Len() == 0 }, time.Second, time.Millisecond)
}

func TestChanPool_Usage(t *testing.T) {
	p := NewChanPool(2)
	release, ok := p.Acquire(context.Background())
	require.True(t, ok)
	assert.Equal(t, 1, p.InUse())
	assert.Equal(t, 2, p.Cap())
	release()
	assert.Equal(t, 0, p.InUse())
}
