package infra

import (
	"context"
	"testing"
	"time"

	cacheapp "clinic-gateway/cache/application"
	cachedomain "clinic-gateway/cache/domain"
	cacheinfra "clinic-gateway/cache/infra"
	"clinic-gateway/location/domain"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLastKnown(clock clockwork.Clock, maxAge time.Duration) *LastKnown {
	mgr := cacheapp.NewManager(
		cacheinfra.NewMemoryTier(cacheinfra.WithClock(clock)),
		cacheapp.WithClock(clock),
		cacheapp.WithPolicies(cachedomain.Policy{Prefix: "location/last", TTL: 24 * time.Hour}),
	)
	return NewLastKnown(mgr, maxAge, clock)
}

func TestLastKnown_RememberAndLocate(t *testing.T) {
	clock := clockwork.NewFakeClock()
	lk := newLastKnown(clock, 30*time.Minute)
	ctx := context.Background()

	in := domain.Fix{Lat: -23.5, Lon: -46.6, AccuracyM: 12, Method: domain.MethodHighAccuracy, At: clock.Now()}
	require.NoError(t, lk.Remember(ctx, "staff-9", in))

	clock.Advance(10 * time.Minute)
	fix, err := lk.Locate(ctx, domain.Query{Subject: "staff-9"})
	require.NoError(t, err)
	assert.Equal(t, domain.MethodCache, fix.Method)
	assert.Equal(t, in.Lat, fix.Lat)
	assert.True(t, in.At.Equal(fix.At))

	_, err = lk.Locate(ctx, domain.Query{Subject: "staff-1"})
	assert.ErrorIs(t, err, domain.ErrUnavailable)
}

func TestLastKnown_TooOld(t *testing.T) {
	clock := clockwork.NewFakeClock()
	lk := newLastKnown(clock, 30*time.Minute)
	ctx := context.Background()

	require.NoError(t, lk.Remember(ctx, "s", domain.Fix{Method: domain.MethodNetwork, At: clock.Now()}))
	clock.Advance(31 * time.Minute)

	_, err := lk.Locate(ctx, domain.Query{Subject: "s"})
	assert.ErrorIs(t, err, domain.ErrUnavailable)
}

func TestLastKnown_AnonymousUnavailable(t *testing.T) {
	lk := newLastKnown(clockwork.NewFakeClock(), 0)
	_, err := lk.Locate(context.Background(), domain.Query{})
	assert.ErrorIs(t, err, domain.ErrUnavailable)
}
