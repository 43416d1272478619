package infra

import (
	"context"
	"testing"
	"time"

	"clinic-gateway/location/domain"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReported_PicksNewestFreshReading(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	now := clock.Now()
	s := NewReported(domain.MethodHighAccuracy, 2*time.Minute, clock)

	q := domain.Query{Readings: []domain.Reading{
		{Method: domain.MethodHighAccuracy, Lat: 1, Lon: 1, AccuracyM: 5, At: now.Add(-5 * time.Minute)},
		{Method: domain.MethodHighAccuracy, Lat: 2, Lon: 2, AccuracyM: 9, At: now.Add(-30 * time.Second)},
		{Method: domain.MethodHighAccuracy, Lat: 3, Lon: 3, AccuracyM: 7, At: now.Add(-90 * time.Second)},
		{Method: domain.MethodNetwork, Lat: 4, Lon: 4, AccuracyM: 300, At: now},
	}}

	fix, err := s.Locate(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, 2.0, fix.Lat)
	assert.Equal(t, domain.MethodHighAccuracy, fix.Method)
}

func TestReported_SkipsStaleAndInvalid(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := NewReported(domain.MethodNetwork, time.Minute, clock)

	q := domain.Query{Readings: []domain.Reading{
		{Method: domain.MethodNetwork, Lat: 1, Lon: 1, At: clock.Now().Add(-2 * time.Minute)},
		{Method: domain.MethodNetwork, Lat: 100, Lon: 1, At: clock.Now()},
	}}

	_, err := s.Locate(context.Background(), q)
	assert.ErrorIs(t, err, domain.ErrUnavailable)
}

func TestFallback_AlwaysAnswers(t *testing.T) {
	clock := clockwork.NewFakeClock()
	f := Fallback{Fix: domain.Fix{Lat: -23.56, Lon: -46.65, AccuracyM: 50000}, Clock: clock}

	fix, err := f.Locate(context.Background(), domain.Query{})
	require.NoError(t, err)
	assert.Equal(t, domain.MethodDefault, fix.Method)
	assert.Equal(t, clock.Now(), fix.At)
	assert.Equal(t, 50000.0, fix.AccuracyM)
}
