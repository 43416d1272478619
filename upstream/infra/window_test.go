package infra

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlidingWindow_DeniesAfterMaxAndReportsRetryAfter(t *testing.T) {
	clk := clockwork.NewFakeClock()
	w := NewSlidingWindow(2, time.Minute, WithWindowClock(clk))
	ctx := context.Background()

	ok, _, err := w.Reserve(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	clk.Advance(20 * time.Second)
	ok, _, _ = w.Reserve(ctx)
	require.True(t, ok)

	clk.Advance(10 * time.Second)
	ok, retry, _ := w.Reserve(ctx)
	assert.False(t, ok)
	// a primeira sai da janela em 60s - 30s
	assert.Equal(t, 30*time.Second, retry)

	n, _ := w.Usage(ctx)
	assert.Equal(t, 2, n)
}

func TestSlidingWindow_SlidesAsOldRequestsLeave(t *testing.T) {
	clk := clockwork.NewFakeClock()
	w := NewSlidingWindow(1, time.Second, WithWindowClock(clk))
	ctx := context.Background()

	ok, _, _ := w.Reserve(ctx)
	require.True(t, ok)
	ok, _, _ = w.Reserve(ctx)
	require.False(t, ok)

	clk.Advance(time.Second)
	ok, _, _ = w.Reserve(ctx)
	assert.True(t, ok, "expected slot after the window slides")
}

func TestSlidingWindow_ZeroMaxDisablesLimit(t *testing.T) {
	w := NewSlidingWindow(0, time.Second)
	for i := 0; i < 100; i++ {
		ok, _, _ := w.Reserve(context.Background())
		require.True(t, ok)
	}
}

func TestSlidingWindow_Reset(t *testing.T) {
	clk := clockwork.NewFakeClock()
	w := NewSlidingWindow(1, time.Hour, WithWindowClock(clk))
	ctx := context.Background()

	ok, _, _ := w.Reserve(ctx)
	require.True(t, ok)
	w.Reset()
	ok, _, _ = w.Reserve(ctx)
	assert.True(t, ok)
}
