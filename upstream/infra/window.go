package infra

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// SlidingWindow permite no máximo max requisições em qualquer intervalo de
// tamanho window. max <= 0 desliga o limite.
type SlidingWindow struct {
	mu     sync.Mutex
	max    int
	window time.Duration
	clock  clockwork.Clock
	stamps []time.Time
}

type WindowOption func(*SlidingWindow)

func WithWindowClock(c clockwork.Clock) WindowOption {
	return func(w *SlidingWindow) { w.clock = c }
}

func NewSlidingWindow(max int, window time.Duration, opts ...WindowOption) *SlidingWindow {
	w := &SlidingWindow{
		max:    max,
		window: window,
		clock:  clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *SlidingWindow) Reserve(_ context.Context) (bool, time.Duration, error) {
	if w.max <= 0 {
		return true, 0, nil
	}
	now := w.clock.Now()

	w.mu.Lock()
	defer w.mu.Unlock()

	w.pruneLocked(now)
	if len(w.stamps) >= w.max {
		return false, w.stamps[0].Add(w.window).Sub(now), nil
	}
	w.stamps = append(w.stamps, now)
	return true, 0, nil
}

func (w *SlidingWindow) Usage(_ context.Context) (int, error) {
	now := w.clock.Now()

	w.mu.Lock()
	defer w.mu.Unlock()
	w.pruneLocked(now)
	return len(w.stamps), nil
}

// Reset esvazia a janela.
func (w *SlidingWindow) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stamps = w.stamps[:0]
}

func (w *SlidingWindow) pruneLocked(now time.Time) {
	cutoff := now.Add(-w.window)
	i := 0
	for i < len(w.stamps) && !w.stamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		w.stamps = append(w.stamps[:0], w.stamps[i:]...)
	}
}
