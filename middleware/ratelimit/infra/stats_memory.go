package infra

import (
	"context"
	"sync"

	"clinic-gateway/middleware/ratelimit/domain"
)

// MemoryStatsStore guarda os contadores no processo. Sem expiração: serve
// para uma réplica só ou para desenvolvimento.
type MemoryStatsStore struct {
	mu       sync.Mutex
	total    domain.Counters
	byReason map[domain.Reason]int64
	byRoute  map[string]domain.Counters
	byKey    map[string]domain.Counters

	trackKeys bool
}

type MemoryStatsOption func(*MemoryStatsStore)

func WithTrackKeys(track bool) MemoryStatsOption {
	return func(s *MemoryStatsStore) { s.trackKeys = track }
}

func NewMemoryStatsStore(opts ...MemoryStatsOption) *MemoryStatsStore {
	s := &MemoryStatsStore{
		byReason: make(map[domain.Reason]int64),
		byRoute:  make(map[string]domain.Counters),
		byKey:    make(map[string]domain.Counters),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	route := routeOf(ev)

	s.mu.Lock()
	defer s.mu.Unlock()

	bump(&s.total, ev.Allowed)
	if !ev.Allowed {
		s.byReason[reasonOf(ev)]++
	}
	if route != "" {
		c := s.byRoute[route]
		bump(&c, ev.Allowed)
		s.byRoute[route] = c
	}
	if s.trackKeys && ev.Key != "" {
		c := s.byKey[string(ev.Key)]
		bump(&c, ev.Allowed)
		s.byKey[string(ev.Key)] = c
	}
	return nil
}

func (s *MemoryStatsStore) Snapshot(context.Context) (domain.StatsSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := domain.StatsSnapshot{
		Total:  s.total,
		Denied: make(map[domain.Reason]int64, len(s.byReason)),
		Routes: make(map[string]domain.Counters, len(s.byRoute)),
	}
	for k, v := range s.byReason {
		out.Denied[k] = v
	}
	for k, v := range s.byRoute {
		out.Routes[k] = v
	}
	return out, nil
}

func (s *MemoryStatsStore) ByKey() map[string]domain.Counters {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]domain.Counters, len(s.byKey))
	for k, v := range s.byKey {
		out[k] = v
	}
	return out
}

func bump(c *domain.Counters, allowed bool) {
	if allowed {
		c.Allowed++
	} else {
		c.Denied++
	}
}

func reasonOf(ev domain.StatsEvent) domain.Reason {
	if ev.Reason == "" {
		return domain.ReasonRate
	}
	return ev.Reason
}
