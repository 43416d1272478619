package infra

import (
	"context"
	"strings"
	"sync"
	"time"

	"clinic-gateway/cache/domain"

	"github.com/jonboulle/clockwork"
)

// MemoryTier guarda entradas em memória.
//
// Entradas vencidas continuam disponíveis para Get por staleFor, para que o
// Manager possa servir conteúdo antigo quando a API estiver fora.
type MemoryTier struct {
	mu         sync.Mutex
	entries    map[string]domain.Entry
	clock      clockwork.Clock
	maxEntries int
	staleFor   time.Duration
}

type MemoryOption func(*MemoryTier)

func WithClock(c clockwork.Clock) MemoryOption {
	return func(m *MemoryTier) { m.clock = c }
}

// WithMaxEntries limita o número de chaves; 0 desliga o limite.
func WithMaxEntries(n int) MemoryOption {
	return func(m *MemoryTier) { m.maxEntries = n }
}

func WithStaleFor(d time.Duration) MemoryOption {
	return func(m *MemoryTier) { m.staleFor = d }
}

func NewMemoryTier(opts ...MemoryOption) *MemoryTier {
	m := &MemoryTier{
		entries: make(map[string]domain.Entry),
		clock:   clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *MemoryTier) Get(_ context.Context, key string) (domain.Entry, bool, error) {
	now := m.clock.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return domain.Entry{}, false, nil
	}
	if m.dead(e, now) {
		delete(m.entries, key)
		return domain.Entry{}, false, nil
	}
	e.Source = domain.SourceMemory
	return e, true, nil
}

func (m *MemoryTier) Set(_ context.Context, e domain.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[e.Key]; !exists && m.maxEntries > 0 && len(m.entries) >= m.maxEntries {
		m.evictLocked()
	}
	m.entries[e.Key] = e
	return nil
}

func (m *MemoryTier) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *MemoryTier) DeletePrefix(_ context.Context, prefix string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for k := range m.entries {
		if strings.HasPrefix(k, prefix) {
			delete(m.entries, k)
			n++
		}
	}
	return n, nil
}

// Purge remove entradas vencidas há mais de staleFor. Retorna quantas saíram.
func (m *MemoryTier) Purge() int {
	now := m.clock.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for k, e := range m.entries {
		if m.dead(e, now) {
			delete(m.entries, k)
			n++
		}
	}
	return n
}

func (m *MemoryTier) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Bytes soma o tamanho dos payloads guardados.
func (m *MemoryTier) Bytes() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	var total int64
	for _, e := range m.entries {
		total += int64(len(e.Data))
	}
	return total
}

func (m *MemoryTier) dead(e domain.Entry, now time.Time) bool {
	return !now.Before(e.ExpiresAt.Add(m.staleFor))
}

// evictLocked remove a entrada que vence primeiro.
func (m *MemoryTier) evictLocked() {
	var (
		victim string
		first  time.Time
		found  bool
	)
	for k, e := range m.entries {
		if !found || e.ExpiresAt.Before(first) {
			victim, first, found = k, e.ExpiresAt, true
		}
	}
	if found {
		delete(m.entries, victim)
	}
}
