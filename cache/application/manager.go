package application

import (
	"context"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"clinic-gateway/cache/domain"

	"github.com/apex/log"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"
)

// FetchFunc busca o conteúdo na origem quando o cache não tem entrada fresca.
type FetchFunc func(ctx context.Context) ([]byte, error)

// Purger é implementado por camadas que precisam de limpeza periódica
// (a memória; o Redis expira sozinho).
type Purger interface {
	Purge() int
}

type sizer interface {
	Len() int
	Bytes() int64
}

// Manager coordena memória + Redis, TTL por prefixo e deduplicação de
// buscas concorrentes pela mesma chave.
type Manager struct {
	memory  domain.Tier
	persist domain.Tier

	clock      clockwork.Clock
	defaultTTL time.Duration
	policies   []domain.Policy

	group   singleflight.Group
	mu      sync.Mutex
	pending map[string]int

	memoryHits  atomic.Int64
	redisHits   atomic.Int64
	misses      atomic.Int64
	fetches     atomic.Int64
	coalesced   atomic.Int64
	fetchErrors atomic.Int64
	staleServed atomic.Int64
}

type Option func(*Manager)

// WithPersistentTier liga o espelho (Redis) para políticas com Persist.
func WithPersistentTier(t domain.Tier) Option {
	return func(m *Manager) { m.persist = t }
}

func WithClock(c clockwork.Clock) Option {
	return func(m *Manager) { m.clock = c }
}

func WithDefaultTTL(d time.Duration) Option {
	return func(m *Manager) { m.defaultTTL = d }
}

func WithPolicies(p ...domain.Policy) Option {
	return func(m *Manager) { m.policies = append(m.policies, p...) }
}

func NewManager(memory domain.Tier, opts ...Option) *Manager {
	m := &Manager{
		memory:     memory,
		clock:      clockwork.NewRealClock(),
		defaultTTL: 5 * time.Minute,
		pending:    make(map[string]int),
	}
	for _, opt := range opts {
		opt(m)
	}
	// prefixo mais longo primeiro
	sort.SliceStable(m.policies, func(i, j int) bool {
		return len(m.policies[i].Prefix) > len(m.policies[j].Prefix)
	})
	return m
}

// Now é o relógio do Manager; idade de entradas deve ser medida com ele.
func (m *Manager) Now() time.Time {
	return m.clock.Now()
}

// PolicyFor devolve a política do prefixo mais longo que casa com key.
// Sem política: TTL padrão e sem persistência.
func (m *Manager) PolicyFor(key string) domain.Policy {
	for _, p := range m.policies {
		if strings.HasPrefix(key, p.Prefix) {
			return p
		}
	}
	return domain.Policy{TTL: m.defaultTTL}
}

// Get devolve apenas entradas frescas.
func (m *Manager) Get(ctx context.Context, key string) (domain.Entry, bool) {
	now := m.clock.Now()

	if e, ok, _ := m.memory.Get(ctx, key); ok && !e.Expired(now) {
		m.memoryHits.Add(1)
		return e, true
	}

	if m.persist != nil && m.PolicyFor(key).Persist {
		e, ok, err := m.persist.Get(ctx, key)
		if err != nil {
			log.WithError(err).WithField("key", key).Warn("cache: persistent tier read failed")
		}
		if ok && !e.Expired(now) {
			e.Source = domain.SourceRedis
			_ = m.memory.Set(ctx, e)
			m.redisHits.Add(1)
			return e, true
		}
	}

	m.misses.Add(1)
	return domain.Entry{}, false
}

// Set grava com o TTL da política da chave.
func (m *Manager) Set(ctx context.Context, key string, data []byte) (domain.Entry, error) {
	return m.SetTTL(ctx, key, data, m.PolicyFor(key).TTL)
}

// SetTTL grava com TTL explícito; a persistência continua vindo da política.
// ttl <= 0 não grava nada e devolve a entrada já vencida.
func (m *Manager) SetTTL(ctx context.Context, key string, data []byte, ttl time.Duration) (domain.Entry, error) {
	now := m.clock.Now()
	e := domain.Entry{
		Key:       key,
		Data:      data,
		StoredAt:  now,
		ExpiresAt: now.Add(ttl),
		Source:    domain.SourceNetwork,
	}
	if ttl <= 0 {
		return e, nil
	}

	if err := m.memory.Set(ctx, e); err != nil {
		return e, err
	}
	if m.persist != nil && m.PolicyFor(key).Persist {
		if err := m.persist.Set(ctx, e); err != nil {
			log.WithError(err).WithField("key", key).Warn("cache: persistent tier write failed")
		}
	}
	return e, nil
}

func (m *Manager) Invalidate(ctx context.Context, key string) error {
	if err := m.memory.Delete(ctx, key); err != nil {
		return err
	}
	if m.persist != nil {
		return m.persist.Delete(ctx, key)
	}
	return nil
}

// InvalidatePrefix remove de todas as camadas e devolve o total removido.
func (m *Manager) InvalidatePrefix(ctx context.Context, prefix string) (int, error) {
	n, err := m.memory.DeletePrefix(ctx, prefix)
	if err != nil {
		return n, err
	}
	if m.persist != nil {
		pn, err := m.persist.DeletePrefix(ctx, prefix)
		n += pn
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

// GetOrFetch devolve a entrada fresca ou executa fetch uma única vez por chave,
// mesmo com vários chamadores simultâneos.
//
// Cada chamador desiste quando o seu ctx encerra; a busca compartilhada segue
// sem o cancelamento do primeiro chamador. Se a busca falhar e houver entrada
// vencida ainda na janela de stale, ela é devolvida com Source=stale.
func (m *Manager) GetOrFetch(ctx context.Context, key string, fetch FetchFunc) (domain.Entry, error) {
	if e, ok := m.Get(ctx, key); ok {
		return e, nil
	}

	m.addPending(key, 1)
	defer m.addPending(key, -1)

	leader := false
	ch := m.group.DoChan(key, func() (any, error) {
		leader = true
		fctx := context.WithoutCancel(ctx)

		// outro voo pode ter gravado a chave entre o Get acima e este ponto
		if e, ok, _ := m.memory.Get(fctx, key); ok && !e.Expired(m.clock.Now()) {
			return e, nil
		}

		m.fetches.Add(1)
		data, err := fetch(fctx)
		if err != nil {
			return nil, err
		}
		return m.Set(fctx, key, data)
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return domain.Entry{}, ctx.Err()
	}

	if !leader {
		m.coalesced.Add(1)
	}
	if res.Err != nil {
		if leader {
			m.fetchErrors.Add(1)
		}
		if e, ok := m.stale(ctx, key); ok {
			m.staleServed.Add(1)
			log.WithError(res.Err).WithField("key", key).Warn("cache: serving stale entry")
			return e, nil
		}
		return domain.Entry{}, res.Err
	}
	return res.Val.(domain.Entry), nil
}

func (m *Manager) stale(ctx context.Context, key string) (domain.Entry, bool) {
	e, ok, _ := m.memory.Get(ctx, key)
	if !ok {
		return domain.Entry{}, false
	}
	e.Source = domain.SourceStale
	return e, true
}

func (m *Manager) addPending(key string, delta int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pending[key] += delta
	if m.pending[key] <= 0 {
		delete(m.pending, key)
	}
}

// Pending lista as chaves com busca em andamento (ordenadas).
func (m *Manager) Pending() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.pending))
	for k := range m.pending {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (m *Manager) Stats() domain.Stats {
	st := domain.Stats{
		MemoryHits:  m.memoryHits.Load(),
		RedisHits:   m.redisHits.Load(),
		Misses:      m.misses.Load(),
		Fetches:     m.fetches.Load(),
		Coalesced:   m.coalesced.Load(),
		FetchErrors: m.fetchErrors.Load(),
		StaleServed: m.staleServed.Load(),
	}
	if s, ok := m.memory.(sizer); ok {
		st.Entries = s.Len()
		st.Bytes = s.Bytes()
	}
	return st
}

// StartJanitor limpa a memória periodicamente. Pare cancelando o contexto.
func (m *Manager) StartJanitor(ctx context.Context, every time.Duration) {
	p, ok := m.memory.(Purger)
	if !ok || every <= 0 {
		return
	}

	t := m.clock.NewTicker(every)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.Chan():
				if n := p.Purge(); n > 0 {
					log.WithField("removed", n).Debug("cache: janitor purge")
				}
			}
		}
	}()
}
