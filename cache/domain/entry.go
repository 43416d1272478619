package domain

import (
	"context"
	"time"
)

// Source indica de onde veio o conteúdo entregue ao chamador.
type Source string

const (
	SourceMemory  Source = "memory"
	SourceRedis   Source = "redis"
	SourceNetwork Source = "network"
	SourceStale   Source = "stale"
)

type Entry struct {
	Key       string
	Data      []byte
	StoredAt  time.Time
	ExpiresAt time.Time
	Source    Source
}

// Expired é verdadeiro a partir do instante ExpiresAt (inclusive).
func (e Entry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

func (e Entry) Age(now time.Time) time.Duration {
	if e.StoredAt.IsZero() || now.Before(e.StoredAt) {
		return 0
	}
	return now.Sub(e.StoredAt)
}

// Tier é uma camada de armazenamento.
//
// Get pode devolver entradas já vencidas (a memória guarda entradas vencidas
// por um tempo); quem decide se a entrada serve é o Manager.
type Tier interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Set(ctx context.Context, e Entry) error
	Delete(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) (int, error)
}

// Policy define TTL e persistência para chaves com um prefixo.
// TTL == 0 significa "não armazenar".
type Policy struct {
	Prefix  string
	TTL     time.Duration
	Persist bool
}
