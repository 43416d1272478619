package domain

import (
	"context"
	"time"
)

// Reason diz qual limite negou a requisição.
type Reason string

const (
	ReasonRate        Reason = "rate"
	ReasonConcurrency Reason = "concurrency"
)

// StatsEvent é uma decisão do limite de entrada.
//
// Cuidado com cardinalidade: Key e Path sem controle explodem o número de
// chaves no Redis.
type StatsEvent struct {
	Key     Key
	Allowed bool
	Reason  Reason

	Method string
	Path   string

	At time.Time
}

type Counters struct {
	Allowed int64 `json:"allowed"`
	Denied  int64 `json:"denied"`
}

type StatsSnapshot struct {
	Total  Counters            `json:"total"`
	Denied map[Reason]int64    `json:"denied_by_reason,omitempty"`
	Routes map[string]Counters `json:"routes,omitempty"`
}

// StatsStore grava eventos. Quem chama trata erro como best-effort.
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}

// StatsReader é implementado pelas stores que conseguem se resumir
// (usado em /debug/stats).
type StatsReader interface {
	Snapshot(ctx context.Context) (StatsSnapshot, error)
}
