package domain

import (
	"context"
	"time"
)

type BreakerState string

const (
	StateClosed   BreakerState = "CLOSED"
	StateOpen     BreakerState = "OPEN"
	StateHalfOpen BreakerState = "HALF_OPEN"
)

// Window é uma janela deslizante de requisições.
//
// Reserve registra a requisição quando há vaga. Sem vaga, ok=false e
// retryAfter diz quando a mais antiga sai da janela.
type Window interface {
	Reserve(ctx context.Context) (ok bool, retryAfter time.Duration, err error)
	Usage(ctx context.Context) (int, error)
}

// BreakerCounts é o retrato dos contadores do breaker.
type BreakerCounts struct {
	Requests             uint32 `json:"requests"`
	TotalSuccesses       uint32 `json:"total_successes"`
	TotalFailures        uint32 `json:"total_failures"`
	ConsecutiveSuccesses uint32 `json:"consecutive_successes"`
	ConsecutiveFailures  uint32 `json:"consecutive_failures"`
}

type Breaker interface {
	Execute(fn func() ([]byte, error)) ([]byte, error)
	State() BreakerState
	Counts() BreakerCounts
	// Ready diz se uma chamada agora seria admitida: falso em OPEN e em
	// HALF_OPEN com todas as sondas já em uso.
	Ready() bool
}
