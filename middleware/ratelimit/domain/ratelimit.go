package domain

import "time"

// Key identifica o cliente (sujeito do JWT, header, IP).
type Key string

// Limiter decide se o cliente pode fazer mais uma requisição agora.
// Tokens é o saldo atual (pode ser fracionário ou negativo).
type Limiter interface {
	Allow() bool
	Tokens() float64
}

type LimiterStore interface {
	Get(Key) Limiter
}

type Decision struct {
	Allowed bool
	// Remaining é o saldo inteiro depois da decisão.
	Remaining int
	// RetryAfter só vem preenchido quando bloqueia.
	RetryAfter time.Duration
}
