package domain

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	ErrRateLimited = errors.New("outbound rate limit exceeded")
	ErrCircuitOpen = errors.New("circuit breaker is open")
)

// RateLimitError carrega quanto tempo esperar antes de tentar de novo.
// errors.Is(err, ErrRateLimited) é verdadeiro para ele.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s (retry after %s)", ErrRateLimited, e.RetryAfter)
}

func (e *RateLimitError) Is(target error) bool { return target == ErrRateLimited }

// StatusError representa uma resposta não-2xx da API.
type StatusError struct {
	Status int
	Body   []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream returned %d %s", e.Status, http.StatusText(e.Status))
}

// ClientError indica 4xx: falha do pedido, não da API.
func (e *StatusError) ClientError() bool {
	return e.Status >= 400 && e.Status < 500
}
