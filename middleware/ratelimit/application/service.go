package application

import (
	"math"
	"time"

	"clinic-gateway/middleware/ratelimit/domain"
)

// RateInfo é implementado por stores que sabem a taxa configurada.
type RateInfo interface {
	RPS() float64
	Burst() int
}

// Service decide allow/deny para uma chave.
//
// RetryAfter > 0 fixa o valor devolvido ao bloquear. Com zero, o valor é
// calculado pelo tempo até o próximo token (mínimo 1s).
type Service struct {
	Store      domain.LimiterStore
	RetryAfter time.Duration
}

func (s Service) Decide(key domain.Key) domain.Decision {
	if s.Store == nil {
		return domain.Decision{Allowed: true}
	}
	lim := s.Store.Get(key)
	if lim == nil {
		return domain.Decision{Allowed: true}
	}

	allowed := lim.Allow()
	dec := domain.Decision{Allowed: allowed, Remaining: remaining(lim.Tokens())}
	if allowed {
		return dec
	}

	dec.RetryAfter = s.RetryAfter
	if dec.RetryAfter <= 0 {
		dec.RetryAfter = s.untilNextToken(lim)
	}
	return dec
}

func (s Service) untilNextToken(lim domain.Limiter) time.Duration {
	ri, ok := s.Store.(RateInfo)
	if !ok || ri.RPS() <= 0 {
		return time.Second
	}
	missing := 1 - lim.Tokens()
	d := time.Duration(missing / ri.RPS() * float64(time.Second))
	if d < time.Second {
		return time.Second
	}
	return d
}

func remaining(tokens float64) int {
	if tokens <= 0 {
		return 0
	}
	return int(math.Floor(tokens))
}
