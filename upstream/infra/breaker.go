package infra

import (
	"errors"
	"fmt"
	"time"

	"clinic-gateway/upstream/domain"

	"github.com/apex/log"
	"github.com/sony/gobreaker/v2"
)

type BreakerOptions struct {
	Name string
	// FailureThreshold: falhas consecutivas em CLOSED que abrem o circuito (N).
	FailureThreshold uint32
	// SuccessThreshold: sucessos consecutivos em HALF_OPEN que fecham o circuito (M).
	// Também é o número de sondas admitidas em HALF_OPEN.
	SuccessThreshold uint32
	// OpenTimeout: tempo em OPEN antes de ir para HALF_OPEN.
	OpenTimeout time.Duration

	OnStateChange func(from, to domain.BreakerState)
}

// Breaker adapta gobreaker para domain.Breaker.
type Breaker struct {
	cb     *gobreaker.CircuitBreaker[[]byte]
	probes uint32
}

func NewBreaker(opts BreakerOptions) *Breaker {
	if opts.Name == "" {
		opts.Name = "upstream"
	}
	if opts.FailureThreshold == 0 {
		opts.FailureThreshold = 5
	}
	if opts.SuccessThreshold == 0 {
		opts.SuccessThreshold = 1
	}
	if opts.OpenTimeout <= 0 {
		opts.OpenTimeout = 30 * time.Second
	}

	threshold := opts.FailureThreshold
	notify := opts.OnStateChange

	st := gobreaker.Settings{
		Name:        opts.Name,
		MaxRequests: opts.SuccessThreshold,
		Timeout:     opts.OpenTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var se *domain.StatusError
			return errors.As(err, &se) && se.ClientError()
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithFields(log.Fields{
				"breaker": name,
				"from":    mapState(from),
				"to":      mapState(to),
			}).Warn("circuit breaker state change")
			if notify != nil {
				notify(mapState(from), mapState(to))
			}
		},
	}
	return &Breaker{cb: gobreaker.NewCircuitBreaker[[]byte](st), probes: opts.SuccessThreshold}
}

// Execute roda fn pelo breaker. Rejeições do breaker viram domain.ErrCircuitOpen.
func (b *Breaker) Execute(fn func() ([]byte, error)) ([]byte, error) {
	out, err := b.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %s", domain.ErrCircuitOpen, err)
	}
	return out, err
}

func (b *Breaker) State() domain.BreakerState {
	return mapState(b.cb.State())
}

func (b *Breaker) Ready() bool {
	switch b.cb.State() {
	case gobreaker.StateOpen:
		return false
	case gobreaker.StateHalfOpen:
		return b.cb.Counts().Requests < b.probes
	default:
		return true
	}
}

func (b *Breaker) Counts() domain.BreakerCounts {
	c := b.cb.Counts()
	return domain.BreakerCounts{
		Requests:             c.Requests,
		TotalSuccesses:       c.TotalSuccesses,
		TotalFailures:        c.TotalFailures,
		ConsecutiveSuccesses: c.ConsecutiveSuccesses,
		ConsecutiveFailures:  c.ConsecutiveFailures,
	}
}

func mapState(s gobreaker.State) domain.BreakerState {
	switch s {
	case gobreaker.StateOpen:
		return domain.StateOpen
	case gobreaker.StateHalfOpen:
		return domain.StateHalfOpen
	default:
		return domain.StateClosed
	}
}
