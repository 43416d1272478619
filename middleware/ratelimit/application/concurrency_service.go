package application

import (
	"context"
	"time"

	"clinic-gateway/middleware/ratelimit/domain"
)

// ConcurrencyService adquire vagas com timeout, sem saber nada de HTTP.
type ConcurrencyService struct {
	Pool           domain.SlotPool
	AcquireTimeout time.Duration
}

// Acquire tenta pegar uma vaga. AcquireTimeout <= 0 espera até o ctx
// encerrar. Com ok=false nenhuma vaga foi adquirida.
func (s ConcurrencyService) Acquire(ctx context.Context) (func(), bool) {
	if s.Pool == nil {
		return func() {}, true
	}
	if s.AcquireTimeout <= 0 {
		return s.Pool.Acquire(ctx)
	}

	acqCtx, cancel := context.WithTimeout(ctx, s.AcquireTimeout)
	defer cancel()
	return s.Pool.Acquire(acqCtx)
}

// Usage devolve (em uso, capacidade); (0, 0) sem pool.
func (s ConcurrencyService) Usage() (int, int) {
	if s.Pool == nil {
		return 0, 0
	}
	return s.Pool.InUse(), s.Pool.Cap()
}
