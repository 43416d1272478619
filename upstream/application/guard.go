package application

import (
	"context"

	"clinic-gateway/upstream/domain"

	"github.com/apex/log"
)

// Guard decide se uma chamada de saída pode acontecer agora.
//
// Ordem: circuito que não admitiria a chamada (OPEN, ou HALF_OPEN sem sonda
// livre) recusa sem gastar vaga da janela; depois a janela; por fim a chamada
// roda pelo breaker. Window ou Breaker nil desligam a etapa.
type Guard struct {
	Window  domain.Window
	Breaker domain.Breaker
}

type GuardStats struct {
	State       domain.BreakerState  `json:"state"`
	Counts      domain.BreakerCounts `json:"counts"`
	WindowUsage int                  `json:"window_usage"`
}

func (g Guard) Do(ctx context.Context, fn func() ([]byte, error)) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if g.Breaker != nil && !g.Breaker.Ready() {
		return nil, domain.ErrCircuitOpen
	}

	if g.Window != nil {
		ok, retryAfter, err := g.Window.Reserve(ctx)
		switch {
		case err != nil:
			// janela indisponível (ex: Redis fora) não deve derrubar a chamada
			log.WithError(err).Warn("outbound window unavailable, allowing request")
		case !ok:
			return nil, &domain.RateLimitError{RetryAfter: retryAfter}
		}
	}

	if g.Breaker == nil {
		return fn()
	}
	return g.Breaker.Execute(fn)
}

func (g Guard) Stats(ctx context.Context) GuardStats {
	st := GuardStats{State: domain.StateClosed}
	if g.Breaker != nil {
		st.State = g.Breaker.State()
		st.Counts = g.Breaker.Counts()
	}
	if g.Window != nil {
		if n, err := g.Window.Usage(ctx); err == nil {
			st.WindowUsage = n
		}
	}
	return st
}
