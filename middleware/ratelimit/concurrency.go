package ratelimit

import (
	"net/http"
	"time"

	"clinic-gateway/middleware/ratelimit/application"
	"clinic-gateway/middleware/ratelimit/domain"
	"clinic-gateway/middleware/ratelimit/infra"
)

type ConcurrencyOptions struct {
	Max            int
	RejectStatus   int
	AcquireTimeout time.Duration
	// Stats registra só as recusas (as aceitas já contam no Middleware).
	Stats domain.StatsStore
}

// Concurrency limita as requisições em andamento. Max <= 0 desliga.
type Concurrency struct {
	svc  application.ConcurrencyService
	opts ConcurrencyOptions
}

func NewConcurrency(opts ConcurrencyOptions) *Concurrency {
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusServiceUnavailable
	}
	c := &Concurrency{opts: opts}
	if opts.Max > 0 {
		c.svc = application.ConcurrencyService{
			Pool:           infra.NewChanPool(opts.Max),
			AcquireTimeout: opts.AcquireTimeout,
		}
	}
	return c
}

// Usage devolve (em uso, capacidade).
func (c *Concurrency) Usage() (int, int) { return c.svc.Usage() }

func (c *Concurrency) Middleware(next http.Handler) http.Handler {
	if c.svc.Pool == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		release, ok := c.svc.Acquire(r.Context())
		if !ok {
			record(r, c.opts.Stats, domain.StatsEvent{
				Key:    domain.Key(KeyFromContext(r.Context())),
				Reason: domain.ReasonConcurrency,
			})
			http.Error(w, http.StatusText(c.opts.RejectStatus), c.opts.RejectStatus)
			return
		}
		defer release()

		next.ServeHTTP(w, r)
	})
}

// ConcurrencyMiddleware é o atalho sem acesso ao uso do pool.
func ConcurrencyMiddleware(opts ConcurrencyOptions) func(next http.Handler) http.Handler {
	return NewConcurrency(opts).Middleware
}
