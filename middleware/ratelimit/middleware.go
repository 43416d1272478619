package ratelimit

import (
	"net/http"
	"time"

	"clinic-gateway/middleware/ratelimit/application"
	"clinic-gateway/middleware/ratelimit/domain"

	"github.com/apex/log"
)

type Options struct {
	Store               domain.LimiterStore
	Stats               domain.StatsStore
	KeyFn               KeyFunc
	KeyHeader           string
	TrustXForwardedFor  bool
	RejectStatus        int
	RetryAfter          time.Duration
	AddRateLimitHeaders bool
}

// Middleware aplica o token bucket por cliente e coloca a chave no contexto
// (KeyFromContext), mesmo sem Store.
func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusTooManyRequests
	}
	if opts.KeyFn == nil {
		opts.KeyFn = DefaultKeyFunc(opts.KeyHeader, opts.TrustXForwardedFor)
	}

	svc := application.Service{
		Store:      opts.Store,
		RetryAfter: opts.RetryAfter,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := opts.KeyFn(r)
			r = r.WithContext(WithKey(r.Context(), key))

			if opts.Store == nil {
				next.ServeHTTP(w, r)
				return
			}

			dec := svc.Decide(domain.Key(key))
			if opts.AddRateLimitHeaders {
				w.Header().Set("X-RateLimit-Key", key)
				if ri, ok := opts.Store.(application.RateInfo); ok {
					w.Header().Set("X-RateLimit-RPS", formatFloat(ri.RPS()))
					w.Header().Set("X-RateLimit-Burst", formatInt(ri.Burst()))
				}
				w.Header().Set("X-RateLimit-Remaining", formatInt(dec.Remaining))
			}
			record(r, opts.Stats, domain.StatsEvent{Key: domain.Key(key), Allowed: dec.Allowed, Reason: domain.ReasonRate})

			if !dec.Allowed {
				w.Header().Set("Retry-After", RetryAfterSeconds(dec.RetryAfter))
				http.Error(w, http.StatusText(opts.RejectStatus), opts.RejectStatus)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// record é best-effort: erro de stats não derruba a requisição.
func record(r *http.Request, stats domain.StatsStore, ev domain.StatsEvent) {
	if stats == nil {
		return
	}
	ev.Method = r.Method
	ev.Path = r.URL.Path
	ev.At = time.Now()
	if err := stats.Record(r.Context(), ev); err != nil {
		log.WithError(err).Debug("ratelimit: stats record failed")
	}
}
