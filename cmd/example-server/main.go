package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	cacheapp "clinic-gateway/cache/application"
	cachedomain "clinic-gateway/cache/domain"
	cacheinfra "clinic-gateway/cache/infra"
	"clinic-gateway/gateway"
	mylog "clinic-gateway/internal/log"
	"clinic-gateway/middleware/ratelimit"
	"clinic-gateway/middleware/ratelimit/infra"
	upstreamapp "clinic-gateway/upstream/application"
	upstreaminfra "clinic-gateway/upstream/infra"

	"github.com/apex/log"
)

// Exemplo: usando as peças direto num servidor próprio (sem o binário
// gateway). O painel da clínica é buscado com cache, coalescência e breaker.
func main() {
	mylog.InitLogger()

	upstream := os.Getenv("UPSTREAM_URL")
	if upstream == "" {
		upstream = "http://localhost:8081"
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cache := cacheapp.NewManager(
		cacheinfra.NewMemoryTier(cacheinfra.WithStaleFor(10*time.Minute)),
		cacheapp.WithPolicies(cachedomain.Policy{Prefix: "api/dashboard", TTL: 30 * time.Second}),
	)
	cache.StartJanitor(ctx, time.Minute)

	client := &upstreamapp.Client{
		BaseURL: upstream,
		HTTP:    &http.Client{Timeout: 5 * time.Second},
		Cache:   cache,
		Guard: upstreamapp.Guard{
			Window:  upstreaminfra.NewSlidingWindow(30, time.Minute),
			Breaker: upstreaminfra.NewBreaker(upstreaminfra.BreakerOptions{Name: "example", FailureThreshold: 3, SuccessThreshold: 1, OpenTimeout: 15 * time.Second}),
		},
	}

	store := infra.NewStore(5, 10)
	store.StartJanitor(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		resp, err := client.FetchDashboard(r.Context(), upstreamapp.CredentialScope(r.Header), r.Header)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Cache", string(resp.Source))
		_, _ = w.Write(resp.Body)
	})

	h := http.Handler(mux)
	h = ratelimit.ConcurrencyMiddleware(ratelimit.ConcurrencyOptions{Max: 50})(h)
	h = ratelimit.Middleware(ratelimit.Options{
		Store:               store,
		KeyHeader:           "X-Api-Key", // ou vazio para usar IP
		TrustXForwardedFor:  true,
		AddRateLimitHeaders: true,
	})(h)
	h = gateway.RequestID(h)

	addr := ":8082"
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		addr = v
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.WithFields(log.Fields{"addr": addr, "upstream": upstream}).Info("example server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Fatal("server error")
	}
}
