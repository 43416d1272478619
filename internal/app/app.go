// Package app monta o gateway a partir da configuração.
package app

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	cacheapp "clinic-gateway/cache/application"
	cachedomain "clinic-gateway/cache/domain"
	cacheinfra "clinic-gateway/cache/infra"
	"clinic-gateway/gateway"
	"clinic-gateway/internal/config"
	locationapp "clinic-gateway/location/application"
	locationdomain "clinic-gateway/location/domain"
	locationinfra "clinic-gateway/location/infra"
	"clinic-gateway/middleware/ratelimit"
	ratelimitdomain "clinic-gateway/middleware/ratelimit/domain"
	ratelimitinfra "clinic-gateway/middleware/ratelimit/infra"
	upstreamapp "clinic-gateway/upstream/application"
	upstreamdomain "clinic-gateway/upstream/domain"
	upstreaminfra "clinic-gateway/upstream/infra"

	"github.com/apex/log"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
)

type App struct {
	Config config.Config

	Redis     *redis.Client
	Cache     *cacheapp.Manager
	Client    *upstreamapp.Client
	Resolver  locationapp.Resolver
	LastKnown *locationinfra.LastKnown

	RateStore   *ratelimitinfra.Store
	Stats       ratelimitdomain.StatsStore
	Concurrency *ratelimit.Concurrency

	Gateway *gateway.Gateway
	Clock   clockwork.Clock
}

// Build conecta no Redis (quando a configuração pede) e monta todas as peças.
// Chame Close no final.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	a := &App{Config: cfg, Clock: clockwork.NewRealClock()}

	if needsRedis(cfg) {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("redis ping %s: %w", cfg.Redis.Addr, err)
		}
		a.Redis = rdb
	}

	a.Cache = a.buildCache()
	a.Client = &upstreamapp.Client{
		BaseURL: cfg.Upstream.BaseURL,
		HTTP:    &http.Client{Timeout: cfg.Upstream.Timeout},
		Cache:   a.Cache,
		Guard:   a.buildGuard(),
	}
	a.LastKnown = locationinfra.NewLastKnown(a.Cache, cfg.Location.LastKnownMaxAge, a.Clock)

	resolver, err := a.buildResolver()
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Resolver = resolver

	a.buildInbound()

	a.Gateway = &gateway.Gateway{
		Client:      a.Client,
		Cache:       a.Cache,
		Resolver:    a.Resolver,
		Sites:       sites(cfg.Location.Sites),
		SlackM:      cfg.Location.SlackM,
		Rules:       rules(cfg.Invalidate),
		TrustXFF:    cfg.Rate.TrustXFF,
		JWTSecret:   []byte(cfg.Rate.JWTSecret),
		Concurrency: a.Concurrency,
		Clock:       a.Clock,
	}
	if r, ok := a.Stats.(ratelimitdomain.StatsReader); ok {
		a.Gateway.InboundStats = r
	}
	return a, nil
}

func needsRedis(cfg config.Config) bool {
	return cfg.Stats.Redis || cfg.Cache.Persist || cfg.Outbound.Shared
}

func (a *App) buildCache() *cacheapp.Manager {
	cfg := a.Config.Cache

	memory := cacheinfra.NewMemoryTier(
		cacheinfra.WithClock(a.Clock),
		cacheinfra.WithMaxEntries(cfg.MaxEntries),
		cacheinfra.WithStaleFor(cfg.StaleFor),
	)

	opts := []cacheapp.Option{
		cacheapp.WithClock(a.Clock),
		cacheapp.WithDefaultTTL(cfg.DefaultTTL),
	}
	for _, p := range cfg.Policies {
		opts = append(opts, cacheapp.WithPolicies(cachedomain.Policy{Prefix: p.Prefix, TTL: p.TTL, Persist: p.Persist}))
	}
	if cfg.Persist && a.Redis != nil {
		opts = append(opts, cacheapp.WithPersistentTier(cacheinfra.NewRedisTier(
			a.Redis,
			cacheinfra.WithRedisPrefix(cfg.Prefix),
			cacheinfra.WithRedisClock(a.Clock),
		)))
	}
	return cacheapp.NewManager(memory, opts...)
}

func (a *App) buildGuard() upstreamapp.Guard {
	cfg := a.Config.Outbound

	var g upstreamapp.Guard
	switch {
	case cfg.MaxRequests <= 0:
	case cfg.Shared && a.Redis != nil:
		g.Window = upstreaminfra.NewRedisWindow(a.Redis, cfg.MaxRequests, cfg.Window,
			upstreaminfra.WithRedisWindowKey(a.Config.Cache.Prefix+":outbound:window"),
			upstreaminfra.WithRedisWindowClock(a.Clock),
		)
	default:
		g.Window = upstreaminfra.NewSlidingWindow(cfg.MaxRequests, cfg.Window, upstreaminfra.WithWindowClock(a.Clock))
	}

	g.Breaker = upstreaminfra.NewBreaker(upstreaminfra.BreakerOptions{
		Name:             "clinic-api",
		FailureThreshold: cfg.Breaker.FailureThreshold,
		SuccessThreshold: cfg.Breaker.SuccessThreshold,
		OpenTimeout:      cfg.Breaker.OpenTimeout,
		OnStateChange: func(_, to upstreamdomain.BreakerState) {
			if to == upstreamdomain.StateClosed {
				log.WithField("upstream", a.Config.Upstream.BaseURL).Info("upstream recovered")
			}
		},
	})
	return g
}

func (a *App) buildResolver() (locationapp.Resolver, error) {
	cfg := a.Config.Location

	r := locationapp.Resolver{Remember: a.LastKnown.Remember, Clock: a.Clock}
	for _, st := range cfg.Steps {
		s, err := a.strategy(st.Strategy)
		if err != nil {
			return locationapp.Resolver{}, err
		}
		r.Steps = append(r.Steps, locationapp.Step{
			Strategy:     s,
			MaxAccuracyM: st.MaxAccuracyM,
			Timeout:      st.Timeout,
		})
	}
	return r, nil
}

func (a *App) strategy(name string) (locationdomain.Strategy, error) {
	cfg := a.Config.Location

	switch locationdomain.Method(strings.ToLower(strings.TrimSpace(name))) {
	case locationdomain.MethodHighAccuracy:
		return locationinfra.NewReported(locationdomain.MethodHighAccuracy, cfg.ReadingMaxAge, a.Clock), nil
	case locationdomain.MethodNetwork:
		return locationinfra.NewReported(locationdomain.MethodNetwork, cfg.ReadingMaxAge, a.Clock), nil
	case locationdomain.MethodGPSD:
		return locationinfra.NewGPSD(cfg.GPSDAddr, locationinfra.WithGPSDClock(a.Clock)), nil
	case locationdomain.MethodIP:
		return locationinfra.NewIPLookup(cfg.IPAPIURL,
			locationinfra.WithIPAccuracy(cfg.IPAccuracyM),
			locationinfra.WithIPClock(a.Clock),
			locationinfra.WithHTTPClient(&http.Client{Timeout: 5 * time.Second}),
		), nil
	case locationdomain.MethodCache:
		return a.LastKnown, nil
	case locationdomain.MethodDefault:
		return locationinfra.Fallback{
			Fix:   locationdomain.Fix{Lat: cfg.Default.Lat, Lon: cfg.Default.Lon, AccuracyM: cfg.Default.AccuracyM},
			Clock: a.Clock,
		}, nil
	}
	return nil, fmt.Errorf("unknown location strategy %q", name)
}

func (a *App) buildInbound() {
	cfg := a.Config

	if cfg.Stats.Redis && a.Redis != nil {
		a.Stats = ratelimitinfra.NewRedisStatsStore(
			a.Redis,
			ratelimitinfra.WithStatsPrefix(cfg.Stats.Prefix),
			ratelimitinfra.WithStatsTTL(cfg.Stats.TTL),
			ratelimitinfra.WithStatsBucket(cfg.Stats.Bucket),
			ratelimitinfra.WithStatsTrackKeys(cfg.Stats.TrackKeys),
		)
	} else {
		a.Stats = ratelimitinfra.NewMemoryStatsStore(ratelimitinfra.WithTrackKeys(cfg.Stats.TrackKeys))
	}

	if cfg.Rate.Enabled {
		a.RateStore = ratelimitinfra.NewStore(cfg.Rate.RPS, cfg.Rate.Burst, ratelimitinfra.WithStoreClock(a.Clock))
	}
	a.Concurrency = ratelimit.NewConcurrency(ratelimit.ConcurrencyOptions{
		Max:            cfg.Concurrency.Max,
		AcquireTimeout: cfg.Concurrency.Timeout,
		Stats:          a.Stats,
	})
}

// Handler devolve o gateway com os middlewares de entrada, de fora para dentro:
// request id, access log, rate limit (e chave do cliente), concorrência.
func (a *App) Handler() http.Handler {
	cfg := a.Config.Rate

	keyFn := ratelimit.DefaultKeyFunc(cfg.KeyHeader, cfg.TrustXFF)
	if cfg.JWTSecret != "" {
		keyFn = ratelimit.JWTSubjectKeyFunc([]byte(cfg.JWTSecret), keyFn)
	}

	opts := ratelimit.Options{
		Stats:               a.Stats,
		KeyFn:               keyFn,
		RetryAfter:          cfg.RetryAfter,
		AddRateLimitHeaders: cfg.AddHeaders,
	}
	if a.RateStore != nil {
		opts.Store = a.RateStore
	}

	h := http.Handler(a.Gateway.Routes())
	h = a.Concurrency.Middleware(h)
	h = ratelimit.Middleware(opts)(h)
	h = gateway.AccessLog(h)
	h = gateway.RequestID(h)
	return h
}

// StartJanitors liga as limpezas periódicas até ctx encerrar.
func (a *App) StartJanitors(ctx context.Context) {
	a.Cache.StartJanitor(ctx, a.Config.Cache.JanitorEvery)
	if a.RateStore != nil {
		a.RateStore.StartJanitor(ctx)
	}
}

func (a *App) Close() {
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
}

func sites(in []config.SiteConfig) []locationdomain.Site {
	out := make([]locationdomain.Site, 0, len(in))
	for _, s := range in {
		out = append(out, locationdomain.Site{Name: s.Name, Lat: s.Lat, Lon: s.Lon, RadiusM: s.RadiusM})
	}
	return out
}

func rules(in []config.InvalidateRule) []gateway.InvalidateRule {
	out := make([]gateway.InvalidateRule, 0, len(in))
	for _, r := range in {
		out = append(out, gateway.InvalidateRule{Method: r.Method, PathPrefix: r.PathPrefix, Prefixes: r.Prefixes})
	}
	return out
}
