package config

import (
	"os"
	"strconv"
	"time"
)

// applyEnv sobrescreve cfg com as variáveis de ambiente conhecidas.
// Valores inválidos são ignorados (mantém o que veio do YAML/padrão).
func applyEnv(cfg *Config) {
	cfg.ListenAddr = getenvDefault("LISTEN_ADDR", cfg.ListenAddr)
	cfg.Upstream.BaseURL = getenvDefault("UPSTREAM_URL", cfg.Upstream.BaseURL)
	cfg.Upstream.Timeout = getenvDurationDefault("UPSTREAM_TIMEOUT", cfg.Upstream.Timeout)

	cfg.Redis.Addr = getenvDefault("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getenvDefault("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getenvIntDefault("REDIS_DB", cfg.Redis.DB)

	cfg.Rate.Enabled = getenvBoolDefault("RATE_ENABLED", cfg.Rate.Enabled)
	cfg.Rate.RPS = getenvFloatDefault("RATE_RPS", cfg.Rate.RPS)
	// IMPORTANTE: o "burst" permite uma rajada inicial de requisições.
	// Com RPS muito baixo (ex: 0.02), o padrão 20 pode dar a impressão de que
	// o limiter não está funcionando, porque as primeiras ~20 passam.
	if burst, ok := getenvInt("RATE_BURST"); ok {
		cfg.Rate.Burst = burst
	} else if getenvIsSet("RATE_RPS") && cfg.Rate.RPS > 0 && cfg.Rate.RPS < 1 {
		cfg.Rate.Burst = 1
	}
	cfg.Rate.KeyHeader = getenvDefault("RATE_KEY_HEADER", cfg.Rate.KeyHeader)
	cfg.Rate.TrustXFF = getenvBoolDefault("TRUST_XFF", cfg.Rate.TrustXFF)
	cfg.Rate.RetryAfter = getenvDurationDefault("RETRY_AFTER", cfg.Rate.RetryAfter)
	cfg.Rate.AddHeaders = getenvBoolDefault("ADD_RATELIMIT_HEADERS", cfg.Rate.AddHeaders)
	cfg.Rate.JWTSecret = getenvDefault("JWT_SECRET", cfg.Rate.JWTSecret)

	cfg.Concurrency.Max = getenvIntDefault("CONCURRENCY_MAX", cfg.Concurrency.Max)
	cfg.Concurrency.Timeout = getenvDurationDefault("CONCURRENCY_TIMEOUT", cfg.Concurrency.Timeout)

	cfg.Stats.Redis = getenvBoolDefault("RATE_STATS_ENABLED", cfg.Stats.Redis)
	cfg.Stats.Prefix = getenvDefault("RATE_STATS_PREFIX", cfg.Stats.Prefix)
	cfg.Stats.TTL = getenvDurationDefault("RATE_STATS_TTL", cfg.Stats.TTL)
	cfg.Stats.Bucket = getenvDefault("RATE_STATS_BUCKET", cfg.Stats.Bucket)
	cfg.Stats.TrackKeys = getenvBoolDefault("RATE_STATS_TRACK_KEYS", cfg.Stats.TrackKeys)

	cfg.Cache.DefaultTTL = getenvDurationDefault("CACHE_DEFAULT_TTL", cfg.Cache.DefaultTTL)
	cfg.Cache.MaxEntries = getenvIntDefault("CACHE_MAX_ENTRIES", cfg.Cache.MaxEntries)
	cfg.Cache.StaleFor = getenvDurationDefault("CACHE_STALE_FOR", cfg.Cache.StaleFor)
	cfg.Cache.Persist = getenvBoolDefault("CACHE_PERSIST", cfg.Cache.Persist)

	cfg.Outbound.MaxRequests = getenvIntDefault("OUTBOUND_MAX_REQUESTS", cfg.Outbound.MaxRequests)
	cfg.Outbound.Window = getenvDurationDefault("OUTBOUND_WINDOW", cfg.Outbound.Window)
	cfg.Outbound.Shared = getenvBoolDefault("OUTBOUND_SHARED", cfg.Outbound.Shared)
	if n, ok := getenvInt("BREAKER_FAILURES"); ok && n > 0 {
		cfg.Outbound.Breaker.FailureThreshold = uint32(n)
	}
	if n, ok := getenvInt("BREAKER_SUCCESSES"); ok && n > 0 {
		cfg.Outbound.Breaker.SuccessThreshold = uint32(n)
	}
	cfg.Outbound.Breaker.OpenTimeout = getenvDurationDefault("BREAKER_OPEN_TIMEOUT", cfg.Outbound.Breaker.OpenTimeout)

	cfg.Location.GPSDAddr = getenvDefault("GPSD_ADDR", cfg.Location.GPSDAddr)
	cfg.Location.IPAPIURL = getenvDefault("IPAPI_URL", cfg.Location.IPAPIURL)
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvIntDefault(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getenvInt(k string) (int, bool) {
	v, ok := os.LookupEnv(k)
	if !ok || v == "" {
		return 0, false
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return i, true
}

func getenvIsSet(k string) bool {
	v, ok := os.LookupEnv(k)
	return ok && v != ""
}

func getenvFloatDefault(k string, def float64) float64 {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getenvBoolDefault(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getenvDurationDefault(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
