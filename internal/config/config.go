// Package config carrega a configuração do gateway: arquivo YAML opcional,
// sobrescrito por variáveis de ambiente e validado no final.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	ListenAddr  string            `yaml:"listen_addr" validate:"required"`
	Upstream    UpstreamConfig    `yaml:"upstream"`
	Redis       RedisConfig       `yaml:"redis"`
	Rate        RateConfig        `yaml:"rate"`
	Concurrency ConcurrencyConfig `yaml:"concurrency"`
	Stats       StatsConfig       `yaml:"stats"`
	Cache       CacheConfig       `yaml:"cache"`
	Outbound    OutboundConfig    `yaml:"outbound"`
	Location    LocationConfig    `yaml:"location"`
	Invalidate  []InvalidateRule  `yaml:"invalidate" validate:"dive"`
}

type UpstreamConfig struct {
	BaseURL string `yaml:"base_url" validate:"required,url"`
	// Timeout limita cada chamada; buscas compartilhadas do cache não têm
	// outro prazo.
	Timeout time.Duration `yaml:"timeout" validate:"gt=0"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db" validate:"gte=0"`
}

// RateConfig controla o limite de entrada (por cliente).
type RateConfig struct {
	Enabled    bool          `yaml:"enabled"`
	RPS        float64       `yaml:"rps" validate:"gt=0"`
	Burst      int           `yaml:"burst" validate:"gt=0"`
	KeyHeader  string        `yaml:"key_header"`
	TrustXFF   bool          `yaml:"trust_xff"`
	RetryAfter time.Duration `yaml:"retry_after"`
	AddHeaders bool          `yaml:"add_headers"`
	JWTSecret  string        `yaml:"jwt_secret"`
}

type ConcurrencyConfig struct {
	Max     int           `yaml:"max" validate:"gte=0"`
	Timeout time.Duration `yaml:"timeout" validate:"gte=0"`
}

type StatsConfig struct {
	Redis     bool          `yaml:"redis"`
	Prefix    string        `yaml:"prefix"`
	TTL       time.Duration `yaml:"ttl"`
	Bucket    string        `yaml:"bucket" validate:"oneof=minute none"`
	TrackKeys bool          `yaml:"track_keys"`
}

type CacheConfig struct {
	DefaultTTL   time.Duration  `yaml:"default_ttl" validate:"gte=0"`
	MaxEntries   int            `yaml:"max_entries" validate:"gte=0"`
	StaleFor     time.Duration  `yaml:"stale_for" validate:"gte=0"`
	JanitorEvery time.Duration  `yaml:"janitor_every" validate:"gte=0"`
	Persist      bool           `yaml:"persist"`
	Prefix       string         `yaml:"prefix"`
	Policies     []PolicyConfig `yaml:"policies" validate:"dive"`
}

type PolicyConfig struct {
	Prefix  string        `yaml:"prefix" validate:"required"`
	TTL     time.Duration `yaml:"ttl" validate:"gte=0"`
	Persist bool          `yaml:"persist"`
}

// OutboundConfig controla o que o gateway envia para a API da clínica.
type OutboundConfig struct {
	MaxRequests int           `yaml:"max_requests" validate:"gte=0"`
	Window      time.Duration `yaml:"window" validate:"gte=0"`
	Shared      bool          `yaml:"shared"`
	Breaker     BreakerConfig `yaml:"breaker"`
}

type BreakerConfig struct {
	FailureThreshold uint32        `yaml:"failure_threshold" validate:"gt=0"`
	SuccessThreshold uint32        `yaml:"success_threshold" validate:"gt=0"`
	OpenTimeout      time.Duration `yaml:"open_timeout" validate:"gt=0"`
}

type LocationConfig struct {
	ReadingMaxAge   time.Duration `yaml:"reading_max_age" validate:"gte=0"`
	LastKnownMaxAge time.Duration `yaml:"last_known_max_age" validate:"gte=0"`
	GPSDAddr        string        `yaml:"gpsd_addr"`
	IPAPIURL        string        `yaml:"ipapi_url" validate:"omitempty,url"`
	IPAccuracyM     float64       `yaml:"ip_accuracy_m" validate:"gte=0"`
	SlackM          float64       `yaml:"slack_m" validate:"gte=0"`
	Default         FixConfig     `yaml:"default"`
	Sites           []SiteConfig  `yaml:"sites" validate:"dive"`
	Steps           []StepConfig  `yaml:"steps" validate:"required,min=1,dive"`
}

type FixConfig struct {
	Lat       float64 `yaml:"lat" validate:"latitude"`
	Lon       float64 `yaml:"lon" validate:"longitude"`
	AccuracyM float64 `yaml:"accuracy_m" validate:"gte=0"`
}

type SiteConfig struct {
	Name    string  `yaml:"name" validate:"required"`
	Lat     float64 `yaml:"lat" validate:"latitude"`
	Lon     float64 `yaml:"lon" validate:"longitude"`
	RadiusM float64 `yaml:"radius_m" validate:"gt=0"`
}

type StepConfig struct {
	Strategy     string        `yaml:"strategy" validate:"oneof=high_accuracy network gpsd ip cache default"`
	MaxAccuracyM float64       `yaml:"max_accuracy_m" validate:"gte=0"`
	Timeout      time.Duration `yaml:"timeout" validate:"gte=0"`
}

// InvalidateRule diz quais prefixos do cache limpar depois de uma escrita
// bem-sucedida que casa com Method + PathPrefix.
type InvalidateRule struct {
	Method     string   `yaml:"method"`
	PathPrefix string   `yaml:"path_prefix" validate:"required"`
	Prefixes   []string `yaml:"prefixes" validate:"required,min=1"`
}

// Default devolve a configuração base; o YAML é decodificado por cima dela.
func Default() Config {
	return Config{
		ListenAddr: ":8080",
		Upstream:   UpstreamConfig{Timeout: 10 * time.Second},
		Rate: RateConfig{
			Enabled:    true,
			RPS:        10,
			Burst:      20,
			RetryAfter: 1 * time.Second,
		},
		Concurrency: ConcurrencyConfig{Max: 100},
		Stats: StatsConfig{
			Prefix: "ratelimit:stats",
			TTL:    24 * time.Hour,
			Bucket: "minute",
		},
		Cache: CacheConfig{
			DefaultTTL:   5 * time.Minute,
			MaxEntries:   5000,
			StaleFor:     30 * time.Minute,
			JanitorEvery: 1 * time.Minute,
			Prefix:       "clinic:cache",
			Policies: []PolicyConfig{
				{Prefix: "api/dashboard", TTL: 1 * time.Minute},
				{Prefix: "api/attendance", TTL: 5 * time.Minute, Persist: true},
				{Prefix: "api/schedules", TTL: 15 * time.Minute, Persist: true},
				{Prefix: "api/profile", TTL: 30 * time.Minute, Persist: true},
				{Prefix: "location/last", TTL: 24 * time.Hour, Persist: true},
			},
		},
		Outbound: OutboundConfig{
			MaxRequests: 60,
			Window:      1 * time.Minute,
			Breaker: BreakerConfig{
				FailureThreshold: 5,
				SuccessThreshold: 2,
				OpenTimeout:      30 * time.Second,
			},
		},
		Location: LocationConfig{
			ReadingMaxAge:   2 * time.Minute,
			LastKnownMaxAge: 30 * time.Minute,
			IPAPIURL:        "http://ip-api.com",
			IPAccuracyM:     5000,
			SlackM:          100,
			Default:         FixConfig{AccuracyM: 50000},
			Steps: []StepConfig{
				{Strategy: "high_accuracy", MaxAccuracyM: 100},
				{Strategy: "network", MaxAccuracyM: 1000},
				{Strategy: "ip", MaxAccuracyM: 10000, Timeout: 3 * time.Second},
				{Strategy: "cache", MaxAccuracyM: 1000},
				{Strategy: "default"},
			},
		},
	}
}

// Load lê o YAML em path (opcional), aplica o ambiente e valida.
func Load(path string) (Config, error) {
	cfg := Default()

	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, err
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validate(cfg Config) error {
	if strings.TrimSpace(cfg.Upstream.BaseURL) == "" {
		return errors.New("upstream.base_url is required")
	}
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	needsRedis := cfg.Stats.Redis || cfg.Cache.Persist || cfg.Outbound.Shared
	if needsRedis && strings.TrimSpace(cfg.Redis.Addr) == "" {
		return errors.New("redis.addr is required when stats.redis, cache.persist or outbound.shared is enabled")
	}
	if cfg.Outbound.MaxRequests > 0 && cfg.Outbound.Window <= 0 {
		return errors.New("outbound.window must be > 0 when outbound.max_requests is set")
	}
	for _, st := range cfg.Location.Steps {
		switch st.Strategy {
		case "gpsd":
			if strings.TrimSpace(cfg.Location.GPSDAddr) == "" {
				return errors.New("location.gpsd_addr is required for the gpsd step")
			}
		case "ip":
			if strings.TrimSpace(cfg.Location.IPAPIURL) == "" {
				return errors.New("location.ipapi_url is required for the ip step")
			}
		}
	}
	return nil
}
