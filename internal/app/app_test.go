package app

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"clinic-gateway/internal/config"
	ratelimitinfra "clinic-gateway/middleware/ratelimit/infra"
	upstreamapp "clinic-gateway/upstream/application"
	upstreaminfra "clinic-gateway/upstream/infra"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T, api string) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Upstream.BaseURL = api
	cfg.Location.Sites = []config.SiteConfig{{Name: "centro", Lat: -23.55, Lon: -46.63, RadiusM: 200}}
	cfg.Location.Default = config.FixConfig{Lat: -23.55, Lon: -46.63, AccuracyM: 50000}
	return cfg
}

func fakeAPI(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"data":[]}`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestBuild_MemoryOnly(t *testing.T) {
	api := fakeAPI(t)
	a, err := Build(context.Background(), testConfig(t, api.URL))
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.Redis)
	assert.Len(t, a.Resolver.Steps, 5)
	assert.IsType(t, &upstreaminfra.SlidingWindow{}, a.Client.Guard.Window)
	assert.IsType(t, &ratelimitinfra.MemoryStatsStore{}, a.Stats)
	require.NotNil(t, a.Gateway.InboundStats)

	h := a.Handler()
	r := httptest.NewRequest(http.MethodGet, "/api/dashboard/stats", nil)
	r.RemoteAddr = "10.0.0.5:1000"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "network", w.Header().Get("X-Cache"))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestBuild_WithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	api := fakeAPI(t)

	cfg := testConfig(t, api.URL)
	cfg.Redis.Addr = mr.Addr()
	cfg.Cache.Persist = true
	cfg.Outbound.Shared = true
	cfg.Stats.Redis = true

	a, err := Build(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()

	assert.IsType(t, &upstreaminfra.RedisWindow{}, a.Client.Guard.Window)
	assert.IsType(t, &ratelimitinfra.RedisStatsStore{}, a.Stats)

	// attendance persiste: a resposta vai para o Redis também
	r := httptest.NewRequest(http.MethodGet, "/api/attendance?date=2026-03-02", nil)
	r.RemoteAddr = "10.0.0.5:1000"
	r.Header.Set("Authorization", "Bearer ana")
	w := httptest.NewRecorder()
	a.Handler().ServeHTTP(w, r)
	require.Equal(t, http.StatusOK, w.Code)

	// escopo é a credencial, não o IP
	keys := mr.Keys()
	assert.Contains(t, keys, "clinic:cache:api/attendance?date=2026-03-02@"+upstreamapp.CredentialScope(r.Header))
	assert.Contains(t, keys, "ratelimit:stats:total")
}

func TestBuild_RedisDown(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	cfg.Redis.Addr = "127.0.0.1:1"
	cfg.Cache.Persist = true

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := Build(ctx, cfg)
	assert.ErrorContains(t, err, "redis ping")
}

func TestBuild_UnknownStrategy(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	cfg.Location.Steps = []config.StepConfig{{Strategy: "satellite-phone"}}

	_, err := Build(context.Background(), cfg)
	assert.ErrorContains(t, err, "unknown location strategy")
}
