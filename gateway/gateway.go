package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	cacheapp "clinic-gateway/cache/application"
	cachedomain "clinic-gateway/cache/domain"
	locationapp "clinic-gateway/location/application"
	locationdomain "clinic-gateway/location/domain"
	"clinic-gateway/middleware/ratelimit"
	ratelimitdomain "clinic-gateway/middleware/ratelimit/domain"
	upstreamapp "clinic-gateway/upstream/application"

	"github.com/apex/log"
	"github.com/jonboulle/clockwork"
)

const maxRequestBody = 1 << 20

// Gateway junta as peças; campos nil desligam a rota correspondente
// (Resolver sem Steps responde 404 em /location/resolve).
type Gateway struct {
	Client   *upstreamapp.Client
	Cache    *cacheapp.Manager
	Resolver locationapp.Resolver
	Sites    []locationdomain.Site
	SlackM   float64
	Rules    []InvalidateRule

	// TrustXFF faz o IP do cliente (estratégia ip) vir do X-Forwarded-For.
	TrustXFF bool
	// JWTSecret, quando definido, usa o sub do token como escopo do cache.
	JWTSecret []byte

	InboundStats ratelimitdomain.StatsReader
	Concurrency  *ratelimit.Concurrency

	Clock clockwork.Clock
}

func (g *Gateway) now() time.Time {
	if g.Clock == nil {
		return time.Now()
	}
	return g.Clock.Now()
}

// Routes monta o mux. Os middlewares de entrada ficam por conta de quem chama.
func (g *Gateway) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", g.healthz)
	mux.HandleFunc("GET /debug/stats", g.stats)
	mux.HandleFunc("DELETE /cache", g.purge)
	mux.HandleFunc("POST /cache/warm", g.warm)
	if len(g.Resolver.Steps) > 0 {
		mux.HandleFunc("POST /location/resolve", g.resolve)
	}
	mux.HandleFunc("GET /api/", g.read)
	mux.HandleFunc("/api/", g.write)
	return mux
}

func (g *Gateway) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (g *Gateway) read(w http.ResponseWriter, r *http.Request) {
	resp, err := g.Client.Get(r.Context(), upstreamapp.Request{
		Path:   r.URL.Path,
		Query:  r.URL.Query(),
		Header: r.Header,
		Scope:  g.scope(r),
	})
	if err != nil {
		writeUpstreamError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Cache", string(resp.Source))
	w.Header().Set("Age", strconv.Itoa(int(resp.Age.Seconds())))
	w.WriteHeader(resp.Status)
	_, _ = w.Write(resp.Body)
}

func (g *Gateway) write(w http.ResponseWriter, r *http.Request) {
	if !isWrite(r.Method) {
		w.Header().Set("Allow", "GET, POST, PUT, PATCH, DELETE")
		writeMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "cannot read body")
		return
	}

	resp, err := g.Client.Do(r.Context(), upstreamapp.Request{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.Query(),
		Header: r.Header,
		Body:   body,
	})
	if err != nil {
		writeUpstreamError(w, r, err)
		return
	}

	if g.Cache != nil {
		// a escrita já aconteceu; falha ao limpar só vai para o log
		ctx := context.WithoutCancel(r.Context())
		for _, p := range prefixesFor(g.Rules, r.Method, r.URL.Path) {
			if _, err := g.Cache.InvalidatePrefix(ctx, p); err != nil {
				log.WithError(err).WithField("prefix", p).Warn("cache invalidation failed")
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.Status)
	_, _ = w.Write(resp.Body)
}

type resolveRequest struct {
	Readings []locationdomain.Reading `json:"readings"`
}

type resolveResponse struct {
	Fix      *locationdomain.Fix   `json:"fix,omitempty"`
	Attempts []locationapp.Attempt `json:"attempts"`
	Geofence *locationapp.Geofence `json:"geofence,omitempty"`
	Error    string                `json:"error,omitempty"`
}

func (g *Gateway) resolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeMessage(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	for i, rd := range req.Readings {
		if err := rd.Validate(); err != nil {
			writeMessage(w, http.StatusBadRequest, "reading "+strconv.Itoa(i)+": "+err.Error())
			return
		}
	}

	clientIP := ratelimit.RemoteHost(r)
	if g.TrustXFF {
		if ip := ratelimit.FirstForwardedFor(r); ip != "" {
			clientIP = ip
		}
	}

	res, err := g.Resolver.Resolve(r.Context(), locationdomain.Query{
		Subject:  g.scope(r),
		ClientIP: clientIP,
		Readings: req.Readings,
	})
	out := resolveResponse{Attempts: res.Attempts}
	if err != nil {
		out.Error = err.Error()
		status := http.StatusServiceUnavailable
		if !errors.Is(err, locationdomain.ErrNoFix) {
			status = http.StatusGatewayTimeout
		}
		writeJSON(w, status, out)
		return
	}

	out.Fix = &res.Fix
	if gf, ok := locationapp.Check(res.Fix, g.Sites, g.SlackM); ok {
		out.Geofence = &gf
	}
	writeJSON(w, http.StatusOK, out)
}

type statsResponse struct {
	Cache       cachedomain.Stats              `json:"cache"`
	Pending     []string                       `json:"pending"`
	Outbound    upstreamapp.GuardStats         `json:"outbound"`
	Inbound     *ratelimitdomain.StatsSnapshot `json:"inbound,omitempty"`
	Concurrency *concurrencyStats              `json:"concurrency,omitempty"`
}

type concurrencyStats struct {
	InUse int `json:"in_use"`
	Max   int `json:"max"`
}

func (g *Gateway) stats(w http.ResponseWriter, r *http.Request) {
	var out statsResponse
	if g.Cache != nil {
		out.Cache = g.Cache.Stats()
		out.Pending = g.Cache.Pending()
	}
	if g.Client != nil {
		out.Outbound = g.Client.Guard.Stats(r.Context())
	}
	if g.InboundStats != nil {
		snap, err := g.InboundStats.Snapshot(r.Context())
		if err != nil {
			log.WithError(err).Warn("inbound stats unavailable")
		} else {
			out.Inbound = &snap
		}
	}
	if g.Concurrency != nil {
		inUse, max := g.Concurrency.Usage()
		out.Concurrency = &concurrencyStats{InUse: inUse, Max: max}
	}
	writeJSON(w, http.StatusOK, out)
}

func (g *Gateway) purge(w http.ResponseWriter, r *http.Request) {
	if g.Cache == nil {
		writeMessage(w, http.StatusNotFound, "cache disabled")
		return
	}
	prefix := strings.TrimSpace(r.URL.Query().Get("prefix"))
	if prefix == "" {
		writeMessage(w, http.StatusBadRequest, "prefix is required")
		return
	}
	n, err := g.Cache.InvalidatePrefix(r.Context(), prefix)
	if err != nil {
		log.WithError(err).WithField("prefix", prefix).Error("cache purge failed")
		writeMessage(w, http.StatusInternalServerError, "cache purge failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"prefix": prefix, "removed": n})
}

// warm aquece presença, escala e painel do cliente que chamou.
func (g *Gateway) warm(w http.ResponseWriter, r *http.Request) {
	if err := g.Client.Prefetch(r.Context(), g.scope(r), g.now(), r.Header); err != nil {
		writeUpstreamError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
