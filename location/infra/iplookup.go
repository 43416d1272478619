package infra

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"strings"

	"clinic-gateway/location/domain"

	"github.com/jonboulle/clockwork"
	"github.com/tidwall/gjson"
)

// IPLookup consulta um serviço no formato do ip-api.com (GET /json/{ip}).
type IPLookup struct {
	baseURL   string
	client    *http.Client
	accuracyM float64
	clock     clockwork.Clock
}

type IPLookupOption func(*IPLookup)

func WithHTTPClient(c *http.Client) IPLookupOption {
	return func(l *IPLookup) { l.client = c }
}

// WithIPAccuracy define a precisão atribuída às posições por IP (metros).
func WithIPAccuracy(m float64) IPLookupOption {
	return func(l *IPLookup) { l.accuracyM = m }
}

func WithIPClock(c clockwork.Clock) IPLookupOption {
	return func(l *IPLookup) { l.clock = c }
}

func NewIPLookup(baseURL string, opts ...IPLookupOption) *IPLookup {
	l := &IPLookup{
		baseURL:   strings.TrimRight(baseURL, "/"),
		client:    http.DefaultClient,
		accuracyM: 5000,
		clock:     clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *IPLookup) Method() domain.Method { return domain.MethodIP }

func (l *IPLookup) Locate(ctx context.Context, q domain.Query) (domain.Fix, error) {
	ip, err := netip.ParseAddr(strings.TrimSpace(q.ClientIP))
	if err != nil {
		return domain.Fix{}, fmt.Errorf("%w: invalid client ip %q", domain.ErrUnavailable, q.ClientIP)
	}
	ip = ip.Unmap()
	if ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() || ip.IsLinkLocalUnicast() {
		return domain.Fix{}, fmt.Errorf("%w: non-public client ip %s", domain.ErrUnavailable, ip)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.baseURL+"/json/"+ip.String(), nil)
	if err != nil {
		return domain.Fix{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return domain.Fix{}, fmt.Errorf("ip lookup: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return domain.Fix{}, fmt.Errorf("ip lookup: read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return domain.Fix{}, fmt.Errorf("ip lookup: status %d", resp.StatusCode)
	}

	res := gjson.ParseBytes(body)
	if st := res.Get("status").String(); st != "success" {
		return domain.Fix{}, fmt.Errorf("%w: ip lookup %s: %s", domain.ErrUnavailable, st, res.Get("message").String())
	}
	lat, lon := res.Get("lat"), res.Get("lon")
	if !lat.Exists() || !lon.Exists() {
		return domain.Fix{}, fmt.Errorf("%w: ip lookup without coordinates", domain.ErrUnavailable)
	}

	return domain.Fix{
		Lat:       lat.Float(),
		Lon:       lon.Float(),
		AccuracyM: l.accuracyM,
		Method:    domain.MethodIP,
		At:        l.clock.Now(),
	}, nil
}
