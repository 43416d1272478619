package infra

import (
	"bufio"
	"context"
	"fmt"
	"math"
	"net"
	"strings"
	"time"

	"clinic-gateway/location/domain"

	"github.com/jonboulle/clockwork"
	"github.com/tidwall/gjson"
)

const gpsdDefaultAddr = "127.0.0.1:2947"

// GPSD lê a posição de um gpsd (receptor do posto fixo da unidade).
type GPSD struct {
	addr  string
	clock clockwork.Clock
}

type GPSDOption func(*GPSD)

func WithGPSDClock(c clockwork.Clock) GPSDOption {
	return func(g *GPSD) { g.clock = c }
}

func NewGPSD(addr string, opts ...GPSDOption) *GPSD {
	if strings.TrimSpace(addr) == "" {
		addr = gpsdDefaultAddr
	}
	g := &GPSD{addr: addr, clock: clockwork.NewRealClock()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *GPSD) Method() domain.Method { return domain.MethodGPSD }

// Locate conecta, liga o WATCH em JSON e espera o primeiro TPV com fix 2D/3D.
// Sem prazo no ctx a leitura não termina sozinha: o Resolver sempre passa Timeout.
func (g *GPSD) Locate(ctx context.Context, _ domain.Query) (domain.Fix, error) {
	d := &net.Dialer{Timeout: 2 * time.Second}
	conn, err := d.DialContext(ctx, "tcp", g.addr)
	if err != nil {
		return domain.Fix{}, fmt.Errorf("%w: gpsd dial: %v", domain.ErrUnavailable, err)
	}
	defer func() { _ = conn.Close() }()

	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}
	// fecha a conexão se o ctx for cancelado sem prazo
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	// scaled=true devolve metros e graus
	if _, err := conn.Write([]byte("?WATCH={\"enable\":true,\"json\":true,\"scaled\":true}\n")); err != nil {
		return domain.Fix{}, fmt.Errorf("gpsd watch: %w", err)
	}

	sc := bufio.NewScanner(conn)
	for sc.Scan() {
		if fix, ok := g.parseTPV(sc.Text()); ok {
			return fix, nil
		}
	}
	if err := ctx.Err(); err != nil {
		return domain.Fix{}, err
	}
	if err := sc.Err(); err != nil {
		return domain.Fix{}, fmt.Errorf("gpsd read: %w", err)
	}
	return domain.Fix{}, fmt.Errorf("%w: gpsd closed without a fix", domain.ErrUnavailable)
}

func (g *GPSD) parseTPV(line string) (domain.Fix, bool) {
	if !gjson.Valid(line) {
		return domain.Fix{}, false
	}
	msg := gjson.Parse(line)
	if !strings.EqualFold(msg.Get("class").String(), "TPV") || msg.Get("mode").Int() < 2 {
		return domain.Fix{}, false
	}
	lat, lon := msg.Get("lat"), msg.Get("lon")
	if !lat.Exists() || !lon.Exists() {
		return domain.Fix{}, false
	}

	fix := domain.Fix{
		Lat:    lat.Float(),
		Lon:    lon.Float(),
		Method: domain.MethodGPSD,
		At:     g.clock.Now(),
	}
	if ts, err := time.Parse(time.RFC3339Nano, msg.Get("time").String()); err == nil {
		fix.At = ts
	}

	switch {
	case msg.Get("eph").Exists():
		fix.AccuracyM = msg.Get("eph").Float()
	case msg.Get("epx").Exists() || msg.Get("epy").Exists():
		fix.AccuracyM = math.Max(msg.Get("epx").Float(), msg.Get("epy").Float())
	default:
		// sem estimativa de erro: não dá para comparar com o limite da etapa
		return domain.Fix{}, false
	}
	return fix, true
}
