package infra

import (
	"context"
	"fmt"
	"time"

	"clinic-gateway/location/domain"

	"github.com/jonboulle/clockwork"
)

// Reported usa as leituras que o cliente mandou junto com a consulta.
type Reported struct {
	method domain.Method
	maxAge time.Duration
	clock  clockwork.Clock
}

// NewReported aceita só leituras de method com idade <= maxAge (0 = sem limite).
func NewReported(method domain.Method, maxAge time.Duration, clock clockwork.Clock) *Reported {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Reported{method: method, maxAge: maxAge, clock: clock}
}

func (r *Reported) Method() domain.Method { return r.method }

func (r *Reported) Locate(_ context.Context, q domain.Query) (domain.Fix, error) {
	var (
		best  domain.Reading
		found bool
	)
	now := r.clock.Now()
	for _, rd := range q.Readings {
		if rd.Method != r.method || rd.Validate() != nil {
			continue
		}
		if r.maxAge > 0 && now.Sub(rd.At) > r.maxAge {
			continue
		}
		if !found || rd.At.After(best.At) {
			best, found = rd, true
		}
	}
	if !found {
		return domain.Fix{}, fmt.Errorf("%w: no recent %s reading", domain.ErrUnavailable, r.method)
	}
	return best.Fix(), nil
}
