package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	cacheapp "clinic-gateway/cache/application"
	"clinic-gateway/location/domain"

	"github.com/jonboulle/clockwork"
)

const lastKnownPrefix = "location/last@"

// LastKnown guarda a última posição medida de cada sujeito no cache
// (com a política do prefixo "location/last").
type LastKnown struct {
	cache  *cacheapp.Manager
	maxAge time.Duration
	clock  clockwork.Clock
}

func NewLastKnown(cache *cacheapp.Manager, maxAge time.Duration, clock clockwork.Clock) *LastKnown {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &LastKnown{cache: cache, maxAge: maxAge, clock: clock}
}

func LastKnownKey(subject string) string { return lastKnownPrefix + subject }

func (l *LastKnown) Method() domain.Method { return domain.MethodCache }

// Remember tem a assinatura de application.RememberFunc.
func (l *LastKnown) Remember(ctx context.Context, subject string, fix domain.Fix) error {
	b, err := json.Marshal(fix)
	if err != nil {
		return err
	}
	_, err = l.cache.Set(ctx, LastKnownKey(subject), b)
	return err
}

func (l *LastKnown) Locate(ctx context.Context, q domain.Query) (domain.Fix, error) {
	if q.Subject == "" {
		return domain.Fix{}, fmt.Errorf("%w: anonymous query", domain.ErrUnavailable)
	}
	e, ok := l.cache.Get(ctx, LastKnownKey(q.Subject))
	if !ok {
		return domain.Fix{}, fmt.Errorf("%w: no last known fix", domain.ErrUnavailable)
	}

	var fix domain.Fix
	if err := json.Unmarshal(e.Data, &fix); err != nil {
		return domain.Fix{}, fmt.Errorf("decode last known fix: %w", err)
	}
	if l.maxAge > 0 && l.clock.Since(fix.At) > l.maxAge {
		return domain.Fix{}, fmt.Errorf("%w: last known fix is %s old", domain.ErrUnavailable, l.clock.Since(fix.At).Round(time.Second))
	}
	fix.Method = domain.MethodCache
	return fix, nil
}
