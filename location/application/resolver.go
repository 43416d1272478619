package application

import (
	"context"
	"fmt"
	"time"

	"clinic-gateway/location/domain"

	"github.com/apex/log"
	"github.com/jonboulle/clockwork"
)

// Step é uma etapa da cascata. MaxAccuracyM == 0 aceita qualquer precisão;
// Timeout == 0 usa só o contexto do chamador.
type Step struct {
	Strategy     domain.Strategy
	MaxAccuracyM float64
	Timeout      time.Duration
}

// RememberFunc guarda a última posição medida do sujeito.
type RememberFunc func(ctx context.Context, subject string, fix domain.Fix) error

type Attempt struct {
	Method    domain.Method `json:"method"`
	AccuracyM float64       `json:"accuracy_m,omitempty"`
	Accepted  bool          `json:"accepted"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration_ns"`
}

type Result struct {
	Fix      domain.Fix `json:"fix"`
	Attempts []Attempt  `json:"attempts"`
}

type Resolver struct {
	Steps    []Step
	Remember RememberFunc
	Clock    clockwork.Clock
}

// Resolve tenta as etapas em ordem e para na primeira posição aceitável.
// Sem nenhuma, devolve domain.ErrNoFix junto com as tentativas.
func (r Resolver) Resolve(ctx context.Context, q domain.Query) (Result, error) {
	clock := r.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	var res Result
	for _, st := range r.Steps {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		start := clock.Now()
		fix, err := r.try(ctx, st, q)
		at := Attempt{Method: st.Strategy.Method(), Duration: clock.Since(start)}

		switch {
		case err != nil:
			at.Error = err.Error()
		case st.MaxAccuracyM > 0 && fix.AccuracyM > st.MaxAccuracyM:
			at.AccuracyM = fix.AccuracyM
			at.Error = fmt.Sprintf("accuracy %.0fm above limit %.0fm", fix.AccuracyM, st.MaxAccuracyM)
		default:
			at.AccuracyM = fix.AccuracyM
			at.Accepted = true
		}
		res.Attempts = append(res.Attempts, at)

		if !at.Accepted {
			log.WithFields(log.Fields{
				"subject": q.Subject,
				"method":  at.Method,
				"reason":  at.Error,
			}).Debug("location step rejected")
			continue
		}

		if fix.Method == "" {
			fix.Method = at.Method
		}
		res.Fix = fix
		r.remember(ctx, q.Subject, fix)
		return res, nil
	}
	return res, domain.ErrNoFix
}

func (r Resolver) try(ctx context.Context, st Step, q domain.Query) (domain.Fix, error) {
	if st.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, st.Timeout)
		defer cancel()
	}
	return st.Strategy.Locate(ctx, q)
}

func (r Resolver) remember(ctx context.Context, subject string, fix domain.Fix) {
	if r.Remember == nil || subject == "" || !fix.Method.Live() {
		return
	}
	if err := r.Remember(ctx, subject, fix); err != nil {
		log.WithError(err).WithField("subject", subject).Warn("failed to store last known location")
	}
}
