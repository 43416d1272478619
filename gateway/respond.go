package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"clinic-gateway/middleware/ratelimit"
	"clinic-gateway/upstream/domain"

	"github.com/apex/log"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Debug("gateway: write response failed")
	}
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeUpstreamError traduz erros das chamadas de saída:
// limite local 429, circuito aberto 503, status da API repassado,
// falha de transporte 502.
func writeUpstreamError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		rl *domain.RateLimitError
		se *domain.StatusError
	)
	switch {
	case errors.As(err, &rl):
		w.Header().Set("Retry-After", ratelimit.RetryAfterSeconds(rl.RetryAfter))
		writeMessage(w, http.StatusTooManyRequests, "upstream rate limit reached")
	case errors.Is(err, domain.ErrCircuitOpen):
		writeMessage(w, http.StatusServiceUnavailable, "upstream unavailable (circuit open)")
	case errors.As(err, &se):
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(se.Status)
		_, _ = w.Write(se.Body)
	case r.Context().Err() != nil:
		// cliente desistiu; ninguém vai ler a resposta
		w.WriteHeader(499)
	default:
		log.WithError(err).WithField("path", r.URL.Path).Error("upstream request failed")
		writeMessage(w, http.StatusBadGateway, "bad gateway")
	}
}
