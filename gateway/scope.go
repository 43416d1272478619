package gateway

import (
	"net/http"

	"clinic-gateway/middleware/ratelimit"
	upstreamapp "clinic-gateway/upstream/application"
)

// scope separa cache e última posição por credencial, nunca por IP ou
// header livre: sub de um JWT válido quando há segredo, senão o hash do
// Authorization. Sem credencial o escopo é vazio (anônimo).
func (g *Gateway) scope(r *http.Request) string {
	if len(g.JWTSecret) > 0 {
		if sub, err := ratelimit.BearerSubject(r, g.JWTSecret); err == nil {
			return "sub:" + sub
		}
	}
	return upstreamapp.CredentialScope(r.Header)
}
