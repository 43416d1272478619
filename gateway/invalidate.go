package gateway

import (
	"net/http"
	"strings"
)

// InvalidateRule: depois de uma escrita bem-sucedida que casa com Method
// (vazio = qualquer) e PathPrefix, limpa os Prefixes do cache.
type InvalidateRule struct {
	Method     string
	PathPrefix string
	Prefixes   []string
}

// prefixesFor devolve o que limpar para uma escrita em path. Sem regra,
// limpa o recurso (dois primeiros segmentos: "/api/attendance/check-in"
// vira "api/attendance").
func prefixesFor(rules []InvalidateRule, method, path string) []string {
	var out []string
	for _, rule := range rules {
		if rule.Method != "" && !strings.EqualFold(rule.Method, method) {
			continue
		}
		if strings.HasPrefix(path, rule.PathPrefix) {
			out = append(out, rule.Prefixes...)
		}
	}
	if len(out) > 0 {
		return out
	}

	segs := strings.Split(strings.Trim(path, "/"), "/")
	if len(segs) > 2 {
		segs = segs[:2]
	}
	if p := strings.Join(segs, "/"); p != "" {
		return []string{p}
	}
	return nil
}

func isWrite(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}
