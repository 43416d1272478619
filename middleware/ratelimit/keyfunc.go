package ratelimit

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v4"
)

type KeyFunc func(r *http.Request) string

type keyCtx struct{}

// WithKey guarda a chave do cliente no contexto.
func WithKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, keyCtx{}, key)
}

// KeyFromContext devolve a chave resolvida pelo Middleware ("" fora dele).
func KeyFromContext(ctx context.Context) string {
	k, _ := ctx.Value(keyCtx{}).(string)
	return k
}

// DefaultKeyFunc usa, nesta ordem: keyHeader, primeiro IP do X-Forwarded-For
// (só com trustXFF) e o host de RemoteAddr.
func DefaultKeyFunc(keyHeader string, trustXFF bool) KeyFunc {
	return func(r *http.Request) string {
		if keyHeader != "" {
			if v := strings.TrimSpace(r.Header.Get(keyHeader)); v != "" {
				return v
			}
		}
		if trustXFF {
			if ip := FirstForwardedFor(r); ip != "" {
				return ip
			}
		}
		return RemoteHost(r)
	}
}

// FirstForwardedFor devolve o cliente original do X-Forwarded-For.
func FirstForwardedFor(r *http.Request) string {
	xff := r.Header.Get("X-Forwarded-For")
	if xff == "" {
		return ""
	}
	first, _, _ := strings.Cut(xff, ",")
	return strings.TrimSpace(first)
}

func RemoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}

// JWTSubjectKeyFunc usa o "sub" de um Bearer HS256 válido como chave
// ("sub:<id>"). Token ausente, inválido ou sem sub cai em fallback.
func JWTSubjectKeyFunc(secret []byte, fallback KeyFunc) KeyFunc {
	return func(r *http.Request) string {
		if sub, err := BearerSubject(r, secret); err == nil {
			return "sub:" + sub
		}
		return fallback(r)
	}
}

// BearerSubject valida o token do header Authorization e devolve o claim sub.
func BearerSubject(r *http.Request, secret []byte) (string, error) {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return "", fmt.Errorf("missing bearer token")
	}
	raw := strings.TrimSpace(h[7:])

	tok, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok || !tok.Valid {
		return "", fmt.Errorf("invalid token claims")
	}

	switch sub := claims["sub"].(type) {
	case string:
		if s := strings.TrimSpace(sub); s != "" {
			return s, nil
		}
	case float64:
		// Laravel/Sanctum costuma emitir o id numérico
		return formatFloat(sub), nil
	}
	return "", fmt.Errorf("token without sub")
}
