package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

var secret = []byte("test-secret")

func signed(t *testing.T, method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func TestDefaultKeyFunc_PrefersHeaderWhenSet(t *testing.T) {
	fn := DefaultKeyFunc("X-Client", false)

	r := httptest.NewRequest(http.MethodGet, "http://gateway/", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	r.Header.Set("X-Client", " client-123 ")

	if got := fn(r); got != "client-123" {
		t.Fatalf("expected header key, got %q", got)
	}
}

func TestDefaultKeyFunc_TrustXForwardedForUsesFirstIP(t *testing.T) {
	fn := DefaultKeyFunc("", true)

	r := httptest.NewRequest(http.MethodGet, "http://gateway/", nil)
	r.RemoteAddr = "10.0.0.9:5555"
	r.Header.Set("X-Forwarded-For", "1.2.3.4, 5.6.7.8")

	if got := fn(r); got != "1.2.3.4" {
		t.Fatalf("expected first XFF ip, got %q", got)
	}
}

func TestDefaultKeyFunc_IgnoresXForwardedForWhenUntrusted(t *testing.T) {
	fn := DefaultKeyFunc("", false)

	r := httptest.NewRequest(http.MethodGet, "http://gateway/", nil)
	r.RemoteAddr = "10.0.0.9:5555"
	r.Header.Set("X-Forwarded-For", "1.2.3.4")

	if got := fn(r); got != "10.0.0.9" {
		t.Fatalf("expected remote host, got %q", got)
	}
}

func TestJWTSubjectKeyFunc(t *testing.T) {
	fn := JWTSubjectKeyFunc(secret, DefaultKeyFunc("", false))
	future := time.Now().Add(time.Hour).Unix()

	cases := []struct {
		name string
		auth string
		want string
	}{
		{"string sub", "Bearer " + signed(t, jwt.SigningMethodHS256, secret, jwt.MapClaims{"sub": "nurse-42", "exp": future}), "sub:nurse-42"},
		{"numeric sub", "bearer " + signed(t, jwt.SigningMethodHS256, secret, jwt.MapClaims{"sub": 17}), "sub:17"},
		{"wrong secret", "Bearer " + signed(t, jwt.SigningMethodHS256, []byte("other"), jwt.MapClaims{"sub": "x"}), "10.0.0.7"},
		{"expired", "Bearer " + signed(t, jwt.SigningMethodHS256, secret, jwt.MapClaims{"sub": "x", "exp": time.Now().Add(-time.Hour).Unix()}), "10.0.0.7"},
		{"no sub", "Bearer " + signed(t, jwt.SigningMethodHS256, secret, jwt.MapClaims{"role": "admin"}), "10.0.0.7"},
		{"alg none", "Bearer " + signed(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, jwt.MapClaims{"sub": "x"}), "10.0.0.7"},
		{"no header", "", "10.0.0.7"},
		{"basic auth", "Basic dXNlcjpwYXNz", "10.0.0.7"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "http://gateway/", nil)
			r.RemoteAddr = "10.0.0.7:4000"
			if tc.auth != "" {
				r.Header.Set("Authorization", tc.auth)
			}
			if got := fn(r); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestRetryAfterSeconds(t *testing.T) {
	cases := map[time.Duration]string{
		0:                       "1",
		300 * time.Millisecond:  "1",
		2500 * time.Millisecond: "3",
		4 * time.Second:         "4",
	}
	for d, want := range cases {
		if got := RetryAfterSeconds(d); got != want {
			t.Fatalf("RetryAfterSeconds(%s) = %q, want %q", d, got, want)
		}
	}
}
