package application

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	cacheapp "clinic-gateway/cache/application"
	cachedomain "clinic-gateway/cache/domain"
	"clinic-gateway/upstream/domain"

	"github.com/apex/log"
)

const maxBodyBytes = 10 << 20

// headers repassados para a API; o resto fica no gateway.
var forwardHeaders = []string{"Authorization", "Accept", "Accept-Language", "Content-Type"}

type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
	// Scope separa o cache por cliente (ex: sujeito do JWT).
	Scope string
}

type Response struct {
	Status int
	Body   []byte
	Source cachedomain.Source
	Age    time.Duration
}

// Client fala com a API da clínica.
// Cache nil desliga cache e coalescência; Guard zero-value não limita nada.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Cache   *cacheapp.Manager
	Guard   Guard
}

// CacheKey monta "path?query@scope" (query ordenada por chave).
func CacheKey(r Request) string {
	k := strings.TrimPrefix(r.Path, "/")
	if len(r.Query) > 0 {
		k += "?" + r.Query.Encode()
	}
	if r.Scope != "" {
		k += "@" + r.Scope
	}
	return k
}

// CredentialScope devolve "auth:<hash>" do header Authorization, ou "" sem
// credencial. Duas credenciais diferentes nunca dividem entradas de cache.
func CredentialScope(h http.Header) string {
	v := strings.TrimSpace(h.Get("Authorization"))
	if v == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(v))
	return "auth:" + hex.EncodeToString(sum[:16])
}

// Get faz uma leitura com cache e coalescência por chave.
// Sem Scope, o escopo vem da credencial da requisição.
func (c *Client) Get(ctx context.Context, req Request) (Response, error) {
	req.Method = http.MethodGet
	if req.Scope == "" {
		req.Scope = CredentialScope(req.Header)
	}
	key := CacheKey(req)

	fetch := func(fctx context.Context) ([]byte, error) {
		body, err := c.Guard.Do(fctx, func() ([]byte, error) {
			_, body, err := c.roundTrip(fctx, req)
			return body, err
		})
		// 4xx: o recurso sumiu ou a credencial caiu; a cópia vencida não
		// pode mais ser servida
		var se *domain.StatusError
		if errors.As(err, &se) && se.ClientError() && c.Cache != nil {
			if ierr := c.Cache.Invalidate(fctx, key); ierr != nil {
				log.WithError(ierr).WithField("key", key).Warn("cache: invalidate after client error failed")
			}
		}
		return body, err
	}

	if c.Cache == nil {
		body, err := fetch(ctx)
		if err != nil {
			return Response{}, err
		}
		return Response{Status: http.StatusOK, Body: body, Source: cachedomain.SourceNetwork}, nil
	}

	e, err := c.Cache.GetOrFetch(ctx, key, fetch)
	if err != nil {
		return Response{}, err
	}
	return Response{
		Status: http.StatusOK,
		Body:   e.Data,
		Source: e.Source,
		Age:    e.Age(c.Cache.Now()),
	}, nil
}

// Do envia a requisição sem cache (escritas), ainda passando pelo Guard.
//
// A chamada não é cancelada se o cliente desistir no meio (só o prazo de ctx
// vale): a escrita termina e a desconexão não conta como falha da API.
func (c *Client) Do(ctx context.Context, req Request) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}
	rctx := context.WithoutCancel(ctx)
	if dl, ok := ctx.Deadline(); ok {
		var cancel context.CancelFunc
		rctx, cancel = context.WithDeadline(rctx, dl)
		defer cancel()
	}

	status := 0
	body, err := c.Guard.Do(rctx, func() ([]byte, error) {
		st, b, err := c.roundTrip(rctx, req)
		status = st
		return b, err
	})
	if err != nil {
		return Response{}, err
	}
	return Response{Status: status, Body: body, Source: cachedomain.SourceNetwork}, nil
}

func (c *Client) roundTrip(ctx context.Context, req Request) (int, []byte, error) {
	u := strings.TrimRight(c.BaseURL, "/") + "/" + strings.TrimLeft(req.Path, "/")
	if len(req.Query) > 0 {
		u += "?" + req.Query.Encode()
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	hr, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return 0, nil, err
	}
	for _, h := range forwardHeaders {
		if v := req.Header.Get(h); v != "" {
			hr.Header.Set(h, v)
		}
	}
	if hr.Header.Get("Accept") == "" {
		hr.Header.Set("Accept", "application/json")
	}

	hc := c.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(hr)
	if err != nil {
		return 0, nil, fmt.Errorf("%s %s: %w", method, req.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("%s %s: read body: %w", method, req.Path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, nil, &domain.StatusError{Status: resp.StatusCode, Body: b}
	}
	return resp.StatusCode, b, nil
}
