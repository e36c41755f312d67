package expose_test

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjaus/expose"
)

func TestRecovery(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	reg := expose.New()
	reg.Use(expose.Recovery(slog.New(slog.NewTextHandler(&buf, nil))))

	reg.Get("/panic", &expose.Function{
		Name: "panic",
		Call: func(context.Context, expose.Args) (any, error) {
			panic("boom")
		},
	})

	srv := httptest.NewServer(reg)
	defer srv.Close()

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL+"/panic", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { require.NoError(t, resp.Body.Close()) }()

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "application/problem+json", resp.Header.Get("Content-Type"))
}

func TestRecovery_hidesPanicValue(t *testing.T) {
	t.Parallel()

	reg := expose.New()
	reg.Use(expose.Recovery(slog.New(slog.DiscardHandler)))
	reg.Get("/panic", &expose.Function{
		Name: "panic",
		Call: func(context.Context, expose.Args) (any, error) {
			panic("database password is hunter2")
		},
	})

	rec := serve(t, reg, http.MethodGet, "/panic", nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "hunter2")
	assert.JSONEq(t, `{"type":"about:blank","title":"Internal Server Error","status":500}`, rec.Body.String())
}

func TestMiddleware_ordering(t *testing.T) {
	t.Parallel()

	var order []string
	mark := func(name string) expose.Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				order = append(order, name)
				w.Header().Set("X-"+name, "1")
				next.ServeHTTP(w, req)
			})
		}
	}

	reg := expose.New()
	reg.Use(mark("First"))
	reg.Use(mark("Second"))
	reg.Get("/test", constant("test", map[string]string{"value": "ok"}))

	rec := serve(t, reg, http.MethodGet, "/test", nil)

	assert.Equal(t, "1", rec.Header().Get("X-First"))
	assert.Equal(t, "1", rec.Header().Get("X-Second"))
	assert.Equal(t, []string{"First", "Second"}, order)
	assert.JSONEq(t, `{"value":"ok"}`, rec.Body.String())
}

func TestMiddleware_seesVersionPrefix(t *testing.T) {
	t.Parallel()

	var seen string
	reg := expose.New()
	reg.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			seen = req.URL.Path
			next.ServeHTTP(w, req)
		})
	})
	reg.Get("/echo", echo(), expose.Versions(expose.Version(1)))

	rec := serve(t, reg, http.MethodGet, "/v1/echo?text=hi", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/v1/echo", seen)
}
