package expose_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjaus/expose"
)

func TestExpandPaths(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		path string
		opts []expose.RouteOption
		want []string
	}{
		"plain": {
			path: "/echo",
			want: []string{"/echo"},
		},
		"suffixes": {
			path: "/echo",
			opts: []expose.RouteOption{expose.Suffixes(".json", "/")},
			want: []string{"/echo", "/echo.json", "/echo/"},
		},
		"prefixes": {
			path: "/echo",
			opts: []expose.RouteOption{expose.Prefixes("/api")},
			want: []string{"/echo", "/api/echo"},
		},
		"prefixes and suffixes": {
			path: "/echo",
			opts: []expose.RouteOption{expose.Prefixes("/api"), expose.Suffixes(".json")},
			want: []string{"/echo", "/echo.json", "/api/echo", "/api/echo.json"},
		},
		"urls": {
			path: "/echo",
			opts: []expose.RouteOption{expose.URLs("/say", "/repeat")},
			want: []string{"/echo", "/say", "/repeat"},
		},
		"urls include path": {
			path: "/say",
			opts: []expose.RouteOption{expose.URLs("/say", "/repeat")},
			want: []string{"/say", "/repeat"},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, expose.ExpandPaths(tt.path, tt.opts...))
		})
	}
}

func TestRouteConfig_With_leavesParentUnchanged(t *testing.T) {
	t.Parallel()

	parent := expose.NewRoute(expose.Examples("a=1"))
	child := parent.With(expose.Examples("b=2"))

	reg := expose.New()
	reg.Get("/parent", echo(), func(c *expose.RouteConfig) { *c = parent })
	reg.Get("/child", echo(), func(c *expose.RouteConfig) { *c = child })

	doc := reg.Documentation(expose.NoVersion)
	assert.Equal(t, []string{"/parent?a=1"}, doc.Handlers["/parent"]["GET"].Examples)
	assert.Equal(t, []string{"/child?a=1", "/child?b=2"}, doc.Handlers["/child"]["GET"].Examples)
}

func TestRouteOptions_headers(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		opts    []expose.RouteOption
		headers []string
		want    map[string]string
	}{
		"cache public": {
			opts: []expose.RouteOption{expose.Cache(30*time.Second, false)},
			want: map[string]string{"Cache-Control": "public, max-age=30"},
		},
		"cache private": {
			opts: []expose.RouteOption{expose.Cache(time.Minute, true)},
			want: map[string]string{"Cache-Control": "private, max-age=60"},
		},
		"response headers": {
			opts: []expose.RouteOption{
				expose.ResponseHeaders(expose.Header{Name: "X-One", Value: "1"}),
				expose.AddResponseHeaders(expose.Header{Name: "X-Two", Value: "2"}),
			},
			want: map[string]string{"X-One": "1", "X-Two": "2"},
		},
		"response headers replace": {
			opts: []expose.RouteOption{
				expose.AddResponseHeaders(expose.Header{Name: "X-One", Value: "1"}),
				expose.ResponseHeaders(expose.Header{Name: "X-Two", Value: "2"}),
			},
			want: map[string]string{"X-One": "", "X-Two": "2"},
		},
		"allow any origin": {
			opts: []expose.RouteOption{expose.AllowOrigins("*")},
			want: map[string]string{"Access-Control-Allow-Origin": "*"},
		},
		"allow listed origin": {
			opts:    []expose.RouteOption{expose.AllowOrigins("https://a.example", "https://b.example")},
			headers: []string{"Origin", "https://b.example"},
			want:    map[string]string{"Access-Control-Allow-Origin": "https://b.example", "Vary": "Origin"},
		},
		"unlisted origin": {
			opts:    []expose.RouteOption{expose.AllowOrigins("https://a.example")},
			headers: []string{"Origin", "https://evil.example"},
			want:    map[string]string{"Access-Control-Allow-Origin": ""},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			reg := expose.New()
			reg.Get("/echo", echo(), tt.opts...)

			rec := serve(t, reg, http.MethodGet, "/echo?text=hi", nil, tt.headers...)

			require.Equal(t, http.StatusOK, rec.Code)
			for k, v := range tt.want {
				assert.Equal(t, v, rec.Header().Get(k), k)
			}
		})
	}
}

func TestRouteOptions_paths(t *testing.T) {
	t.Parallel()

	reg := expose.New()
	reg.Get("/echo", echo(), expose.URLs("/say"), expose.Suffixes("/"), expose.Prefixes("/api"))

	for _, target := range []string{"/echo", "/echo/", "/say", "/say/", "/api/echo", "/api/say/", "/v2/api/say"} {
		rec := serve(t, reg, http.MethodGet, target+"?text=hi", nil)
		assert.Equal(t, http.StatusOK, rec.Code, target)
		assert.JSONEq(t, `"hi"`, rec.Body.String(), target)
	}

	rec := serve(t, reg, http.MethodGet, "/echo/extra?text=hi", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouteOptions_parametersAndDefaults(t *testing.T) {
	t.Parallel()

	fn := &expose.Function{
		Name: "join",
		Params: []expose.Param{
			{Name: "first"},
			{Name: "second"},
		},
		Call: func(_ context.Context, args expose.Args) (any, error) {
			return []any{args["first"], args["second"]}, nil
		},
	}

	reg := expose.New()
	reg.Get("/only-first", fn, expose.Parameters("first"))
	reg.Get("/defaulted", fn, expose.Defaults(map[string]any{"second": "b"}))

	rec := serve(t, reg, http.MethodGet, "/only-first?first=a&second=ignored", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `["a", null]`, rec.Body.String())

	rec = serve(t, reg, http.MethodGet, "/defaulted?first=a", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `["a", "b"]`, rec.Body.String())

	rec = serve(t, reg, http.MethodGet, "/defaulted", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"errors":{"first":"Required parameter not supplied"}}`, rec.Body.String())
}

func TestRouteOptions_nameAndDoc(t *testing.T) {
	t.Parallel()

	reg := expose.New()
	h := reg.Get("/echo", echo(), expose.Name("say"), expose.Doc("Says text back."))

	assert.Equal(t, "say", h.Name())
	assert.Equal(t, "/echo", h.Path())
	assert.Equal(t, http.MethodGet, h.Method())
	assert.Equal(t, "Says text back.", reg.Documentation(expose.NoVersion).Handlers["/echo"]["GET"].Usage)
}

func TestRouteOptions_extraKeys(t *testing.T) {
	t.Parallel()

	keys := func(extra bool) *expose.Function {
		return &expose.Function{
			Name:  "keys",
			Extra: extra,
			Call: func(_ context.Context, args expose.Args) (any, error) {
				return args, nil
			},
		}
	}

	reg := expose.New()
	reg.Get("/strict", keys(false))
	reg.Get("/loose", keys(true))

	rec := serve(t, reg, http.MethodGet, "/strict?a=1", nil)
	assert.JSONEq(t, `{}`, rec.Body.String())

	rec = serve(t, reg, http.MethodGet, "/loose?a=1", nil)
	assert.JSONEq(t, `{"a":"1"}`, rec.Body.String())
}
