package expose_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bjaus/expose"
	"github.com/bjaus/expose/types"
)

// echo returns its text parameter unchanged.
func echo() *expose.Function {
	return &expose.Function{
		Name:   "echo",
		Doc:    "Returns text unchanged.",
		Params: []expose.Param{{Name: "text", Type: types.Text}},
		Call: func(_ context.Context, args expose.Args) (any, error) {
			return args["text"], nil
		},
	}
}

// constant returns a function without parameters that always returns v.
func constant(name string, v any) *expose.Function {
	return &expose.Function{
		Name: name,
		Call: func(context.Context, expose.Args) (any, error) {
			return v, nil
		},
	}
}

// failing returns a function without parameters that always fails with err.
func failing(name string, err error) *expose.Function {
	return &expose.Function{
		Name: name,
		Call: func(context.Context, expose.Args) (any, error) {
			return nil, err
		},
	}
}

// serve runs one request through h. headers are key, value pairs.
func serve(t *testing.T, h http.Handler, method, target string, body io.Reader, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequestWithContext(context.Background(), method, target, body)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// decode unmarshals a JSON response body into a generic map.
func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}
