package expose_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjaus/expose"
)

type quotaError struct{ limit int }

func (e *quotaError) Error() string { return fmt.Sprintf("quota of %d exceeded", e.limit) }

var errMaintenance = errors.New("down for maintenance")

// describe reports which handler ran and the error it received.
func describe(name string) *expose.Function {
	return &expose.Function{
		Name:   name,
		Params: []expose.Param{{Name: "exception"}},
		Call: func(_ context.Context, args expose.Args) (any, error) {
			err, _ := args["exception"].(error)
			return map[string]any{"handler": name, "error": err.Error()}, nil
		},
	}
}

func TestOnError_exactTypeBeforeAs(t *testing.T) {
	t.Parallel()

	reg := expose.New()
	reg.Get("/quota", failing("quota", &quotaError{limit: 3}))
	reg.Get("/wrapped", failing("wrapped", fmt.Errorf("checking: %w", &quotaError{limit: 5})))
	reg.Get("/plain", failing("plain", errors.New("boom")))

	expose.OnError[*quotaError](reg, describe("quota"), expose.Status(http.StatusTooManyRequests))
	expose.OnError[error](reg, describe("any"), expose.Status(http.StatusTeapot))

	tests := map[string]struct {
		target      string
		wantStatus  int
		wantHandler string
		wantError   string
	}{
		"exact type": {
			target:      "/quota",
			wantStatus:  http.StatusTooManyRequests,
			wantHandler: "quota",
			wantError:   "quota of 3 exceeded",
		},
		"wrapped matches latest As": {
			target:      "/wrapped",
			wantStatus:  http.StatusTeapot,
			wantHandler: "any",
			wantError:   "checking: quota of 5 exceeded",
		},
		"fallback": {
			target:      "/plain",
			wantStatus:  http.StatusTeapot,
			wantHandler: "any",
			wantError:   "boom",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			rec := serve(t, reg, http.MethodGet, tt.target, nil)

			assert.Equal(t, tt.wantStatus, rec.Code)
			body := decode(t, rec)
			assert.Equal(t, tt.wantHandler, body["handler"])
			assert.Equal(t, tt.wantError, body["error"])
		})
	}
}

func TestOnError_mostRecentAsMatchWins(t *testing.T) {
	t.Parallel()

	reg := expose.New()
	reg.Get("/wrapped", failing("wrapped", fmt.Errorf("checking: %w", &quotaError{limit: 5})))
	expose.OnError[error](reg, describe("any"))
	expose.OnError[*quotaError](reg, describe("quota"))

	rec := serve(t, reg, http.MethodGet, "/wrapped", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "quota", body["handler"])
	assert.Equal(t, "quota of 5 exceeded", body["error"])
}

func TestOnError_reregisteringReplaces(t *testing.T) {
	t.Parallel()

	reg := expose.New()
	reg.Get("/quota", failing("quota", &quotaError{limit: 3}))
	reg.Get("/maintenance", failing("maintenance", errMaintenance))
	expose.OnError[*quotaError](reg, describe("first"))
	expose.OnError[*quotaError](reg, describe("second"))
	reg.OnErrorIs(errMaintenance, describe("first"))
	reg.OnErrorIs(errMaintenance, describe("second"))

	tests := map[string]string{
		"by type":     "/quota",
		"by identity": "/maintenance",
	}

	for name, target := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			rec := serve(t, reg, http.MethodGet, target, nil)

			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "second", decode(t, rec)["handler"])
		})
	}
}

func TestOnError_versionSpecificFirst(t *testing.T) {
	t.Parallel()

	reg := expose.New()
	reg.Get("/fail", failing("fail", errors.New("boom")))
	expose.OnError[error](reg, describe("v2"), expose.Versions(expose.Version(2)))
	expose.OnError[error](reg, describe("any"))

	rec := serve(t, reg, http.MethodGet, "/v2/fail", nil)
	assert.Equal(t, "v2", decode(t, rec)["handler"])

	rec = serve(t, reg, http.MethodGet, "/v1/fail", nil)
	assert.Equal(t, "any", decode(t, rec)["handler"])

	rec = serve(t, reg, http.MethodGet, "/fail", nil)
	assert.Equal(t, "any", decode(t, rec)["handler"])
}

func TestOnErrorIs(t *testing.T) {
	t.Parallel()

	reg := expose.New()
	reg.Get("/maintenance", failing("maintenance", fmt.Errorf("billing: %w", errMaintenance)))
	reg.Get("/other", failing("other", errors.New("other")))
	reg.OnErrorIs(errMaintenance, describe("maintenance"), expose.Status(http.StatusServiceUnavailable))

	rec := serve(t, reg, http.MethodGet, "/maintenance", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "billing: down for maintenance", decode(t, rec)["error"])

	rec = serve(t, reg, http.MethodGet, "/other", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
}

func TestOnError_receivesOriginalInput(t *testing.T) {
	t.Parallel()

	reg := expose.New()
	reg.Get("/echo", &expose.Function{
		Name:   "echo",
		Params: []expose.Param{{Name: "text"}},
		Call: func(context.Context, expose.Args) (any, error) {
			return nil, errors.New("refused")
		},
	})
	expose.OnError[error](reg, &expose.Function{
		Name:   "handler",
		Params: []expose.Param{{Name: "exception"}, {Name: "text"}},
		Call: func(_ context.Context, args expose.Args) (any, error) {
			return map[string]any{"text": args["text"], "error": args["exception"].(error).Error()}, nil //nolint:forcetypeassert // handler seed
		},
	})

	rec := serve(t, reg, http.MethodGet, "/echo?text=hello", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"text":"hello","error":"refused"}`, rec.Body.String())
}

func TestOnError_failingHandler(t *testing.T) {
	t.Parallel()

	reg := expose.New()
	reg.Get("/fail", failing("fail", errors.New("boom")))
	expose.OnError[error](reg, failing("handler", expose.Error(http.StatusBadGateway, "handler broke")))

	rec := serve(t, reg, http.MethodGet, "/fail", nil)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "handler broke", decode(t, rec)["detail"])
}

func TestCatchErrors_disabled(t *testing.T) {
	t.Parallel()

	reg := expose.New()
	reg.Get("/fail", failing("fail", errors.New("boom")), expose.CatchErrors(false))
	expose.OnError[error](reg, describe("any"))

	rec := serve(t, reg, http.MethodGet, "/fail", nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "boom", decode(t, rec)["detail"])
}

func TestUnhandledErrorStatus(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		err        error
		wantStatus int
		wantDetail string
	}{
		"plain":       {err: errors.New("boom"), wantStatus: http.StatusInternalServerError, wantDetail: "boom"},
		"http error":  {err: expose.Error(http.StatusConflict, "taken"), wantStatus: http.StatusConflict, wantDetail: "taken"},
		"wrapped":     {err: fmt.Errorf("save: %w", expose.Error(http.StatusConflict, "taken")), wantStatus: http.StatusConflict, wantDetail: "save: taken"},
		"problem":     {err: &expose.ProblemDetail{Title: "Gone", Status: http.StatusGone, Detail: "deleted"}, wantStatus: http.StatusGone, wantDetail: "deleted"},
		"not allowed": {err: expose.ErrMethodNotAllowed, wantStatus: http.StatusMethodNotAllowed, wantDetail: "method not allowed"},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			reg := expose.New()
			reg.Get("/fail", failing("fail", tt.err))

			rec := serve(t, reg, http.MethodGet, "/fail", nil)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
			assert.Equal(t, tt.wantDetail, decode(t, rec)["detail"])
		})
	}
}

func TestNotFound_default(t *testing.T) {
	t.Parallel()

	reg := expose.New(expose.WithName("greetings"))
	reg.Get("/echo", echo(), expose.Examples("text=hi"))

	rec := serve(t, reg, http.MethodGet, "/missing", nil)

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	body := decode(t, rec)
	assert.Equal(t, "The API call you tried to make was not defined. Here's a definition of the API to help you get going :)", body["404"])
	doc := body["documentation"].(map[string]any) //nolint:forcetypeassert // documentation shape
	assert.Equal(t, "greetings", doc["overview"])
	assert.Contains(t, doc["handlers"], "/echo")
}

func TestNotFound_custom(t *testing.T) {
	t.Parallel()

	reg := expose.New()
	reg.Get("/echo", echo())
	reg.NotFound(&expose.Function{
		Name:   "missing",
		Params: []expose.Param{{Name: "request"}},
		Call: func(_ context.Context, args expose.Args) (any, error) {
			return map[string]any{"missing": args["request"].(*http.Request).URL.Path}, nil //nolint:forcetypeassert // pseudo-parameter
		},
	})

	rec := serve(t, reg, http.MethodGet, "/nowhere", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"missing":"/nowhere"}`, rec.Body.String())
}

func TestNotFound_status(t *testing.T) {
	t.Parallel()

	reg := expose.New()
	reg.NotFound(constant("gone", "gone"), expose.Status(http.StatusGone))

	rec := serve(t, reg, http.MethodGet, "/nowhere", nil)

	assert.Equal(t, http.StatusGone, rec.Code)
	assert.JSONEq(t, `"gone"`, rec.Body.String())
}

func TestNotFound_versioned(t *testing.T) {
	t.Parallel()

	reg := expose.New()
	reg.NotFound(constant("missing", "no such v2 call"), expose.Versions(expose.Version(2)))

	rec := serve(t, reg, http.MethodGet, "/v2/nowhere", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `"no such v2 call"`, rec.Body.String())

	rec = serve(t, reg, http.MethodGet, "/nowhere", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, decode(t, rec), "documentation")
}

func TestNotFound_raisedByFunction(t *testing.T) {
	t.Parallel()

	lookup := failing("user", fmt.Errorf("user 7: %w", expose.ErrNotFound))

	t.Run("routed to handler", func(t *testing.T) {
		t.Parallel()

		reg := expose.New()
		reg.Get("/users/7", lookup)
		reg.NotFound(constant("missing", map[string]string{"error": "no such thing"}))
		expose.OnError[error](reg, describe("any"))

		rec := serve(t, reg, http.MethodGet, "/users/7", nil)

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.JSONEq(t, `{"error":"no such thing"}`, rec.Body.String())
	})

	t.Run("problem without handler", func(t *testing.T) {
		t.Parallel()

		reg := expose.New()
		reg.Get("/users/7", lookup)

		rec := serve(t, reg, http.MethodGet, "/users/7", nil)

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "user 7: not found", decode(t, rec)["detail"])
	})
}
