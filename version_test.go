package expose_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjaus/expose"
)

func TestVersionSpec(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		spec            expose.VersionSpec
		wantNumbers     []int
		wantString      string
		wantUnversioned bool
	}{
		"unversioned": {
			spec:            expose.Unversioned(),
			wantString:      "unversioned",
			wantUnversioned: true,
		},
		"single": {
			spec:        expose.Version(6),
			wantNumbers: []int{6},
			wantString:  "6",
		},
		"set sorted and deduplicated": {
			spec:        expose.VersionSet(5, 1, 2, 5),
			wantNumbers: []int{1, 2, 5},
			wantString:  "1,2,5",
		},
		"range excludes upper bound": {
			spec:        expose.VersionRange(2, 5),
			wantNumbers: []int{2, 3, 4},
			wantString:  "2,3,4",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.wantUnversioned, tt.spec.IsUnversioned())
			assert.Equal(t, tt.wantString, tt.spec.String())
			if tt.wantNumbers == nil {
				assert.Empty(t, tt.spec.Numbers())
				return
			}
			assert.Equal(t, tt.wantNumbers, tt.spec.Numbers())
			for _, n := range tt.wantNumbers {
				assert.True(t, tt.spec.Contains(n))
			}
		})
	}
}

func TestParseVersions(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		input   string
		want    []int
		wantErr bool
	}{
		"empty":     {input: ""},
		"single":    {input: "6", want: []int{6}},
		"list":      {input: "1, 2,5", want: []int{1, 2, 5}},
		"range":     {input: "2..5", want: []int{2, 3, 4}},
		"bad item":  {input: "1,x", wantErr: true},
		"bad range": {input: "2..z", wantErr: true},
		"bad lower": {input: "a..5", wantErr: true},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := expose.ParseVersions(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.want == nil {
				assert.True(t, got.IsUnversioned())
				return
			}
			assert.Equal(t, tt.want, got.Numbers())
		})
	}
}

func TestVersionDispatch(t *testing.T) {
	t.Parallel()

	reg := expose.New()
	reg.Get("/echo", constant("echo", "one"), expose.Versions(expose.Version(1)))
	reg.Get("/echo", constant("echo", "two to four"), expose.Versions(expose.VersionRange(2, 5)))
	reg.Get("/echo", constant("echo", "six"), expose.Versions(expose.Version(6)))

	tests := map[string]struct {
		target     string
		headers    []string
		wantStatus int
		wantBody   string
	}{
		"v1":                {target: "/v1/echo", wantStatus: http.StatusOK, wantBody: `"one"`},
		"v3 in range":       {target: "/v3/echo", wantStatus: http.StatusOK, wantBody: `"two to four"`},
		"v4 last in range":  {target: "/v4/echo", wantStatus: http.StatusOK, wantBody: `"two to four"`},
		"v6":                {target: "/v6/echo", wantStatus: http.StatusOK, wantBody: `"six"`},
		"header":            {target: "/echo", headers: []string{"X-API-Version", "2"}, wantStatus: http.StatusOK, wantBody: `"two to four"`},
		"query":             {target: "/echo?api_version=6", wantStatus: http.StatusOK, wantBody: `"six"`},
		"v5 unclaimed":      {target: "/v5/echo", wantStatus: http.StatusNotFound},
		"unversioned":       {target: "/echo", wantStatus: http.StatusNotFound},
		"conflicting":       {target: "/v4/echo?api_version=3", wantStatus: http.StatusBadRequest},
		"agreeing":          {target: "/v4/echo?api_version=4", wantStatus: http.StatusOK, wantBody: `"two to four"`},
		"malformed header":  {target: "/echo", headers: []string{"X-API-Version", "two"}, wantStatus: http.StatusBadRequest},
		"unknown path":      {target: "/v1/nothing", wantStatus: http.StatusNotFound},
		"prefix needs path": {target: "/v1echo", wantStatus: http.StatusNotFound},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			rec := serve(t, reg, http.MethodGet, tt.target, nil, tt.headers...)

			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.wantBody != "" {
				assert.JSONEq(t, tt.wantBody, rec.Body.String())
			}
		})
	}
}

func TestVersionDispatch_notFoundDocumentsVersion(t *testing.T) {
	t.Parallel()

	reg := expose.New()
	reg.Get("/echo", echo(), expose.Versions(expose.Version(1)))
	reg.Get("/status", constant("status", "ok"))

	rec := serve(t, reg, http.MethodGet, "/v1/missing", nil)

	require.Equal(t, http.StatusNotFound, rec.Code)
	body := decode(t, rec)
	assert.Contains(t, body["404"], "was not defined")
	handlers := body["documentation"].(map[string]any)["handlers"].(map[string]any) //nolint:forcetypeassert // documentation shape
	assert.Contains(t, handlers, "/echo")
	assert.Contains(t, handlers, "/status")
}

func TestVersionDispatch_unversionedFallback(t *testing.T) {
	t.Parallel()

	reg := expose.New()
	reg.Get("/echo", constant("echo", "default"))
	reg.Get("/echo", constant("echo", "two"), expose.Versions(expose.Version(2)))

	tests := map[string]struct {
		target string
		want   string
	}{
		"no version":       {target: "/echo", want: `"default"`},
		"explicit version": {target: "/v2/echo", want: `"two"`},
		"other version":    {target: "/v9/echo", want: `"default"`},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			rec := serve(t, reg, http.MethodGet, tt.target, nil)

			require.Equal(t, http.StatusOK, rec.Code)
			assert.JSONEq(t, tt.want, rec.Body.String())
		})
	}
}

func TestVersionDispatch_lastRegistrationWins(t *testing.T) {
	t.Parallel()

	reg := expose.New()
	reg.Get("/echo", constant("echo", "first"), expose.Versions(expose.VersionSet(1, 2)))
	reg.Get("/echo", constant("echo", "second"), expose.Versions(expose.Version(2)))

	rec := serve(t, reg, http.MethodGet, "/v1/echo", nil)
	assert.JSONEq(t, `"first"`, rec.Body.String())

	rec = serve(t, reg, http.MethodGet, "/v2/echo", nil)
	assert.JSONEq(t, `"second"`, rec.Body.String())
}

func TestVersionDispatch_customSources(t *testing.T) {
	t.Parallel()

	reg := expose.New(expose.WithVersionHeader("Accept-Version"), expose.WithVersionParam("v"))
	reg.Get("/echo", constant("echo", "three"), expose.Versions(expose.Version(3)))

	rec := serve(t, reg, http.MethodGet, "/echo", nil, "Accept-Version", "3")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(t, reg, http.MethodGet, "/echo?v=3", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(t, reg, http.MethodGet, "/echo", nil, "X-API-Version", "3")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRegistry_Lookup(t *testing.T) {
	t.Parallel()

	reg := expose.New()
	v1 := reg.Get("/echo", echo(), expose.Versions(expose.Version(1)))

	tests := map[string]struct {
		path    string
		method  string
		version int
		want    *expose.HTTPInterface
		wantErr error
	}{
		"found":            {path: "/echo", method: http.MethodGet, version: 1, want: v1},
		"unknown path":     {path: "/other", method: http.MethodGet, version: 1, wantErr: expose.ErrPathNotFound},
		"unknown method":   {path: "/echo", method: http.MethodPost, version: 1, wantErr: expose.ErrMethodNotAllowed},
		"unknown version":  {path: "/echo", method: http.MethodGet, version: 2, wantErr: expose.ErrVersionNotFound},
		"version required": {path: "/echo", method: http.MethodGet, version: expose.NoVersion, wantErr: expose.ErrVersionNotFound},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := reg.Lookup(tt.path, tt.method, tt.version)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Same(t, tt.want, got)
		})
	}
}

func TestRegistry_Versions(t *testing.T) {
	t.Parallel()

	reg := expose.New()
	assert.Empty(t, reg.Versions())

	reg.Get("/a", constant("a", 1), expose.Versions(expose.VersionRange(2, 4)))
	reg.Get("/b", constant("b", 2), expose.Versions(expose.VersionSet(7, 1)))
	reg.Get("/c", constant("c", 3))

	assert.Equal(t, []int{1, 2, 3, 7}, reg.Versions())
}
