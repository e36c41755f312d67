package expose_test

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjaus/expose"
)

// trackedStream reports a size of its own and records whether it was closed.
// It hides any Seek of the wrapped reader.
type trackedStream struct {
	io.Reader
	size   int
	closed atomic.Bool
}

func (s *trackedStream) Len() int { return s.size }

func (s *trackedStream) Close() error {
	s.closed.Store(true)
	return nil
}

func payload(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte('a' + i%26)
	}
	return out
}

func TestParseRange(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		header    string
		wantStart int64
		wantEnd   int64
		wantOK    bool
	}{
		"closed":        {header: "bytes=10-19", wantStart: 10, wantEnd: 19, wantOK: true},
		"open end":      {header: "bytes=90-", wantStart: 90, wantEnd: -1, wantOK: true},
		"suffix":        {header: "bytes=-5", wantStart: -5, wantEnd: -1, wantOK: true},
		"empty":         {header: ""},
		"other unit":    {header: "items=1-2"},
		"multiple":      {header: "bytes=1-2,5-6"},
		"no dash":       {header: "bytes=10"},
		"zero suffix":   {header: "bytes=-0"},
		"bad start":     {header: "bytes=x-5"},
		"bad end":       {header: "bytes=5-x"},
		"negative from": {header: "bytes=--5"},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			start, end, ok := expose.ParseRange(tc.header)
			assert.Equal(t, tc.wantOK, ok)
			if tc.wantOK {
				assert.Equal(t, tc.wantStart, start)
				assert.Equal(t, tc.wantEnd, end)
			}
		})
	}
}

func TestResponse_byteRange(t *testing.T) {
	t.Parallel()

	data := payload(100)

	tests := map[string]struct {
		rangeHeader string
		wantStatus  int
		wantBody    []byte
		wantRange   string
	}{
		"whole stream": {
			wantStatus: http.StatusOK,
			wantBody:   data,
		},
		"closed range": {
			rangeHeader: "bytes=10-19",
			wantStatus:  http.StatusPartialContent,
			wantBody:    data[10:20],
			wantRange:   "bytes 10-19/100",
		},
		"open end": {
			rangeHeader: "bytes=90-",
			wantStatus:  http.StatusPartialContent,
			wantBody:    data[90:],
			wantRange:   "bytes 90-99/100",
		},
		"suffix": {
			rangeHeader: "bytes=-5",
			wantStatus:  http.StatusPartialContent,
			wantBody:    data[95:],
			wantRange:   "bytes 95-99/100",
		},
		"end past size": {
			rangeHeader: "bytes=10-500",
			wantStatus:  http.StatusPartialContent,
			wantBody:    data[10:],
			wantRange:   "bytes 10-99/100",
		},
		"start past size": {
			rangeHeader: "bytes=100-",
			wantStatus:  http.StatusRequestedRangeNotSatisfiable,
			wantRange:   "bytes */100",
		},
		"multiple ranges served whole": {
			rangeHeader: "bytes=1-2,5-6",
			wantStatus:  http.StatusOK,
			wantBody:    data,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			reg := expose.New()
			reg.Get("/blob", &expose.Function{
				Name: "blob",
				Call: func(context.Context, expose.Args) (any, error) {
					return bytes.NewReader(data), nil
				},
			}, expose.Output(expose.File))

			var headers []string
			if tc.rangeHeader != "" {
				headers = []string{"Range", tc.rangeHeader}
			}
			rec := serve(t, reg, http.MethodGet, "/blob", nil, headers...)

			assert.Equal(t, tc.wantStatus, rec.Code)
			assert.Equal(t, string(tc.wantBody), rec.Body.String())
			assert.Equal(t, tc.wantRange, rec.Header().Get("Content-Range"))
			if tc.wantStatus != http.StatusRequestedRangeNotSatisfiable {
				assert.Equal(t, strconv.Itoa(len(tc.wantBody)), rec.Header().Get("Content-Length"))
				assert.Equal(t, "bytes", rec.Header().Get("Accept-Ranges"))
			}
		})
	}
}

func TestResponse_unknownSizeServedWhole(t *testing.T) {
	t.Parallel()

	data := payload(50)
	reg := expose.New()
	reg.Get("/blob", &expose.Function{
		Name: "blob",
		Call: func(context.Context, expose.Args) (any, error) {
			return io.MultiReader(bytes.NewReader(data)), nil
		},
	})

	rec := serve(t, reg, http.MethodGet, "/blob", nil, "Range", "bytes=0-9")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, data, rec.Body.Bytes())
	assert.Empty(t, rec.Header().Get("Content-Length"))
	assert.Empty(t, rec.Header().Get("Content-Range"))
}

func TestResponse_filePath(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("0123456789"), 0o600))

	reg := expose.New()
	reg.Get("/file", constant("file", path), expose.Output(expose.File))

	rec := serve(t, reg, http.MethodGet, "/file", nil, "Range", "bytes=2-4")

	assert.Equal(t, http.StatusPartialContent, rec.Code)
	assert.Equal(t, "234", rec.Body.String())
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "bytes 2-4/10", rec.Header().Get("Content-Range"))
}

func TestResponse_pseudoParameter(t *testing.T) {
	t.Parallel()

	reg := expose.New()
	reg.Post("/things", &expose.Function{
		Name:   "create",
		Params: []expose.Param{{Name: "response"}},
		Call: func(_ context.Context, args expose.Args) (any, error) {
			res := args["response"].(*expose.Response) //nolint:forcetypeassert // pseudo-parameter
			res.Status = http.StatusAccepted
			res.Header.Set("Location", "/things/1")
			return map[string]int{"id": 1}, nil
		},
	})

	rec := serve(t, reg, http.MethodPost, "/things", nil)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "/things/1", rec.Header().Get("Location"))
	assert.JSONEq(t, `{"id":1}`, rec.Body.String())
}

func TestResponse_SetBody(t *testing.T) {
	t.Parallel()

	res := &expose.Response{Header: http.Header{}}
	res.SetStream(bytes.NewReader([]byte("stream")), 6)
	assert.NotNil(t, res.Stream())

	res.SetBody([]byte("body"))
	assert.Nil(t, res.Stream())
	assert.Equal(t, []byte("body"), res.Body())
}

func TestResponse_streamClosed(t *testing.T) {
	t.Parallel()

	data := payload(100)

	tests := map[string]struct {
		data        []byte
		rangeHeader string
		handled     bool
		wantStatus  int
	}{
		"whole stream": {
			data:       data,
			wantStatus: http.StatusOK,
		},
		"ranged": {
			data:        data,
			rangeHeader: "bytes=10-19",
			wantStatus:  http.StatusPartialContent,
		},
		"unsatisfiable": {
			data:        data,
			rangeHeader: "bytes=500-",
			wantStatus:  http.StatusRequestedRangeNotSatisfiable,
		},
		"range fails unhandled": {
			data:        data[:5],
			rangeHeader: "bytes=50-",
			wantStatus:  http.StatusInternalServerError,
		},
		"range fails handled": {
			data:        data[:5],
			rangeHeader: "bytes=50-",
			handled:     true,
			wantStatus:  http.StatusOK,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			stream := &trackedStream{Reader: bytes.NewReader(tc.data), size: len(data)}
			reg := expose.New()
			reg.Get("/blob", &expose.Function{
				Name: "blob",
				Call: func(context.Context, expose.Args) (any, error) {
					return stream, nil
				},
			}, expose.Output(expose.File))
			if tc.handled {
				expose.OnError[error](reg, constant("recovered", "recovered"))
			}

			var headers []string
			if tc.rangeHeader != "" {
				headers = []string{"Range", tc.rangeHeader}
			}
			rec := serve(t, reg, http.MethodGet, "/blob", nil, headers...)

			assert.Equal(t, tc.wantStatus, rec.Code)
			assert.True(t, stream.closed.Load())
		})
	}
}
