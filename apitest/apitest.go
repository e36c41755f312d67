// Package apitest provides typed test helpers for expose registries.
package apitest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/bjaus/expose"
)

// Client wraps an httptest.Server for convenient API testing.
type Client struct {
	Server *httptest.Server
}

// NewClient creates a test client serving reg.
func NewClient(t testing.TB, reg *expose.Registry) *Client {
	t.Helper()
	srv := httptest.NewServer(reg)
	t.Cleanup(srv.Close)
	return &Client{Server: srv}
}

// RequestOption adjusts an outgoing request.
type RequestOption func(*http.Request)

// WithHeader sets a request header.
func WithHeader(key, value string) RequestOption {
	return func(r *http.Request) {
		r.Header.Set(key, value)
	}
}

// WithVersion requests an API version through the X-API-Version header.
func WithVersion(v int) RequestOption {
	return WithHeader("X-API-Version", strconv.Itoa(v))
}

// Response holds a decoded API response.
type Response[T any] struct {
	Status  int
	Headers http.Header
	Body    *T
	Bytes   []byte
}

// Get sends a typed GET request.
func Get[Resp any](t testing.TB, c *Client, path string, opts ...RequestOption) *Response[Resp] {
	t.Helper()
	return do[Resp](t, c, http.MethodGet, path, nil, opts)
}

// Post sends a typed POST request with a JSON body.
func Post[Req, Resp any](t testing.TB, c *Client, path string, body *Req, opts ...RequestOption) *Response[Resp] {
	t.Helper()
	return do[Resp](t, c, http.MethodPost, path, body, opts)
}

// Put sends a typed PUT request with a JSON body.
func Put[Req, Resp any](t testing.TB, c *Client, path string, body *Req, opts ...RequestOption) *Response[Resp] {
	t.Helper()
	return do[Resp](t, c, http.MethodPut, path, body, opts)
}

// Delete sends a typed DELETE request.
func Delete[Resp any](t testing.TB, c *Client, path string, opts ...RequestOption) *Response[Resp] {
	t.Helper()
	return do[Resp](t, c, http.MethodDelete, path, nil, opts)
}

func do[Resp any](t testing.TB, c *Client, method, path string, body any, opts []RequestOption) *Response[Resp] {
	t.Helper()

	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("apitest: marshal request body: %v", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, c.Server.URL+path, reqBody)
	if err != nil {
		t.Fatalf("apitest: create request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, opt := range opts {
		opt(req)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("apitest: execute request: %v", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			t.Errorf("apitest: close body: %v", closeErr)
		}
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("apitest: read body: %v", err)
	}
	result := &Response[Resp]{
		Status:  resp.StatusCode,
		Headers: resp.Header,
		Bytes:   raw,
	}

	if len(raw) > 0 {
		var decoded Resp
		if json.Unmarshal(raw, &decoded) == nil {
			result.Body = &decoded
		}
	}
	return result
}

// RunCLI runs a registry command and returns what it wrote.
func RunCLI(t testing.TB, reg *expose.Registry, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := reg.RunCLI(context.Background(), args, &out)
	return out.String(), err
}
