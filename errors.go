package expose

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for dispatch.
var (
	// ErrNotFound is returned by a function to signal an absent resource. It
	// is routed to the not-found handler instead of the error handler table.
	ErrNotFound = errors.New("not found")

	ErrPathNotFound     = errors.New("path not found")
	ErrMethodNotAllowed = errors.New("method not allowed")
	ErrVersionNotFound  = errors.New("version not found")
	ErrVersionConflict  = errors.New("conflicting api versions requested")

	// ErrInvalidInput is returned by CLI commands whose input failed
	// validation, after the errors have been printed.
	ErrInvalidInput = errors.New("invalid input")
)

// StatusCoder is implemented by errors that carry an HTTP status code.
type StatusCoder interface {
	StatusCode() int
}

// ProblemDetail is an RFC 9457 problem details response.
//
//nolint:errname // RFC 9457 standard name
type ProblemDetail struct {
	Type     string `json:"type,omitempty"`
	Title    string `json:"title,omitempty"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

// Error returns the detail message (or title if detail is empty).
func (p *ProblemDetail) Error() string {
	if p.Detail != "" {
		return p.Detail
	}
	return p.Title
}

// StatusCode returns the HTTP status code.
func (p *ProblemDetail) StatusCode() int { return p.Status }

// HTTPError is an error with an HTTP status code.
type HTTPError struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// Error returns the error message.
func (e *HTTPError) Error() string { return e.Message }

// StatusCode returns the HTTP status code.
func (e *HTTPError) StatusCode() int { return e.Status }

// Error returns an error with the given HTTP status code and message.
func Error(status int, message string) error {
	return &HTTPError{Status: status, Message: message}
}

// Errorf returns a formatted error with the given HTTP status code.
func Errorf(status int, format string, args ...any) error {
	return &HTTPError{Status: status, Message: fmt.Sprintf(format, args...)}
}

// ErrorStatus extracts the HTTP status code from an error. Dispatch
// sentinels map to their natural status; anything else that does not
// implement StatusCoder is http.StatusInternalServerError.
func ErrorStatus(err error) int {
	var sc StatusCoder
	switch {
	case errors.As(err, &sc):
		return sc.StatusCode()
	case errors.Is(err, ErrMethodNotAllowed):
		return http.StatusMethodNotAllowed
	case errors.Is(err, ErrVersionConflict):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrPathNotFound), errors.Is(err, ErrVersionNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// CoercionError is raised instead of aggregated when a route is configured
// with RaiseOnInvalid.
type CoercionError struct {
	Param   string
	Reasons any
	Err     error
}

func (e *CoercionError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Param, e.Reasons)
}

func (e *CoercionError) Unwrap() error { return e.Err }

// StatusCode is always 400.
func (e *CoercionError) StatusCode() int { return http.StatusBadRequest }

// writeProblem writes err as an RFC 9457 problem details response.
func writeProblem(w http.ResponseWriter, err error) {
	var pd *ProblemDetail
	if !errors.As(err, &pd) {
		status := ErrorStatus(err)
		pd = &ProblemDetail{
			Type:   "about:blank",
			Title:  http.StatusText(status),
			Status: status,
			Detail: err.Error(),
		}
	}

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(pd.Status)
	//nolint:errcheck,errchkjson,gosec // best-effort after WriteHeader
	json.NewEncoder(w).Encode(pd)
}
