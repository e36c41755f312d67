package expose

import (
	"context"
	"net/http"
)

type contextKey[T any] struct{}

// SetValue stores a typed value in the request context. For use in middleware.
func SetValue[T any](r *http.Request, val T) *http.Request {
	ctx := context.WithValue(r.Context(), contextKey[T]{}, val)
	return r.WithContext(ctx)
}

// GetValue retrieves a typed value from a context. For use in functions,
// directives and requirements.
func GetValue[T any](ctx context.Context) (T, bool) {
	val, ok := ctx.Value(contextKey[T]{}).(T)
	return val, ok
}

type apiVersion int

// APIVersion returns the API version detected for the request that ctx
// belongs to, or NoVersion.
func APIVersion(ctx context.Context) int {
	if v, ok := GetValue[apiVersion](ctx); ok {
		return int(v)
	}
	return NoVersion
}

func versionOf(r *http.Request) int { return APIVersion(r.Context()) }
