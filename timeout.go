package expose

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Timeout bounds the context of each call to d. A function that returns
// context.DeadlineExceeded after the bound has passed fails with 503.
func Timeout(d time.Duration) RouteOption {
	return func(c *RouteConfig) {
		c.timeout = d
	}
}

// withTimeout runs fn under the configured timeout.
func (i *Interface) withTimeout(ctx context.Context, fn func(context.Context) (any, error)) (any, error) {
	if i.config.timeout <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, i.config.timeout)
	defer cancel()

	result, err := fn(ctx)
	if err != nil && errors.Is(err, context.DeadlineExceeded) && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, &HTTPError{
			Status:  http.StatusServiceUnavailable,
			Message: fmt.Sprintf("%s timed out after %s", i.name, i.config.timeout),
		}
	}
	return result, err
}
