package expose

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/spf13/cast"
)

// Directive provides a parameter value from call context instead of input.
// Directives are resolved on every call and must not share state across
// calls.
type Directive interface {
	Resolve(dc DirectiveContext) (any, error)
}

// DirectiveFunc adapts a function into a Directive.
type DirectiveFunc func(dc DirectiveContext) (any, error)

// Resolve calls f.
func (f DirectiveFunc) Resolve(dc DirectiveContext) (any, error) { return f(dc) }

// DirectiveContext is what a directive can read. Default is the parameter's
// configured default, which argument-bound directives treat as their
// configuration.
type DirectiveContext struct {
	*Call
	Param   string
	Default any
}

// Named resolves the registry directive called name at call time.
func Named(name string) Directive {
	return DirectiveFunc(func(dc DirectiveContext) (any, error) {
		if dc.Call == nil || dc.Registry == nil {
			return nil, fmt.Errorf("directive %s: no registry", name)
		}
		d, ok := dc.Registry.directive(name)
		if !ok {
			return nil, fmt.Errorf("directive %s: not registered", name)
		}
		return d.Resolve(dc)
	})
}

// Timer measures the time taken by one call.
type Timer struct {
	start time.Time
	round int
}

// NewTimer starts a timer that reports seconds rounded to round digits.
func NewTimer(round int) *Timer {
	return &Timer{start: time.Now(), round: round}
}

// Elapsed returns the time since the timer started.
func (t *Timer) Elapsed() time.Duration { return time.Since(t.start) }

// Taken returns elapsed seconds, rounded.
func (t *Timer) Taken() float64 {
	scale := math.Pow(10, float64(t.round))
	return math.Round(t.Elapsed().Seconds()*scale) / scale
}

// MarshalJSON renders the timer as elapsed seconds.
func (t *Timer) MarshalJSON() ([]byte, error) {
	return fmt.Appendf(nil, "%v", t.Taken()), nil
}

// CurrentAPI calls the functions registered on a registry for the version
// of the current call, falling back to unversioned registrations.
type CurrentAPI struct {
	registry *Registry
	version  int
	call     *Call
}

// Call invokes the function registered under name with args. Directives
// and validation run as they would for a local call.
func (c *CurrentAPI) Call(ctx context.Context, name string, args Args) (any, error) {
	local, ok := c.registry.function(name, c.version)
	if !ok {
		return nil, fmt.Errorf("%w: function %s for version %d", ErrNotFound, name, c.version)
	}
	return local.invoke(ctx, c.call, args, nil)
}

// Version returns the version calls are resolved against.
func (c *CurrentAPI) Version() int { return c.version }

func builtinDirectives() map[string]Directive {
	return map[string]Directive{
		"ctx_timer": DirectiveFunc(func(dc DirectiveContext) (any, error) {
			round := 3
			if dc.Default != nil {
				if n, err := cast.ToIntE(dc.Default); err == nil {
					round = n
				}
			}
			return NewTimer(round), nil
		}),
		"ctx_module": DirectiveFunc(func(dc DirectiveContext) (any, error) {
			return dc.Registry.Name(), nil
		}),
		"ctx_api": DirectiveFunc(func(dc DirectiveContext) (any, error) {
			return dc.Registry, nil
		}),
		"ctx_api_version": DirectiveFunc(func(dc DirectiveContext) (any, error) {
			if dc.Version == NoVersion {
				return nil, nil
			}
			return dc.Version, nil
		}),
		"ctx_current_api": DirectiveFunc(func(dc DirectiveContext) (any, error) {
			return &CurrentAPI{registry: dc.Registry, version: dc.Version, call: dc.Call}, nil
		}),
		"ctx_request_id": DirectiveFunc(func(dc DirectiveContext) (any, error) {
			return RequestIDFrom(dc.Context), nil
		}),
		"ctx_user": DirectiveFunc(func(dc DirectiveContext) (any, error) {
			if dc.User == nil {
				return dc.Default, nil
			}
			return dc.User, nil
		}),
	}
}
