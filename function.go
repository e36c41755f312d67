package expose

import (
	"context"

	"github.com/bjaus/expose/types"
)

// Args is the gathered, coerced input of one call keyed by parameter name.
type Args map[string]any

// Func is the uniform shape every exposed function is adapted to.
type Func func(ctx context.Context, args Args) (any, error)

// Param describes one formal parameter of a Function.
type Param struct {
	Name string
	// Type coerces raw input. Nil means the value is passed through as is.
	Type types.Type
	// Doc is documentation only and never used for coercion.
	Doc        string
	Default    any
	HasDefault bool
	// Directive injects the value from call context instead of input.
	Directive Directive
	// Receiver marks a leading bound receiver; it is never gathered.
	Receiver bool
}

// Function is the descriptor a plain function is registered with. It takes
// the place of runtime signature inspection: everything the interfaces need
// to know about the function is stated here once.
type Function struct {
	Name   string
	Doc    string
	Params []Param
	// Extra accepts keys that are not declared parameters.
	Extra bool
	// Variadic names the parameter that collects surplus positional CLI
	// arguments.
	Variadic string
	// Returns is applied to results when no route transform is configured.
	Returns Transformer
	Call    Func
}

// Parameters returns the ordered parameter names, receivers excluded.
func (f *Function) Parameters() []string {
	out := make([]string, 0, len(f.Params))
	for _, p := range f.Params {
		if !p.Receiver {
			out = append(out, p.Name)
		}
	}
	return out
}

// Defaults returns the parameters that carry a default value.
func (f *Function) Defaults() map[string]any {
	out := make(map[string]any)
	for _, p := range f.Params {
		if p.HasDefault && !p.Receiver {
			out[p.Name] = p.Default
		}
	}
	return out
}

// Required returns the parameters that must be supplied by the caller:
// no default, no directive and not a receiver.
func (f *Function) Required() []string {
	var out []string
	for _, p := range f.Params {
		if p.Receiver || p.HasDefault || p.Directive != nil {
			continue
		}
		out = append(out, p.Name)
	}
	return out
}

func (f *Function) param(name string) (Param, bool) {
	for _, p := range f.Params {
		if p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}
