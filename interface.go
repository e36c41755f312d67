package expose

import (
	"context"
	"net/http"
	"reflect"
	"slices"

	"github.com/bjaus/expose/types"
)

// requiredMessage is reported for every required parameter that is missing.
const requiredMessage = "Required parameter not supplied"

// pseudoParams are filled by the HTTP transport itself.
var pseudoParams = []string{"request", "response", "api_version"}

// Call is the context of one invocation, shared by requirements,
// directives and formatters. Request and Response are nil outside HTTP.
type Call struct {
	Context  context.Context
	Request  *http.Request
	Response *Response
	Registry *Registry
	Version  int
	Args     Args
	// User is set by authentication requirements.
	User any
}

func (c *Call) setContentType(ct string) {
	if c.Response != nil {
		c.Response.Header.Set("Content-Type", ct)
	}
}

// Interface binds one function to one route configuration. It is built once
// at registration and never mutated, so it is safe for concurrent use.
type Interface struct {
	registry   *Registry
	fn         *Function
	config     RouteConfig
	name       string
	doc        string
	params     []string
	required   []string
	defaults   map[string]any
	coercions  map[string]types.Type
	directives map[string]Directive

	outputs        Formatter
	invalidOutputs Formatter
	transform      Transformer
	onInvalid      Transformer
}

func build(reg *Registry, cfg RouteConfig, fn *Function) *Interface {
	i := &Interface{
		registry:   reg,
		fn:         fn,
		config:     cfg,
		name:       fn.Name,
		doc:        fn.Doc,
		params:     fn.Parameters(),
		defaults:   fn.Defaults(),
		coercions:  make(map[string]types.Type),
		directives: make(map[string]Directive),
	}
	if cfg.name != "" {
		i.name = cfg.name
	}
	if cfg.doc != "" {
		i.doc = cfg.doc
	}
	if len(cfg.parameters) > 0 {
		i.params = cfg.parameters
	}
	for k, v := range cfg.defaults {
		i.defaults[k] = v
	}

	for _, name := range i.params {
		p, _ := fn.param(name)
		switch {
		case p.Receiver:
			continue
		case p.Directive != nil:
			i.directives[name] = p.Directive
		default:
			if d, ok := reg.directive(name); ok {
				i.directives[name] = d
			} else if p.Type != nil {
				i.coercions[name] = p.Type
			}
		}
	}

	for _, name := range i.params {
		p, _ := fn.param(name)
		_, defaulted := i.defaults[name]
		_, directed := i.directives[name]
		if p.Receiver || defaulted || directed || slices.Contains(pseudoParams, name) {
			continue
		}
		i.required = append(i.required, name)
	}

	i.transform = cfg.transform
	if i.transform == nil {
		i.transform = fn.Returns
	}
	i.onInvalid = cfg.onInvalid
	if i.onInvalid == nil {
		i.onInvalid = i.transform
	}
	i.outputs = cfg.output
	if i.outputs == nil {
		i.outputs = reg.output
	}
	i.invalidOutputs = cfg.outputInvalid
	if i.invalidOutputs == nil {
		i.invalidOutputs = i.outputs
	}
	return i
}

// Name returns the exposed name.
func (i *Interface) Name() string { return i.name }

// Params returns the ordered parameter names.
func (i *Interface) Params() []string { return slices.Clone(i.params) }

// Required returns the parameters the caller must supply.
func (i *Interface) Required() []string { return slices.Clone(i.required) }

// checkRequirements returns the first failed conclusion, or nil.
func (i *Interface) checkRequirements(c *Call) any {
	for _, req := range i.config.requires {
		conclusion := req(c)
		if conclusion == nil || conclusion == true {
			continue
		}
		return conclusion
	}
	return nil
}

// resolveDirectives injects every directive value into input.
func (i *Interface) resolveDirectives(c *Call, input Args) error {
	for name, d := range i.directives {
		v, err := d.Resolve(DirectiveContext{Call: c, Param: name, Default: i.defaults[name]})
		if err != nil {
			return err
		}
		input[name] = v
	}
	return nil
}

// validate coerces input in place and returns the aggregated failures.
// With RaiseOnInvalid the first failure is returned as a *CoercionError.
func (i *Interface) validate(input Args) (map[string]any, error) {
	errs := make(map[string]any)
	for _, name := range i.params {
		t, ok := i.coercions[name]
		if !ok {
			continue
		}
		raw, present := input[name]
		if !present {
			continue
		}
		out, err := t.Convert(raw)
		if err != nil {
			if i.config.raiseOnInvalid {
				return nil, &CoercionError{Param: name, Reasons: types.Reason(err), Err: err}
			}
			errs[name] = types.Reason(err)
			continue
		}
		input[name] = out
	}

	for _, name := range i.required {
		if _, ok := input[name]; ok {
			continue
		}
		if _, failed := errs[name]; failed {
			continue
		}
		if i.config.raiseOnInvalid {
			return nil, &CoercionError{Param: name, Reasons: requiredMessage}
		}
		errs[name] = requiredMessage
	}

	if len(errs) == 0 && i.config.validate != nil {
		for k, v := range i.config.validate(input) {
			errs[k] = v
		}
	}
	return errs, nil
}

// invalid builds the error document for failed validation.
func (i *Interface) invalid(errs map[string]any) (any, error) {
	var data any = map[string]any{"errors": errs}
	if i.onInvalid == nil {
		return data, nil
	}
	return i.onInvalid.Transform(data)
}

// call fills defaults, drops unknown keys and runs the function.
func (i *Interface) call(ctx context.Context, input Args) (any, error) {
	args := make(Args, len(i.params))
	for k, v := range i.defaults {
		args[k] = v
	}
	for k, v := range input {
		if i.fn.Extra || slices.Contains(i.params, k) {
			args[k] = v
		}
	}
	return i.withTimeout(ctx, func(ctx context.Context) (any, error) {
		return i.fn.Call(ctx, args)
	})
}

// applyTransform runs the transform unless result already has its target
// type.
func (i *Interface) applyTransform(result any) (any, error) {
	if i.transform == nil {
		return result, nil
	}
	if t, ok := i.transform.(targeted); ok && result != nil && reflect.TypeOf(result) == t.Target() {
		return result, nil
	}
	return i.transform.Transform(result)
}
