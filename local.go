package expose

import (
	"context"
	"fmt"
	"maps"
)

// LocalInterface calls a function in-process with the same requirements,
// directives and validation as the other transports.
type LocalInterface struct {
	*Interface
}

// Call invokes the function. Positional args bind to parameters in order
// and kwargs fill in the rest. A validation failure is returned as the
// {"errors": ...} document, not as an error.
func (l *LocalInterface) Call(ctx context.Context, kwargs Args, args ...any) (any, error) {
	c := &Call{Context: ctx, Registry: l.registry, Version: NoVersion}
	return l.invoke(ctx, c, kwargs, args)
}

// invoke runs the function inside the context of parent, which may be nil.
func (l *LocalInterface) invoke(ctx context.Context, parent *Call, kwargs Args, positional []any) (any, error) {
	c := &Call{Context: ctx, Registry: l.registry, Version: NoVersion}
	if parent != nil {
		c.Version, c.User = parent.Version, parent.User
	}

	if len(positional) > len(l.params) {
		return nil, fmt.Errorf("%s takes %d arguments, got %d", l.name, len(l.params), len(positional))
	}
	input := make(Args, len(kwargs)+len(positional))
	for i, v := range positional {
		input[l.params[i]] = v
	}
	maps.Copy(input, kwargs)
	c.Args = input

	if conclusion := l.checkRequirements(c); conclusion != nil {
		return conclusion, nil
	}

	if !l.config.skipDirectives {
		if err := l.resolveDirectives(c, input); err != nil {
			return nil, err
		}
	}

	if !l.config.skipValidation {
		errs, err := l.validate(input)
		if err != nil {
			return nil, err
		}
		if len(errs) > 0 {
			return l.invalid(errs)
		}
	}

	result, err := l.call(ctx, input)
	if err != nil {
		return nil, err
	}
	result, err = l.applyTransform(result)
	if err != nil {
		return nil, err
	}
	if l.config.output == nil {
		return result, nil
	}
	return l.config.output.Format(c, result)
}
