package types

import (
	"fmt"
	"reflect"
	"strings"
	"unicode/utf8"
)

// Multi tries each unit in order and returns the first success.
func Multi(types ...Type) Type {
	return &unit{
		desc: "Accepts any of the following value types: " + describeAll(types, ", "),
		fn: func(value any) (any, error) {
			for _, t := range types {
				if out, err := t.Convert(value); err == nil {
					return out, nil
				}
			}
			return nil, ValueError("Value %v does not match any of the accepted types", value)
		},
	}
}

// Chain feeds the value through each unit, left to right.
func Chain(types ...Type) Type {
	return &unit{
		desc: describeAll(types, " then "),
		fn: func(value any) (any, error) {
			return runChain(types, value)
		},
	}
}

// Nullable is Chain that returns nil without running when value is nil.
func Nullable(types ...Type) Type {
	return &unit{
		desc: describeAll(types, " then ") + " or null",
		fn: func(value any) (any, error) {
			if value == nil {
				return nil, nil
			}
			return runChain(types, value)
		},
	}
}

func runChain(types []Type, value any) (any, error) {
	var err error
	for _, t := range types {
		value, err = t.Convert(value)
		if err != nil {
			return nil, err
		}
	}
	return value, nil
}

// InRange accepts lower <= value < upper after converting with convert
// (Number when omitted).
func InRange(lower, upper float64, convert ...Type) Type {
	inner := innerOr(convert, Number)
	return &unit{
		desc: fmt.Sprintf("%s that is greater or equal to %v and less than %v", inner.Description(), lower, upper),
		fn: func(value any) (any, error) {
			out, f, err := numeric(inner, value)
			if err != nil {
				return nil, err
			}
			if f < lower {
				return nil, ValueError("'%v' is less than the lower limit %v", out, lower)
			}
			if f >= upper {
				return nil, ValueError("'%v' reached the limit of %v", out, upper)
			}
			return out, nil
		},
	}
}

// LessThan accepts value < limit.
func LessThan(limit float64, convert ...Type) Type {
	inner := innerOr(convert, Number)
	return &unit{
		desc: fmt.Sprintf("%s less than %v", inner.Description(), limit),
		fn: func(value any) (any, error) {
			out, f, err := numeric(inner, value)
			if err != nil {
				return nil, err
			}
			if f >= limit {
				return nil, ValueError("'%v' must be less than %v", out, limit)
			}
			return out, nil
		},
	}
}

// GreaterThan accepts value > limit.
func GreaterThan(limit float64, convert ...Type) Type {
	inner := innerOr(convert, Number)
	return &unit{
		desc: fmt.Sprintf("%s greater than %v", inner.Description(), limit),
		fn: func(value any) (any, error) {
			out, f, err := numeric(inner, value)
			if err != nil {
				return nil, err
			}
			if f <= limit {
				return nil, ValueError("'%v' must be greater than %v", out, limit)
			}
			return out, nil
		},
	}
}

// Length accepts lower <= len(value) < upper after converting with convert
// (Text when omitted).
func Length(lower, upper int, convert ...Type) Type {
	inner := innerOr(convert, Text)
	return &unit{
		desc: fmt.Sprintf("%s with a length of at least %d and less than %d", inner.Description(), lower, upper),
		fn: func(value any) (any, error) {
			out, n, err := length(inner, value)
			if err != nil {
				return nil, err
			}
			if n < lower {
				return nil, ValueError("'%v' is shorter than the length limit of %d", out, lower)
			}
			if n >= upper {
				return nil, ValueError("'%v' is longer than the length limit of %d", out, upper)
			}
			return out, nil
		},
	}
}

// ShorterThan accepts len(value) < limit.
func ShorterThan(limit int, convert ...Type) Type {
	inner := innerOr(convert, Text)
	return &unit{
		desc: fmt.Sprintf("%s with a length of less than %d", inner.Description(), limit),
		fn: func(value any) (any, error) {
			out, n, err := length(inner, value)
			if err != nil {
				return nil, err
			}
			if n >= limit {
				return nil, ValueError("'%v' is longer than %d", out, limit)
			}
			return out, nil
		},
	}
}

// LongerThan accepts len(value) > limit.
func LongerThan(limit int, convert ...Type) Type {
	inner := innerOr(convert, Text)
	return &unit{
		desc: fmt.Sprintf("%s with a length of more than %d", inner.Description(), limit),
		fn: func(value any) (any, error) {
			out, n, err := length(inner, value)
			if err != nil {
				return nil, err
			}
			if n <= limit {
				return nil, ValueError("'%v' is shorter than %d", out, limit)
			}
			return out, nil
		},
	}
}

func innerOr(convert []Type, fallback Type) Type {
	if len(convert) > 0 && convert[0] != nil {
		return convert[0]
	}
	return fallback
}

func numeric(inner Type, value any) (any, float64, error) {
	out, err := inner.Convert(value)
	if err != nil {
		return nil, 0, err
	}
	f, ok := asFloat(out)
	if !ok {
		return nil, 0, ValueError("'%v' is not a comparable number", out)
	}
	return out, f, nil
}

func length(inner Type, value any) (any, int, error) {
	out, err := inner.Convert(value)
	if err != nil {
		return nil, 0, err
	}
	if s, ok := out.(string); ok {
		return out, utf8.RuneCountInString(s), nil
	}
	rv := reflect.ValueOf(out)
	//exhaustive:ignore
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return out, rv.Len(), nil
	}
	return nil, 0, ValueError("'%v' has no length", out)
}

func describeAll(types []Type, sep string) string {
	descs := make([]string, 0, len(types))
	for _, t := range types {
		descs = append(descs, t.Description())
	}
	return strings.Join(descs, sep)
}
