package types

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cast"
)

// Text is a basic text value. Any input is rendered as a string.
var Text Type = &unit{desc: "Basic text / string value", fn: toText}

// SmartBoolean accepts native booleans, nil, 0 and 1, and the strings
// true/t/1 and false/f/0/"" in any case.
var SmartBoolean Type = &unit{
	desc: "Providing any value will set this to true",
	fn:   toSmartBoolean,
	cli:  CLIBehavior{Action: "store_true"},
}

// Boolean uses truthiness: nil, false, zero numbers and empty strings or
// collections are false; everything else is true.
var Boolean Type = &unit{
	desc: "Providing any value will set this to true",
	fn:   toBoolean,
	cli:  CLIBehavior{Action: "store_true"},
}

// UUID is a universally unique identifier, returned as uuid.UUID.
var UUID Type = &unit{desc: "A Universally Unique IDentifier", fn: toUUID}

// Lowercase is text converted to lower case.
var Lowercase Type = &unit{
	desc: "Basic text / string value converted to lower case",
	fn: func(value any) (any, error) {
		s, err := toText(value)
		if err != nil {
			return nil, err
		}
		return strings.ToLower(s.(string)), nil
	},
}

// Uppercase is text converted to upper case.
var Uppercase Type = &unit{
	desc: "Basic text / string value converted to upper case",
	fn: func(value any) (any, error) {
		s, err := toText(value)
		if err != nil {
			return nil, err
		}
		return strings.ToUpper(s.(string)), nil
	},
}

// Cut truncates text to at most limit characters.
func Cut(limit int) Type {
	return &unit{
		desc: fmt.Sprintf("String value that is cut at %d characters", limit),
		fn: func(value any) (any, error) {
			s, err := toText(value)
			if err != nil {
				return nil, err
			}
			runes := []rune(s.(string))
			if len(runes) > limit {
				runes = runes[:limit]
			}
			return string(runes), nil
		},
	}
}

// Date parses text with layout into a time.Time.
func Date(layout string) Type {
	return &unit{
		desc: fmt.Sprintf("A date in the format %s", layout),
		fn: func(value any) (any, error) {
			if t, ok := value.(time.Time); ok {
				return t, nil
			}
			s, ok := value.(string)
			if !ok {
				return nil, ValueError("Invalid date provided")
			}
			t, err := time.Parse(layout, s)
			if err != nil {
				return nil, &Error{Kind: KindValue, Message: fmt.Sprintf("Invalid date provided, expected format %s", layout), Err: err}
			}
			return t, nil
		},
	}
}

func toText(value any) (any, error) {
	if value == nil {
		return "", nil
	}
	s, err := cast.ToStringE(value)
	if err != nil {
		return fmt.Sprint(value), nil
	}
	return s, nil
}

func toSmartBoolean(value any) (any, error) {
	switch v := value.(type) {
	case nil:
		return false, nil
	case bool:
		return v, nil
	case string:
		switch strings.ToLower(v) {
		case "true", "t", "1":
			return true, nil
		case "false", "f", "0", "":
			return false, nil
		}
		return nil, KeyError("Invalid boolean value provided: %q", v)
	}

	if isNumber(value) {
		f, ok := asFloat(value)
		if ok && (f == 0 || f == 1) {
			return f == 1, nil
		}
	}
	return nil, KeyError("Invalid boolean value provided: %v", value)
}

func toBoolean(value any) (any, error) {
	switch v := value.(type) {
	case nil:
		return false, nil
	case bool:
		return v, nil
	case string:
		return v != "", nil
	}

	rv := reflect.ValueOf(value)
	//exhaustive:ignore
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() > 0, nil
	case reflect.Pointer, reflect.Interface:
		return !rv.IsNil(), nil
	}
	if f, ok := asFloat(value); ok {
		return f != 0, nil
	}
	return true, nil
}

func toUUID(value any) (any, error) {
	switch v := value.(type) {
	case uuid.UUID:
		return v, nil
	case string:
		id, err := uuid.Parse(v)
		if err != nil {
			return nil, &Error{Kind: KindValue, Message: "Invalid UUID provided", Err: err}
		}
		return id, nil
	}
	return nil, ValueError("Invalid UUID provided")
}

func isNumber(value any) bool {
	//exhaustive:ignore
	switch reflect.ValueOf(value).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}
