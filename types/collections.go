package types

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// Multiple wraps a scalar into a single element list. Lists pass through
// unchanged, so applying it twice is a no-op.
var Multiple Type = &unit{
	desc: "Multiple Values",
	fn:   toMultiple,
	cli:  CLIBehavior{Action: "append", List: true},
}

// CommaSeparatedList splits text on commas.
var CommaSeparatedList = DelimitedList(",")

// InlineDictionary parses "k1:v1|k2:v2" into a map[string]string.
var InlineDictionary Type = &unit{
	desc: "A single line dictionary, where items are separated by commas and key:value are separated by a pipe",
	fn:   toInlineDictionary,
}

// JSON parses string or byte input as JSON. Other values pass through.
var JSON Type = &unit{desc: "JSON data as a string or bytes", fn: toJSON}

// DelimitedList splits text on delimiter. Lists pass through unchanged.
func DelimitedList(delimiter string) Type {
	return &unit{
		desc: fmt.Sprintf("Multiple values, separated by %q", delimiter),
		cli:  CLIBehavior{List: true},
		fn: func(value any) (any, error) {
			switch v := value.(type) {
			case string:
				return strings.Split(v, delimiter), nil
			case []byte:
				return strings.Split(string(v), delimiter), nil
			}
			if isList(value) {
				return value, nil
			}
			return nil, &Error{Kind: KindType, Message: fmt.Sprintf("Invalid list provided, expected values separated by %q", delimiter)}
		},
	}
}

// OneOf accepts only the listed values.
func OneOf(values ...any) Type {
	choices := make([]string, len(values))
	for i, v := range values {
		choices[i] = fmt.Sprint(v)
	}
	listing := strings.Join(choices, ", ")

	return &unit{
		desc: fmt.Sprintf("Accepts one of the following values: (%s)", listing),
		cli:  CLIBehavior{Choices: choices},
		fn: func(value any) (any, error) {
			for _, allowed := range values {
				if equal(allowed, value) {
					return value, nil
				}
			}
			return nil, KeyError("Invalid value passed. The accepted values are: (%s)", listing)
		},
	}
}

// Mapping accepts only the keys of m and returns the mapped value.
func Mapping(m map[string]any) Type {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	listing := strings.Join(keys, ", ")

	return &unit{
		desc: fmt.Sprintf("Accepts one of the following values: (%s)", listing),
		cli:  CLIBehavior{Choices: keys},
		fn: func(value any) (any, error) {
			key, ok := value.(string)
			if !ok {
				key = fmt.Sprint(value)
			}
			out, ok := m[key]
			if !ok {
				return nil, KeyError("Invalid value passed. The accepted values are: (%s)", listing)
			}
			return out, nil
		},
	}
}

func toMultiple(value any) (any, error) {
	if isList(value) {
		return value, nil
	}
	return []any{value}, nil
}

func toInlineDictionary(value any) (any, error) {
	switch v := value.(type) {
	case map[string]string:
		return v, nil
	case string:
		out := make(map[string]string)
		for item := range strings.SplitSeq(v, "|") {
			key, val, ok := strings.Cut(item, ":")
			if !ok {
				return nil, ValueError("Invalid inline dictionary item %q, expected key:value", item)
			}
			out[key] = val
		}
		return out, nil
	}
	return nil, ValueError("Invalid inline dictionary provided")
}

func toJSON(value any) (any, error) {
	var raw []byte
	switch v := value.(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return value, nil
	}

	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &Error{Kind: KindValue, Message: "Incorrectly formatted JSON provided", Err: err}
	}
	return out, nil
}

// isList reports whether value is a slice or array (but not bytes).
func isList(value any) bool {
	if value == nil {
		return false
	}
	if _, ok := value.([]byte); ok {
		return false
	}
	k := reflect.TypeOf(value).Kind()
	return k == reflect.Slice || k == reflect.Array
}

func equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	if !ta.Comparable() {
		return reflect.DeepEqual(a, b)
	}
	return a == b
}
