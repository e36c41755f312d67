package types

import (
	"math/big"
	"strconv"
	"strings"

	"github.com/spf13/cast"
)

// Number is a whole number. Strings are parsed in base 10; typed numerics
// pass through (floats truncate).
var Number Type = &unit{desc: "A whole number", fn: toNumber}

// FloatNumber is a floating point number.
var FloatNumber Type = &unit{desc: "A float number", fn: toFloat}

// Decimal is an arbitrary precision decimal number, returned as *big.Float.
var Decimal Type = &unit{desc: "A decimal number", fn: toDecimal}

func toNumber(value any) (any, error) {
	switch v := value.(type) {
	case nil:
		return nil, ValueError("Invalid whole number provided")
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return nil, &Error{Kind: KindValue, Message: "Invalid whole number provided", Err: err}
		}
		return n, nil
	}
	n, err := cast.ToIntE(value)
	if err != nil {
		return nil, &Error{Kind: KindValue, Message: "Invalid whole number provided", Err: err}
	}
	return n, nil
}

func toFloat(value any) (any, error) {
	switch v := value.(type) {
	case nil:
		return nil, ValueError("Invalid float number provided")
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, &Error{Kind: KindValue, Message: "Invalid float number provided", Err: err}
		}
		return f, nil
	}
	f, err := cast.ToFloat64E(value)
	if err != nil {
		return nil, &Error{Kind: KindValue, Message: "Invalid float number provided", Err: err}
	}
	return f, nil
}

func toDecimal(value any) (any, error) {
	switch v := value.(type) {
	case nil:
		return nil, ValueError("Invalid decimal number provided")
	case *big.Float:
		return v, nil
	case string:
		f, _, err := big.ParseFloat(strings.TrimSpace(v), 10, 128, big.ToNearestEven)
		if err != nil {
			return nil, &Error{Kind: KindValue, Message: "Invalid decimal number provided", Err: err}
		}
		return f, nil
	}
	f, err := cast.ToFloat64E(value)
	if err != nil {
		return nil, &Error{Kind: KindValue, Message: "Invalid decimal number provided", Err: err}
	}
	return new(big.Float).SetPrec(128).SetFloat64(f), nil
}

// asFloat is used by the bound checks to compare already-converted values.
func asFloat(value any) (float64, bool) {
	if f, ok := value.(*big.Float); ok {
		out, _ := f.Float64()
		return out, true
	}
	f, err := cast.ToFloat64E(value)
	if err != nil {
		return 0, false
	}
	return f, true
}
