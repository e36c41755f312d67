package expose

import (
	"maps"
	"strings"
)

// Validator checks the whole coerced input. A non-empty result is merged
// into the error document as validation failures.
type Validator func(args Args) map[string]any

// ValidateAll runs validators in order and returns the first failure.
func ValidateAll(validators ...Validator) Validator {
	return func(args Args) map[string]any {
		for _, v := range validators {
			if errs := v(args); len(errs) > 0 {
				return errs
			}
		}
		return nil
	}
}

// ValidateAny passes when at least one validator passes. Otherwise the
// failures of all of them are returned.
func ValidateAny(validators ...Validator) Validator {
	return func(args Args) map[string]any {
		merged := make(map[string]any)
		for _, v := range validators {
			errs := v(args)
			if len(errs) == 0 {
				return nil
			}
			maps.Copy(merged, errs)
		}
		return merged
	}
}

// ContainsOneOf requires at least one of fields to be present.
func ContainsOneOf(fields ...string) Validator {
	message := "Must contain any one of the following fields: " + strings.Join(fields, ", ")
	return func(args Args) map[string]any {
		for _, f := range fields {
			if _, ok := args[f]; ok {
				return nil
			}
		}
		return map[string]any{"contains_one_of": message}
	}
}
