package types

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		switch name {
		case "-":
			return ""
		case "":
			return f.Name
		}
		return name
	})
	return v
}

// SchemaType decodes a map into T using json tags and validates it with
// `validate` struct tags. Field failures are reported in Reasons keyed by
// the json field name.
type SchemaType[T any] struct {
	desc string
}

// Schema returns a unit producing T from map input.
func Schema[T any](desc string) *SchemaType[T] {
	if desc == "" {
		var zero T
		desc = fmt.Sprintf("%T object", zero)
	}
	return &SchemaType[T]{desc: desc}
}

// Description returns the schema description.
func (s *SchemaType[T]) Description() string { return s.desc }

// Convert decodes and validates value into a T.
func (s *SchemaType[T]) Convert(value any) (any, error) {
	if v, ok := value.(T); ok {
		if err := s.check(v); err != nil {
			return nil, err
		}
		return v, nil
	}

	var out T
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           &out,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(value); err != nil {
		return nil, &Error{Kind: KindValue, Message: "Invalid " + s.desc, Err: err}
	}
	if err := s.check(out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SchemaType[T]) check(v T) error {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}

	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fields validator.ValidationErrors
	if !errors.As(err, &fields) {
		return &Error{Kind: KindValue, Message: "Invalid " + s.desc, Err: err}
	}
	reasons := make(map[string]any, len(fields))
	for _, fe := range fields {
		reasons[fe.Field()] = fieldMessage(fe)
	}
	return &Error{Kind: KindValue, Message: "Invalid " + s.desc, Reasons: reasons, Err: err}
}

// Dump renders a T back into a map keyed by json field names. Other
// values pass through.
func (s *SchemaType[T]) Dump(value any) (any, error) {
	v, ok := value.(T)
	if !ok {
		return value, nil
	}
	out := map[string]any{}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "json",
		Result:  &out,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(v); err != nil {
		return nil, fmt.Errorf("dump %s: %w", s.desc, err)
	}
	return out, nil
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "Missing data for required field."
	case "min", "gte":
		return fmt.Sprintf("Must be at least %s.", fe.Param())
	case "max", "lte":
		return fmt.Sprintf("Must be at most %s.", fe.Param())
	case "oneof":
		return fmt.Sprintf("Must be one of: %s.", fe.Param())
	default:
		return fmt.Sprintf("Failed validation on %q.", fe.Tag())
	}
}
