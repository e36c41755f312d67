package expose

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"time"
	"unicode"

	"github.com/go-viper/mapstructure/v2"

	"github.com/bjaus/expose/types"
)

// namedTypes are the coercion units addressable from a `type` struct tag.
var namedTypes = map[string]types.Type{
	"number":               types.Number,
	"float":                types.FloatNumber,
	"decimal":              types.Decimal,
	"text":                 types.Text,
	"boolean":              types.Boolean,
	"smart_boolean":        types.SmartBoolean,
	"multiple":             types.Multiple,
	"comma_separated_list": types.CommaSeparatedList,
	"inline_dictionary":    types.InlineDictionary,
	"json":                 types.JSON,
	"uuid":                 types.UUID,
	"lowercase":            types.Lowercase,
	"uppercase":            types.Uppercase,
}

// Introspect derives a Function from the fields of T. Each exported field
// is a parameter, read from these tags:
//
//	arg:"name"       parameter name (default: snake_case field name), "-" skips
//	default:"value"  makes the parameter optional, converted like input
//	doc:"text"       documentation
//	type:"number"    coercion unit by name (default: inferred from the field kind)
//	directive:"name" resolve from the named registry directive
//
// Reflection runs once here. Calls decode the validated Args into a fresh T.
func Introspect[T, R any](name string, fn func(context.Context, T) (R, error)) *Function {
	t := reflect.TypeFor[T]()
	if t.Kind() != reflect.Struct {
		panic(fmt.Sprintf("expose: Introspect %s: %s is not a struct", name, t))
	}

	var (
		params []Param
		fields []boundField
	)
	for i := range t.NumField() {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		argName, _ := tagOptions(f.Tag.Get("arg"))
		if argName == "-" {
			continue
		}
		if argName == "" {
			argName = snakeCase(f.Name)
		}

		p := Param{Name: argName, Doc: f.Tag.Get("doc")}
		if d := f.Tag.Get("directive"); d != "" {
			p.Directive = Named(d)
		} else {
			p.Type = typeFor(f)
		}
		if def, ok := f.Tag.Lookup("default"); ok {
			p.Default, p.HasDefault = def, true
			if p.Type != nil {
				v, err := p.Type.Convert(def)
				if err != nil {
					panic(fmt.Sprintf("expose: Introspect %s: default of %s: %v", name, f.Name, err))
				}
				p.Default = v
			}
		}

		params = append(params, p)
		fields = append(fields, boundField{name: argName, index: i})
	}

	return &Function{
		Name:   name,
		Params: params,
		Call: func(ctx context.Context, args Args) (any, error) {
			var in T
			if err := decodeFields(reflect.ValueOf(&in).Elem(), fields, args); err != nil {
				return nil, err
			}
			return fn(ctx, in)
		},
	}
}

type boundField struct {
	name  string
	index int
}

func typeFor(f reflect.StructField) types.Type {
	if name := f.Tag.Get("type"); name != "" {
		if t, ok := namedTypes[name]; ok {
			return t
		}
		panic(fmt.Sprintf("expose: field %s: unknown type %q", f.Name, name))
	}

	//exhaustive:ignore
	switch f.Type.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return types.Number
	case reflect.Float32, reflect.Float64:
		return types.FloatNumber
	case reflect.Bool:
		return types.SmartBoolean
	case reflect.String:
		return types.Text
	case reflect.Slice:
		if f.Type.Elem().Kind() != reflect.Uint8 {
			return types.Multiple
		}
	}
	return nil
}

// decodeFields sets each bound field from args. Values already assignable
// are set directly; anything else goes through mapstructure.
func decodeFields(v reflect.Value, fields []boundField, args Args) error {
	for _, bf := range fields {
		raw, ok := args[bf.name]
		if !ok || raw == nil {
			continue
		}
		field := v.Field(bf.index)
		rv := reflect.ValueOf(raw)
		if rv.Type().AssignableTo(field.Type()) {
			field.Set(rv)
			continue
		}

		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			TagName:          "json",
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeHookFunc(time.RFC3339),
				mapstructure.StringToTimeDurationHookFunc(),
			),
			Result: field.Addr().Interface(),
		})
		if err != nil {
			return err
		}
		if err := dec.Decode(raw); err != nil {
			return fmt.Errorf("decode %s: %w", bf.name, err)
		}
	}
	return nil
}

// tagOptions splits a struct tag value on comma and returns
// the name and remaining options.
func tagOptions(tag string) (string, string) {
	name, opts, _ := strings.Cut(tag, ",")
	return name, opts
}

// snakeCase converts "UserID" to "user_id" and "camelCase" to "camel_case".
func snakeCase(s string) string {
	runes := []rune(s)
	var b strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && (unicode.IsLower(runes[i-1]) || (i+1 < len(runes) && unicode.IsLower(runes[i+1]) && unicode.IsUpper(runes[i-1]))) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// camelCase converts "user_id" to "userId".
func camelCase(s string) string {
	parts := strings.Split(s, "_")
	var b strings.Builder
	for i, p := range parts {
		if p == "" {
			continue
		}
		if i == 0 || b.Len() == 0 {
			b.WriteString(p)
			continue
		}
		runes := []rune(p)
		runes[0] = unicode.ToUpper(runes[0])
		b.WriteString(string(runes))
	}
	return b.String()
}
