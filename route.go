package expose

import (
	"fmt"
	"maps"
	"net/http"
	"reflect"
	"slices"
	"strings"
	"time"
)

// Transformer post-processes a function result before it is formatted.
type Transformer interface {
	Transform(data any) (any, error)
}

// TransformFunc adapts a function into a Transformer.
type TransformFunc func(data any) (any, error)

// Transform calls f.
func (f TransformFunc) Transform(data any) (any, error) { return f(data) }

// targeted transformers are skipped when the result already has the target
// type.
type targeted interface {
	Target() reflect.Type
}

type typedTransform[T any] struct {
	fn func(any) (T, error)
}

func (t typedTransform[T]) Transform(data any) (any, error) { return t.fn(data) }
func (typedTransform[T]) Target() reflect.Type              { return reflect.TypeFor[T]() }

// TransformTo returns a Transformer producing T. Results that already are a
// T are passed through untouched.
func TransformTo[T any](fn func(any) (T, error)) Transformer {
	return typedTransform[T]{fn: fn}
}

// Dumper is implemented by schema-backed types, such as types.Schema.
type Dumper interface {
	Dump(data any) (any, error)
}

// Dump uses a schema's Dump as the transform.
func Dump(d Dumper) Transformer {
	return TransformFunc(d.Dump)
}

// Requirement is a precondition checked before input is gathered. Returning
// nil or true lets the call proceed; any other value short-circuits the call
// and is formatted as the response. Values implementing StatusCoder set the
// response status.
type Requirement func(c *Call) any

// Header is one configured response header.
type Header struct {
	Name  string
	Value string
}

// RouteConfig is the immutable configuration of one registration. Build it
// with NewRoute and derive children with With.
type RouteConfig struct {
	versions        VersionSpec
	requires        []Requirement
	validate        Validator
	raiseOnInvalid  bool
	transform       Transformer
	onInvalid       Transformer
	output          Formatter
	outputInvalid   Formatter
	parameters      []string
	defaults        map[string]any
	status          int
	responseHeaders []Header
	allowOrigins    []string
	skipBody        bool
	urls            []string
	suffixes        []string
	prefixes        []string
	examples        []string
	methods         []string
	bodyLimit       int64
	timeout         time.Duration
	etag            bool
	etagWeak        bool
	noCatch         bool
	skipDirectives  bool
	skipValidation  bool
	name            string
	cliVersion      string
	doc             string
}

// RouteOption configures a route at registration time.
type RouteOption func(*RouteConfig)

// NewRoute builds a RouteConfig from options.
func NewRoute(opts ...RouteOption) RouteConfig {
	return RouteConfig{}.With(opts...)
}

// With returns a copy of c with opts applied. c is left unchanged.
func (c RouteConfig) With(opts ...RouteOption) RouteConfig {
	c.requires = slices.Clone(c.requires)
	c.parameters = slices.Clone(c.parameters)
	c.defaults = maps.Clone(c.defaults)
	c.responseHeaders = slices.Clone(c.responseHeaders)
	c.allowOrigins = slices.Clone(c.allowOrigins)
	c.urls = slices.Clone(c.urls)
	c.suffixes = slices.Clone(c.suffixes)
	c.prefixes = slices.Clone(c.prefixes)
	c.examples = slices.Clone(c.examples)
	c.methods = slices.Clone(c.methods)
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Versions restricts the route to the given API versions.
func Versions(spec VersionSpec) RouteOption {
	return func(c *RouteConfig) {
		c.versions = spec
	}
}

// Requires appends preconditions, evaluated in order.
func Requires(reqs ...Requirement) RouteOption {
	return func(c *RouteConfig) {
		c.requires = append(c.requires, reqs...)
	}
}

// Validate sets a whole-input validator run after per-parameter coercion.
func Validate(v Validator) RouteOption {
	return func(c *RouteConfig) {
		c.validate = v
	}
}

// RaiseOnInvalid makes the first coercion failure a *CoercionError instead
// of aggregating failures.
func RaiseOnInvalid() RouteOption {
	return func(c *RouteConfig) {
		c.raiseOnInvalid = true
	}
}

// Transform sets the result transform.
func Transform(t Transformer) RouteOption {
	return func(c *RouteConfig) {
		c.transform = t
	}
}

// OnInvalid sets the transform applied to the {"errors": ...} document.
func OnInvalid(t Transformer) RouteOption {
	return func(c *RouteConfig) {
		c.onInvalid = t
	}
}

// Output sets the output formatter.
func Output(f Formatter) RouteOption {
	return func(c *RouteConfig) {
		c.output = f
	}
}

// OutputInvalid sets the formatter used for validation failures.
func OutputInvalid(f Formatter) RouteOption {
	return func(c *RouteConfig) {
		c.outputInvalid = f
	}
}

// Parameters overrides the parameter list of the function.
func Parameters(names ...string) RouteOption {
	return func(c *RouteConfig) {
		c.parameters = names
	}
}

// Defaults adds or overrides default values.
func Defaults(defaults map[string]any) RouteOption {
	return func(c *RouteConfig) {
		if c.defaults == nil {
			c.defaults = make(map[string]any, len(defaults))
		}
		maps.Copy(c.defaults, defaults)
	}
}

// Status sets the success status code.
func Status(code int) RouteOption {
	return func(c *RouteConfig) {
		c.status = code
	}
}

// ResponseHeaders replaces the configured response headers.
func ResponseHeaders(headers ...Header) RouteOption {
	return func(c *RouteConfig) {
		c.responseHeaders = headers
	}
}

// AddResponseHeaders appends response headers.
func AddResponseHeaders(headers ...Header) RouteOption {
	return func(c *RouteConfig) {
		c.responseHeaders = append(c.responseHeaders, headers...)
	}
}

// Cache sets a Cache-Control header.
func Cache(maxAge time.Duration, private bool) RouteOption {
	scope := "public"
	if private {
		scope = "private"
	}
	return AddResponseHeaders(Header{
		Name:  "Cache-Control",
		Value: fmt.Sprintf("%s, max-age=%d", scope, int(maxAge.Seconds())),
	})
}

// AllowOrigins sets Access-Control-Allow-Origin for the listed origins.
// "*" allows every origin.
func AllowOrigins(origins ...string) RouteOption {
	return func(c *RouteConfig) {
		c.allowOrigins = origins
	}
}

// ParseBody controls whether the request body is decoded into the input.
// Enabled by default.
func ParseBody(enabled bool) RouteOption {
	return func(c *RouteConfig) {
		c.skipBody = !enabled
	}
}

// URLs registers the function on additional paths.
func URLs(urls ...string) RouteOption {
	return func(c *RouteConfig) {
		c.urls = append(c.urls, urls...)
	}
}

// Suffixes registers each path again with the given suffixes.
func Suffixes(suffixes ...string) RouteOption {
	return func(c *RouteConfig) {
		c.suffixes = append(c.suffixes, suffixes...)
	}
}

// Prefixes registers each path again with the given prefixes.
func Prefixes(prefixes ...string) RouteOption {
	return func(c *RouteConfig) {
		c.prefixes = append(c.prefixes, prefixes...)
	}
}

// Examples adds example query strings to the documentation.
func Examples(examples ...string) RouteOption {
	return func(c *RouteConfig) {
		c.examples = append(c.examples, examples...)
	}
}

// Accept sets the HTTP methods a Route or Call registration answers.
func Accept(methods ...string) RouteOption {
	return func(c *RouteConfig) {
		c.methods = make([]string, len(methods))
		for i, m := range methods {
			c.methods[i] = strings.ToUpper(m)
		}
	}
}

// BodyLimit caps the request body at maxBytes. Larger bodies fail with 413.
func BodyLimit(maxBytes int64) RouteOption {
	return func(c *RouteConfig) {
		c.bodyLimit = maxBytes
	}
}

// CatchErrors controls whether errors are routed through the error handler
// table. Enabled by default.
func CatchErrors(enabled bool) RouteOption {
	return func(c *RouteConfig) {
		c.noCatch = !enabled
	}
}

// SkipDirectives disables directive injection for local calls.
func SkipDirectives() RouteOption {
	return func(c *RouteConfig) {
		c.skipDirectives = true
	}
}

// SkipValidation disables coercion and validation for local calls.
func SkipValidation() RouteOption {
	return func(c *RouteConfig) {
		c.skipValidation = true
	}
}

// Name overrides the function name (CLI command and CurrentAPI lookup).
func Name(name string) RouteOption {
	return func(c *RouteConfig) {
		c.name = name
	}
}

// CLIVersion enables a --version flag printing version.
func CLIVersion(version string) RouteOption {
	return func(c *RouteConfig) {
		c.cliVersion = version
	}
}

// Doc overrides the function documentation.
func Doc(doc string) RouteOption {
	return func(c *RouteConfig) {
		c.doc = doc
	}
}

// allMethods is what Call registers.
var allMethods = []string{
	http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut, http.MethodPatch,
	http.MethodDelete, http.MethodConnect, http.MethodOptions, http.MethodTrace,
}

// paths expands the primary path with URLs, prefixes and suffixes.
func (c RouteConfig) paths(path string) []string {
	base := []string{path}
	if len(c.urls) > 0 {
		base = c.urls
		if path != "" && !slices.Contains(base, path) {
			base = append([]string{path}, base...)
		}
	}

	var out []string
	add := func(p string) {
		if p != "" && !slices.Contains(out, p) {
			out = append(out, p)
		}
	}
	for _, p := range base {
		add(p)
		for _, s := range c.suffixes {
			add(p + s)
		}
		for _, pre := range c.prefixes {
			add(pre + p)
			for _, s := range c.suffixes {
				add(pre + p + s)
			}
		}
	}
	return out
}
