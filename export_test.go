package expose

// Test-only exports for internal functions.
var (
	ParseRange   = parseRange
	SnakeCase    = snakeCase
	CamelCase    = camelCase
	BodyReaderOf = bodyReaderFor
	Flatten      = flatten
)

// DefaultBodyReaders exposes the built-in body reader table.
func DefaultBodyReaders() map[string]BodyReader { return defaultBodyReaders() }

// ExpandPaths exposes RouteConfig path expansion.
func ExpandPaths(path string, opts ...RouteOption) []string {
	return NewRoute(opts...).paths(path)
}

// LocalFunction exposes the registry's function index.
func LocalFunction(r *Registry, name string, version int) (*LocalInterface, bool) {
	return r.function(name, version)
}
