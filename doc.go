// Package expose turns plain Go functions into HTTP endpoints, command line
// commands and validated local callables from one declaration.
//
// A function is described once, either by hand or derived from a struct:
//
//	type addArgs struct {
//	    A int `doc:"First number"`
//	    B int `doc:"Second number"`
//	}
//
//	add := expose.Introspect("add", func(ctx context.Context, in addArgs) (int, error) {
//	    return in.A + in.B, nil
//	})
//
// and registered on a Registry for as many transports as needed:
//
//	reg := expose.New(expose.WithName("calc"))
//	reg.Get("/add", add)
//	reg.CLI(add)
//	sum := reg.Local(add)
//
// Every transport gathers raw input, resolves directives, coerces each
// parameter through its types.Type and aggregates failures into a single
// {"errors": {...}} document before the function runs.
//
// Routes can serve several API versions. The version is read from a /v{N}
// path prefix, the X-API-Version header or the api_version query
// parameter; unversioned registrations answer any version no other
// registration claims:
//
//	reg.Get("/greet", greetV1, expose.Versions(expose.Version(1)))
//	reg.Get("/greet", greetV2, expose.Versions(expose.VersionRange(2, 5)))
//
// Middleware uses the standard func(http.Handler) http.Handler signature
// and wraps the whole registry.
package expose
