package expose

import "net/http"

// routeSet carries the registration helpers shared by Registry and Group.
// Every registration starts from base.
type routeSet struct {
	reg  *Registry
	base RouteConfig
}

// Group is a set of registrations sharing route options, such as a version
// spec, requirements or an output format.
type Group struct {
	routeSet
	name string
}

// Group creates a group whose registrations inherit opts.
func (r *Registry) Group(name string, opts ...RouteOption) *Group {
	return &Group{routeSet: routeSet{reg: r, base: r.base.With(opts...)}, name: name}
}

// Group creates a nested group inheriting this group's options.
func (g *Group) Group(name string, opts ...RouteOption) *Group {
	return &Group{routeSet: routeSet{reg: g.reg, base: g.base.With(opts...)}, name: g.name + "." + name}
}

// Name returns the group name.
func (g *Group) Name() string { return g.name }

// Get registers fn for GET requests on path.
func (s routeSet) Get(path string, fn *Function, opts ...RouteOption) *HTTPInterface {
	return s.methods(path, fn, []string{http.MethodGet}, opts)
}

// Post registers fn for POST requests on path.
func (s routeSet) Post(path string, fn *Function, opts ...RouteOption) *HTTPInterface {
	return s.methods(path, fn, []string{http.MethodPost}, opts)
}

// Put registers fn for PUT requests on path.
func (s routeSet) Put(path string, fn *Function, opts ...RouteOption) *HTTPInterface {
	return s.methods(path, fn, []string{http.MethodPut}, opts)
}

// Patch registers fn for PATCH requests on path.
func (s routeSet) Patch(path string, fn *Function, opts ...RouteOption) *HTTPInterface {
	return s.methods(path, fn, []string{http.MethodPatch}, opts)
}

// Delete registers fn for DELETE requests on path.
func (s routeSet) Delete(path string, fn *Function, opts ...RouteOption) *HTTPInterface {
	return s.methods(path, fn, []string{http.MethodDelete}, opts)
}

// Options registers fn for OPTIONS requests on path.
func (s routeSet) Options(path string, fn *Function, opts ...RouteOption) *HTTPInterface {
	return s.methods(path, fn, []string{http.MethodOptions}, opts)
}

// Head registers fn for HEAD requests on path.
func (s routeSet) Head(path string, fn *Function, opts ...RouteOption) *HTTPInterface {
	return s.methods(path, fn, []string{http.MethodHead}, opts)
}

// Trace registers fn for TRACE requests on path.
func (s routeSet) Trace(path string, fn *Function, opts ...RouteOption) *HTTPInterface {
	return s.methods(path, fn, []string{http.MethodTrace}, opts)
}

// Connect registers fn for CONNECT requests on path.
func (s routeSet) Connect(path string, fn *Function, opts ...RouteOption) *HTTPInterface {
	return s.methods(path, fn, []string{http.MethodConnect}, opts)
}

// GetPost registers fn for GET and POST requests on path.
func (s routeSet) GetPost(path string, fn *Function, opts ...RouteOption) *HTTPInterface {
	return s.methods(path, fn, []string{http.MethodGet, http.MethodPost}, opts)
}

// Call registers fn for every method on path, unless Accept narrows them.
func (s routeSet) Call(path string, fn *Function, opts ...RouteOption) *HTTPInterface {
	return s.methods(path, fn, allMethods, opts)
}

// Route registers fn on path for the methods set with Accept, GET if none.
func (s routeSet) Route(path string, fn *Function, opts ...RouteOption) *HTTPInterface {
	return s.methods(path, fn, []string{http.MethodGet}, opts)
}

// methods registers fn for each method and expanded path. Methods set with
// Accept take precedence over defaults. The interface of the first path and
// method is returned.
func (s routeSet) methods(path string, fn *Function, defaults []string, opts []RouteOption) *HTTPInterface {
	cfg := s.base.With(opts...)
	methods := cfg.methods
	if len(methods) == 0 {
		methods = defaults
	}

	iface := build(s.reg, cfg, fn)
	s.reg.addFunction(iface.name, cfg.versions, &LocalInterface{Interface: build(s.reg, cfg, fn)})

	var first *HTTPInterface
	for _, p := range cfg.paths(path) {
		for _, m := range methods {
			h := newHTTPInterface(iface, m, p)
			s.reg.table.register(p, m, cfg.versions, h)
			s.reg.mount(p)
			if first == nil {
				first = h
			}
		}
	}
	return first
}

// NotFound registers fn as the not-found handler for the versions of opts.
// It responds with 404 unless opts set another status.
func (s routeSet) NotFound(fn *Function, opts ...RouteOption) *HTTPInterface {
	cfg := s.base.With(Status(http.StatusNotFound)).With(opts...).With(CatchErrors(false))
	h := newHTTPInterface(build(s.reg, cfg, fn), "", "")

	s.reg.mu.Lock()
	defer s.reg.mu.Unlock()
	for _, v := range versionKeys(cfg.versions) {
		s.reg.notFound[v] = h
	}
	return h
}

// CLI registers fn as a command line command named after the function.
func (s routeSet) CLI(fn *Function, opts ...RouteOption) *CLIInterface {
	cfg := s.base.With(opts...)
	c := newCLIInterface(build(s.reg, cfg, fn))

	s.reg.mu.Lock()
	defer s.reg.mu.Unlock()
	if _, ok := s.reg.commands[c.name]; !ok {
		s.reg.cmdOrder = append(s.reg.cmdOrder, c.name)
	}
	s.reg.commands[c.name] = c
	return c
}

// Local wraps fn as a validated in-process callable. It is also what
// CurrentAPI resolves by name.
func (s routeSet) Local(fn *Function, opts ...RouteOption) *LocalInterface {
	cfg := s.base.With(opts...)
	l := &LocalInterface{Interface: build(s.reg, cfg, fn)}
	s.reg.addFunction(l.name, cfg.versions, l)
	return l
}

// Exposed groups the interfaces created by Expose.
type Exposed struct {
	HTTP  *HTTPInterface
	CLI   *CLIInterface
	Local *LocalInterface
}

// Expose registers fn as an HTTP GET route on path, a CLI command and a
// local callable at once.
func (s routeSet) Expose(path string, fn *Function, opts ...RouteOption) Exposed {
	return Exposed{
		HTTP:  s.Get(path, fn, opts...),
		CLI:   s.CLI(fn, opts...),
		Local: s.Local(fn, opts...),
	}
}
