package expose

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
)

// notFoundMessage heads the default not-found response.
const notFoundMessage = "The API call you tried to make was not defined. Here's a definition of the API to help you get going :)"

var versionPrefix = regexp.MustCompile(`^/v(\d+)(/.*)?$`)

// Registry holds every registration of one API: the version dispatch table,
// directives, error handlers, not-found handlers, body readers, CLI commands
// and local functions. It implements http.Handler.
type Registry struct {
	routeSet

	name          string
	output        Formatter
	logger        *slog.Logger
	versionHeader string
	versionParam  string

	mux         *http.ServeMux
	mounted     map[string]struct{}
	table       *versionTable
	middleware  []Middleware
	bodyReaders map[string]BodyReader

	mu         sync.RWMutex
	directives map[string]Directive
	handlers   map[int][]errorEntry
	notFound   map[int]*HTTPInterface
	commands   map[string]*CLIInterface
	cmdOrder   []string
	functions  map[string]*functionEntry
	startup    []StartupHook
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithName sets the registry (module) name.
func WithName(name string) RegistryOption {
	return func(r *Registry) {
		r.name = name
	}
}

// WithOutput sets the default output formatter. JSON when unset.
func WithOutput(f Formatter) RegistryOption {
	return func(r *Registry) {
		r.output = f
	}
}

// WithBodyReader registers a body reader for a media type.
func WithBodyReader(mediaType string, reader BodyReader) RegistryOption {
	return func(r *Registry) {
		r.bodyReaders[mediaType] = reader
	}
}

// WithLogger sets the logger for unhandled errors. slog.Default when unset.
func WithLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithDirective registers a directive under a parameter name.
func WithDirective(name string, d Directive) RegistryOption {
	return func(r *Registry) {
		r.directives[name] = d
	}
}

// WithVersionHeader sets the request header carrying the API version.
func WithVersionHeader(header string) RegistryOption {
	return func(r *Registry) {
		r.versionHeader = header
	}
}

// WithVersionParam sets the query parameter carrying the API version.
func WithVersionParam(param string) RegistryOption {
	return func(r *Registry) {
		r.versionParam = param
	}
}

// New creates a Registry with the given options.
func New(opts ...RegistryOption) *Registry {
	r := &Registry{
		output:        JSON,
		logger:        slog.Default(),
		versionHeader: "X-API-Version",
		versionParam:  "api_version",
		mux:           http.NewServeMux(),
		mounted:       make(map[string]struct{}),
		table:         newVersionTable(),
		bodyReaders:   defaultBodyReaders(),
		directives:    builtinDirectives(),
		handlers:      make(map[int][]errorEntry),
		notFound:      make(map[int]*HTTPInterface),
		commands:      make(map[string]*CLIInterface),
		functions:     make(map[string]*functionEntry),
	}
	r.routeSet = routeSet{reg: r}
	for _, opt := range opts {
		opt(r)
	}
	r.mux.HandleFunc("/", func(w http.ResponseWriter, req *http.Request) {
		r.notFoundResponse(w, req, versionOf(req))
	})
	return r
}

// Name returns the registry name.
func (r *Registry) Name() string { return r.name }

// Use adds middleware. Middleware is applied in the order added.
func (r *Registry) Use(mw ...Middleware) {
	r.middleware = append(r.middleware, mw...)
}

// AddDirective registers a directive under a parameter name. Interfaces
// pick up directives when they are built, so add them before registering
// the functions that use them.
func (r *Registry) AddDirective(name string, d Directive) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.directives[name] = d
}

func (r *Registry) directive(name string) (Directive, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.directives[name]
	return d, ok
}

// Versions lists every explicitly registered API version.
func (r *Registry) Versions() []int { return r.table.versions() }

// Lookup resolves the interface serving path and method for version. The
// error distinguishes ErrPathNotFound, ErrMethodNotAllowed and
// ErrVersionNotFound.
func (r *Registry) Lookup(path, method string, version int) (*HTTPInterface, error) {
	return r.table.resolve(path, method, version)
}

// ServeHTTP implements http.Handler.
func (r *Registry) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	handler := http.Handler(http.HandlerFunc(r.dispatch))
	for i := len(r.middleware) - 1; i >= 0; i-- {
		handler = r.middleware[i](handler)
	}
	handler.ServeHTTP(w, req)
}

// ListenAndServe runs the startup hooks and starts an HTTP server on the
// given address. It blocks until the context is cancelled, then shuts down
// gracefully.
func (r *Registry) ListenAndServe(ctx context.Context, addr string) error {
	if err := r.Startup(ctx); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// dispatch detects the requested version, strips a /v{N} prefix and hands
// the request to the path mux.
func (r *Registry) dispatch(w http.ResponseWriter, req *http.Request) {
	version, path, err := r.detectVersion(req)
	if label, ok := GetValue[*versionLabel](req.Context()); ok {
		label.set(err == nil, version, r.table.has(version))
	}
	if err != nil {
		writeProblem(w, err)
		return
	}

	req = SetValue(req, apiVersion(version))
	if path != req.URL.Path {
		u := *req.URL
		u.Path, u.RawPath = path, ""
		req.URL = &u
	}
	r.mux.ServeHTTP(w, req)
}

// detectVersion reads the version from the path prefix, the version header
// and the version query parameter. Sources that disagree are an error.
func (r *Registry) detectVersion(req *http.Request) (int, string, error) {
	path := req.URL.Path
	var found []int

	if m := versionPrefix.FindStringSubmatch(path); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return NoVersion, path, Errorf(http.StatusBadRequest, "invalid api version %q", m[1])
		}
		found = append(found, n)
		path = m[2]
		if path == "" {
			path = "/"
		}
	}
	for _, raw := range []string{req.Header.Get(r.versionHeader), req.URL.Query().Get(r.versionParam)} {
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return NoVersion, path, Errorf(http.StatusBadRequest, "invalid api version %q", raw)
		}
		found = append(found, n)
	}

	version := NoVersion
	for _, v := range found {
		if version != NoVersion && v != version {
			return NoVersion, path, fmt.Errorf("%w: %d and %d", ErrVersionConflict, version, v)
		}
		version = v
	}
	return version, path, nil
}

// mount registers path with the mux once.
func (r *Registry) mount(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.mounted[path]; ok {
		return
	}
	r.mounted[path] = struct{}{}

	pattern := path
	if strings.HasSuffix(pattern, "/") {
		pattern += "{$}"
	}
	r.mux.HandleFunc(pattern, func(w http.ResponseWriter, req *http.Request) {
		version := versionOf(req)
		h, err := r.table.resolve(path, req.Method, version)
		switch {
		case errors.Is(err, ErrMethodNotAllowed):
			w.Header().Set("Allow", strings.Join(r.table.allowed(path), ", "))
			writeProblem(w, err)
		case err != nil:
			r.notFoundResponse(w, req, version)
		default:
			r.respond(h, w, req, version)
		}
	})
}

// respond serves h and turns an unhandled error into a problem response.
func (r *Registry) respond(h *HTTPInterface, w http.ResponseWriter, req *http.Request, version int) {
	err := h.serve(w, req, version, nil)
	if err == nil {
		return
	}
	status := ErrorStatus(err)
	level := slog.LevelDebug
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	r.logger.Log(req.Context(), level, "unhandled error",
		"method", req.Method,
		"path", req.URL.Path,
		"status", status,
		"err", err,
	)
	writeProblem(w, err)
}

// notFoundResponse serves the not-found handler for version, or the
// documentation when none is registered.
func (r *Registry) notFoundResponse(w http.ResponseWriter, req *http.Request, version int) {
	if nf := r.notFoundHandler(version); nf != nil {
		r.respond(nf, w, req, version)
		return
	}

	body := map[string]any{
		"404":           notFoundMessage,
		"documentation": r.Documentation(version),
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	//nolint:errcheck,errchkjson,gosec // best-effort after WriteHeader
	json.NewEncoder(w).Encode(body)
}

func (r *Registry) notFoundHandler(version int) *HTTPInterface {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if h, ok := r.notFound[version]; ok {
		return h
	}
	return r.notFound[NoVersion]
}

type errorEntry struct {
	exact   func(error) bool
	match   func(error) (any, bool)
	handler *HTTPInterface
}

// OnError registers fn as the handler for errors of type E. The handler
// receives the matched error as its "exception" parameter together with the
// input of the failed call. An exact type match wins; otherwise the most
// recently registered handler whose type matches through errors.As is used.
// Registering E again replaces the earlier handler.
func OnError[E error](r *Registry, fn *Function, opts ...RouteOption) *HTTPInterface {
	target := reflect.TypeFor[E]()
	return r.addErrorHandler(errorEntry{
		exact: func(err error) bool { return reflect.TypeOf(err) == target },
		match: func(err error) (any, bool) {
			var e E
			if errors.As(err, &e) {
				return e, true
			}
			return nil, false
		},
	}, fn, opts)
}

// OnErrorIs registers fn as the handler for errors matching target through
// errors.Is.
func (r *Registry) OnErrorIs(target error, fn *Function, opts ...RouteOption) *HTTPInterface {
	return r.addErrorHandler(errorEntry{
		exact: func(err error) bool { return err == target }, //nolint:errorlint // identity is the exact match
		match: func(err error) (any, bool) { return err, errors.Is(err, target) },
	}, fn, opts)
}

func (r *Registry) addErrorHandler(entry errorEntry, fn *Function, opts []RouteOption) *HTTPInterface {
	cfg := r.base.With(opts...).With(CatchErrors(false))
	entry.handler = newHTTPInterface(build(r, cfg, fn), "", "")

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range versionKeys(cfg.versions) {
		r.handlers[v] = append(r.handlers[v], entry)
	}
	return entry.handler
}

// errorHandler finds the handler for err: version-specific handlers before
// unversioned ones, the latest exact type match before the latest errors.As
// match. Registering a type again therefore replaces its handler.
func (r *Registry) errorHandler(err error, version int) (*HTTPInterface, any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lists := [][]errorEntry{r.handlers[NoVersion]}
	if version != NoVersion {
		lists = [][]errorEntry{r.handlers[version], r.handlers[NoVersion]}
	}
	for _, entries := range lists {
		for _, e := range slices.Backward(entries) {
			if e.exact(err) {
				return e.handler, err, true
			}
		}
		for _, e := range slices.Backward(entries) {
			if matched, ok := e.match(err); ok {
				return e.handler, matched, true
			}
		}
	}
	return nil, nil, false
}

func versionKeys(spec VersionSpec) []int {
	if spec.IsUnversioned() {
		return []int{NoVersion}
	}
	return spec.Numbers()
}

type functionEntry struct {
	byVersion   map[int]*LocalInterface
	unversioned *LocalInterface
}

func (r *Registry) addFunction(name string, spec VersionSpec, l *LocalInterface) {
	if name == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	fe, ok := r.functions[name]
	if !ok {
		fe = &functionEntry{byVersion: make(map[int]*LocalInterface)}
		r.functions[name] = fe
	}
	if spec.IsUnversioned() {
		fe.unversioned = l
		return
	}
	for _, v := range spec.Numbers() {
		fe.byVersion[v] = l
	}
}

// function finds the local interface named name for version, falling back
// to the unversioned registration.
func (r *Registry) function(name string, version int) (*LocalInterface, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fe, ok := r.functions[name]
	if !ok {
		return nil, false
	}
	if l, ok := fe.byVersion[version]; ok {
		return l, true
	}
	return fe.unversioned, fe.unversioned != nil
}

// Command returns the CLI command registered under name.
func (r *Registry) Command(name string) (*CLIInterface, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.commands[name]
	return c, ok
}

// Commands lists CLI command names in registration order.
func (r *Registry) Commands() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.cmdOrder)
}

// RunCLI runs the command named by args[0] with the remaining arguments.
// Without arguments the available commands are listed.
func (r *Registry) RunCLI(ctx context.Context, args []string, stdout io.Writer) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" {
		return r.writeCommands(stdout)
	}
	cmd, ok := r.Command(args[0])
	if !ok {
		return fmt.Errorf("%w: command %q", ErrNotFound, args[0])
	}
	return cmd.Run(ctx, args[1:], stdout)
}

func (r *Registry) writeCommands(w io.Writer) error {
	var b strings.Builder
	if r.name != "" {
		b.WriteString(r.name + "\n\n")
	}
	b.WriteString("Available commands:\n")
	for _, name := range r.Commands() {
		cmd, _ := r.Command(name)
		fmt.Fprintf(&b, "  %-20s %s\n", name, firstLine(cmd.doc))
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return line
}
