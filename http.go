package expose

import (
	"errors"
	"fmt"
	"maps"
	"net/http"
	"regexp"
	"slices"
)

var wildcardPattern = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)(?:\.\.\.)?\}`)

// HTTPInterface is a function exposed on one HTTP path and method.
type HTTPInterface struct {
	*Interface
	method   string
	path     string
	wildcard []string
}

func newHTTPInterface(iface *Interface, method, path string) *HTTPInterface {
	var names []string
	for _, m := range wildcardPattern.FindAllStringSubmatch(path, -1) {
		names = append(names, m[1])
	}
	return &HTTPInterface{Interface: iface, method: method, path: path, wildcard: names}
}

// Method returns the HTTP method.
func (h *HTTPInterface) Method() string { return h.method }

// Path returns the registered path pattern.
func (h *HTTPInterface) Path() string { return h.path }

// ServeHTTP serves the interface directly, without version dispatch.
func (h *HTTPInterface) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.registry.respond(h, w, r, NoVersion)
}

// serve runs the interface and writes the response. seed is merged into the
// gathered input; error handlers receive the error through it. Errors that
// are neither handled nor caught are returned without writing anything.
func (h *HTTPInterface) serve(w http.ResponseWriter, r *http.Request, version int, seed Args) error {
	c := &Call{
		Context:  r.Context(),
		Request:  r,
		Response: newResponse(),
		Registry: h.registry,
		Version:  version,
	}
	if err := h.run(c, w, seed); err != nil {
		c.Response.close()
		return err
	}
	if err := c.Response.write(w); err != nil {
		h.registry.logger.ErrorContext(r.Context(), "write response", "path", r.URL.Path, "err", err)
	}
	return nil
}

// run fills c.Response.
func (h *HTTPInterface) run(c *Call, w http.ResponseWriter, seed Args) error {
	res := c.Response
	cfg := h.config

	for _, hdr := range cfg.responseHeaders {
		res.Header.Set(hdr.Name, hdr.Value)
	}
	h.allowOrigin(c)
	if cfg.status != 0 {
		res.Status = cfg.status
	}
	c.setContentType(h.outputs.ContentType(c))

	if conclusion := h.checkRequirements(c); conclusion != nil {
		var sc StatusCoder
		if err, ok := conclusion.(error); ok && errors.As(err, &sc) {
			res.Status = sc.StatusCode()
		} else if sc, ok := conclusion.(StatusCoder); ok {
			res.Status = sc.StatusCode()
		}
		payload, err := h.outputs.Format(c, conclusion)
		if err != nil {
			return err
		}
		return res.setPayload(payload)
	}

	input, err := h.gather(c, w, seed)
	if err != nil {
		return err
	}
	c.Args = input

	errs, err := h.validate(input)
	if err != nil {
		return h.fail(c, w, input, err)
	}
	if len(errs) > 0 {
		data, err := h.invalid(errs)
		if err != nil {
			return err
		}
		res.Status = http.StatusBadRequest
		c.setContentType(h.invalidOutputs.ContentType(c))
		payload, err := h.invalidOutputs.Format(c, data)
		if err != nil {
			return err
		}
		return res.setPayload(payload)
	}

	result, err := h.call(c.Context, input)
	if err != nil {
		return h.fail(c, w, input, err)
	}
	if next, ok := result.(*HTTPInterface); ok {
		return next.run(c, w, seed)
	}

	if err := h.respondWith(c, result); err != nil {
		return h.fail(c, w, input, err)
	}
	if cfg.etag {
		res.tag(c.Request, cfg.etagWeak)
	}
	return nil
}

// respondWith transforms and formats result into c.Response, serving a byte
// range of streamed payloads when one was requested.
func (h *HTTPInterface) respondWith(c *Call, result any) error {
	result, err := h.applyTransform(result)
	if err != nil {
		return err
	}
	payload, err := h.outputs.Format(c, result)
	if err != nil {
		return err
	}
	if err := c.Response.setPayload(payload); err != nil {
		return err
	}
	if c.Response.stream == nil {
		return nil
	}
	if start, end, ok := parseRange(c.Request.Header.Get("Range")); ok {
		return c.Response.applyRange(start, end)
	}
	return nil
}

// gather merges query parameters, path wildcards, the decoded body,
// pseudo-parameters and directive values.
func (h *HTTPInterface) gather(c *Call, w http.ResponseWriter, seed Args) (Args, error) {
	r := c.Request
	input := Args(flatten(r.URL.Query()))
	for _, name := range h.wildcard {
		if v := r.PathValue(name); v != "" {
			input[name] = v
		}
	}

	if !h.config.skipBody && r.Body != nil && r.Body != http.NoBody && r.ContentLength != 0 {
		if err := h.readBody(c, w, input); err != nil {
			return nil, err
		}
	}

	if slices.Contains(h.params, "body") {
		if _, ok := input["body"]; !ok {
			input["body"] = nil
		}
	}
	maps.Copy(input, seed)

	if slices.Contains(h.params, "request") {
		input["request"] = r
	}
	if slices.Contains(h.params, "response") {
		input["response"] = c.Response
	}
	if slices.Contains(h.params, "api_version") {
		if c.Version == NoVersion {
			input["api_version"] = nil
		} else {
			input["api_version"] = c.Version
		}
	}

	if err := h.resolveDirectives(c, input); err != nil {
		return nil, err
	}
	return input, nil
}

func (h *HTTPInterface) readBody(c *Call, w http.ResponseWriter, input Args) error {
	r := c.Request
	reader, charset, ok := bodyReaderFor(h.registry.bodyReaders, r.Header.Get("Content-Type"))
	if !ok {
		return nil
	}

	body := r.Body
	if h.config.bodyLimit > 0 {
		body = http.MaxBytesReader(w, r.Body, h.config.bodyLimit)
	}
	decoded, err := reader(body, charset)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return Errorf(http.StatusRequestEntityTooLarge, "request body exceeds %d bytes", tooLarge.Limit)
		}
		return &HTTPError{Status: http.StatusBadRequest, Message: fmt.Sprintf("Invalid body: %v", err)}
	}

	if m, ok := decoded.(map[string]any); ok {
		maps.Copy(input, m)
	}
	if decoded != nil && slices.Contains(h.params, "body") {
		input["body"] = decoded
	}
	return nil
}

// allowOrigin sets Access-Control-Allow-Origin for configured origins.
func (h *HTTPInterface) allowOrigin(c *Call) {
	origins := h.config.allowOrigins
	if len(origins) == 0 {
		return
	}
	if slices.Contains(origins, "*") {
		c.Response.Header.Set("Access-Control-Allow-Origin", "*")
		return
	}
	origin := c.Request.Header.Get("Origin")
	if origin != "" && slices.Contains(origins, origin) {
		c.Response.Header.Set("Access-Control-Allow-Origin", origin)
		c.Response.Header.Add("Vary", "Origin")
	}
}

// fail routes err: redirects are answered, ErrNotFound goes to the
// not-found handler and registered errors to their handler. Anything else is
// returned, as is every error when catching is disabled.
func (h *HTTPInterface) fail(c *Call, w http.ResponseWriter, input Args, err error) error {
	var redirect *Redirect
	if errors.As(err, &redirect) {
		c.resetResponse()
		c.Response.Status = redirect.Status
		c.Response.Header.Set("Location", redirect.Location)
		return nil
	}
	if h.config.noCatch {
		return err
	}

	if errors.Is(err, ErrNotFound) {
		if nf := h.registry.notFoundHandler(c.Version); nf != nil {
			c.resetResponse()
			return nf.run(c, w, input)
		}
		return err
	}

	handler, matched, ok := h.registry.errorHandler(err, c.Version)
	if !ok {
		return err
	}
	seed := maps.Clone(input)
	if seed == nil {
		seed = Args{}
	}
	seed["exception"] = matched
	c.resetResponse()
	return handler.run(c, w, seed)
}

// resetResponse replaces the response, closing any stream it held.
func (c *Call) resetResponse() {
	if c.Response != nil {
		c.Response.close()
	}
	c.Response = newResponse()
}
