package expose

import "net/http"

// Handle mounts a plain http.Handler on the registry mux, bypassing the
// version table, coercion and formatting. pattern follows http.ServeMux
// syntax and may carry a method ("GET /metrics"). Version prefixes are
// still stripped before the mux sees the path.
func (r *Registry) Handle(pattern string, h http.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mux.Handle(pattern, h)
}

// HandleFunc is Handle for a handler function.
func (r *Registry) HandleFunc(pattern string, fn http.HandlerFunc) {
	r.Handle(pattern, fn)
}
