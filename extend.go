package expose

import (
	"context"
	"fmt"
	"maps"
	"strings"
)

// Extend mounts every HTTP route of other under prefix and adopts its CLI
// commands, local functions and startup hooks. Extended routes keep the
// directives, error handlers and body readers of the registry they were
// built on; version detection and not-found handling are this registry's.
// Entries of other replace existing ones, as a later registration would.
// Raw handlers added with Handle are not carried over.
func (r *Registry) Extend(other *Registry, prefix string) {
	if other == r {
		panic("expose: a registry cannot extend itself")
	}
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix != "" && !strings.HasPrefix(prefix, "/") {
		panic(fmt.Sprintf("expose: extend prefix %q must start with /", prefix))
	}

	type entry struct {
		path    string
		method  string
		version int
		h       *HTTPInterface
	}
	var entries []entry
	other.table.each(func(path, method string, version int, h *HTTPInterface) {
		entries = append(entries, entry{path: prefix + path, method: method, version: version, h: h})
	})
	for _, e := range entries {
		spec := Unversioned()
		if e.version != NoVersion {
			spec = Version(e.version)
		}
		r.table.register(e.path, e.method, spec, newHTTPInterface(e.h.Interface, e.method, e.path))
		r.mount(e.path)
	}

	other.mu.RLock()
	commands := maps.Clone(other.commands)
	order := append([]string(nil), other.cmdOrder...)
	functions := make(map[string]functionEntry, len(other.functions))
	for name, fe := range other.functions {
		functions[name] = functionEntry{byVersion: maps.Clone(fe.byVersion), unversioned: fe.unversioned}
	}
	startup := append([]StartupHook(nil), other.startup...)
	other.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, name := range order {
		if _, ok := r.commands[name]; !ok {
			r.cmdOrder = append(r.cmdOrder, name)
		}
		r.commands[name] = commands[name]
	}
	for name, fe := range functions {
		mine, ok := r.functions[name]
		if !ok {
			mine = &functionEntry{byVersion: make(map[int]*LocalInterface)}
			r.functions[name] = mine
		}
		maps.Copy(mine.byVersion, fe.byVersion)
		if fe.unversioned != nil {
			mine.unversioned = fe.unversioned
		}
	}
	r.startup = append(r.startup, startup...)
}

// StartupHook runs once before the registry starts serving.
type StartupHook func(ctx context.Context, r *Registry) error

// OnStartup adds hooks run by Startup, in the order added.
func (r *Registry) OnStartup(hooks ...StartupHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.startup = append(r.startup, hooks...)
}

// Startup runs the startup hooks and stops at the first error.
// ListenAndServe calls it before accepting connections.
func (r *Registry) Startup(ctx context.Context) error {
	r.mu.RLock()
	hooks := append([]StartupHook(nil), r.startup...)
	r.mu.RUnlock()

	for i, hook := range hooks {
		if err := hook(ctx, r); err != nil {
			return fmt.Errorf("startup hook %d: %w", i, err)
		}
	}
	return nil
}
