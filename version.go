package expose

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
)

// NoVersion is the version of a request that did not ask for one.
const NoVersion = -1

// VersionSpec is the set of API versions a registration serves. The zero
// value is unversioned: it answers requests without a version and, at the
// lowest priority, requests for any version no other entry claims.
type VersionSpec struct {
	numbers []int
}

// Unversioned returns the unversioned spec.
func Unversioned() VersionSpec { return VersionSpec{} }

// Version serves a single version.
func Version(n int) VersionSpec { return VersionSpec{numbers: []int{n}} }

// VersionSet serves an explicit set of versions.
func VersionSet(ns ...int) VersionSpec {
	out := append([]int{}, ns...)
	slices.Sort(out)
	return VersionSpec{numbers: slices.Compact(out)}
}

// VersionRange serves lo up to, but not including, hi.
func VersionRange(lo, hi int) VersionSpec {
	out := make([]int, 0, max(hi-lo, 0))
	for v := lo; v < hi; v++ {
		out = append(out, v)
	}
	return VersionSpec{numbers: out}
}

// ParseVersions parses "6", "1,2,5" or the half-open range "2..5". An empty
// string is unversioned.
func ParseVersions(s string) (VersionSpec, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Unversioned(), nil
	}
	if lo, hi, ok := strings.Cut(s, ".."); ok {
		l, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil {
			return VersionSpec{}, fmt.Errorf("parse versions %q: %w", s, err)
		}
		h, err := strconv.Atoi(strings.TrimSpace(hi))
		if err != nil {
			return VersionSpec{}, fmt.Errorf("parse versions %q: %w", s, err)
		}
		return VersionRange(l, h), nil
	}

	var ns []int
	for part := range strings.SplitSeq(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return VersionSpec{}, fmt.Errorf("parse versions %q: %w", s, err)
		}
		ns = append(ns, n)
	}
	return VersionSet(ns...), nil
}

// IsUnversioned reports whether s is the unversioned spec.
func (s VersionSpec) IsUnversioned() bool { return s.numbers == nil }

// Contains reports whether s explicitly claims v.
func (s VersionSpec) Contains(v int) bool { return slices.Contains(s.numbers, v) }

// Numbers returns the claimed versions in ascending order.
func (s VersionSpec) Numbers() []int { return slices.Clone(s.numbers) }

func (s VersionSpec) String() string {
	if s.IsUnversioned() {
		return "unversioned"
	}
	parts := make([]string, len(s.numbers))
	for i, n := range s.numbers {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ",")
}

type methodEntry struct {
	byVersion   map[int]*HTTPInterface
	unversioned *HTTPInterface
}

type pathEntry struct {
	methods map[string]*methodEntry
	order   []string
}

// versionTable maps path, then method, then version to an interface.
type versionTable struct {
	mu    sync.RWMutex
	paths map[string]*pathEntry
	order []string
	known map[int]struct{}
}

func newVersionTable() *versionTable {
	return &versionTable{paths: make(map[string]*pathEntry), known: make(map[int]struct{})}
}

// register claims every version of spec for h. Later registrations replace
// earlier ones version by version.
func (t *versionTable) register(path, method string, spec VersionSpec, h *HTTPInterface) {
	t.mu.Lock()
	defer t.mu.Unlock()

	pe, ok := t.paths[path]
	if !ok {
		pe = &pathEntry{methods: make(map[string]*methodEntry)}
		t.paths[path] = pe
		t.order = append(t.order, path)
	}
	me, ok := pe.methods[method]
	if !ok {
		me = &methodEntry{byVersion: make(map[int]*HTTPInterface)}
		pe.methods[method] = me
		pe.order = append(pe.order, method)
	}

	if spec.IsUnversioned() {
		me.unversioned = h
		return
	}
	for _, v := range spec.numbers {
		me.byVersion[v] = h
		t.known[v] = struct{}{}
	}
}

// resolve picks the interface for a request. An explicit version prefers its
// own entry and falls back to the unversioned one.
func (t *versionTable) resolve(path, method string, version int) (*HTTPInterface, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	pe, ok := t.paths[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPathNotFound, path)
	}
	me, ok := pe.methods[method]
	if !ok {
		return nil, fmt.Errorf("%w: %s %s", ErrMethodNotAllowed, method, path)
	}
	if version != NoVersion {
		if h, ok := me.byVersion[version]; ok {
			return h, nil
		}
	}
	if me.unversioned != nil {
		return me.unversioned, nil
	}
	if version == NoVersion {
		return nil, fmt.Errorf("%w: %s requires a version", ErrVersionNotFound, path)
	}
	return nil, fmt.Errorf("%w: %s has no version %d", ErrVersionNotFound, path, version)
}

// has reports whether v was registered explicitly.
func (t *versionTable) has(v int) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.known[v]
	return ok
}

// allowed lists the methods registered for path.
func (t *versionTable) allowed(path string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	pe, ok := t.paths[path]
	if !ok {
		return nil
	}
	return slices.Clone(pe.order)
}

// versions lists every explicitly registered version, ascending.
func (t *versionTable) versions() []int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]int, 0, len(t.known))
	for v := range t.known {
		out = append(out, v)
	}
	slices.Sort(out)
	return out
}

// each visits every entry in registration order, versions ascending with
// the unversioned entry last.
func (t *versionTable) each(fn func(path, method string, version int, h *HTTPInterface)) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, path := range t.order {
		pe := t.paths[path]
		for _, method := range pe.order {
			me := pe.methods[method]
			vs := make([]int, 0, len(me.byVersion))
			for v := range me.byVersion {
				vs = append(vs, v)
			}
			slices.Sort(vs)
			for _, v := range vs {
				fn(path, method, v, me.byVersion[v])
			}
			if me.unversioned != nil {
				fn(path, method, NoVersion, me.unversioned)
			}
		}
	}
}
