package expose

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/bjaus/expose/types"
)

// Documentation describes the HTTP surface of a registry. Handlers is used
// when the registry has at most one version in view; otherwise Versions
// holds one handler set per version.
type Documentation struct {
	Overview string              `json:"overview,omitempty" yaml:"overview,omitempty"`
	Handlers Handlers            `json:"handlers,omitempty" yaml:"handlers,omitempty"`
	Versions map[string]Handlers `json:"versions,omitempty" yaml:"versions,omitempty"`
}

// Handlers maps path, then method, to an endpoint description.
type Handlers map[string]map[string]*EndpointDoc

// EndpointDoc describes one path and method.
type EndpointDoc struct {
	Usage    string              `json:"usage,omitempty" yaml:"usage,omitempty"`
	Examples []string            `json:"examples,omitempty" yaml:"examples,omitempty"`
	Outputs  OutputDoc           `json:"outputs" yaml:"outputs"`
	Inputs   map[string]InputDoc `json:"inputs,omitempty" yaml:"inputs,omitempty"`
}

// OutputDoc describes the response format.
type OutputDoc struct {
	ContentType string `json:"content_type" yaml:"content_type"`
}

// InputDoc describes one accepted parameter.
type InputDoc struct {
	Type    string `json:"type" yaml:"type"`
	Default any    `json:"default,omitempty" yaml:"default,omitempty"`
}

// Documentation generates the documentation for version, or for every
// version when version is NoVersion. Unversioned handlers are listed under
// every version.
func (r *Registry) Documentation(version int) Documentation {
	doc := Documentation{Overview: r.name}

	known := r.Versions()
	views := []int{NoVersion}
	switch {
	case version != NoVersion:
		views = []int{version}
	case len(known) > 0:
		views = known
	}

	sets := make(map[int]Handlers, len(views))
	for _, v := range views {
		sets[v] = make(Handlers)
	}

	type entry struct {
		path, method string
		version      int
		h            *HTTPInterface
	}
	var entries []entry
	r.table.each(func(path, method string, v int, h *HTTPInterface) {
		entries = append(entries, entry{path, method, v, h})
	})

	for _, e := range entries {
		for _, view := range views {
			if e.version != NoVersion && e.version != view {
				continue
			}
			// An explicit entry shadows the unversioned one.
			if e.version == NoVersion && view != NoVersion {
				if own, err := r.table.resolve(e.path, e.method, view); err == nil && own != e.h {
					continue
				}
			}
			methods, ok := sets[view][e.path]
			if !ok {
				methods = make(map[string]*EndpointDoc)
				sets[view][e.path] = methods
			}
			methods[e.method] = e.h.documentation(view)
		}
	}

	if len(views) == 1 {
		doc.Handlers = sets[views[0]]
		return doc
	}
	doc.Versions = make(map[string]Handlers, len(views))
	for v, set := range sets {
		doc.Versions[strconv.Itoa(v)] = set
	}
	return doc
}

func (h *HTTPInterface) documentation(version int) *EndpointDoc {
	d := &EndpointDoc{
		Usage:   h.doc,
		Outputs: OutputDoc{ContentType: h.outputs.ContentType(nil)},
	}

	prefix := ""
	if version != NoVersion {
		prefix = fmt.Sprintf("/v%d", version)
	}
	for _, ex := range h.config.examples {
		text := prefix + h.path
		if ex != "" {
			text += "?" + ex
		}
		if !slices.Contains(d.Examples, text) {
			d.Examples = append(d.Examples, text)
		}
	}

	for _, name := range h.params {
		if _, ok := h.directives[name]; ok || slices.Contains(pseudoParams, name) {
			continue
		}
		if p, _ := h.fn.param(name); p.Receiver {
			continue
		}
		if d.Inputs == nil {
			d.Inputs = make(map[string]InputDoc)
		}
		in := InputDoc{Type: types.Text.Description(), Default: h.defaults[name]}
		if t, ok := h.coercions[name]; ok {
			in.Type = t.Description()
		}
		d.Inputs[name] = in
	}
	return d
}

// WriteDocumentation writes the documentation as indented JSON to w.
func (r *Registry) WriteDocumentation(w io.Writer, version int) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r.Documentation(version))
}

// WriteDocumentationYAML writes the documentation as YAML to w.
func (r *Registry) WriteDocumentationYAML(w io.Writer, version int) error {
	return yaml.NewEncoder(w).Encode(r.Documentation(version))
}

// ServeDocumentation registers a GET handler at path that serves the
// documentation of the requested version as JSON, or YAML when the Accept
// header asks for it.
func (r *Registry) ServeDocumentation(path string) {
	r.mux.HandleFunc("GET "+path, func(w http.ResponseWriter, req *http.Request) {
		version := versionOf(req)
		if req.Header.Get("Accept") == "application/yaml" {
			w.Header().Set("Content-Type", "application/yaml")
			//nolint:errcheck,gosec // best-effort after WriteHeader
			r.WriteDocumentationYAML(w, version)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		//nolint:errcheck,gosec // best-effort after WriteHeader
		json.NewEncoder(w).Encode(r.Documentation(version))
	})
}
