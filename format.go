package expose

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"
)

// Formatter serializes a result. Format returns []byte, string or an
// io.Reader; readers are streamed and may be served as byte ranges.
type Formatter interface {
	ContentType(c *Call) string
	Format(c *Call, data any) (any, error)
}

// NativeTyper lets a value choose how it is represented by the structured
// formatters.
type NativeTyper interface {
	NativeTypes() any
}

// NewFormat builds a Formatter with a constant content type.
func NewFormat(contentType string, fn func(data any) ([]byte, error)) Formatter {
	return &format{
		contentType: contentType,
		fn: func(_ *Call, data any) (any, error) {
			if r, ok := data.(io.Reader); ok {
				return r, nil
			}
			return fn(data)
		},
	}
}

type format struct {
	contentType string
	fn          func(c *Call, data any) (any, error)
}

func (f *format) ContentType(*Call) string { return f.contentType }

func (f *format) Format(c *Call, data any) (any, error) { return f.fn(c, data) }

var (
	// JSON is the default output format.
	JSON = NewFormat("application/json", func(data any) ([]byte, error) {
		return json.Marshal(native(data))
	})

	// PrettyJSON is JSON indented with four spaces.
	PrettyJSON = NewFormat("application/json", func(data any) ([]byte, error) {
		return json.MarshalIndent(native(data), "", "    ")
	})

	// JSONCamelCase is JSON with every object key converted to camelCase.
	JSONCamelCase = NewFormat("application/json", func(data any) ([]byte, error) {
		raw, err := json.Marshal(native(data))
		if err != nil {
			return nil, err
		}
		var generic any
		if err := json.Unmarshal(raw, &generic); err != nil {
			return nil, err
		}
		return json.Marshal(rekey(generic, camelCase))
	})

	// Text renders scalars with fmt and structured values as JSON.
	Text = NewFormat("text/plain; charset=utf-8", formatText)

	// YAML renders the result as a YAML document.
	YAML = NewFormat("application/yaml", func(data any) ([]byte, error) {
		return yaml.Marshal(native(data))
	})

	// MsgPack renders the result as MessagePack.
	MsgPack = NewFormat("application/msgpack", func(data any) ([]byte, error) {
		return msgpack.Marshal(native(data))
	})

	// File streams a file. The result may be a path, an *os.File or any
	// io.Reader; the content type is derived from the file extension.
	File Formatter = &format{contentType: "application/octet-stream", fn: formatFile}
)

func formatText(data any) ([]byte, error) {
	switch v := data.(type) {
	case nil:
		return nil, nil
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	case fmt.Stringer:
		return []byte(v.String()), nil
	}

	//exhaustive:ignore
	switch reflect.Indirect(reflect.ValueOf(data)).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct:
		return json.Marshal(native(data))
	}
	return []byte(fmt.Sprint(data)), nil
}

func formatFile(c *Call, data any) (any, error) {
	var name string
	switch v := data.(type) {
	case string:
		f, err := os.Open(v) //nolint:gosec // path chosen by the exposed function
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", v, err)
		}
		name, data = v, f
	case *os.File:
		name = v.Name()
	case []byte:
		return v, nil
	}

	r, ok := data.(io.Reader)
	if !ok {
		return nil, fmt.Errorf("file output: unsupported result %T", data)
	}
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" && c != nil {
		c.setContentType(ct)
	}
	return r, nil
}

// native prepares data for the structured encoders: bytes become text and
// NativeTyper values are replaced by their native form, recursively.
func native(data any) any {
	switch v := data.(type) {
	case NativeTyper:
		return native(v.NativeTypes())
	case []byte:
		return string(v)
	case Args:
		return native(map[string]any(v))
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, e := range v {
			out[k] = native(e)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = native(e)
		}
		return out
	default:
		return data
	}
}

func rekey(data any, fn func(string) string) any {
	switch v := data.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, e := range v {
			out[fn(k)] = rekey(e, fn)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = rekey(e, fn)
		}
		return out
	default:
		return data
	}
}

// negotiateCacheSize bounds the number of distinct Accept headers remembered.
const negotiateCacheSize = 256

type negotiator struct {
	formats []Formatter
	types   []string
	cache   *lru.Cache[string, Formatter]
}

// Negotiate picks a formatter per request from the Accept header. def is
// used when nothing is requested, for */* and when nothing matches.
func Negotiate(def Formatter, alternatives ...Formatter) Formatter {
	n := &negotiator{formats: append([]Formatter{def}, alternatives...)}
	for _, f := range n.formats {
		mediaType, _, err := mime.ParseMediaType(f.ContentType(nil))
		if err != nil {
			mediaType = f.ContentType(nil)
		}
		n.types = append(n.types, mediaType)
	}
	//nolint:errcheck // only fails for a non-positive size
	n.cache, _ = lru.New[string, Formatter](negotiateCacheSize)
	return n
}

func (n *negotiator) ContentType(c *Call) string { return n.pick(c).ContentType(c) }

func (n *negotiator) Format(c *Call, data any) (any, error) { return n.pick(c).Format(c, data) }

func (n *negotiator) pick(c *Call) Formatter {
	if c == nil || c.Request == nil {
		return n.formats[0]
	}
	accept := c.Request.Header.Get("Accept")
	if f, ok := n.cache.Get(accept); ok {
		return f
	}
	f := n.negotiate(accept)
	n.cache.Add(accept, f)
	return f
}

// negotiate returns the formatter with the highest quality in accept.
// Entries with q=0 are refused.
func (n *negotiator) negotiate(accept string) Formatter {
	if accept == "" {
		return n.formats[0]
	}

	best, bestQ := n.formats[0], -1.0
	for part := range strings.SplitSeq(accept, ",") {
		mediaType, params, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err != nil {
			continue
		}

		q := 1.0
		if qs, ok := params["q"]; ok {
			if parsed, err := strconv.ParseFloat(qs, 64); err == nil {
				q = parsed
			}
		}
		if q <= 0 || q <= bestQ {
			continue
		}

		if mediaType == "*/*" {
			best, bestQ = n.formats[0], q
			continue
		}
		for i, t := range n.types {
			if t == mediaType {
				best, bestQ = n.formats[i], q
				break
			}
		}
	}
	return best
}
