package expose

import (
	"compress/gzip"
	"net/http"
	"strconv"
	"strings"
	"sync"
)

// CompressConfig configures the Compress middleware.
type CompressConfig struct {
	Level   int      // gzip level (1-9, default: 5)
	MinSize int      // minimum first write to compress (default: 1024)
	Types   []string // content type fragments to compress (default: json, yaml and text)
}

// Compress returns middleware that gzip-compresses formatted responses when
// the client accepts gzip. Partial content, responses that already carry a
// Content-Encoding and writes shorter than MinSize are passed through.
func Compress(cfg ...CompressConfig) Middleware {
	c := CompressConfig{
		Level:   5,
		MinSize: 1024,
		Types:   []string{"application/json", "+json", "application/yaml", "text/"},
	}
	if len(cfg) > 0 {
		if cfg[0].Level > 0 {
			c.Level = cfg[0].Level
		}
		if cfg[0].MinSize > 0 {
			c.MinSize = cfg[0].MinSize
		}
		if len(cfg[0].Types) > 0 {
			c.Types = cfg[0].Types
		}
	}

	pool := &sync.Pool{
		New: func() any {
			gz, _ := gzip.NewWriterLevel(nil, c.Level) //nolint:errcheck // an invalid level falls back below
			if gz == nil {
				gz = gzip.NewWriter(nil)
			}
			return gz
		},
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Add("Vary", "Accept-Encoding")
			gw := &gzipResponseWriter{ResponseWriter: w, cfg: c, pool: pool}
			next.ServeHTTP(gw, r)
			gw.finish()
		})
	}
}

// gzipResponseWriter holds the status back until the first write so the
// decision to compress can see the content type and the write size.
type gzipResponseWriter struct {
	http.ResponseWriter
	cfg     CompressConfig
	pool    *sync.Pool
	gz      *gzip.Writer
	status  int
	started bool
}

func (g *gzipResponseWriter) WriteHeader(status int) {
	if g.status == 0 {
		g.status = status
	}
}

func (g *gzipResponseWriter) Write(b []byte) (int, error) {
	if !g.started {
		g.start(len(b))
	}
	if g.gz != nil {
		return g.gz.Write(b)
	}
	return g.ResponseWriter.Write(b)
}

func (g *gzipResponseWriter) start(size int) {
	g.started = true
	if g.status == 0 {
		g.status = http.StatusOK
	}
	if g.shouldCompress(size) {
		h := g.Header()
		h.Set("Content-Encoding", "gzip")
		h.Del("Content-Length")
		h.Del("Accept-Ranges")
		g.gz = g.pool.Get().(*gzip.Writer) //nolint:errcheck,forcetypeassert // pool.New returns *gzip.Writer
		g.gz.Reset(g.ResponseWriter)
	}
	g.ResponseWriter.WriteHeader(g.status)
}

func (g *gzipResponseWriter) finish() {
	if !g.started {
		g.start(0)
	}
	if g.gz != nil {
		//nolint:errcheck,gosec // best-effort flush
		g.gz.Close()
		g.pool.Put(g.gz)
		g.gz = nil
	}
}

func (g *gzipResponseWriter) shouldCompress(size int) bool {
	switch g.status {
	case http.StatusNoContent, http.StatusPartialContent, http.StatusNotModified:
		return false
	}
	h := g.Header()
	if size < g.cfg.MinSize || h.Get("Content-Encoding") != "" || h.Get("Content-Range") != "" {
		return false
	}
	if n, err := strconv.Atoi(h.Get("Content-Length")); err == nil && n < g.cfg.MinSize {
		return false
	}
	ct := h.Get("Content-Type")
	for _, t := range g.cfg.Types {
		if strings.Contains(ct, t) {
			return true
		}
	}
	return false
}

func (g *gzipResponseWriter) Unwrap() http.ResponseWriter {
	return g.ResponseWriter
}
