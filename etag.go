package expose

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
)

// ETag tags buffered 2xx responses to GET and HEAD with an entity tag
// derived from the body. Requests whose If-None-Match carries the tag get
// 304 Not Modified without a body; If-Match mismatches get 412.
func ETag(weak bool) RouteOption {
	return func(c *RouteConfig) {
		c.etag, c.etagWeak = true, weak
	}
}

// tag applies the entity tag to r for req. Streamed payloads are skipped.
func (r *Response) tag(req *http.Request, weak bool) {
	if req == nil || r.stream != nil || r.Status < 200 || r.Status >= 300 {
		return
	}
	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		return
	}

	hash := sha256.Sum256(r.body)
	etag := `"` + hex.EncodeToString(hash[:8]) + `"`
	if weak {
		etag = "W/" + etag
	}
	r.Header.Set("ETag", etag)

	if match := req.Header.Get("If-None-Match"); match != "" && strings.Contains(match, etag) {
		r.Status, r.body = http.StatusNotModified, nil
		return
	}
	if match := req.Header.Get("If-Match"); match != "" && match != "*" && !strings.Contains(match, etag) {
		r.Status, r.body = http.StatusPreconditionFailed, nil
	}
}
