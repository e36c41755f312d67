package expose

import (
	"net/http"
	"strconv"
)

// SecureConfig configures the Secure headers middleware. A config passed to
// Secure replaces the defaults entirely.
type SecureConfig struct {
	ContentTypeNosniff    bool   // default: true
	FrameDeny             bool   // default: true
	HSTSMaxAge            int    // seconds; 0 disables Strict-Transport-Security
	ReferrerPolicy        string // default: "no-referrer"
	ContentSecurityPolicy string // default: "default-src 'none'; frame-ancestors 'none'"
}

// Secure returns middleware that sets security headers suited to API
// responses. Strict-Transport-Security is only sent on TLS requests,
// including ones a proxy marks with X-Forwarded-Proto. Headers set by a
// route through ResponseHeaders take precedence.
func Secure(cfg ...SecureConfig) Middleware {
	c := SecureConfig{
		ContentTypeNosniff:    true,
		FrameDeny:             true,
		ReferrerPolicy:        "no-referrer",
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
	}
	if len(cfg) > 0 {
		c = cfg[0]
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			if c.ContentTypeNosniff {
				h.Set("X-Content-Type-Options", "nosniff")
			}
			if c.FrameDeny {
				h.Set("X-Frame-Options", "DENY")
			}
			if c.HSTSMaxAge > 0 && (r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https") {
				h.Set("Strict-Transport-Security", "max-age="+strconv.Itoa(c.HSTSMaxAge))
			}
			if c.ReferrerPolicy != "" {
				h.Set("Referrer-Policy", c.ReferrerPolicy)
			}
			if c.ContentSecurityPolicy != "" {
				h.Set("Content-Security-Policy", c.ContentSecurityPolicy)
			}

			next.ServeHTTP(w, r)
		})
	}
}
