package expose

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig configures the RateLimit requirement.
type RateLimitConfig struct {
	Rate            float64            // calls per second
	Burst           int                // max burst
	KeyFunc         func(*Call) string // default: remote IP, "local" outside HTTP
	CleanupInterval time.Duration      // how often to prune idle limiters (default: 1m)
	MaxIdle         time.Duration      // remove limiters idle longer than this (default: 5m)
}

// RateLimit returns a requirement that applies per-key rate limiting. A
// limited call concludes with a 429 problem and a Retry-After header.
func RateLimit(cfg RateLimitConfig) Requirement {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = remoteKey
	}

	cleanupInterval := cfg.CleanupInterval
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}
	maxIdle := cfg.MaxIdle
	if maxIdle <= 0 {
		maxIdle = 5 * time.Minute
	}
	retryAfter := "1"
	if cfg.Rate > 0 {
		retryAfter = strconv.FormatFloat(math.Ceil(1/cfg.Rate), 'f', 0, 64)
	}

	var (
		mu          sync.Mutex
		limiters    = make(map[string]*limiterEntry)
		lastCleanup time.Time
	)

	return func(c *Call) any {
		key := cfg.KeyFunc(c)

		mu.Lock()
		now := time.Now()

		// Lazy cleanup of expired limiters.
		if now.Sub(lastCleanup) >= cleanupInterval {
			for k, e := range limiters {
				if now.Sub(e.lastSeen) > maxIdle {
					delete(limiters, k)
				}
			}
			lastCleanup = now
		}

		entry, ok := limiters[key]
		if !ok {
			entry = &limiterEntry{
				limiter: rate.NewLimiter(rate.Limit(cfg.Rate), cfg.Burst),
			}
			limiters[key] = entry
		}
		entry.lastSeen = now
		mu.Unlock()

		if entry.limiter.Allow() {
			return nil
		}
		if c.Response != nil {
			c.Response.Header.Set("Retry-After", retryAfter)
		}
		return &ProblemDetail{
			Type:   "about:blank",
			Title:  http.StatusText(http.StatusTooManyRequests),
			Status: http.StatusTooManyRequests,
		}
	}
}

func remoteKey(c *Call) string {
	if c.Request == nil {
		return "local"
	}
	host, _, err := net.SplitHostPort(c.Request.RemoteAddr)
	if err != nil {
		return c.Request.RemoteAddr
	}
	return host
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}
