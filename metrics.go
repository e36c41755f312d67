package expose

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsConfig configures the Metrics middleware.
type MetricsConfig struct {
	Namespace  string                // default: "expose"
	Registerer prometheus.Registerer // default: prometheus.DefaultRegisterer
	Buckets    []float64             // default: prometheus.DefBuckets
}

// Metrics returns middleware that records request counts and latencies,
// labelled by method, status and the API version detected by the Registry
// it wraps. It panics if the collectors cannot be registered.
func Metrics(cfg MetricsConfig) Middleware {
	if cfg.Namespace == "" {
		cfg.Namespace = "expose"
	}
	if cfg.Registerer == nil {
		cfg.Registerer = prometheus.DefaultRegisterer
	}
	if len(cfg.Buckets) == 0 {
		cfg.Buckets = prometheus.DefBuckets
	}

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: cfg.Namespace,
		Name:      "requests_total",
		Help:      "HTTP requests served, by method, status and API version.",
	}, []string{"method", "status", "version"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: cfg.Namespace,
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   cfg.Buckets,
	}, []string{"method", "version"})
	cfg.Registerer.MustRegister(requests, latency)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			label := &versionLabel{value: "none"}
			rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, SetValue(r, label))

			method := methodLabel(r.Method)
			requests.WithLabelValues(method, strconv.Itoa(rec.status), label.value).Inc()
			latency.WithLabelValues(method, label.value).Observe(time.Since(start).Seconds())
		})
	}
}

// versionLabel is filled in by Registry dispatch with the version it
// detected: "none", a registered version number, "unknown" for a well-formed
// but unregistered version, or "invalid".
type versionLabel struct {
	value string
}

func (l *versionLabel) set(ok bool, version int, known bool) {
	switch {
	case !ok:
		l.value = "invalid"
	case version == NoVersion:
		l.value = "none"
	case known:
		l.value = strconv.Itoa(version)
	default:
		l.value = "unknown"
	}
}

// methodLabel bounds the method label to the standard methods.
func methodLabel(method string) string {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut, http.MethodPatch,
		http.MethodDelete, http.MethodConnect, http.MethodOptions, http.MethodTrace:
		return method
	default:
		return "other"
	}
}

// MetricsHandler serves the metrics gathered by g in the Prometheus text
// format. A nil g serves prometheus.DefaultGatherer.
func MetricsHandler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
