package obs

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTP-level metrics shared by every route.
var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// Identity-core metrics.
var (
	LoginsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "videxa_logins_total",
			Help: "Login attempts by result.",
		},
		[]string{"result"},
	)

	RefreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "videxa_token_refresh_total",
			Help: "Refresh-token rotations by result.",
		},
		[]string{"result"},
	)

	ReuseDetectedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "videxa_token_reuse_detected_total",
		Help: "Superseded refresh tokens presented again (theft signal).",
	})

	APIKeyAuthTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "videxa_apikey_auth_total",
			Help: "API key authentication attempts by result.",
		},
		[]string{"result"},
	)

	SharesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "videxa_file_shares_total",
			Help: "File sharing grants created by grantee type.",
		},
		[]string{"grantee_type"},
	)
)

// Init registers all metrics in the default registry.
func Init() {
	prometheus.MustRegister(
		httpInFlight, httpRequestsTotal, httpRequestDuration,
		LoginsTotal, RefreshTotal, ReuseDetectedTotal, APIKeyAuthTotal, SharesTotal,
	)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Instrument wraps a handler with RPS/latency/in-flight measurement.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpInFlight.Dec()
	})
}

// CanonicalPath collapses resource identifiers so that metric label
// cardinality stays bounded.
func CanonicalPath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	parts := strings.Split(strings.Trim(path, "/"), "/")
	switch {
	case len(parts) >= 2 && parts[0] == "api" && parts[1] == "files":
		switch len(parts) {
		case 2:
			return "/api/files"
		case 3:
			return "/api/files/:id"
		case 4:
			return "/api/files/:id/" + parts[3]
		case 5:
			if parts[3] == "permissions" {
				return "/api/files/:id/permissions/:pid"
			}
		}
	case len(parts) == 3 && parts[0] == "api" && parts[1] == "apikeys" && parts[2] != "scopes":
		return "/api/apikeys/:id"
	case len(parts) == 3 && parts[0] == "auth" && parts[1] == "sessions" && parts[2] != "revoke-all":
		return "/auth/sessions/:id"
	}
	return path
}

// statusWriter captures the response code for metric labels.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
