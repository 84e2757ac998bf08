package obs

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Общие HTTP-метрики
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

	authzDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authz_decisions_total",
			Help: "Access guard decisions by module, action and outcome.",
		},
		[]string{"module", "action", "outcome"},
	)

	auditWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_writes_total",
			Help: "Audit entry writes by result.",
		},
		[]string{"result"},
	)

	rateLimited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ratelimit_rejections_total",
			Help: "Requests rejected by the per-role rate limiter.",
		},
		[]string{"role"},
	)

	initOnce sync.Once
)

// Init регистрирует метрики в default-регистре (однократно).
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(httpInFlight, httpRequestsTotal, httpRequestDuration, authzDecisions, auditWrites, rateLimited)
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordDecision counts a guard outcome ("allow", "deny", "error").
func RecordDecision(module, action, outcome string) {
	authzDecisions.WithLabelValues(module, action, outcome).Inc()
}

// RecordAuditWrite counts an audit write ("ok", "failed").
func RecordAuditWrite(result string) {
	auditWrites.WithLabelValues(result).Inc()
}

func RecordRateLimited(role string) {
	rateLimited.WithLabelValues(role).Inc()
}

// Instrument measures RPS, latency and in-flight requests.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpInFlight.Dec()
	})
}

// CanonicalPath collapses identifier segments so label cardinality stays bounded.
func CanonicalPath(raw string) string {
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		raw = raw[:i]
	}
	if raw == "" || raw == "/" {
		return "/"
	}
	parts := strings.Split(strings.Trim(raw, "/"), "/")
	switch {
	case len(parts) >= 2 && parts[0] == "api" && parts[1] == "docs":
		return "/api/docs/*"
	case len(parts) == 4 && parts[0] == "api" && parts[1] == "access":
		return "/api/access/:module/:action"
	case len(parts) == 5 && parts[0] == "api" && parts[1] == "admin" && parts[2] == "users" && parts[4] == "module-overrides":
		return "/api/admin/users/:id/module-overrides"
	case len(parts) == 5 && parts[0] == "api" && parts[1] == "platform" && parts[2] == "roles" && parts[4] == "module-access":
		return "/api/platform/roles/:key/module-access"
	}
	return "/" + strings.Join(parts, "/")
}

// statusWriter запоминает код ответа.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach Flush on the underlying writer.
func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }
