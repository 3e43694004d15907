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

// HTTP metrics
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
			Buckets: prometheus.DefBuckets, // [0.005..10]
		},
		[]string{"method", "path", "status"},
	)
)

// Authorization core metrics
var (
	authzDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authz_decisions_total",
			Help: "Authorization decisions by guard kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)

	auditWriteFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "audit_write_failures_total",
		Help: "Audit records that could not be persisted.",
	})

	approvalRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "approval_requests_total",
			Help: "Approval request transitions by action and resulting status.",
		},
		[]string{"action", "status"},
	)

	initOnce sync.Once
)

// Init registers metrics in the default registry once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(httpInFlight, httpRequestsTotal, httpRequestDuration,
			authzDecisions, auditWriteFailures, approvalRequests)
	})
}

// Handler exposes the default Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveAuthz counts one guard decision.
func ObserveAuthz(kind, outcome string) {
	authzDecisions.WithLabelValues(kind, outcome).Inc()
}

// AuditWriteFailed counts one dropped audit record.
func AuditWriteFailed() {
	auditWriteFailures.Inc()
}

// ObserveApproval counts one approval request transition.
func ObserveApproval(action, status string) {
	approvalRequests.WithLabelValues(action, status).Inc()
}

// Instrument records throughput, latency and in-flight requests.
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

// collections whose second segment is an identifier.
var idCollections = map[string]bool{
	"tenants":    true,
	"principals": true,
	"rooms":      true,
	"complaints": true,
	"approvals":  true,
}

// idSubresources lists the allowed trailing segments after an identifier.
var idSubresources = map[string]bool{
	"admins":   true,
	"decision": true,
	"cancel":   true,
}

// fixedSegments are literal path parts that look like identifiers.
var fixedSegments = map[string]bool{
	"switch":  true,
	"session": true,
	"pending": true,
	"mine":    true,
}

// CanonicalPath collapses identifiers so metric labels stay bounded.
func CanonicalPath(raw string) string {
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		raw = raw[:i]
	}
	if raw == "" || raw == "/" {
		return "/"
	}
	parts := strings.Split(strings.Trim(raw, "/"), "/")
	if len(parts) < 3 || parts[0] != "v1" || !idCollections[parts[1]] || fixedSegments[parts[2]] {
		return raw
	}
	switch len(parts) {
	case 3:
		parts[2] = ":id"
	case 4:
		if !idSubresources[parts[3]] {
			return raw
		}
		parts[2] = ":id"
	case 5:
		if parts[3] != "admins" {
			return raw
		}
		parts[2] = ":id"
		parts[4] = ":principal_id"
	default:
		return raw
	}
	return "/" + strings.Join(parts, "/")
}

// statusWriter captures the response code.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
