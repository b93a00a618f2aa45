// Package metrics exposes Prometheus collectors for the origin gateway.
// All collectors register on a dedicated registry so the /metrics endpoint
// never picks up stray default-registry collectors from dependencies.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "origin_gateway"

// Registry holds every collector in this package.
var Registry = prometheus.NewRegistry()

var (
	httpRequestsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_in_flight",
		Help:      "Number of HTTP requests currently being served.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests by method, path and status code.",
	}, []string{"method", "path", "status"})

	httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by method and path.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
	}, []string{"method", "path"})

	originDecisionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "policy",
		Name:      "origin_decisions_total",
		Help:      "Origin evaluations by outcome (allowed or denied).",
	}, []string{"outcome"})

	preflightRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "policy",
		Name:      "preflight_requests_total",
		Help:      "CORS preflight requests by outcome.",
	}, []string{"outcome"})

	allowlistReloadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "policy",
		Name:      "allowlist_reloads_total",
		Help:      "Allowlist reload attempts by source and outcome.",
	}, []string{"source", "outcome"})

	allowlistSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "policy",
		Name:      "allowlist_size",
		Help:      "Number of origins on the active allowlist.",
	})

	websocketClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "ws",
		Name:      "clients",
		Help:      "Connected WebSocket clients.",
	})
)

func init() {
	Registry.MustRegister(
		httpRequestsInFlight,
		httpRequestsTotal,
		httpRequestDuration,
		originDecisionsTotal,
		preflightRequestsTotal,
		allowlistReloadsTotal,
		allowlistSize,
		websocketClients,
	)
	Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	Registry.MustRegister(collectors.NewGoCollector())
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordDecision counts one origin evaluation.
func RecordDecision(outcome string) {
	originDecisionsTotal.WithLabelValues(outcome).Inc()
}

// RecordPreflight counts one CORS preflight request.
func RecordPreflight(outcome string) {
	preflightRequestsTotal.WithLabelValues(outcome).Inc()
}

// RecordReload counts one allowlist reload attempt.
func RecordReload(source string, ok bool) {
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	allowlistReloadsTotal.WithLabelValues(source, outcome).Inc()
}

// SetAllowListSize records the size of the active allowlist.
func SetAllowListSize(n int) {
	allowlistSize.Set(float64(n))
}

// WebSocketClientConnected tracks a new streaming client.
func WebSocketClientConnected() {
	websocketClients.Inc()
}

// WebSocketClientDisconnected tracks a departed streaming client.
func WebSocketClientDisconnected() {
	websocketClients.Dec()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// knownPaths is the gateway's fixed route set. Anything else collapses to
// one label to keep cardinality bounded.
var knownPaths = map[string]struct{}{
	"/":                  {},
	"/health":            {},
	"/metrics":           {},
	"/ws":                {},
	"/api/auth/login":    {},
	"/api/policy":        {},
	"/api/policy/check":  {},
	"/api/policy/reload": {},
	"/api/audit":         {},
	"/api/system":        {},
}

func canonicalPath(path string) string {
	if _, ok := knownPaths[path]; ok {
		return path
	}
	return "other"
}

// InstrumentHandler wraps an HTTP handler with request counting, latency
// and in-flight tracking.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := canonicalPath(r.URL.Path)

		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(recorder, r)

		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(recorder.status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}
