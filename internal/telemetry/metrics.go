// Package telemetry provides the Prometheus-backed implementation of
// the engine's metrics hook plus HTTP instrumentation middleware.
package telemetry

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/TimurManjosov/konditional/hooks"
)

var (
	httpReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	httpDur = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	evaluations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flag_evaluations_total",
			Help: "Total flag evaluations by decision",
		},
		[]string{"namespace", "mode", "decision"},
	)
	evalDur = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "flag_evaluation_duration_seconds",
			Help:    "Flag evaluation duration in seconds",
			Buckets: []float64{1e-6, 5e-6, 1e-5, 5e-5, 1e-4, 5e-4, 1e-3},
		},
		[]string{"namespace"},
	)

	// SnapshotFlags tracks the number of flags in the currently
	// installed snapshot per namespace.
	SnapshotFlags = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "snapshot_flags",
		Help: "Number of flags in the installed snapshot",
	}, []string{"namespace"})

	// SnapshotLoads counts registry installs.
	SnapshotLoads = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "snapshot_loads_total",
		Help: "Total snapshot installs",
	}, []string{"namespace"})

	// Rollbacks counts registry rollbacks.
	Rollbacks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "snapshot_rollbacks_total",
		Help: "Total registry rollbacks",
	}, []string{"namespace"})
)

// Init registers all collectors. Call once at startup.
func Init() {
	prometheus.MustRegister(httpReqs, httpDur, evaluations, evalDur,
		SnapshotFlags, SnapshotLoads, Rollbacks)
}

// EvaluationSink implements hooks.Metrics on top of the Prometheus
// collectors.
type EvaluationSink struct{}

// RecordEvaluation counts the evaluation and observes its duration.
func (EvaluationSink) RecordEvaluation(e hooks.EvaluationEvent) {
	evaluations.WithLabelValues(e.Namespace, string(e.Mode), e.Decision).Inc()
	evalDur.WithLabelValues(e.Namespace).Observe(e.Duration.Seconds())
}

// Middleware instruments HTTP handlers with request counts and
// latencies, labeled by chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(ww, r)

		// The route pattern is only filled in once routing has run.
		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		httpReqs.WithLabelValues(route, r.Method, http.StatusText(ww.status)).Inc()
		httpDur.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
