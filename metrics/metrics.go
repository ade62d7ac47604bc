// Package metrics records Prometheus metrics for agent invocations and the
// HTTP surface.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hupe1980/stylemesh/orchestrator"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusRecorder implements orchestrator.Recorder and instruments HTTP handlers.
type PrometheusRecorder struct {
	attemptsTotal      *prometheus.CounterVec
	failuresTotal      *prometheus.CounterVec
	fallbacksTotal     *prometheus.CounterVec
	invocationDuration *prometheus.HistogramVec
	visualsTotal       *prometheus.CounterVec
	httpRequestsTotal  *prometheus.CounterVec
	httpDuration       *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

var _ orchestrator.Recorder = (*PrometheusRecorder)(nil)

// NewPrometheusRecorder registers the collectors on reg. A nil reg selects a
// fresh registry.
func NewPrometheusRecorder(reg *prometheus.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	factory := promauto.With(reg)

	return &PrometheusRecorder{
		attemptsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stylemesh_agent_attempts_total",
				Help: "Total number of provider submissions by agent role",
			},
			[]string{"role"},
		),
		failuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stylemesh_agent_failures_total",
				Help: "Failed attempts by agent role and failure class",
			},
			[]string{"role", "class"},
		),
		fallbacksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stylemesh_agent_fallbacks_total",
				Help: "Canned fallback replies returned by agent role",
			},
			[]string{"role"},
		),
		invocationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stylemesh_agent_invocation_duration_seconds",
				Help:    "Duration of agent invocations including retries",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"role", "outcome"},
		),
		visualsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stylemesh_visualizations_total",
				Help: "Outfit visualizations by status",
			},
			[]string{"status"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stylemesh_http_requests_total",
				Help: "HTTP requests by method, route and status code",
			},
			[]string{"method", "route", "code"},
		),
		httpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stylemesh_http_request_duration_seconds",
				Help:    "HTTP request latency by method and route",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		gatherer: reg,
	}
}

// Attempt implements orchestrator.Recorder.
func (p *PrometheusRecorder) Attempt(role string) {
	p.attemptsTotal.WithLabelValues(role).Inc()
}

// Failure implements orchestrator.Recorder.
func (p *PrometheusRecorder) Failure(role, class string) {
	p.failuresTotal.WithLabelValues(role, class).Inc()
}

// Fallback implements orchestrator.Recorder.
func (p *PrometheusRecorder) Fallback(role string) {
	p.fallbacksTotal.WithLabelValues(role).Inc()
}

// Invocation implements orchestrator.Recorder.
func (p *PrometheusRecorder) Invocation(role, outcome string, d time.Duration) {
	p.invocationDuration.WithLabelValues(role, outcome).Observe(d.Seconds())
}

// Visualization counts one generated ("success") or failed ("error") image.
func (p *PrometheusRecorder) Visualization(status string) {
	p.visualsTotal.WithLabelValues(status).Inc()
}

// Handler exposes the registry in the Prometheus text format.
func (p *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(p.gatherer, promhttp.HandlerOpts{})
}

// Middleware counts requests by their chi route pattern.
func (p *PrometheusRecorder) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		p.httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		p.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
