package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for hook resolution and rendering.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry       *prometheus.Registry
	requestsTotal  *prometheus.CounterVec
	hooksResolved  prometheus.Counter
	hooksRejected  *prometheus.CounterVec
	clipsRendered  prometheus.Counter
	clipsFailed    *prometheus.CounterVec
	renderDuration prometheus.Histogram
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hookcut_http_requests_total",
			Help: "HTTP requests by status class.",
		}, []string{"code"}),
		hooksResolved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hookcut_hooks_resolved_total",
			Help: "Hook candidates that resolved into clip specs.",
		}),
		hooksRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hookcut_hooks_rejected_total",
			Help: "Hook candidates rejected, by reason.",
		}, []string{"reason"}),
		clipsRendered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hookcut_clips_rendered_total",
			Help: "Clips rendered successfully.",
		}),
		clipsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hookcut_clips_failed_total",
			Help: "Clips that failed, by stage.",
		}, []string{"stage"}),
		renderDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "hookcut_render_duration_seconds",
			Help:    "Wall time of one clip render.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300},
		}),
	}
	registry.MustRegister(
		m.requestsTotal,
		m.hooksResolved,
		m.hooksRejected,
		m.clipsRendered,
		m.clipsFailed,
		m.renderDuration,
	)
	return m
}

func (m *Metrics) IncHooksResolved(n int) {
	if m == nil {
		return
	}
	m.hooksResolved.Add(float64(n))
}

func (m *Metrics) IncHookRejected(reason string) {
	if m == nil {
		return
	}
	m.hooksRejected.WithLabelValues(reason).Inc()
}

// ObserveRender records one successful render and its duration.
func (m *Metrics) ObserveRender(d time.Duration) {
	if m == nil {
		return
	}
	m.clipsRendered.Inc()
	m.renderDuration.Observe(d.Seconds())
}

func (m *Metrics) IncClipFailed(stage string) {
	if m == nil {
		return
	}
	m.clipsFailed.WithLabelValues(stage).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
