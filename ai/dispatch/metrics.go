package dispatch

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exports dispatcher metrics in Prometheus format. A nil *Metrics is
// valid and records nothing, which keeps tests free of registry plumbing.
type Metrics struct {
	registry *prometheus.Registry

	queueDepth   *prometheus.GaugeVec
	tasksTotal   *prometheus.CounterVec
	running      *prometheus.GaugeVec
	execDuration *prometheus.HistogramVec
	evictedTotal prometheus.Counter
}

// NewMetrics creates the dispatcher metrics collectors. If registry is nil a
// private registry is created.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &Metrics{registry: registry}

	m.queueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "famulus",
			Subsystem: "dispatch",
			Name:      "queue_depth",
			Help:      "Number of queued tasks per provider",
		},
		[]string{"provider"},
	)

	m.tasksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "famulus",
			Subsystem: "dispatch",
			Name:      "tasks_total",
			Help:      "Tasks by provider and terminal status",
		},
		[]string{"provider", "status"},
	)

	m.running = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "famulus",
			Subsystem: "dispatch",
			Name:      "running",
			Help:      "Whether a task is in flight per provider (0 or 1)",
		},
		[]string{"provider"},
	)

	m.execDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "famulus",
			Subsystem: "dispatch",
			Name:      "execution_duration_seconds",
			Help:      "Backend call duration per provider",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"provider"},
	)

	m.evictedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "famulus",
			Subsystem: "dispatch",
			Name:      "evicted_results_total",
			Help:      "Terminal task results evicted after the retention window",
		},
	)

	registry.MustRegister(m.queueDepth, m.tasksTotal, m.running, m.execDuration, m.evictedTotal)
	return m
}

// Handler returns the HTTP handler exposing the metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) taskEnqueued(provider string) {
	if m == nil {
		return
	}
	m.queueDepth.WithLabelValues(provider).Inc()
}

func (m *Metrics) taskStarted(provider string) {
	if m == nil {
		return
	}
	m.queueDepth.WithLabelValues(provider).Dec()
	m.running.WithLabelValues(provider).Set(1)
}

func (m *Metrics) taskFinished(provider string, status Status, duration time.Duration) {
	if m == nil {
		return
	}
	m.running.WithLabelValues(provider).Set(0)
	m.tasksTotal.WithLabelValues(provider, string(status)).Inc()
	m.execDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

func (m *Metrics) taskCanceled(provider string) {
	if m == nil {
		return
	}
	m.queueDepth.WithLabelValues(provider).Dec()
	m.tasksTotal.WithLabelValues(provider, string(StatusFailed)).Inc()
}

func (m *Metrics) resultsEvicted(count int) {
	if m == nil {
		return
	}
	m.evictedTotal.Add(float64(count))
}
