// Package metrics exposes Prometheus counters for the session lifecycle.
// All methods are safe to call on a nil *Metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "rocketworld"

type Metrics struct {
	registry *prometheus.Registry

	SessionsAcquired       prometheus.Counter
	SessionsReleased       prometheus.Counter
	AcquireFailures        *prometheus.CounterVec
	ArtifactExportFailures *prometheus.CounterVec
	ReleaseWarnings        *prometheus.CounterVec
	SessionsActive         prometheus.Gauge
	ScenariosFinished      *prometheus.CounterVec
}

// New creates the collectors on a dedicated registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		SessionsAcquired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_acquired_total",
			Help:      "Browser sessions that reached the ready state.",
		}),
		SessionsReleased: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_released_total",
			Help:      "Browser sessions that were released.",
		}),
		AcquireFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_acquire_failures_total",
			Help:      "Failed session acquisitions by step.",
		}, []string{"step"}),
		ArtifactExportFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifact_export_failures_total",
			Help:      "Failed artifact exports by artifact kind.",
		}, []string{"artifact"}),
		ReleaseWarnings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "release_warnings_total",
			Help:      "Failed close operations during release by resource.",
		}, []string{"resource"}),
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Sessions currently holding browser resources.",
		}),
		ScenariosFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scenarios_finished_total",
			Help:      "Finished scenarios by result.",
		}, []string{"result"}),
	}

	m.registry.MustRegister(
		m.SessionsAcquired,
		m.SessionsReleased,
		m.AcquireFailures,
		m.ArtifactExportFailures,
		m.ReleaseWarnings,
		m.SessionsActive,
		m.ScenariosFinished,
	)

	return m
}

// Registry returns the registry holding all collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the collectors in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Acquired() {
	if m == nil {
		return
	}
	m.SessionsAcquired.Inc()
	m.SessionsActive.Inc()
}

func (m *Metrics) Released() {
	if m == nil {
		return
	}
	m.SessionsReleased.Inc()
	m.SessionsActive.Dec()
}

func (m *Metrics) AcquireFailed(step string) {
	if m == nil {
		return
	}
	m.AcquireFailures.WithLabelValues(step).Inc()
}

func (m *Metrics) ArtifactExportFailed(artifact string) {
	if m == nil {
		return
	}
	m.ArtifactExportFailures.WithLabelValues(artifact).Inc()
}

func (m *Metrics) ReleaseWarning(resource string) {
	if m == nil {
		return
	}
	m.ReleaseWarnings.WithLabelValues(resource).Inc()
}

func (m *Metrics) ScenarioFinished(passed bool) {
	if m == nil {
		return
	}
	result := "passed"
	if !passed {
		result = "failed"
	}
	m.ScenariosFinished.WithLabelValues(result).Inc()
}
