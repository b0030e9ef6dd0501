package observability

import (
	"net/http"
	"time"

	"github.com/aretw0/ivrflow/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Save outcomes.
const (
	OutcomeSaved     = "saved"
	OutcomeInvalid   = "invalid"
	OutcomeForbidden = "forbidden"
	OutcomeError     = "error"
)

// Metrics groups the collectors of one registry.
type Metrics struct {
	registry     *prometheus.Registry
	saves        *prometheus.CounterVec
	violations   *prometheus.CounterVec
	rejected     *prometheus.CounterVec
	activations  *prometheus.CounterVec
	saveDuration prometheus.Histogram
}

// NewMetrics creates the collectors and registers them on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		saves: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ivrflow_saves_total",
				Help: "Total number of version save attempts by outcome",
			},
			[]string{"outcome"},
		),
		violations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ivrflow_validation_violations_total",
				Help: "Total number of violations reported by authoritative validation",
			},
			[]string{"rule", "severity"},
		),
		rejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ivrflow_rejected_edits_total",
				Help: "Total number of edit operations rejected by the graph model",
			},
			[]string{"op"},
		),
		activations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ivrflow_activations_total",
				Help: "Total number of active-version changes",
			},
			[]string{"kind"},
		),
		saveDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ivrflow_save_duration_seconds",
				Help:    "Duration of version saves, validation included",
				Buckets: prometheus.DefBuckets,
			},
		),
	}
	m.registry.MustRegister(m.saves, m.violations, m.rejected, m.activations, m.saveDuration)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveSave records one save attempt.
func (m *Metrics) ObserveSave(outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.saves.WithLabelValues(outcome).Inc()
	m.saveDuration.Observe(took.Seconds())
}

// ObserveViolations records the violations of a validation run.
func (m *Metrics) ObserveViolations(violations []domain.Violation) {
	if m == nil {
		return
	}
	for _, v := range violations {
		m.violations.WithLabelValues(string(v.Rule), string(v.Severity)).Inc()
	}
}

// RejectedEdit records an edit the graph model refused.
func (m *Metrics) RejectedEdit(op string) {
	if m == nil {
		return
	}
	m.rejected.WithLabelValues(op).Inc()
}

// Activated records an active-version change; kind is "activate" or "publish".
func (m *Metrics) Activated(kind string) {
	if m == nil {
		return
	}
	m.activations.WithLabelValues(kind).Inc()
}
