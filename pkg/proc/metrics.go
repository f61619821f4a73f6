package proc

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeCommitted  = "committed"
	outcomeRolledBack = "rolled_back"
	outcomeRedo       = "redo"
	outcomePanic      = "panic"
	outcomeTimeout    = "timeout"
	outcomeCorrupt    = "corrupt"
	outcomeRefused    = "refused"
)

type metrics struct {
	procedures *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	if reg == nil {
		return nil
	}
	f := promauto.With(reg)
	return &metrics{
		procedures: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "beanstore_procedures_total",
				Help: "Procedure attempts by outcome",
			},
			[]string{"procedure", "outcome"},
		),
		duration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "beanstore_procedure_duration_seconds",
				Help:    "Procedure duration including redo attempts",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"procedure"},
		),
	}
}

func (m *metrics) outcome(name, outcome string) {
	if m == nil {
		return
	}
	m.procedures.WithLabelValues(name, outcome).Inc()
}

func (m *metrics) observe(name string, seconds float64) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(name).Observe(seconds)
}
