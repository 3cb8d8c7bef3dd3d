package system

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/san-kum/stagesim/internal/stage"
)

const metricsNamespace = "stagesim"

// Metrics counts realize work. A nil *Metrics records nothing.
type Metrics struct {
	RealizeTotal    *prometheus.CounterVec
	RealizeDuration *prometheus.HistogramVec
	Invalidations   *prometheus.CounterVec
}

// NewMetrics registers the collectors on reg. Pass prometheus.DefaultRegisterer
// to expose them on the default handler.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RealizeTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "realize_total",
			Help:      "Stages realized, by stage",
		}, []string{"stage"}),
		RealizeDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "realize_duration_seconds",
			Help:      "Time spent realizing one stage across all subsystems",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 10),
		}, []string{"stage"}),
		Invalidations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "invalidations_total",
			Help:      "InvalidateAll calls issued through the system, by stage",
		}, []string{"stage"}),
	}
}

func (m *Metrics) realized(g stage.Stage, seconds float64) {
	if m == nil {
		return
	}
	m.RealizeTotal.WithLabelValues(g.String()).Inc()
	m.RealizeDuration.WithLabelValues(g.String()).Observe(seconds)
}

func (m *Metrics) invalidated(g stage.Stage) {
	if m == nil {
		return
	}
	m.Invalidations.WithLabelValues(g.String()).Inc()
}
