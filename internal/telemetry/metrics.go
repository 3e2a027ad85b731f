package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors exported by a running Flow
// engine. It plays the role the teacher's session.MetricsHook interface
// plays for plugin-cache events, but as concrete collectors rather than
// an interface of callback methods, since these are fleet-monitoring
// counters rather than caller-supplied behavior.
type Metrics struct {
	CycleDuration prometheus.Histogram
	CyclesTotal   prometheus.Counter
	QueueDepth    *prometheus.GaugeVec
	PresetApplies *prometheus.CounterVec
}

// NewMetrics registers Flow engine collectors against reg. Pass
// prometheus.NewRegistry() for an isolated registry in tests, or
// prometheus.DefaultRegisterer in production.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "flow",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of one scheduler exec cycle.",
			Buckets:   prometheus.ExponentialBuckets(0.00005, 2, 12),
		}),
		CyclesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "flow",
			Name:      "cycles_total",
			Help:      "Count of scheduler exec cycles run.",
		}),
		QueueDepth: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "flow",
			Name:      "queue_depth",
			Help:      "Current occupancy of a lock-free queue.",
		}, []string{"queue"}),
		PresetApplies: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flow",
			Name:      "preset_applies_total",
			Help:      "Count of preset applications by kind (value_list, dual).",
		}, []string{"kind"}),
	}
}

// ObserveCycle records one scheduler cycle's wall-clock duration.
func (m *Metrics) ObserveCycle(d time.Duration) {
	if m == nil {
		return
	}
	m.CycleDuration.Observe(d.Seconds())
	m.CyclesTotal.Inc()
}
