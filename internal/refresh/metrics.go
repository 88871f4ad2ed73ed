package refresh

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the refresh runner.
type Metrics struct {
	Cycles        prometheus.Counter
	Refreshed     prometheus.Counter
	Failures      prometheus.Counter
	CycleDuration prometheus.Histogram
}

// NewMetrics creates and registers refresh metrics.
// Returns nil if reg is nil.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		return nil
	}

	m := &Metrics{
		Cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "duck_rage",
			Subsystem: "refresh",
			Name:      "cycles_total",
			Help:      "Total refresh cycles run.",
		}),
		Refreshed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "duck_rage",
			Subsystem: "refresh",
			Name:      "secrets_refreshed_total",
			Help:      "Total successful secret registrations.",
		}),
		Failures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "duck_rage",
			Subsystem: "refresh",
			Name:      "failures_total",
			Help:      "Total failed refresh attempts.",
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "duck_rage",
			Subsystem: "refresh",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of each refresh cycle (resolve + register for all jobs).",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		}),
	}

	reg.MustRegister(
		m.Cycles,
		m.Refreshed,
		m.Failures,
		m.CycleDuration,
	)

	return m
}
