package metrics

import "github.com/prometheus/client_golang/prometheus"

// CoordinatorMetrics exposes counters/histograms for request coordination.
type CoordinatorMetrics struct {
	executions   *prometheus.CounterVec
	coalesced    prometheus.Counter
	throttleWait prometheus.Histogram
}

func NewCoordinatorMetrics(reg prometheus.Registerer) *CoordinatorMetrics {
	m := &CoordinatorMetrics{
		executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "practicehub",
			Subsystem: "coordinator",
			Name:      "executions_total",
			Help:      "Request executions started by the coordinator, by outcome",
		}, []string{"outcome", "forced"}),
		coalesced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "practicehub",
			Subsystem: "coordinator",
			Name:      "coalesced_total",
			Help:      "Calls that joined an in-flight execution instead of starting one",
		}),
		throttleWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "practicehub",
			Subsystem: "coordinator",
			Name:      "throttle_wait_seconds",
			Help:      "Delay injected before an execution to honor the per-key minimum interval",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 1.5, 2},
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.executions, m.coalesced, m.throttleWait)
	return m
}

func (m *CoordinatorMetrics) ObserveExecution(outcome string, forced bool) {
	if m == nil {
		return
	}
	label := "false"
	if forced {
		label = "true"
	}
	m.executions.WithLabelValues(outcome, label).Inc()
}

func (m *CoordinatorMetrics) ObserveCoalesced() {
	if m == nil {
		return
	}
	m.coalesced.Inc()
}

func (m *CoordinatorMetrics) ObserveThrottleWait(seconds float64) {
	if m == nil {
		return
	}
	m.throttleWait.Observe(seconds)
}
