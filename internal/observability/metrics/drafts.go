package metrics

import "github.com/prometheus/client_golang/prometheus"

// DraftMetrics exposes counters for draft persistence.
type DraftMetrics struct {
	writes        *prometheus.CounterVec
	storeErrors   *prometheus.CounterVec
	notifications *prometheus.CounterVec
}

func NewDraftMetrics(reg prometheus.Registerer) *DraftMetrics {
	m := &DraftMetrics{
		writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "practicehub",
			Subsystem: "drafts",
			Name:      "writes_total",
			Help:      "Durable draft snapshot writes",
		}, []string{"reason", "result"}),
		storeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "practicehub",
			Subsystem: "drafts",
			Name:      "store_errors_total",
			Help:      "Durable store faults swallowed by draft sessions",
		}, []string{"op"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "practicehub",
			Subsystem: "drafts",
			Name:      "notifications_total",
			Help:      "Save notifications surfaced to editors",
		}, []string{"kind"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.writes, m.storeErrors, m.notifications)
	return m
}

func (m *DraftMetrics) ObserveWrite(reason, result string) {
	if m == nil {
		return
	}
	m.writes.WithLabelValues(reason, result).Inc()
}

func (m *DraftMetrics) ObserveStoreError(op string) {
	if m == nil {
		return
	}
	m.storeErrors.WithLabelValues(op).Inc()
}

func (m *DraftMetrics) ObserveNotification(kind string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(kind).Inc()
}
