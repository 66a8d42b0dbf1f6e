package lab

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts workflow transitions. A nil *Metrics records nothing.
type Metrics struct {
	transitions *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lims",
			Subsystem: "lab",
			Name:      "status_transitions_total",
			Help:      "Status changes of samples, test orders and test results.",
		}, []string{"entity", "from", "to"}),
	}
	reg.MustRegister(m.transitions)
	return m
}

func (m *Metrics) observe(entity, from, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(entity, from, to).Inc()
}
