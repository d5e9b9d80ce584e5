package vm

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts executed operations. A nil *Metrics records nothing.
type Metrics struct {
	operations *prometheus.CounterVec
	bytes      *prometheus.CounterVec
	delay      prometheus.Counter
}

// NewMetrics creates the operation metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vmdriver",
			Name:      "operations_total",
			Help:      "Virtual memory operations executed, by operation and outcome.",
		}, []string{"op", "outcome"}),
		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vmdriver",
			Name:      "requested_bytes_total",
			Help:      "Bytes requested from the platform by successful operations.",
		}, []string{"op"}),
		delay: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vmdriver",
			Name:      "delay_seconds_total",
			Help:      "Seconds spent waiting before operations.",
		}),
	}
	reg.MustRegister(m.operations, m.bytes, m.delay)
	return m
}

func (m *Metrics) observe(res OperationResult) {
	if m == nil {
		return
	}
	op := res.Command.Op.String()
	m.operations.WithLabelValues(op, res.Outcome().String()).Inc()
	if res.Succeeded() {
		m.bytes.WithLabelValues(op).Add(float64(res.Size))
	}
	if res.Command.Delay > 0 {
		m.delay.Add(float64(res.Command.Delay))
	}
}
