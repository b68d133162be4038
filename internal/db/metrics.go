package db

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records update status store activity.
type Metrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewMetrics creates the store collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "updstatus",
			Name:      "store_operations_total",
			Help:      "Update status store operations by outcome.",
		}, []string{"op", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "updstatus",
			Name:      "store_operation_duration_seconds",
			Help:      "Latency of update status store operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.operations, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// observe is nil-safe so repositories can run without metrics.
func (m *Metrics) observe(op string, started time.Time, err error) {
	if m == nil {
		return
	}
	result := "ok"
	switch {
	case isInvariant(err):
		result = "invariant_violation"
	case err != nil:
		result = "error"
	}
	m.operations.WithLabelValues(op, result).Inc()
	m.duration.WithLabelValues(op).Observe(time.Since(started).Seconds())
}
