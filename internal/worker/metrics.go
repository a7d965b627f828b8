package worker

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the pipeline's Prometheus instruments. A nil *Metrics records nothing.
type Metrics struct {
	itemsRead          *prometheus.CounterVec
	itemsAcked         *prometheus.CounterVec
	itemsDeadLettered  *prometheus.CounterVec
	batchFailures      *prometheus.CounterVec
	batchDuration      *prometheus.HistogramVec
	campaignsCompleted prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		itemsRead: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "minicrm",
			Subsystem: "pipeline",
			Name:      "items_read_total",
			Help:      "Work items read from a stream.",
		}, []string{"stream"}),
		itemsAcked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "minicrm",
			Subsystem: "pipeline",
			Name:      "items_acked_total",
			Help:      "Work items acknowledged after a successful write.",
		}, []string{"stream"}),
		itemsDeadLettered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "minicrm",
			Subsystem: "pipeline",
			Name:      "items_dead_lettered_total",
			Help:      "Work items moved to the dead letter stream.",
		}, []string{"stream", "reason"}),
		batchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "minicrm",
			Subsystem: "pipeline",
			Name:      "batch_failures_total",
			Help:      "Poll cycles that ended without acknowledging their batch.",
		}, []string{"stream"}),
		batchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "minicrm",
			Subsystem: "pipeline",
			Name:      "batch_duration_seconds",
			Help:      "Time from read to ack of one batch.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"stream"}),
		campaignsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "minicrm",
			Subsystem: "pipeline",
			Name:      "campaigns_completed_total",
			Help:      "Campaigns moved to completed.",
		}),
	}
	reg.MustRegister(m.itemsRead, m.itemsAcked, m.itemsDeadLettered, m.batchFailures, m.batchDuration, m.campaignsCompleted)
	return m
}

func (m *Metrics) read(stream string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.itemsRead.WithLabelValues(stream).Add(float64(n))
}

func (m *Metrics) acked(stream string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.itemsAcked.WithLabelValues(stream).Add(float64(n))
}

func (m *Metrics) deadLettered(stream, reason string) {
	if m == nil {
		return
	}
	m.itemsDeadLettered.WithLabelValues(stream, reason).Inc()
}

func (m *Metrics) failed(stream string) {
	if m == nil {
		return
	}
	m.batchFailures.WithLabelValues(stream).Inc()
}

func (m *Metrics) observe(stream string, d time.Duration) {
	if m == nil {
		return
	}
	m.batchDuration.WithLabelValues(stream).Observe(d.Seconds())
}

func (m *Metrics) completed(n int) {
	if m == nil || n == 0 {
		return
	}
	m.campaignsCompleted.Add(float64(n))
}
