package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	queueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "waitlist_queue_depth",
			Help: "Active entries per queue by status",
		},
		[]string{"queue_id", "status"},
	)

	transitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waitlist_transitions_total",
			Help: "Entry lifecycle transitions",
		},
		[]string{"queue_id", "event", "result"},
	)

	notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waitlist_notifications_total",
			Help: "Call notifications broadcast to customers",
		},
		[]string{"queue_id", "result"},
	)

	ackLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "waitlist_ack_latency_seconds",
			Help:    "Time between call and customer acknowledgment",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
		[]string{"queue_id"},
	)
)

// Monitor is the process-wide metrics sink handed to the services.
type Monitor struct{}

func NewMonitor() *Monitor {
	return &Monitor{}
}

func (m *Monitor) SetQueueDepth(queueID string, waiting, called int) {
	queueDepth.WithLabelValues(queueID, "waiting").Set(float64(waiting))
	queueDepth.WithLabelValues(queueID, "called").Set(float64(called))
}

func (m *Monitor) TrackTransition(queueID, event, result string) {
	transitions.WithLabelValues(queueID, event, result).Inc()
}

func (m *Monitor) TrackNotification(queueID, result string) {
	notifications.WithLabelValues(queueID, result).Inc()
}

func (m *Monitor) TrackAckLatency(queueID string, sinceCall time.Duration) {
	ackLatency.WithLabelValues(queueID).Observe(sinceCall.Seconds())
}
