package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all application metrics
type Metrics struct {
	// Hold metrics
	HoldsCreated        prometheus.Counter
	HoldsReplayed       prometheus.Counter
	HoldsCancelled      prometheus.Counter
	HoldsExpiredDeleted prometheus.Counter

	// Booking metrics
	BookingsConfirmed    prometheus.Counter
	BookingsReplayed     prometheus.Counter
	ConfirmationFailures *prometheus.CounterVec

	// Availability metrics
	SlotSearchDuration prometheus.Histogram

	// Outbox related metrics
	OutboxEventsProcessed   prometheus.Counter
	OutboxEventsFailed      prometheus.Counter
	OutboxDeadLettered      prometheus.Counter
	OutboxProcessingLatency prometheus.Histogram

	// Database metrics
	DatabaseOperations *prometheus.CounterVec
}

// New creates unregistered metrics; call Register to expose them.
func New(namespace string) *Metrics {
	return &Metrics{
		HoldsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "holds_created_total",
			Help:      "Total number of holds created",
		}),
		HoldsReplayed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "holds_replayed_total",
			Help:      "Total number of hold requests answered from an existing idempotency key",
		}),
		HoldsCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "holds_cancelled_total",
			Help:      "Total number of holds cancelled by callers",
		}),
		HoldsExpiredDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "holds_expired_deleted_total",
			Help:      "Total number of expired holds removed by the cleanup sweep",
		}),
		BookingsConfirmed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_confirmed_total",
			Help:      "Total number of holds promoted to bookings",
		}),
		BookingsReplayed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_replayed_total",
			Help:      "Total number of confirmations answered from an existing idempotency key",
		}),
		ConfirmationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "confirmation_failures_total",
			Help:      "Total number of failed confirmations by reason",
		}, []string{"reason"}),
		SlotSearchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "slot_search_duration_seconds",
			Help:      "Time spent resolving availability",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
		OutboxEventsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_events_processed_total",
			Help:      "Total number of successfully processed outbox events",
		}),
		OutboxEventsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_events_failed_total",
			Help:      "Total number of failed outbox delivery attempts",
		}),
		OutboxDeadLettered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_events_dead_lettered_total",
			Help:      "Total number of outbox events that exhausted their attempts",
		}),
		OutboxProcessingLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "outbox_processing_duration_seconds",
			Help:      "Time spent processing one outbox batch",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		DatabaseOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "database_operations_total",
			Help:      "Total number of database operations",
		}, []string{"operation", "status"}),
	}
}

// Register adds every collector to reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.HoldsCreated,
		m.HoldsReplayed,
		m.HoldsCancelled,
		m.HoldsExpiredDeleted,
		m.BookingsConfirmed,
		m.BookingsReplayed,
		m.ConfirmationFailures,
		m.SlotSearchDuration,
		m.OutboxEventsProcessed,
		m.OutboxEventsFailed,
		m.OutboxDeadLettered,
		m.OutboxProcessingLatency,
		m.DatabaseOperations,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
