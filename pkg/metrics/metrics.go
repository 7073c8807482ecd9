package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Visit workflow metrics
	VisitCheckIns      prometheus.Counter
	VisitTransitions   *prometheus.CounterVec
	QueueSize          *prometheus.GaugeVec

	// Dispensation metrics
	DispenseAttempts prometheus.Counter
	DispenseFailures *prometheus.CounterVec
	DispenseLatency  prometheus.Histogram
	UnitsDispensed   prometheus.Counter

	// Audit pipeline metrics
	AuditEventsEmitted     prometheus.Counter
	AuditEventsProcessed   prometheus.Counter
	AuditEventsFailed      prometheus.Counter
	AuditProcessingLatency prometheus.Histogram

	// Database metrics
	DatabaseOperations *prometheus.CounterVec
}

// NewMetrics creates and registers all application metrics
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		VisitCheckIns: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "visit_checkins_total",
			Help:      "Total number of visit check-ins",
		}),
		VisitTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "visit_transitions_total",
			Help:      "Visit state transitions by target status",
		}, []string{"to_status"}),
		QueueSize: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_size",
			Help:      "Current number of visits per status bucket",
		}, []string{"status"}),
		DispenseAttempts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispense_attempts_total",
			Help:      "Total number of dispensation attempts",
		}),
		DispenseFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispense_failures_total",
			Help:      "Failed dispensations by failure class",
		}, []string{"reason"}),
		DispenseLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispense_duration_seconds",
			Help:      "Time spent in the dispensation transaction",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}),
		UnitsDispensed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "units_dispensed_total",
			Help:      "Total inventory units dispensed",
		}),
		AuditEventsEmitted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_events_emitted_total",
			Help:      "Audit events enqueued to the outbox",
		}),
		AuditEventsProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_events_processed_total",
			Help:      "Audit events written by the audit writer",
		}),
		AuditEventsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_events_failed_total",
			Help:      "Audit events that exhausted their retries",
		}),
		AuditProcessingLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "audit_processing_duration_seconds",
			Help:      "Time spent processing an audit writer batch",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}),
		DatabaseOperations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "database_operations_total",
			Help:      "Database operations by name and outcome",
		}, []string{"operation", "status"}),
	}
}
