// Package metrics holds the business and database Prometheus collectors.
// HTTP collectors live next to the gin middleware that feeds them.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "marketbridge"

// Business metrics
var (
	// OrdersTotal counts orders by payment method and resulting status
	OrdersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "business",
			Name:      "orders_total",
			Help:      "Total number of orders created",
		},
		[]string{"payment_method", "status"},
	)

	// OrderTransitionsTotal counts status changes by source and target
	OrderTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "business",
			Name:      "order_transitions_total",
			Help:      "Total number of order status transitions",
		},
		[]string{"from", "to"},
	)

	// LedgerEntriesTotal counts ledger entries by status
	LedgerEntriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "business",
			Name:      "ledger_entries_total",
			Help:      "Total number of ledger entries written",
		},
		[]string{"status"},
	)

	// LedgerAmount tracks moved amounts in the settlement currency
	LedgerAmount = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "business",
			Name:      "ledger_amount",
			Help:      "Ledger entry amounts",
			Buckets:   prometheus.ExponentialBuckets(1, 10, 10),
		},
	)

	// PaymentReconciliationsTotal counts webhook outcomes: matched, mismatched, already_processed
	PaymentReconciliationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "business",
			Name:      "payment_reconciliations_total",
			Help:      "Total number of payment callbacks reconciled",
		},
		[]string{"outcome"},
	)

	// RefundsTotal counts per-seller refund entries
	RefundsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "business",
			Name:      "refunds_total",
			Help:      "Total number of refund ledger entries",
		},
	)
)

// Command metrics
var (
	CommandDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "command",
			Name:      "duration_seconds",
			Help:      "Command handler duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"command", "outcome"},
	)
)

// Database metrics
var (
	DBConnectionsTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "connections",
			Help:      "Number of database connections",
		},
		[]string{"state"}, // idle, in_use, max
	)

	DBErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "errors_total",
			Help:      "Total number of database errors",
		},
		[]string{"operation", "error_type"},
	)

	// OutboxPublishedTotal counts relay results
	OutboxPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "published_total",
			Help:      "Outbox events handled by the relay",
		},
		[]string{"event_type", "result"},
	)
)

// RecordOrder records an order creation
func RecordOrder(paymentMethod, status string) {
	OrdersTotal.WithLabelValues(paymentMethod, status).Inc()
}

// RecordTransition records an order status change
func RecordTransition(from, to string) {
	OrderTransitionsTotal.WithLabelValues(from, to).Inc()
}

// RecordLedgerEntry records a ledger entry and its amount
func RecordLedgerEntry(status string, amount float64) {
	LedgerEntriesTotal.WithLabelValues(status).Inc()
	LedgerAmount.Observe(amount)
}

// RecordReconciliation records a payment callback outcome
func RecordReconciliation(outcome string) {
	PaymentReconciliationsTotal.WithLabelValues(outcome).Inc()
}

// RecordCommand records a command handler run
func RecordCommand(command, outcome string, d time.Duration) {
	CommandDuration.WithLabelValues(command, outcome).Observe(d.Seconds())
}

// RecordDBError records a database error metric
func RecordDBError(operation, errorType string) {
	DBErrorsTotal.WithLabelValues(operation, errorType).Inc()
}

// UpdateDBConnections updates database connection metrics
func UpdateDBConnections(idle, inUse, max int32) {
	DBConnectionsTotal.WithLabelValues("idle").Set(float64(idle))
	DBConnectionsTotal.WithLabelValues("in_use").Set(float64(inUse))
	DBConnectionsTotal.WithLabelValues("max").Set(float64(max))
}

// RecordOutbox records one relay publish attempt
func RecordOutbox(eventType, result string) {
	OutboxPublishedTotal.WithLabelValues(eventType, result).Inc()
}
