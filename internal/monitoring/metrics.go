// internal/monitoring/metrics.go
package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	transactionTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "escrow_transaction_transitions_total",
			Help: "Applied transaction state transitions by resulting state and source",
		},
		[]string{"state", "source"},
	)

	webhookEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_webhook_events_total",
			Help: "Gateway webhook events by event type and processing outcome",
		},
		[]string{"event", "outcome"},
	)

	reconciliationRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconciliation_outcomes_total",
			Help: "Per-transaction outcomes of reconciliation sweeps",
		},
		[]string{"outcome"},
	)

	walletOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wallet_operations_total",
			Help: "Wallet ledger operations by type",
		},
		[]string{"operation"},
	)
)

// TrackTransition records an applied state transition. No-op
// transitions (idempotent re-deliveries) are not counted.
func TrackTransition(state, source string) {
	transactionTransitions.WithLabelValues(state, source).Inc()
}

func TrackWebhookEvent(event, outcome string) {
	webhookEvents.WithLabelValues(event, outcome).Inc()
}

func TrackReconciliation(outcome string) {
	reconciliationRuns.WithLabelValues(outcome).Inc()
}

func TrackWalletOperation(operation string) {
	walletOperations.WithLabelValues(operation).Inc()
}
