package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PaymentConfirmations counts webhook deliveries by outcome:
	// processed, duplicate, rejected.
	PaymentConfirmations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sellora",
		Subsystem: "payments",
		Name:      "confirmations_total",
		Help:      "Payment confirmation deliveries by outcome.",
	}, []string{"outcome"})

	// OrdersCreated counts orders by source: checkout, direct.
	OrdersCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sellora",
		Subsystem: "orders",
		Name:      "created_total",
		Help:      "Orders created by source.",
	}, []string{"source"})

	// OutOfStock counts purchase attempts rejected by the inventory guard.
	OutOfStock = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "sellora",
		Subsystem: "orders",
		Name:      "out_of_stock_total",
		Help:      "Purchases rejected because stock was insufficient.",
	})

	// ReconcileOutcomes counts reconciliation sweep results:
	// repaired, canceled, failed.
	ReconcileOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sellora",
		Subsystem: "payments",
		Name:      "reconcile_total",
		Help:      "Reconciliation outcomes for orphaned payment intents.",
	}, []string{"outcome"})
)
