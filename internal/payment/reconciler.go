package payment

import (
	"context"
	"time"

	"sellora-core/internal/logger"
	"sellora-core/internal/metrics"

	"go.uber.org/zap"
)

// OrderPersister is the slice of the order service the reconciler needs:
// re-persisting an order from an intent snapshot and expiring unpaid orders.
type OrderPersister interface {
	PersistFromIntentRecord(ctx context.Context, rec *IntentRecord) (string, error)
	CancelStalePending(ctx context.Context, olderThan time.Duration) (int, error)
}

// Reconciler periodically repairs divergence between local order state and
// the gateway: external intents without a local order get one persistence
// retry and are otherwise cancelled, and unpaid PENDING orders past their TTL
// are expired.
type Reconciler struct {
	intents    IntentStore
	gateway    Gateway
	orders     OrderPersister
	interval   time.Duration
	grace      time.Duration
	pendingTTL time.Duration
}

func NewReconciler(
	intents IntentStore,
	gateway Gateway,
	orders OrderPersister,
	interval, grace, pendingTTL time.Duration,
) *Reconciler {
	return &Reconciler{
		intents:    intents,
		gateway:    gateway,
		orders:     orders,
		interval:   interval,
		grace:      grace,
		pendingTTL: pendingTTL,
	}
}

// Run blocks until ctx is cancelled, sweeping on every tick.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	logger.L().Info("reconciler started",
		zap.Duration("interval", r.interval),
		zap.Duration("grace", r.grace),
	)

	for {
		select {
		case <-ctx.Done():
			logger.L().Info("reconciler stopped")
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep runs one reconciliation pass.
func (r *Reconciler) Sweep(ctx context.Context) {
	log := logger.L().With(zap.String("component", "reconciler"))

	orphans, err := r.intents.ListOrphaned(ctx, time.Now().Add(-r.grace))
	if err != nil {
		log.Error("failed to list orphaned intents", zap.Error(err))
	}

	for _, rec := range orphans {
		r.repair(ctx, log, rec)
	}

	expired, err := r.orders.CancelStalePending(ctx, r.pendingTTL)
	if err != nil {
		log.Error("failed to expire stale pending orders", zap.Error(err))
	} else if expired > 0 {
		log.Info("expired stale pending orders", zap.Int("count", expired))
	}
}

// repair handles one orphaned intent: money may have been committed upstream
// with no local record of it, which is the most damaging failure mode and is
// never swallowed.
func (r *Reconciler) repair(ctx context.Context, log *zap.Logger, rec *IntentRecord) {
	log = log.With(
		zap.String("receipt", rec.Receipt),
		zap.String("intent_id", rec.IntentID),
	)

	orderID, err := r.orders.PersistFromIntentRecord(ctx, rec)
	if err == nil {
		metrics.ReconcileOutcomes.WithLabelValues("repaired").Inc()
		log.Warn("orphaned intent repaired, local order persisted",
			zap.String("order_id", orderID),
		)
		return
	}

	log.Error("OPERATOR ALERT: external intent exists without a local order and retry failed",
		zap.Error(err),
	)

	if cancelErr := r.gateway.CancelIntent(ctx, rec.IntentID); cancelErr != nil {
		metrics.ReconcileOutcomes.WithLabelValues("failed").Inc()
		log.Error("failed to cancel orphaned intent, will retry next sweep",
			zap.Error(cancelErr),
		)
		return
	}

	if markErr := r.intents.MarkAbandoned(ctx, rec.Receipt); markErr != nil {
		log.Error("failed to mark intent abandoned", zap.Error(markErr))
		return
	}

	metrics.ReconcileOutcomes.WithLabelValues("canceled").Inc()
	log.Warn("orphaned intent cancelled at the gateway")
}
