package order

import (
	"context"
	"errors"
	"time"

	"sellora-core/internal/logger"
	"sellora-core/internal/metrics"
	"sellora-core/internal/money"
	"sellora-core/internal/notify"
	"sellora-core/internal/payment"
	"sellora-core/internal/product"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Service interface {
	Checkout(ctx context.Context, cmd CreateCheckoutCommand) (*Order, *payment.Intent, error)
	DirectPurchase(ctx context.Context, cmd DirectPurchaseCommand) (*Order, error)
	ConfirmPayment(ctx context.Context, cmd ConfirmPaymentCommand) (*Order, error)

	Decide(ctx context.Context, cmd SellerDecisionCommand) (*Order, error)
	Ship(ctx context.Context, cmd ShipOrderCommand) (*Order, error)
	AddTrackingUpdate(ctx context.Context, cmd TrackingUpdateCommand) (*Order, error)
	Cancel(ctx context.Context, cmd CancelOrderCommand) (*Order, error)

	GetOrderForBuyer(ctx context.Context, buyerID uint, isAdmin bool, orderID string) (*Order, error)
	ListOrdersForBuyer(ctx context.Context, buyerID uint, filter *OrderFilterInput, sort *OrderSortInput, limit, page int32) ([]*Order, error)

	PublicTrackingByOrderID(ctx context.Context, orderID string) (*TrackingView, error)
	PublicTrackingByNumber(ctx context.Context, trackingNumber string) (*TrackingView, error)

	// payment.OrderPersister
	PersistFromIntentRecord(ctx context.Context, rec *payment.IntentRecord) (string, error)
	CancelStalePending(ctx context.Context, olderThan time.Duration) (int, error)
}

type service struct {
	repo          Repository
	products      product.Repository
	gateway       payment.Gateway
	intents       payment.IntentStore
	dispatcher    notify.Dispatcher
	webhookSecret string
}

func NewService(
	repo Repository,
	products product.Repository,
	gateway payment.Gateway,
	intents payment.IntentStore,
	dispatcher notify.Dispatcher,
	webhookSecret string,
) Service {
	return &service{
		repo:          repo,
		products:      products,
		gateway:       gateway,
		intents:       intents,
		dispatcher:    dispatcher,
		webhookSecret: webhookSecret,
	}
}

func (s *service) Checkout(ctx context.Context, cmd CreateCheckoutCommand) (*Order, *payment.Intent, error) {
	if err := cmd.Validate(); err != nil {
		return nil, nil, err
	}

	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "Checkout"),
		zap.Uint("buyer_id", cmd.BuyerID),
		zap.Int("item_count", len(cmd.Items)),
	)

	// Retried request with the same idempotency key never creates a second
	// external intent.
	if cmd.IdempotencyKey != nil && *cmd.IdempotencyKey != "" {
		rec, err := s.intents.GetByIdempotencyKey(ctx, *cmd.IdempotencyKey)
		if err == nil {
			return s.resumeCheckout(ctx, log, rec)
		}
		if !errors.Is(err, payment.ErrRecordNotFound) {
			return nil, nil, err
		}
	}

	receipt := payment.NewReceiptToken()

	intent, err := s.gateway.CreateIntent(ctx, cmd.Total, cmd.Currency, receipt)
	if err != nil {
		log.Error("payment intent creation failed, nothing persisted", zap.Error(err))
		return nil, nil, err
	}

	rec := &payment.IntentRecord{
		Receipt:        receipt,
		IdempotencyKey: cmd.IdempotencyKey,
		IntentID:       intent.ID,
		BuyerID:        cmd.BuyerID,
		Currency:       cmd.Currency,
		Amount:         cmd.Total,
		Items:          intentItems(cmd.Items),
		Status:         payment.RecordCreated,
		CreatedAt:      time.Now(),
	}
	if err := s.intents.Create(ctx, rec); err != nil {
		// the external intent now has no local trace at all
		log.Error("OPERATOR ALERT: intent created upstream but local record failed",
			zap.String("intent_id", intent.ID),
			zap.Error(err),
		)
		return nil, nil, err
	}

	o := orderFromRecord(rec)
	if err := s.repo.CreateOrderTx(ctx, o); err != nil {
		// detectable by receipt; the reconciler retries or cancels upstream
		log.Error("OPERATOR ALERT: intent created but local order persistence failed",
			zap.String("intent_id", intent.ID),
			zap.String("receipt", receipt),
			zap.Error(err),
		)
		return nil, nil, err
	}

	if err := s.intents.AttachOrder(ctx, receipt, o.ID); err != nil {
		log.Error("failed to attach order to intent record", zap.Error(err))
	}

	metrics.OrdersCreated.WithLabelValues("checkout").Inc()
	log.Info("checkout completed",
		zap.String("order_id", o.ID),
		zap.String("intent_id", intent.ID),
	)

	return o, intent, nil
}

// resumeCheckout serves a retried checkout from its existing intent record.
func (s *service) resumeCheckout(ctx context.Context, log *zap.Logger, rec *payment.IntentRecord) (*Order, *payment.Intent, error) {
	intent := &payment.Intent{
		ID:       rec.IntentID,
		Amount:   rec.Amount,
		Currency: rec.Currency,
		Receipt:  rec.Receipt,
	}

	if rec.OrderID != nil {
		o, err := s.repo.GetOrder(ctx, *rec.OrderID)
		if err != nil {
			return nil, nil, err
		}
		log.Info("checkout retry deduplicated", zap.String("order_id", o.ID))
		return o, intent, nil
	}

	// intent exists but a prior attempt never persisted the order
	orderID, err := s.PersistFromIntentRecord(ctx, rec)
	if err != nil {
		return nil, nil, err
	}
	o, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	log.Info("checkout retry completed orphaned intent", zap.String("order_id", o.ID))
	return o, intent, nil
}

func (s *service) DirectPurchase(ctx context.Context, cmd DirectPurchaseCommand) (*Order, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "DirectPurchase"),
		zap.Uint("buyer_id", cmd.BuyerID),
		zap.String("product_id", cmd.ProductID),
	)

	p, err := s.products.GetProduct(ctx, cmd.ProductID)
	if err != nil {
		return nil, err
	}

	o := &Order{
		ID:       uuid.New().String(),
		BuyerID:  cmd.BuyerID,
		Source:   SourceDirect,
		Currency: p.Currency,
		Total:    p.Price * money.Amount(cmd.Quantity),
		Status:   StatusPending,
		Items: []OrderItem{{
			ProductID: p.ID,
			SellerID:  p.SellerID,
			Quantity:  cmd.Quantity,
			Price:     p.Price,
		}},
		CreatedAt: time.Now(),
	}

	// stock check, decrement and order creation commit or roll back together
	if err := s.repo.CreateDirectPurchaseTx(ctx, o); err != nil {
		if errors.Is(err, product.ErrOutOfStock) {
			metrics.OutOfStock.Inc()
			log.Info("direct purchase rejected, out of stock")
		} else {
			log.Error("direct purchase failed", zap.Error(err))
		}
		return nil, err
	}

	metrics.OrdersCreated.WithLabelValues("direct").Inc()
	log.Info("direct purchase created", zap.String("order_id", o.ID))
	return o, nil
}

func (s *service) ConfirmPayment(ctx context.Context, cmd ConfirmPaymentCommand) (*Order, error) {
	if err := cmd.Validate(); err != nil {
		metrics.PaymentConfirmations.WithLabelValues("rejected").Inc()
		return nil, err
	}

	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "ConfirmPayment"),
		zap.String("external_order_id", cmd.ExternalOrderID),
	)

	if err := payment.VerifyConfirmation(
		s.webhookSecret, cmd.ExternalOrderID, cmd.ExternalPaymentID, cmd.Signature,
	); err != nil {
		metrics.PaymentConfirmations.WithLabelValues("rejected").Inc()
		log.Warn("payment confirmation signature mismatch")
		return nil, err
	}

	o, err := s.repo.GetByExternalOrderID(ctx, cmd.ExternalOrderID)
	if err != nil {
		metrics.PaymentConfirmations.WithLabelValues("rejected").Inc()
		return nil, err
	}

	if dup := s.isDuplicateConfirmation(o, cmd.ExternalPaymentID); dup {
		metrics.PaymentConfirmations.WithLabelValues("duplicate").Inc()
		log.Info("duplicate payment confirmation, no state change",
			zap.String("order_id", o.ID),
		)
		return o, nil
	}

	change := StatusChange{
		From:                 StatusPending,
		To:                   StatusProcessing,
		SetExternalPaymentID: &cmd.ExternalPaymentID,
		// checkout orders reserve nothing until the money is real
		DecrementItems: o.Source == SourceCheckout,
	}

	if err := s.repo.ApplyTransition(ctx, o.ID, change); err != nil {
		if errors.Is(err, ErrConflict) {
			// lost a race; if the winner recorded this same payment, the
			// delivery is a duplicate and must succeed without side effects
			fresh, freshErr := s.repo.GetOrder(ctx, o.ID)
			if freshErr == nil && s.isDuplicateConfirmation(fresh, cmd.ExternalPaymentID) {
				metrics.PaymentConfirmations.WithLabelValues("duplicate").Inc()
				return fresh, nil
			}
		}
		if errors.Is(err, product.ErrOutOfStock) {
			log.Error("OPERATOR ALERT: payment confirmed but stock cannot cover the order",
				zap.String("order_id", o.ID),
			)
		}
		metrics.PaymentConfirmations.WithLabelValues("rejected").Inc()
		return nil, err
	}

	metrics.PaymentConfirmations.WithLabelValues("processed").Inc()
	s.emit(ctx, o, StatusProcessing)

	return s.repo.GetOrder(ctx, o.ID)
}

func (s *service) isDuplicateConfirmation(o *Order, externalPaymentID string) bool {
	return o.Status != StatusPending &&
		o.ExternalPaymentID != nil &&
		*o.ExternalPaymentID == externalPaymentID
}

func (s *service) Decide(ctx context.Context, cmd SellerDecisionCommand) (*Order, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	o, err := s.authorizeSeller(ctx, cmd.OrderID, cmd.SellerID)
	if err != nil {
		return nil, err
	}

	to := StatusDeclined
	if cmd.Accept {
		to = StatusAccepted
	}

	// a decision is only legal from PROCESSING; accept-after-decline and
	// decline-after-accept both fail here
	if !CanTransition(o.Status, to) {
		return nil, ErrInvalidTransition
	}

	change := StatusChange{
		From: StatusProcessing,
		To:   to,
		// declined orders give their inventory back
		RestoreItems: !cmd.Accept && s.inventoryHeld(o),
	}
	if err := s.repo.ApplyTransition(ctx, o.ID, change); err != nil {
		return nil, err
	}

	s.emit(ctx, o, to)
	return s.repo.GetOrder(ctx, o.ID)
}

func (s *service) Ship(ctx context.Context, cmd ShipOrderCommand) (*Order, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	o, err := s.authorizeSeller(ctx, cmd.OrderID, cmd.SellerID)
	if err != nil {
		return nil, err
	}

	if !CanTransition(o.Status, StatusShipped) {
		return nil, ErrInvalidTransition
	}

	change := StatusChange{
		From:              StatusAccepted,
		To:                StatusShipped,
		SetTrackingNumber: &cmd.TrackingNumber,
		SetCarrier:        &cmd.Carrier,
	}
	if err := s.repo.ApplyTransition(ctx, o.ID, change); err != nil {
		return nil, err
	}

	s.emit(ctx, o, StatusShipped)
	return s.repo.GetOrder(ctx, o.ID)
}

func (s *service) AddTrackingUpdate(ctx context.Context, cmd TrackingUpdateCommand) (*Order, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	o, err := s.authorizeSeller(ctx, cmd.OrderID, cmd.SellerID)
	if err != nil {
		return nil, err
	}

	if IsTerminal(o.Status) && !IsDeliveredStatus(cmd.Status) {
		return nil, ErrInvalidTransition
	}

	// a delivery-semantic update on a shipped order is the DELIVERED
	// transition itself, with the carrier's wording kept in the log
	if IsDeliveredStatus(cmd.Status) {
		if o.Status != StatusShipped {
			return nil, ErrInvalidTransition
		}
		change := StatusChange{
			From:        StatusShipped,
			To:          StatusDelivered,
			Location:    cmd.Location,
			Description: cmd.Description,
		}
		if err := s.repo.ApplyTransition(ctx, o.ID, change); err != nil {
			return nil, err
		}
		s.emit(ctx, o, StatusDelivered)
		return s.repo.GetOrder(ctx, o.ID)
	}

	ev := TrackingEvent{
		Status:      cmd.Status,
		Location:    cmd.Location,
		Description: cmd.Description,
	}
	if err := s.repo.AppendTrackingEvent(ctx, o.ID, ev); err != nil {
		return nil, err
	}

	return s.repo.GetOrder(ctx, o.ID)
}

func (s *service) Cancel(ctx context.Context, cmd CancelOrderCommand) (*Order, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	o, err := s.repo.GetOrder(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}

	if !cmd.IsAdmin && o.BuyerID != cmd.BuyerID {
		return nil, ErrForbidden
	}

	if !CanTransition(o.Status, StatusCanceled) {
		return nil, ErrInvalidTransition
	}

	change := StatusChange{
		From:         o.Status,
		To:           StatusCanceled,
		RestoreItems: s.inventoryHeld(o),
	}
	if err := s.repo.ApplyTransition(ctx, o.ID, change); err != nil {
		return nil, err
	}

	s.emit(ctx, o, StatusCanceled)
	return s.repo.GetOrder(ctx, o.ID)
}

// inventoryHeld reports whether this order currently holds decremented
// stock: direct purchases from creation, checkout orders from payment
// confirmation onward.
func (s *service) inventoryHeld(o *Order) bool {
	if o.Source == SourceDirect {
		return true
	}
	return o.Status != StatusPending
}

func (s *service) authorizeSeller(ctx context.Context, orderID, sellerID string) (*Order, error) {
	o, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	owns, err := s.repo.SellerOwnsOrder(ctx, orderID, sellerID)
	if err != nil {
		return nil, err
	}
	if !owns {
		return nil, ErrForbidden
	}

	return o, nil
}

func (s *service) GetOrderForBuyer(ctx context.Context, buyerID uint, isAdmin bool, orderID string) (*Order, error) {
	o, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !isAdmin && o.BuyerID != buyerID {
		// not-owned reads like not-found so order ids cannot be probed
		return nil, ErrOrderNotFound
	}

	return o, nil
}

func (s *service) ListOrdersForBuyer(
	ctx context.Context,
	buyerID uint,
	filter *OrderFilterInput,
	sort *OrderSortInput,
	limit, page int32,
) ([]*Order, error) {
	return s.repo.ListOrders(ctx, buyerID, filter, sort, limit, page)
}

func (s *service) PublicTrackingByOrderID(ctx context.Context, orderID string) (*TrackingView, error) {
	o, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return toTrackingView(o), nil
}

func (s *service) PublicTrackingByNumber(ctx context.Context, trackingNumber string) (*TrackingView, error) {
	o, err := s.repo.GetByTrackingNumber(ctx, trackingNumber)
	if err != nil {
		return nil, err
	}
	return toTrackingView(o), nil
}

func (s *service) PersistFromIntentRecord(ctx context.Context, rec *payment.IntentRecord) (string, error) {
	o := orderFromRecord(rec)
	if err := s.repo.CreateOrderTx(ctx, o); err != nil {
		return "", err
	}
	if err := s.intents.AttachOrder(ctx, rec.Receipt, o.ID); err != nil {
		return "", err
	}
	metrics.OrdersCreated.WithLabelValues("checkout").Inc()
	return o.ID, nil
}

func (s *service) CancelStalePending(ctx context.Context, olderThan time.Duration) (int, error) {
	ids, err := s.repo.ListStalePending(ctx, time.Now().Add(-olderThan))
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, id := range ids {
		o, err := s.repo.GetOrder(ctx, id)
		if err != nil {
			continue
		}

		change := StatusChange{
			From:         StatusPending,
			To:           StatusCanceled,
			Description:  "Checkout expired without payment",
			RestoreItems: o.Source == SourceDirect,
		}
		if err := s.repo.ApplyTransition(ctx, id, change); err != nil {
			// a racing confirmation may have just paid it, that is fine
			if !errors.Is(err, ErrConflict) {
				logger.FromCtx(ctx).Error("failed to expire pending order",
					zap.String("order_id", id), zap.Error(err))
			}
			continue
		}

		s.emit(ctx, o, StatusCanceled)
		expired++
	}

	return expired, nil
}

// emit sends exactly one buyer notification per committed transition.
// Delivery failures are logged, never surfaced: the transition already
// happened.
func (s *service) emit(ctx context.Context, o *Order, to OrderStatus) {
	ev := notify.OrderEvent{
		OrderID:     o.ID,
		BuyerID:     o.BuyerID,
		Status:      string(to),
		Description: transitionDescription(to),
		OccurredAt:  time.Now(),
	}
	if err := s.dispatcher.OrderStatusChanged(ctx, ev); err != nil {
		logger.FromCtx(ctx).Error("failed to publish order event",
			zap.String("order_id", o.ID),
			zap.Error(err),
		)
	}
}

func intentItems(items []CheckoutItem) []payment.IntentItem {
	out := make([]payment.IntentItem, 0, len(items))
	for _, item := range items {
		out = append(out, payment.IntentItem{
			ProductID: item.ProductID,
			SellerID:  item.SellerID,
			Quantity:  item.Quantity,
			Price:     item.Price,
		})
	}
	return out
}

func orderFromRecord(rec *payment.IntentRecord) *Order {
	items := make([]OrderItem, 0, len(rec.Items))
	for _, item := range rec.Items {
		items = append(items, OrderItem{
			ProductID: item.ProductID,
			SellerID:  item.SellerID,
			Quantity:  item.Quantity,
			Price:     item.Price,
		})
	}

	intentID := rec.IntentID
	return &Order{
		ID:              uuid.New().String(),
		BuyerID:         rec.BuyerID,
		Source:          SourceCheckout,
		Currency:        rec.Currency,
		Total:           rec.Amount,
		Status:          StatusPending,
		ExternalOrderID: &intentID,
		Items:           items,
		CreatedAt:       time.Now(),
	}
}
