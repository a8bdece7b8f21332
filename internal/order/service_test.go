package order

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"sellora-core/internal/money"
	"sellora-core/internal/notify"
	"sellora-core/internal/payment"
	"sellora-core/internal/product"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- Mocks ---

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) CreateOrderTx(ctx context.Context, o *Order) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}

func (m *MockRepository) CreateDirectPurchaseTx(ctx context.Context, o *Order) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}

func (m *MockRepository) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Order), args.Error(1)
}

func (m *MockRepository) GetByExternalOrderID(ctx context.Context, externalOrderID string) (*Order, error) {
	args := m.Called(ctx, externalOrderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Order), args.Error(1)
}

func (m *MockRepository) GetByTrackingNumber(ctx context.Context, trackingNumber string) (*Order, error) {
	args := m.Called(ctx, trackingNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Order), args.Error(1)
}

func (m *MockRepository) ListOrders(ctx context.Context, buyerID uint, filter *OrderFilterInput, sort *OrderSortInput, limit, page int32) ([]*Order, error) {
	args := m.Called(ctx, buyerID, filter, sort, limit, page)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*Order), args.Error(1)
}

func (m *MockRepository) ApplyTransition(ctx context.Context, orderID string, change StatusChange) error {
	args := m.Called(ctx, orderID, change)
	return args.Error(0)
}

func (m *MockRepository) AppendTrackingEvent(ctx context.Context, orderID string, ev TrackingEvent) error {
	args := m.Called(ctx, orderID, ev)
	return args.Error(0)
}

func (m *MockRepository) SellerOwnsOrder(ctx context.Context, orderID, sellerID string) (bool, error) {
	args := m.Called(ctx, orderID, sellerID)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) ListStalePending(ctx context.Context, before time.Time) ([]string, error) {
	args := m.Called(ctx, before)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

type MockProductRepo struct {
	mock.Mock
}

func (m *MockProductRepo) GetProduct(ctx context.Context, productID string) (*product.Product, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*product.Product), args.Error(1)
}

func (m *MockProductRepo) DecrementStock(ctx context.Context, exec product.Execer, productID string, qty int) error {
	args := m.Called(ctx, exec, productID, qty)
	return args.Error(0)
}

func (m *MockProductRepo) RestoreStock(ctx context.Context, exec product.Execer, productID string, qty int) error {
	args := m.Called(ctx, exec, productID, qty)
	return args.Error(0)
}

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreateIntent(ctx context.Context, amount money.Amount, currency, receipt string) (*payment.Intent, error) {
	args := m.Called(ctx, amount, currency, receipt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Intent), args.Error(1)
}

func (m *MockGateway) GetIntent(ctx context.Context, intentID string) (*payment.Intent, error) {
	args := m.Called(ctx, intentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Intent), args.Error(1)
}

func (m *MockGateway) CancelIntent(ctx context.Context, intentID string) error {
	args := m.Called(ctx, intentID)
	return args.Error(0)
}

type MockIntentStore struct {
	mock.Mock
}

func (m *MockIntentStore) Create(ctx context.Context, rec *payment.IntentRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockIntentStore) GetByReceipt(ctx context.Context, receipt string) (*payment.IntentRecord, error) {
	args := m.Called(ctx, receipt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.IntentRecord), args.Error(1)
}

func (m *MockIntentStore) GetByIdempotencyKey(ctx context.Context, key string) (*payment.IntentRecord, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.IntentRecord), args.Error(1)
}

func (m *MockIntentStore) AttachOrder(ctx context.Context, receipt, orderID string) error {
	args := m.Called(ctx, receipt, orderID)
	return args.Error(0)
}

func (m *MockIntentStore) MarkAbandoned(ctx context.Context, receipt string) error {
	args := m.Called(ctx, receipt)
	return args.Error(0)
}

func (m *MockIntentStore) ListOrphaned(ctx context.Context, olderThan time.Time) ([]*payment.IntentRecord, error) {
	args := m.Called(ctx, olderThan)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*payment.IntentRecord), args.Error(1)
}

// countingDispatcher records how many notifications went out.
type countingDispatcher struct {
	count int64
}

func (d *countingDispatcher) OrderStatusChanged(context.Context, notify.OrderEvent) error {
	atomic.AddInt64(&d.count, 1)
	return nil
}

func (d *countingDispatcher) Close() error { return nil }

func (d *countingDispatcher) sent() int64 { return atomic.LoadInt64(&d.count) }

// --- Fixture ---

const testSecret = "whsec_test"

type fixture struct {
	repo       *MockRepository
	products   *MockProductRepo
	gateway    *MockGateway
	intents    *MockIntentStore
	dispatcher *countingDispatcher
	svc        Service
}

func newFixture() *fixture {
	f := &fixture{
		repo:       new(MockRepository),
		products:   new(MockProductRepo),
		gateway:    new(MockGateway),
		intents:    new(MockIntentStore),
		dispatcher: &countingDispatcher{},
	}
	f.svc = NewService(f.repo, f.products, f.gateway, f.intents, f.dispatcher, testSecret)
	return f
}

func validCheckout() CreateCheckoutCommand {
	return CreateCheckoutCommand{
		BuyerID:  7,
		Currency: "USD",
		Total:    10000,
		Items: []CheckoutItem{
			{ProductID: "prod-1", SellerID: "seller-1", Quantity: 2, Price: 2500},
			{ProductID: "prod-2", SellerID: "seller-2", Quantity: 1, Price: 5000},
		},
	}
}

// --- Checkout ---

func TestCheckout_Success(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	cmd := validCheckout()

	f.gateway.On("CreateIntent", ctx, money.Amount(10000), "USD", mock.AnythingOfType("string")).
		Return(&payment.Intent{ID: "ext-1", Amount: 10000, Currency: "USD"}, nil)
	f.intents.On("Create", ctx, mock.AnythingOfType("*payment.IntentRecord")).Return(nil)
	f.repo.On("CreateOrderTx", ctx, mock.AnythingOfType("*order.Order")).Return(nil)
	f.intents.On("AttachOrder", ctx, mock.AnythingOfType("string"), mock.AnythingOfType("string")).Return(nil)

	o, intent, err := f.svc.Checkout(ctx, cmd)

	require.NoError(t, err)
	assert.Equal(t, "ext-1", intent.ID)
	assert.Equal(t, StatusPending, o.Status)
	assert.Equal(t, SourceCheckout, o.Source)
	assert.Equal(t, money.Amount(10000), o.Total)
	assert.Len(t, o.Items, 2)
	require.NotNil(t, o.ExternalOrderID)
	assert.Equal(t, "ext-1", *o.ExternalOrderID)

	f.repo.AssertExpectations(t)
	f.gateway.AssertExpectations(t)
	f.intents.AssertExpectations(t)
}

func TestCheckout_Validation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*CreateCheckoutCommand)
	}{
		{"BadCurrency", func(c *CreateCheckoutCommand) { c.Currency = "usd" }},
		{"EmptyItems", func(c *CreateCheckoutCommand) { c.Items = nil }},
		{"TotalMismatch", func(c *CreateCheckoutCommand) { c.Total = 9999 }},
		{"ZeroQuantity", func(c *CreateCheckoutCommand) { c.Items[0].Quantity = 0 }},
		{"NegativePrice", func(c *CreateCheckoutCommand) { c.Items[0].Price = -1 }},
		{"MissingBuyer", func(c *CreateCheckoutCommand) { c.BuyerID = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := validCheckout()
			tt.mutate(&cmd)

			_, _, err := f.svc.Checkout(ctx, cmd)
			assert.True(t, IsValidation(err), "expected validation error, got %v", err)
		})
	}

	// no gateway call for any rejected command
	f.gateway.AssertNotCalled(t, "CreateIntent", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCheckout_GatewayFailureLeavesNothing(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.gateway.On("CreateIntent", ctx, mock.Anything, "USD", mock.Anything).
		Return(nil, payment.ErrUpstream)

	_, _, err := f.svc.Checkout(ctx, validCheckout())

	assert.ErrorIs(t, err, payment.ErrUpstream)
	f.intents.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	f.repo.AssertNotCalled(t, "CreateOrderTx", mock.Anything, mock.Anything)
}

func TestCheckout_IdempotencyKeyDedupes(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	key := "idem-1"
	cmd := validCheckout()
	cmd.IdempotencyKey = &key

	existingOrderID := "order-55"
	f.intents.On("GetByIdempotencyKey", ctx, key).Return(&payment.IntentRecord{
		Receipt:  "RCPT-X",
		IntentID: "ext-9",
		Amount:   10000,
		Currency: "USD",
		OrderID:  &existingOrderID,
	}, nil)
	f.repo.On("GetOrder", ctx, existingOrderID).Return(&Order{
		ID:     existingOrderID,
		Status: StatusPending,
		Total:  10000,
	}, nil)

	o, intent, err := f.svc.Checkout(ctx, cmd)

	require.NoError(t, err)
	assert.Equal(t, existingOrderID, o.ID)
	assert.Equal(t, "ext-9", intent.ID)
	f.gateway.AssertNotCalled(t, "CreateIntent", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// --- Direct purchase ---

func TestDirectPurchase_Success(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.products.On("GetProduct", ctx, "prod-1").Return(&product.Product{
		ID:       "prod-1",
		SellerID: "seller-1",
		Price:    2500,
		Currency: "USD",
	}, nil)
	f.repo.On("CreateDirectPurchaseTx", ctx, mock.AnythingOfType("*order.Order")).Return(nil)

	o, err := f.svc.DirectPurchase(ctx, DirectPurchaseCommand{BuyerID: 7, ProductID: "prod-1", Quantity: 2})

	require.NoError(t, err)
	assert.Equal(t, StatusPending, o.Status)
	assert.Equal(t, SourceDirect, o.Source)
	assert.Equal(t, money.Amount(5000), o.Total)
	require.Len(t, o.Items, 1)
	assert.Equal(t, 2, o.Items[0].Quantity)
}

func TestDirectPurchase_OutOfStock(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.products.On("GetProduct", ctx, "prod-1").Return(&product.Product{
		ID: "prod-1", SellerID: "seller-1", Price: 2500, Currency: "USD",
	}, nil)
	f.repo.On("CreateDirectPurchaseTx", ctx, mock.Anything).Return(product.ErrOutOfStock)

	_, err := f.svc.DirectPurchase(ctx, DirectPurchaseCommand{BuyerID: 7, ProductID: "prod-1", Quantity: 1})
	assert.ErrorIs(t, err, product.ErrOutOfStock)
}

// --- Payment confirmation ---

func pendingCheckoutOrder() *Order {
	ext := "ext-1"
	return &Order{
		ID:              "order-1",
		BuyerID:         7,
		Source:          SourceCheckout,
		Status:          StatusPending,
		Total:           10000,
		Currency:        "USD",
		ExternalOrderID: &ext,
	}
}

func TestConfirmPayment_Success(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	o := pendingCheckoutOrder()
	sig := payment.SignConfirmation(testSecret, "ext-1", "pay-1")

	f.repo.On("GetByExternalOrderID", ctx, "ext-1").Return(o, nil)
	f.repo.On("ApplyTransition", ctx, "order-1", mock.MatchedBy(func(ch StatusChange) bool {
		return ch.From == StatusPending &&
			ch.To == StatusProcessing &&
			ch.SetExternalPaymentID != nil && *ch.SetExternalPaymentID == "pay-1" &&
			ch.DecrementItems
	})).Return(nil)

	processed := *o
	processed.Status = StatusProcessing
	payID := "pay-1"
	processed.ExternalPaymentID = &payID
	f.repo.On("GetOrder", ctx, "order-1").Return(&processed, nil)

	result, err := f.svc.ConfirmPayment(ctx, ConfirmPaymentCommand{
		ExternalOrderID:   "ext-1",
		ExternalPaymentID: "pay-1",
		Signature:         sig,
	})

	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, result.Status)
	assert.EqualValues(t, 1, f.dispatcher.sent())
	f.repo.AssertExpectations(t)
}

func TestConfirmPayment_ReplayIsIdempotent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	payID := "pay-1"
	o := pendingCheckoutOrder()
	o.Status = StatusProcessing
	o.ExternalPaymentID = &payID

	sig := payment.SignConfirmation(testSecret, "ext-1", "pay-1")
	f.repo.On("GetByExternalOrderID", ctx, "ext-1").Return(o, nil)

	result, err := f.svc.ConfirmPayment(ctx, ConfirmPaymentCommand{
		ExternalOrderID:   "ext-1",
		ExternalPaymentID: "pay-1",
		Signature:         sig,
	})

	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, result.Status)
	assert.EqualValues(t, 0, f.dispatcher.sent(), "replay must not emit a notification")
	f.repo.AssertNotCalled(t, "ApplyTransition", mock.Anything, mock.Anything, mock.Anything)
}

func TestConfirmPayment_TamperedSignature(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.ConfirmPayment(ctx, ConfirmPaymentCommand{
		ExternalOrderID:   "ext-1",
		ExternalPaymentID: "pay-1",
		Signature:         "definitely-not-valid",
	})

	assert.ErrorIs(t, err, payment.ErrInvalidSignature)
	f.repo.AssertNotCalled(t, "GetByExternalOrderID", mock.Anything, mock.Anything)
}

func TestConfirmPayment_UnknownOrder(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	sig := payment.SignConfirmation(testSecret, "ext-missing", "pay-1")
	f.repo.On("GetByExternalOrderID", ctx, "ext-missing").Return(nil, ErrOrderNotFound)

	_, err := f.svc.ConfirmPayment(ctx, ConfirmPaymentCommand{
		ExternalOrderID:   "ext-missing",
		ExternalPaymentID: "pay-1",
		Signature:         sig,
	})
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestConfirmPayment_LostRaceWithSamePaymentSucceeds(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	o := pendingCheckoutOrder()
	sig := payment.SignConfirmation(testSecret, "ext-1", "pay-1")

	f.repo.On("GetByExternalOrderID", ctx, "ext-1").Return(o, nil)
	f.repo.On("ApplyTransition", ctx, "order-1", mock.Anything).Return(ErrConflict)

	payID := "pay-1"
	winner := *o
	winner.Status = StatusProcessing
	winner.ExternalPaymentID = &payID
	f.repo.On("GetOrder", ctx, "order-1").Return(&winner, nil)

	result, err := f.svc.ConfirmPayment(ctx, ConfirmPaymentCommand{
		ExternalOrderID:   "ext-1",
		ExternalPaymentID: "pay-1",
		Signature:         sig,
	})

	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, result.Status)
	assert.EqualValues(t, 0, f.dispatcher.sent())
}

// --- Seller decisions ---

func TestDecide_ForbiddenForNonOwningSeller(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	o := pendingCheckoutOrder()
	o.Status = StatusProcessing
	f.repo.On("GetOrder", ctx, "order-1").Return(o, nil)
	f.repo.On("SellerOwnsOrder", ctx, "order-1", "stranger").Return(false, nil)

	_, err := f.svc.Decide(ctx, SellerDecisionCommand{OrderID: "order-1", SellerID: "stranger", Accept: true})

	assert.ErrorIs(t, err, ErrForbidden)
	f.repo.AssertNotCalled(t, "ApplyTransition", mock.Anything, mock.Anything, mock.Anything)
}

func TestDecide_AcceptAfterDeclineRejected(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	o := pendingCheckoutOrder()
	o.Status = StatusDeclined
	f.repo.On("GetOrder", ctx, "order-1").Return(o, nil)
	f.repo.On("SellerOwnsOrder", ctx, "order-1", "seller-1").Return(true, nil)

	_, err := f.svc.Decide(ctx, SellerDecisionCommand{OrderID: "order-1", SellerID: "seller-1", Accept: true})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestDecide_DeclineRestoresInventory(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	o := pendingCheckoutOrder()
	o.Status = StatusProcessing
	f.repo.On("GetOrder", ctx, "order-1").Return(o, nil)
	f.repo.On("SellerOwnsOrder", ctx, "order-1", "seller-1").Return(true, nil)
	f.repo.On("ApplyTransition", ctx, "order-1", mock.MatchedBy(func(ch StatusChange) bool {
		return ch.To == StatusDeclined && ch.RestoreItems
	})).Return(nil)

	_, err := f.svc.Decide(ctx, SellerDecisionCommand{OrderID: "order-1", SellerID: "seller-1", Accept: false})
	require.NoError(t, err)
	assert.EqualValues(t, 1, f.dispatcher.sent())
}

// --- Shipping & tracking ---

func TestShip_RequiresTrackingInfo(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.Ship(ctx, ShipOrderCommand{OrderID: "order-1", SellerID: "seller-1", Carrier: "DHL"})
	assert.True(t, IsValidation(err))

	_, err = f.svc.Ship(ctx, ShipOrderCommand{OrderID: "order-1", SellerID: "seller-1", TrackingNumber: "TRK1"})
	assert.True(t, IsValidation(err))
}

func TestShip_Success(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	o := pendingCheckoutOrder()
	o.Status = StatusAccepted
	o.Items = []OrderItem{{ProductID: "prod-1", SellerID: "seller-1", Quantity: 1, Price: 10000}}

	f.repo.On("GetOrder", ctx, "order-1").Return(o, nil)
	f.repo.On("SellerOwnsOrder", ctx, "order-1", "seller-1").Return(true, nil)
	f.repo.On("ApplyTransition", ctx, "order-1", mock.MatchedBy(func(ch StatusChange) bool {
		return ch.From == StatusAccepted &&
			ch.To == StatusShipped &&
			ch.SetTrackingNumber != nil && *ch.SetTrackingNumber == "TRK1" &&
			ch.SetCarrier != nil && *ch.SetCarrier == "DHL"
	})).Return(nil)

	_, err := f.svc.Ship(ctx, ShipOrderCommand{
		OrderID: "order-1", SellerID: "seller-1",
		TrackingNumber: "TRK1", Carrier: "DHL",
	})

	require.NoError(t, err)
	assert.EqualValues(t, 1, f.dispatcher.sent())
}

func TestAddTrackingUpdate_DeliveryDrivesTransition(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	o := pendingCheckoutOrder()
	o.Status = StatusShipped
	f.repo.On("GetOrder", ctx, "order-1").Return(o, nil)
	f.repo.On("SellerOwnsOrder", ctx, "order-1", "seller-1").Return(true, nil)
	f.repo.On("ApplyTransition", ctx, "order-1", mock.MatchedBy(func(ch StatusChange) bool {
		return ch.From == StatusShipped && ch.To == StatusDelivered
	})).Return(nil)

	_, err := f.svc.AddTrackingUpdate(ctx, TrackingUpdateCommand{
		OrderID: "order-1", SellerID: "seller-1",
		Status: "DELIVERED", Description: "Left at front door",
	})

	require.NoError(t, err)
	f.repo.AssertNotCalled(t, "AppendTrackingEvent", mock.Anything, mock.Anything, mock.Anything)
}

func TestAddTrackingUpdate_PlainUpdateAppends(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	o := pendingCheckoutOrder()
	o.Status = StatusShipped
	f.repo.On("GetOrder", ctx, "order-1").Return(o, nil)
	f.repo.On("SellerOwnsOrder", ctx, "order-1", "seller-1").Return(true, nil)
	f.repo.On("AppendTrackingEvent", ctx, "order-1", mock.MatchedBy(func(ev TrackingEvent) bool {
		return ev.Status == "IN_TRANSIT"
	})).Return(nil)

	_, err := f.svc.AddTrackingUpdate(ctx, TrackingUpdateCommand{
		OrderID: "order-1", SellerID: "seller-1",
		Status: "IN_TRANSIT", Description: "Departed sorting facility",
	})

	require.NoError(t, err)
	assert.EqualValues(t, 0, f.dispatcher.sent(), "plain tracking updates are not status transitions")
}

// --- Cancel ---

func TestCancel_ForbiddenForOtherBuyer(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	o := pendingCheckoutOrder()
	f.repo.On("GetOrder", ctx, "order-1").Return(o, nil)

	_, err := f.svc.Cancel(ctx, CancelOrderCommand{OrderID: "order-1", BuyerID: 999})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestCancel_TerminalRejected(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	o := pendingCheckoutOrder()
	o.Status = StatusDelivered
	f.repo.On("GetOrder", ctx, "order-1").Return(o, nil)

	_, err := f.svc.Cancel(ctx, CancelOrderCommand{OrderID: "order-1", BuyerID: 7})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCancel_PendingCheckoutDoesNotRestoreStock(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	o := pendingCheckoutOrder()
	f.repo.On("GetOrder", ctx, "order-1").Return(o, nil)
	f.repo.On("ApplyTransition", ctx, "order-1", mock.MatchedBy(func(ch StatusChange) bool {
		return ch.To == StatusCanceled && !ch.RestoreItems
	})).Return(nil)

	_, err := f.svc.Cancel(ctx, CancelOrderCommand{OrderID: "order-1", BuyerID: 7})
	require.NoError(t, err)
}

// --- Buyer reads ---

func TestGetOrderForBuyer_HidesOthersOrders(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	o := pendingCheckoutOrder()
	f.repo.On("GetOrder", ctx, "order-1").Return(o, nil)

	_, err := f.svc.GetOrderForBuyer(ctx, 999, false, "order-1")
	assert.ErrorIs(t, err, ErrOrderNotFound)

	got, err := f.svc.GetOrderForBuyer(ctx, 999, true, "order-1")
	require.NoError(t, err)
	assert.Equal(t, "order-1", got.ID)
}

// --- Public tracking projection ---

func TestPublicTracking_RestrictedProjection(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	trk := "TRK1"
	carrier := "DHL"
	payID := "pay-1"
	o := pendingCheckoutOrder()
	o.Status = StatusShipped
	o.TrackingNumber = &trk
	o.Carrier = &carrier
	o.ExternalPaymentID = &payID
	o.TrackingHistory = []TrackingEvent{
		{Status: "PENDING", Description: "Order created", Position: 1},
		{Status: "SHIPPED", Description: "Order handed to carrier", Position: 2},
	}

	f.repo.On("GetByTrackingNumber", ctx, "TRK1").Return(o, nil)

	view, err := f.svc.PublicTrackingByNumber(ctx, "TRK1")

	require.NoError(t, err)
	assert.Equal(t, o.ID, view.OrderID)
	assert.Equal(t, StatusShipped, view.Status)
	assert.Len(t, view.Events, 2)
	assert.Equal(t, "SHIPPED", view.Events[1].Status)
}

// --- Reconciliation hooks ---

func TestPersistFromIntentRecord(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	rec := &payment.IntentRecord{
		Receipt:  "RCPT-X",
		IntentID: "ext-5",
		BuyerID:  7,
		Currency: "USD",
		Amount:   10000,
		Items: []payment.IntentItem{
			{ProductID: "prod-1", SellerID: "seller-1", Quantity: 2, Price: 5000},
		},
	}

	f.repo.On("CreateOrderTx", ctx, mock.MatchedBy(func(o *Order) bool {
		return o.Status == StatusPending &&
			o.Source == SourceCheckout &&
			o.Total == 10000 &&
			o.ExternalOrderID != nil && *o.ExternalOrderID == "ext-5"
	})).Return(nil)
	f.intents.On("AttachOrder", ctx, "RCPT-X", mock.AnythingOfType("string")).Return(nil)

	orderID, err := f.svc.PersistFromIntentRecord(ctx, rec)
	require.NoError(t, err)
	assert.NotEmpty(t, orderID)
}

func TestCancelStalePending(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.repo.On("ListStalePending", ctx, mock.AnythingOfType("time.Time")).
		Return([]string{"order-1", "order-2"}, nil)

	stale := pendingCheckoutOrder()
	f.repo.On("GetOrder", ctx, "order-1").Return(stale, nil)
	f.repo.On("GetOrder", ctx, "order-2").Return(stale, nil)

	// order-2 was paid while we swept; the CAS fails and it is skipped
	f.repo.On("ApplyTransition", ctx, "order-1", mock.MatchedBy(func(ch StatusChange) bool {
		return ch.From == StatusPending && ch.To == StatusCanceled
	})).Return(nil)
	f.repo.On("ApplyTransition", ctx, "order-2", mock.Anything).Return(ErrConflict)

	expired, err := f.svc.CancelStalePending(ctx, time.Hour)

	require.NoError(t, err)
	assert.Equal(t, 1, expired)
	assert.EqualValues(t, 1, f.dispatcher.sent())
}

// sanity: unexpected repo errors propagate untouched
func TestListOrdersForBuyer_Passthrough(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	dbErr := errors.New("db down")
	f.repo.On("ListOrders", ctx, uint(7), (*OrderFilterInput)(nil), (*OrderSortInput)(nil), int32(20), int32(1)).
		Return(nil, dbErr)

	_, err := f.svc.ListOrdersForBuyer(ctx, 7, nil, nil, 20, 1)
	assert.ErrorIs(t, err, dbErr)
}
