package order

import (
	"time"

	"sellora-core/internal/money"
)

type OrderStatus string

const (
	StatusPending    OrderStatus = "PENDING"
	StatusProcessing OrderStatus = "PROCESSING"
	StatusAccepted   OrderStatus = "ACCEPTED"
	StatusDeclined   OrderStatus = "DECLINED"
	StatusShipped    OrderStatus = "SHIPPED"
	StatusDelivered  OrderStatus = "DELIVERED"
	StatusCanceled   OrderStatus = "CANCELED"
)

// OrderSource records how the order came to exist. Direct purchases decrement
// inventory at creation, checkout orders only when payment is confirmed.
type OrderSource string

const (
	SourceCheckout OrderSource = "CHECKOUT"
	SourceDirect   OrderSource = "DIRECT"
)

type Order struct {
	ID       string
	BuyerID  uint
	Source   OrderSource
	Currency string
	Total    money.Amount
	Status   OrderStatus

	ExternalOrderID   *string
	ExternalPaymentID *string

	TrackingNumber *string
	Carrier        *string

	Items           []OrderItem
	TrackingHistory []TrackingEvent

	CreatedAt time.Time
	UpdatedAt time.Time
}

type OrderItem struct {
	ID        uint
	OrderID   string
	ProductID string
	SellerID  string
	Quantity  int
	Price     money.Amount
}

// TrackingEvent is immutable once appended; Position is assigned by the store
// and strictly increases per order.
type TrackingEvent struct {
	ID          uint
	OrderID     string
	Position    int
	Status      string
	Location    *string
	Description string
	CreatedAt   time.Time
}

// IsAccepted derives the seller-decision flag from status. Nil means the
// seller has not decided yet.
func (o *Order) IsAccepted() *bool {
	switch o.Status {
	case StatusAccepted, StatusShipped, StatusDelivered:
		t := true
		return &t
	case StatusDeclined:
		f := false
		return &f
	default:
		return nil
	}
}

// ContainsSeller reports whether at least one item belongs to the seller.
func (o *Order) ContainsSeller(sellerID string) bool {
	for _, item := range o.Items {
		if item.SellerID == sellerID {
			return true
		}
	}
	return false
}

type OrderFilterInput struct {
	Status   *OrderStatus
	DateFrom *time.Time
	DateTo   *time.Time
}

type SortDirection string

const (
	SortAsc  SortDirection = "ASC"
	SortDesc SortDirection = "DESC"
)

type OrderSortField string

const (
	OrderSortFieldCreatedAt OrderSortField = "CREATED_AT"
	OrderSortFieldTotal     OrderSortField = "TOTAL"
)

type OrderSortInput struct {
	Field     OrderSortField
	Direction SortDirection
}
