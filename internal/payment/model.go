package payment

import (
	"time"

	"sellora-core/internal/money"
)

// Intent is the gateway's representation of a pending charge.
type Intent struct {
	ID       string
	Amount   money.Amount
	Currency string
	Receipt  string
	Status   string
}

type RecordStatus string

const (
	RecordCreated   RecordStatus = "CREATED"   // intent exists, order not yet persisted
	RecordAttached  RecordStatus = "ATTACHED"  // local order committed
	RecordAbandoned RecordStatus = "ABANDONED" // reconciler gave up, intent canceled
)

// IntentItem snapshots one checkout line so a failed local persist can be
// retried by the reconciler without the original request.
type IntentItem struct {
	ProductID string       `json:"product_id"`
	SellerID  string       `json:"seller_id"`
	Quantity  int          `json:"quantity"`
	Price     money.Amount `json:"price"`
}

// IntentRecord is the local side of an external payment intent. The receipt
// token is the idempotency anchor for one checkout attempt.
type IntentRecord struct {
	Receipt        string
	IdempotencyKey *string
	IntentID       string
	BuyerID        uint
	Currency       string
	Amount         money.Amount
	Items          []IntentItem
	OrderID        *string
	Status         RecordStatus
	CreatedAt      time.Time
}
