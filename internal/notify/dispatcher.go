package notify

import (
	"context"
	"time"
)

// OrderEvent tells the notification service that an order changed; delivery
// mechanics (email, push) live outside the core.
type OrderEvent struct {
	OrderID     string    `json:"order_id"`
	BuyerID     uint      `json:"buyer_id"`
	Status      string    `json:"status"`
	Description string    `json:"description"`
	OccurredAt  time.Time `json:"occurred_at"`
}

type Dispatcher interface {
	OrderStatusChanged(ctx context.Context, ev OrderEvent) error
	Close() error
}

// Nop discards events, used in tests and when AMQP is not configured.
type Nop struct{}

func (Nop) OrderStatusChanged(context.Context, OrderEvent) error { return nil }
func (Nop) Close() error                                         { return nil }
