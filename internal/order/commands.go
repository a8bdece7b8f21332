package order

import (
	"sellora-core/internal/money"
)

// Command structs are validated once at the boundary; everything past
// Validate trusts the fields.

type CheckoutItem struct {
	ProductID string
	SellerID  string
	Quantity  int
	Price     money.Amount
}

type CreateCheckoutCommand struct {
	BuyerID        uint
	Currency       string
	Total          money.Amount
	Items          []CheckoutItem
	IdempotencyKey *string
}

func (c *CreateCheckoutCommand) Validate() error {
	if c.BuyerID == 0 {
		return validationErr("buyerId", "missing buyer identity")
	}
	if err := money.ValidateCurrency(c.Currency); err != nil {
		return validationErr("currency", err.Error())
	}
	if len(c.Items) == 0 {
		return validationErr("items", "at least one line item is required")
	}

	var sum money.Amount
	for _, item := range c.Items {
		if item.ProductID == "" {
			return validationErr("items.productId", "missing product id")
		}
		if item.SellerID == "" {
			return validationErr("items.sellerId", "missing seller id")
		}
		if item.Quantity <= 0 {
			return validationErr("items.quantity", "must be a positive integer")
		}
		if item.Price <= 0 {
			return validationErr("items.price", "must be positive")
		}
		sum += money.Amount(item.Quantity) * item.Price
	}

	if c.Total <= 0 {
		return validationErr("totalAmount", "must be positive")
	}
	if sum != c.Total {
		return validationErr("totalAmount", "does not equal the sum of line items")
	}
	return nil
}

type DirectPurchaseCommand struct {
	BuyerID   uint
	ProductID string
	Quantity  int
}

func (c *DirectPurchaseCommand) Validate() error {
	if c.BuyerID == 0 {
		return validationErr("buyerId", "missing buyer identity")
	}
	if c.ProductID == "" {
		return validationErr("productId", "missing product id")
	}
	if c.Quantity <= 0 {
		return validationErr("quantity", "must be a positive integer")
	}
	return nil
}

type ConfirmPaymentCommand struct {
	ExternalOrderID   string
	ExternalPaymentID string
	Signature         string
}

func (c *ConfirmPaymentCommand) Validate() error {
	if c.ExternalOrderID == "" {
		return validationErr("externalOrderId", "missing")
	}
	if c.ExternalPaymentID == "" {
		return validationErr("externalPaymentId", "missing")
	}
	if c.Signature == "" {
		return validationErr("signature", "missing")
	}
	return nil
}

type SellerDecisionCommand struct {
	OrderID  string
	SellerID string
	Accept   bool
}

func (c *SellerDecisionCommand) Validate() error {
	if c.OrderID == "" {
		return validationErr("orderId", "missing")
	}
	if c.SellerID == "" {
		return validationErr("sellerId", "missing seller identity")
	}
	return nil
}

type ShipOrderCommand struct {
	OrderID        string
	SellerID       string
	TrackingNumber string
	Carrier        string
}

func (c *ShipOrderCommand) Validate() error {
	if c.OrderID == "" {
		return validationErr("orderId", "missing")
	}
	if c.SellerID == "" {
		return validationErr("sellerId", "missing seller identity")
	}
	if c.TrackingNumber == "" {
		return validationErr("trackingNumber", "required to ship")
	}
	if c.Carrier == "" {
		return validationErr("carrier", "required to ship")
	}
	return nil
}

type TrackingUpdateCommand struct {
	OrderID     string
	SellerID    string
	Status      string
	Location    *string
	Description string
}

func (c *TrackingUpdateCommand) Validate() error {
	if c.OrderID == "" {
		return validationErr("orderId", "missing")
	}
	if c.SellerID == "" {
		return validationErr("sellerId", "missing seller identity")
	}
	if c.Status == "" {
		return validationErr("status", "missing")
	}
	return nil
}

type CancelOrderCommand struct {
	OrderID string
	BuyerID uint
	IsAdmin bool
}

func (c *CancelOrderCommand) Validate() error {
	if c.OrderID == "" {
		return validationErr("orderId", "missing")
	}
	if c.BuyerID == 0 && !c.IsAdmin {
		return validationErr("buyerId", "missing buyer identity")
	}
	return nil
}
