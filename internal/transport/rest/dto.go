package rest

import (
	"time"

	"sellora-core/internal/money"
	"sellora-core/internal/order"
	"sellora-core/internal/payment"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

type checkoutItemRequest struct {
	ProductID string `json:"productId"`
	SellerID  string `json:"sellerId"`
	Quantity  int    `json:"quantity"`
	Price     string `json:"price"`
}

type checkoutRequest struct {
	Currency       string                `json:"currency"`
	TotalAmount    string                `json:"totalAmount"`
	IdempotencyKey *string               `json:"idempotencyKey,omitempty"`
	Items          []checkoutItemRequest `json:"items"`
}

type directPurchaseRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type shipRequest struct {
	TrackingNumber string `json:"trackingNumber"`
	Carrier        string `json:"carrier"`
}

type trackingUpdateRequest struct {
	Status      string  `json:"status"`
	Location    *string `json:"location,omitempty"`
	Description string  `json:"description"`
}

type intentResponse struct {
	IntentID string `json:"intentId"`
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

type orderItemResponse struct {
	ProductID string `json:"productId"`
	SellerID  string `json:"sellerId"`
	Quantity  int    `json:"quantity"`
	Price     string `json:"price"`
}

type trackingEventResponse struct {
	Status      string    `json:"status"`
	Location    *string   `json:"location,omitempty"`
	Description string    `json:"description"`
	Timestamp   time.Time `json:"timestamp"`
}

type orderResponse struct {
	ID              string                  `json:"id"`
	Status          order.OrderStatus       `json:"status"`
	IsAccepted      *bool                   `json:"isAccepted"`
	Currency        string                  `json:"currency"`
	TotalAmount     string                  `json:"totalAmount"`
	TrackingNumber  *string                 `json:"trackingNumber,omitempty"`
	Carrier         *string                 `json:"carrier,omitempty"`
	Items           []orderItemResponse     `json:"items,omitempty"`
	TrackingHistory []trackingEventResponse `json:"trackingHistory,omitempty"`
	CreatedAt       time.Time               `json:"createdAt"`
}

type checkoutResponse struct {
	Order  orderResponse  `json:"order"`
	Intent intentResponse `json:"intent"`
}

func toOrderResponse(o *order.Order) orderResponse {
	resp := orderResponse{
		ID:             o.ID,
		Status:         o.Status,
		IsAccepted:     o.IsAccepted(),
		Currency:       o.Currency,
		TotalAmount:    o.Total.String(),
		TrackingNumber: o.TrackingNumber,
		Carrier:        o.Carrier,
		CreatedAt:      o.CreatedAt,
	}

	for _, item := range o.Items {
		resp.Items = append(resp.Items, orderItemResponse{
			ProductID: item.ProductID,
			SellerID:  item.SellerID,
			Quantity:  item.Quantity,
			Price:     item.Price.String(),
		})
	}

	for _, ev := range o.TrackingHistory {
		resp.TrackingHistory = append(resp.TrackingHistory, trackingEventResponse{
			Status:      ev.Status,
			Location:    ev.Location,
			Description: ev.Description,
			Timestamp:   ev.CreatedAt,
		})
	}

	return resp
}

func toIntentResponse(in *payment.Intent) intentResponse {
	return intentResponse{
		IntentID: in.ID,
		Amount:   in.Amount.String(),
		Currency: in.Currency,
		Receipt:  in.Receipt,
	}
}

func (r *checkoutRequest) toCommand(buyerID uint) (order.CreateCheckoutCommand, error) {
	cmd := order.CreateCheckoutCommand{
		BuyerID:        buyerID,
		Currency:       r.Currency,
		IdempotencyKey: r.IdempotencyKey,
	}

	total, err := money.Parse(r.TotalAmount)
	if err != nil {
		return cmd, err
	}
	cmd.Total = total

	for _, item := range r.Items {
		price, err := money.Parse(item.Price)
		if err != nil {
			return cmd, err
		}
		cmd.Items = append(cmd.Items, order.CheckoutItem{
			ProductID: item.ProductID,
			SellerID:  item.SellerID,
			Quantity:  item.Quantity,
			Price:     price,
		})
	}

	return cmd, nil
}
