package order

import "time"

// TrackingView is the unauthenticated projection of an order: fulfilment
// progress only, no buyer identity and no payment identifiers.
type TrackingView struct {
	OrderID        string              `json:"orderId"`
	Status         OrderStatus         `json:"status"`
	TrackingNumber *string             `json:"trackingNumber,omitempty"`
	Carrier        *string             `json:"carrier,omitempty"`
	Events         []TrackingEventView `json:"events"`
}

type TrackingEventView struct {
	Status      string    `json:"status"`
	Location    *string   `json:"location,omitempty"`
	Description string    `json:"description"`
	Timestamp   time.Time `json:"timestamp"`
}

func toTrackingView(o *Order) *TrackingView {
	view := &TrackingView{
		OrderID:        o.ID,
		Status:         o.Status,
		TrackingNumber: o.TrackingNumber,
		Carrier:        o.Carrier,
		Events:         make([]TrackingEventView, 0, len(o.TrackingHistory)),
	}

	for _, ev := range o.TrackingHistory {
		view.Events = append(view.Events, TrackingEventView{
			Status:      ev.Status,
			Location:    ev.Location,
			Description: ev.Description,
			Timestamp:   ev.CreatedAt,
		})
	}

	return view
}
