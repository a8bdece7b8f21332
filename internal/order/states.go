package order

import "strings"

// transitions is the full lifecycle:
//
//	PENDING → PROCESSING → {ACCEPTED | DECLINED} ; ACCEPTED → SHIPPED → DELIVERED
//
// CANCELED is reachable from any non-terminal state. DELIVERED, DECLINED and
// CANCELED are terminal. Seller acceptance is the state itself, there is no
// separate flag to contradict it.
var transitions = map[OrderStatus][]OrderStatus{
	StatusPending:    {StatusProcessing, StatusCanceled},
	StatusProcessing: {StatusAccepted, StatusDeclined, StatusCanceled},
	StatusAccepted:   {StatusShipped, StatusCanceled},
	StatusShipped:    {StatusDelivered, StatusCanceled},
	StatusDelivered:  {},
	StatusDeclined:   {},
	StatusCanceled:   {},
}

func IsTerminal(s OrderStatus) bool {
	return len(transitions[s]) == 0
}

func CanTransition(from, to OrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsDeliveredStatus reports whether a carrier tracking status semantically
// means the parcel arrived.
func IsDeliveredStatus(trackingStatus string) bool {
	s := strings.ToUpper(strings.TrimSpace(trackingStatus))
	return s == "DELIVERED" || s == "DELIVERY_CONFIRMED"
}

// transitionDescription is the human-readable line appended to the tracking
// log for each status change.
func transitionDescription(to OrderStatus) string {
	switch to {
	case StatusProcessing:
		return "Payment confirmed, order is being processed"
	case StatusAccepted:
		return "Order accepted by seller"
	case StatusDeclined:
		return "Order declined by seller"
	case StatusShipped:
		return "Order handed to carrier"
	case StatusDelivered:
		return "Order delivered"
	case StatusCanceled:
		return "Order canceled"
	default:
		return "Order created"
	}
}
