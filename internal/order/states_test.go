package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from OrderStatus
		to   OrderStatus
		ok   bool
	}{
		{"PendingToProcessing", StatusPending, StatusProcessing, true},
		{"PendingToCanceled", StatusPending, StatusCanceled, true},
		{"PendingToAccepted", StatusPending, StatusAccepted, false},
		{"PendingToShipped", StatusPending, StatusShipped, false},
		{"ProcessingToAccepted", StatusProcessing, StatusAccepted, true},
		{"ProcessingToDeclined", StatusProcessing, StatusDeclined, true},
		{"ProcessingToDelivered", StatusProcessing, StatusDelivered, false},
		{"AcceptedToShipped", StatusAccepted, StatusShipped, true},
		{"AcceptedToDeclined", StatusAccepted, StatusDeclined, false},
		{"DeclinedToAccepted", StatusDeclined, StatusAccepted, false},
		{"ShippedToDelivered", StatusShipped, StatusDelivered, true},
		{"ShippedToAccepted", StatusShipped, StatusAccepted, false},
		{"AcceptedToCanceled", StatusAccepted, StatusCanceled, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.ok, CanTransition(tt.from, tt.to))
		})
	}
}

func TestTerminalStatesRejectEverything(t *testing.T) {
	terminals := []OrderStatus{StatusDelivered, StatusDeclined, StatusCanceled}
	all := []OrderStatus{
		StatusPending, StatusProcessing, StatusAccepted, StatusDeclined,
		StatusShipped, StatusDelivered, StatusCanceled,
	}

	for _, terminal := range terminals {
		assert.True(t, IsTerminal(terminal))
		for _, to := range all {
			assert.False(t, CanTransition(terminal, to),
				"%s -> %s should be rejected", terminal, to)
		}
	}
}

func TestIsDeliveredStatus(t *testing.T) {
	assert.True(t, IsDeliveredStatus("DELIVERED"))
	assert.True(t, IsDeliveredStatus("delivered"))
	assert.True(t, IsDeliveredStatus(" Delivery_Confirmed "))
	assert.False(t, IsDeliveredStatus("IN_TRANSIT"))
	assert.False(t, IsDeliveredStatus(""))
}

func TestIsAcceptedDerivation(t *testing.T) {
	o := &Order{Status: StatusProcessing}
	assert.Nil(t, o.IsAccepted())

	o.Status = StatusAccepted
	if assert.NotNil(t, o.IsAccepted()) {
		assert.True(t, *o.IsAccepted())
	}

	o.Status = StatusShipped
	if assert.NotNil(t, o.IsAccepted()) {
		assert.True(t, *o.IsAccepted())
	}

	o.Status = StatusDeclined
	if assert.NotNil(t, o.IsAccepted()) {
		assert.False(t, *o.IsAccepted())
	}
}
