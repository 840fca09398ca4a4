package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCanShip(t *testing.T) {
	tests := map[string]struct {
		from, to OrderStatus
		method   PayMethod
		want     bool
	}{
		"cash on delivery ships unpaid": {StatusAwaitingPayment, StatusAwaitingShipment, PayCashOnDelivery, true},
		"gateway order must pay first":  {StatusAwaitingPayment, StatusAwaitingShipment, PayGateway, false},
		"shipment to receipt":           {StatusAwaitingShipment, StatusAwaitingReceipt, PayGateway, true},
		"skipping shipment":             {StatusAwaitingPayment, StatusAwaitingReceipt, PayCashOnDelivery, false},
		"payment straight to review":    {StatusAwaitingPayment, StatusAwaitingReview, PayGateway, false},
		"payment straight to complete":  {StatusAwaitingPayment, StatusComplete, PayGateway, false},
		"receipt to review":             {StatusAwaitingReceipt, StatusAwaitingReview, PayCashOnDelivery, false},
		"review to complete":            {StatusAwaitingReview, StatusComplete, PayCashOnDelivery, false},
		"backwards":                     {StatusAwaitingReceipt, StatusAwaitingShipment, PayCashOnDelivery, false},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, CanShip(tc.from, tc.to, tc.method))
		})
	}
}

func TestParseOrderStatus(t *testing.T) {
	status, ok := ParseOrderStatus("AWAITING_RECEIPT")
	assert.True(t, ok)
	assert.Equal(t, StatusAwaitingReceipt, status)

	_, ok = ParseOrderStatus("SHIPPED")
	assert.False(t, ok)
}

func TestPayMethod(t *testing.T) {
	assert.True(t, PayCashOnDelivery.Valid())
	assert.True(t, PayGateway.Valid())
	assert.False(t, PayMethod(3).Valid())
	assert.Equal(t, "GATEWAY", PayGateway.String())
}

func TestOrderLineAmount(t *testing.T) {
	line := OrderLine{Count: 3, Price: decimal.RequireFromString("12.50")}
	assert.True(t, decimal.RequireFromString("37.50").Equal(line.Amount()))
}
