package models

import "fmt"

// OrderStatus advances strictly forward, from AwaitingPayment to Complete.
type OrderStatus int8

const (
	StatusAwaitingPayment OrderStatus = iota + 1
	StatusAwaitingShipment
	StatusAwaitingReceipt
	StatusAwaitingReview
	StatusComplete
)

var statusNames = map[OrderStatus]string{
	StatusAwaitingPayment:  "AWAITING_PAYMENT",
	StatusAwaitingShipment: "AWAITING_SHIPMENT",
	StatusAwaitingReceipt:  "AWAITING_RECEIPT",
	StatusAwaitingReview:   "AWAITING_REVIEW",
	StatusComplete:         "COMPLETE",
}

func (s OrderStatus) Valid() bool {
	_, ok := statusNames[s]
	return ok
}

func (s OrderStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("OrderStatus(%d)", int8(s))
}

// ParseOrderStatus accepts the names returned by String.
func ParseOrderStatus(name string) (OrderStatus, bool) {
	for status, n := range statusNames {
		if n == name {
			return status, true
		}
	}
	return 0, false
}

// CanShip reports whether a fulfilment update may move an order from one
// status to the next. Paying, reviewing and completing an order have their
// own operations and are never reachable this way. Only cash on delivery
// orders leave AwaitingPayment for shipment.
func CanShip(from, to OrderStatus, method PayMethod) bool {
	switch {
	case from == StatusAwaitingPayment && to == StatusAwaitingShipment:
		return method == PayCashOnDelivery
	case from == StatusAwaitingShipment && to == StatusAwaitingReceipt:
		return true
	default:
		return false
	}
}

type PayMethod int8

const (
	PayCashOnDelivery PayMethod = iota + 1
	PayGateway
)

func (m PayMethod) Valid() bool {
	return m == PayCashOnDelivery || m == PayGateway
}

func (m PayMethod) String() string {
	switch m {
	case PayCashOnDelivery:
		return "CASH_ON_DELIVERY"
	case PayGateway:
		return "GATEWAY"
	default:
		return fmt.Sprintf("PayMethod(%d)", int8(m))
	}
}
