// Package failure carries the typed errors that callers of the order and
// cart services are allowed to see.
package failure

import (
	"errors"
	"fmt"
)

type Kind string

const (
	MissingParameter        Kind = "MissingParameter"
	InvalidQuantity         Kind = "InvalidQuantity"
	AddressNotFound         Kind = "AddressNotFound"
	InvalidPaymentMethod    Kind = "InvalidPaymentMethod"
	ProductNotFound         Kind = "ProductNotFound"
	InsufficientStock       Kind = "InsufficientStock"
	OptimisticLockExhausted Kind = "OptimisticLockExhausted"
	OrderNotFound           Kind = "OrderNotFound"
	InvalidOrderStatus      Kind = "InvalidOrderStatus"
	PaymentFailed           Kind = "PaymentFailed"
	PaymentTimeout          Kind = "PaymentTimeout"
	Unexpected              Kind = "UnexpectedPersistenceError"
)

// Failure is a user-facing error. Message never includes internal details.
type Failure struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

func New(kind Kind, format string, args ...interface{}) *Failure {
	return &Failure{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// From returns the Failure wrapped in err, or an Unexpected failure with a
// generic message for any other error.
func From(err error) *Failure {
	if err == nil {
		return nil
	}
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	return &Failure{Kind: Unexpected, Message: "the request could not be completed, please retry"}
}

func KindOf(err error) Kind {
	if f := From(err); f != nil {
		return f.Kind
	}
	return ""
}
