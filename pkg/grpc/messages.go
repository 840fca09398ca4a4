package grpc

import (
	"github.com/example/freshmart/pkg/cart"
	"github.com/example/freshmart/pkg/checkout"
	"github.com/example/freshmart/pkg/failure"
	"github.com/example/freshmart/pkg/models"
)

// Responses carry domain failures in the body so the kind survives the
// hop to the gateway. A non-nil RPC error always means a transport problem.

type PlaceOrderRequest struct {
	UserID    int64            `json:"user_id"`
	AddressID int64            `json:"address_id"`
	PayMethod models.PayMethod `json:"pay_method"`
	SKUIDs    []int64          `json:"sku_ids"`
}

type PlaceOrderResponse struct {
	Order   *checkout.PlacedOrder `json:"order,omitempty"`
	Failure *failure.Failure      `json:"failure,omitempty"`
}

type PreviewOrderRequest struct {
	UserID int64   `json:"user_id"`
	SKUIDs []int64 `json:"sku_ids"`
	Count  int     `json:"count"`
}

type PreviewOrderResponse struct {
	Preview *checkout.Preview `json:"preview,omitempty"`
	Failure *failure.Failure  `json:"failure,omitempty"`
}

type OrderRequest struct {
	UserID  int64  `json:"user_id"`
	OrderID string `json:"order_id"`
}

type OrderResponse struct {
	Order   *checkout.OrderView `json:"order,omitempty"`
	Failure *failure.Failure    `json:"failure,omitempty"`
}

type ListOrdersRequest struct {
	UserID int64 `json:"user_id"`
	Page   int   `json:"page"`
}

type ListOrdersResponse struct {
	Page    *checkout.OrderPage `json:"page,omitempty"`
	Failure *failure.Failure    `json:"failure,omitempty"`
}

type PaymentURLResponse struct {
	URL     string           `json:"url,omitempty"`
	Failure *failure.Failure `json:"failure,omitempty"`
}

type ConfirmPaymentResponse struct {
	Payment *checkout.PaymentResult `json:"payment,omitempty"`
	Failure *failure.Failure        `json:"failure,omitempty"`
}

type SubmitReviewRequest struct {
	UserID  int64                 `json:"user_id"`
	OrderID string                `json:"order_id"`
	Reviews []checkout.LineReview `json:"reviews"`
}

type SubmitReviewResponse struct {
	Failure *failure.Failure `json:"failure,omitempty"`
}

type UpdateOrderStatusRequest struct {
	UserID  int64              `json:"user_id"`
	OrderID string             `json:"order_id"`
	Status  models.OrderStatus `json:"status"`
}

// CartRequest addresses the Redis cart when UserID is set and the
// anonymous cookie cart in Cart otherwise. MergeCart uses both.
type CartRequest struct {
	UserID int64         `json:"user_id"`
	Cart   map[int64]int `json:"cart,omitempty"`
	SKUID  int64         `json:"sku_id,omitempty"`
	Count  int           `json:"count,omitempty"`
}

// CartResponse returns the updated anonymous cart in Cart so the caller can
// write it back to the cookie.
type CartResponse struct {
	TotalCount int              `json:"total_count"`
	Cart       map[int64]int    `json:"cart,omitempty"`
	View       *cart.View       `json:"view,omitempty"`
	Failure    *failure.Failure `json:"failure,omitempty"`
}

// response is implemented by every reply type.
type response interface {
	failed() *failure.Failure
}

func (r *PlaceOrderResponse) failed() *failure.Failure     { return r.Failure }
func (r *PreviewOrderResponse) failed() *failure.Failure   { return r.Failure }
func (r *OrderResponse) failed() *failure.Failure          { return r.Failure }
func (r *ListOrdersResponse) failed() *failure.Failure     { return r.Failure }
func (r *PaymentURLResponse) failed() *failure.Failure     { return r.Failure }
func (r *ConfirmPaymentResponse) failed() *failure.Failure { return r.Failure }
func (r *SubmitReviewResponse) failed() *failure.Failure   { return r.Failure }
func (r *CartResponse) failed() *failure.Failure           { return r.Failure }
