package tasks

import "github.com/shopspring/decimal"

// Task is background work triggered by an order write.
type Task interface {
	OrderRef() string
}

type LineSummary struct {
	SKUID int64           `json:"sku_id"`
	Count int             `json:"count"`
	Price decimal.Decimal `json:"price"`
}

type OrderPlaced struct {
	OrderID     string          `json:"order_id"`
	UserID      int64           `json:"user_id"`
	TotalCount  int             `json:"total_count"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	PayMethod   string          `json:"pay_method"`
	Lines       []LineSummary   `json:"lines"`
}

type PaymentConfirmed struct {
	OrderID string `json:"order_id"`
	UserID  int64  `json:"user_id"`
	TradeID string `json:"trade_id"`
}

type OrderReviewed struct {
	OrderID  string `json:"order_id"`
	UserID   int64  `json:"user_id"`
	Reviewed int    `json:"reviewed"`
}

type StatusChanged struct {
	OrderID string `json:"order_id"`
	UserID  int64  `json:"user_id"`
	From    string `json:"from"`
	To      string `json:"to"`
}

func (t *OrderPlaced) OrderRef() string      { return t.OrderID }
func (t *PaymentConfirmed) OrderRef() string { return t.OrderID }
func (t *OrderReviewed) OrderRef() string    { return t.OrderID }
func (t *StatusChanged) OrderRef() string    { return t.OrderID }
