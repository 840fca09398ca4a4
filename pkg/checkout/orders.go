package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/freshmart/pkg/cart"
	"github.com/example/freshmart/pkg/failure"
	"github.com/example/freshmart/pkg/models"
	"github.com/example/freshmart/pkg/repository"
	"github.com/example/freshmart/pkg/tasks"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type LineView struct {
	SKUID   int64           `json:"sku_id"`
	Name    string          `json:"name"`
	Unit    string          `json:"unit"`
	Price   decimal.Decimal `json:"price"`
	Count   int             `json:"count"`
	Amount  decimal.Decimal `json:"amount"`
	Comment string          `json:"comment,omitempty"`
}

type OrderView struct {
	OrderID       string             `json:"order_id"`
	Status        models.OrderStatus `json:"status"`
	StatusName    string             `json:"status_name"`
	PayMethod     models.PayMethod   `json:"pay_method"`
	PayMethodName string             `json:"pay_method_name"`
	AddressID     int64              `json:"address_id"`
	TotalCount    int                `json:"total_count"`
	TotalAmount   decimal.Decimal    `json:"total_amount"`
	TransCost     decimal.Decimal    `json:"trans_cost"`
	TradeID       string             `json:"trade_id,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	Lines         []LineView         `json:"lines"`
}

func newOrderView(o *models.Order) OrderView {
	view := OrderView{
		OrderID:       o.OrderID,
		Status:        o.Status,
		StatusName:    o.Status.String(),
		PayMethod:     o.PayMethod,
		PayMethodName: o.PayMethod.String(),
		AddressID:     o.AddressID,
		TotalCount:    o.TotalCount,
		TotalAmount:   o.TotalAmount,
		TransCost:     o.TransCost,
		CreatedAt:     o.CreatedAt,
		Lines:         make([]LineView, 0, len(o.Lines)),
	}
	if o.TradeID != nil {
		view.TradeID = *o.TradeID
	}
	for _, line := range o.Lines {
		lv := LineView{
			SKUID:   line.SKUID,
			Price:   line.Price,
			Count:   line.Count,
			Amount:  line.Amount(),
			Comment: line.Comment,
		}
		if line.SKU != nil {
			lv.Name = line.SKU.Name
			lv.Unit = line.SKU.Unit
		}
		view.Lines = append(view.Lines, lv)
	}
	return view
}

type OrderPage struct {
	Orders []OrderView `json:"orders"`
	Page   int         `json:"page"`
	Pages  int         `json:"pages"`
	Total  int64       `json:"total"`
}

// Preview is the order confirmation shown before PlaceOrder.
type Preview struct {
	Lines          []cart.Line     `json:"lines"`
	TotalCount     int             `json:"total_count"`
	TotalSKUAmount decimal.Decimal `json:"total_sku_amount"`
	TransCost      decimal.Decimal `json:"trans_cost"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	Address        *models.Address `json:"address,omitempty"`
}

type LineReview struct {
	SKUID   int64  `json:"sku_id"`
	Content string `json:"content"`
}

func (s *Service) GetOrder(ctx context.Context, userID int64, orderID string) (*OrderView, error) {
	order, err := s.ownedOrder(ctx, userID, orderID)
	if err != nil {
		return nil, failure.From(s.logUnexpected("GetOrder", orderID, err))
	}
	view := newOrderView(order)
	return &view, nil
}

// ListOrders pages through the user's orders, newest first. A page outside
// the available range falls back to the first page.
func (s *Service) ListOrders(ctx context.Context, userID int64, page int) (*OrderPage, error) {
	size := s.cfg.PageSize
	if page < 1 {
		page = 1
	}

	orders, total, err := s.store.ListOrders(ctx, userID, (page-1)*size, size)
	if err != nil {
		return nil, failure.From(s.logUnexpected("ListOrders", "", err))
	}

	pages := int((total + int64(size) - 1) / int64(size))
	if pages == 0 {
		pages = 1
	}
	if page > pages {
		page = 1
		orders, total, err = s.store.ListOrders(ctx, userID, 0, size)
		if err != nil {
			return nil, failure.From(s.logUnexpected("ListOrders", "", err))
		}
	}

	result := &OrderPage{Orders: make([]OrderView, 0, len(orders)), Page: page, Pages: pages, Total: total}
	for i := range orders {
		result.Orders = append(result.Orders, newOrderView(&orders[i]))
	}
	return result, nil
}

// PreviewOrder prices the selected SKUs. With count > 0 the request is a
// direct purchase: count is checked against stock and written to the cart
// so PlaceOrder reads it from there.
func (s *Service) PreviewOrder(ctx context.Context, userID int64, skuIDs []int64, count int) (*Preview, error) {
	preview, err := s.previewOrder(ctx, userID, skuIDs, count)
	if err != nil {
		return nil, failure.From(s.logUnexpected("PreviewOrder", "", err))
	}
	return preview, nil
}

func (s *Service) previewOrder(ctx context.Context, userID int64, skuIDs []int64, count int) (*Preview, error) {
	if userID <= 0 || len(skuIDs) == 0 {
		return nil, failure.New(failure.MissingParameter, "sku_ids are required")
	}
	if count < 0 {
		return nil, failure.New(failure.InvalidQuantity, "count must be a positive integer")
	}

	var entries map[int64]int
	if count == 0 {
		var err error
		if entries, err = s.carts.ReadAll(ctx, userID); err != nil {
			return nil, fmt.Errorf("failed to read cart: %w", err)
		}
	}

	preview := &Preview{Lines: []cart.Line{}, TotalSKUAmount: decimal.Zero, TransCost: s.shipping}
	seen := make(map[int64]bool, len(skuIDs))
	for _, id := range skuIDs {
		if seen[id] {
			continue
		}
		seen[id] = true

		sku, err := s.store.GetSKU(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, failure.New(failure.ProductNotFound, "product %d does not exist", id)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load sku: %w", err)
		}

		n := count
		if count > 0 {
			if count > sku.Stock {
				return nil, failure.New(failure.InsufficientStock, "only %d of %s left", sku.Stock, sku.Name)
			}
			if err := s.carts.Set(ctx, userID, id, count); err != nil {
				return nil, fmt.Errorf("failed to write cart: %w", err)
			}
		} else {
			var ok bool
			if n, ok = entries[id]; !ok || n <= 0 {
				return nil, failure.New(failure.MissingParameter, "product %d is not in the cart", id)
			}
		}

		line := cart.NewLine(sku, n)
		preview.Lines = append(preview.Lines, line)
		preview.TotalCount += line.Count
		preview.TotalSKUAmount = preview.TotalSKUAmount.Add(line.Amount)
	}
	preview.TotalAmount = preview.TotalSKUAmount.Add(preview.TransCost)

	addr, err := s.store.LatestAddress(ctx, userID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("failed to load address: %w", err)
	default:
		preview.Address = addr
	}
	return preview, nil
}

// SubmitReview stores review text on the order's lines and completes the
// order. Reviews for SKUs that are not on the order are ignored.
func (s *Service) SubmitReview(ctx context.Context, userID int64, orderID string, reviews []LineReview) error {
	order, err := s.ownedOrder(ctx, userID, orderID)
	if err != nil {
		return failure.From(s.logUnexpected("SubmitReview", orderID, err))
	}

	onOrder := make(map[int64]bool, len(order.Lines))
	for _, line := range order.Lines {
		onOrder[line.SKUID] = true
	}
	contents := make(map[int64]string, len(reviews))
	for _, r := range reviews {
		if onOrder[r.SKUID] {
			contents[r.SKUID] = r.Content
		}
	}

	if err := s.store.SaveReviews(ctx, order.OrderID, contents, models.StatusComplete); err != nil {
		return failure.From(s.logUnexpected("SubmitReview", orderID, err))
	}

	s.dispatch(&tasks.OrderReviewed{OrderID: order.OrderID, UserID: userID, Reviewed: len(contents)})
	return nil
}

// AdvanceStatus records a fulfilment step: shipping an order, or handing a
// cash on delivery order over for shipment. Payment and review go through
// ConfirmPayment and SubmitReview.
func (s *Service) AdvanceStatus(ctx context.Context, userID int64, orderID string, to models.OrderStatus) (*OrderView, error) {
	order, err := s.ownedOrder(ctx, userID, orderID)
	if err != nil {
		return nil, failure.From(s.logUnexpected("AdvanceStatus", orderID, err))
	}
	if !models.CanShip(order.Status, to, order.PayMethod) {
		return nil, failure.New(failure.InvalidOrderStatus, "order %s cannot move from %s to %s", orderID, order.Status, to)
	}

	ok, err := s.store.UpdateOrderStatus(ctx, order.OrderID, order.Status, to, nil)
	if err != nil {
		return nil, failure.From(s.logUnexpected("AdvanceStatus", orderID, err))
	}
	if !ok {
		return nil, failure.New(failure.InvalidOrderStatus, "order %s was changed concurrently", orderID)
	}

	s.dispatch(&tasks.StatusChanged{OrderID: order.OrderID, UserID: userID, From: order.Status.String(), To: to.String()})
	s.logger.Info("Order status changed",
		zap.String("order_id", order.OrderID),
		zap.Stringer("from", order.Status),
		zap.Stringer("to", to))

	order.Status = to
	view := newOrderView(order)
	return &view, nil
}

func (s *Service) ownedOrder(ctx context.Context, userID int64, orderID string) (*models.Order, error) {
	if orderID == "" {
		return nil, failure.New(failure.MissingParameter, "order_id is required")
	}
	order, err := s.store.FindOrder(ctx, userID, orderID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, failure.New(failure.OrderNotFound, "order %s not found", orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	return order, nil
}
