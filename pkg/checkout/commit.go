package checkout

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/example/freshmart/pkg/failure"
	"github.com/example/freshmart/pkg/models"
	"github.com/example/freshmart/pkg/repository"
	"github.com/example/freshmart/pkg/tasks"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const savepointName = "sp_place_order"

type PlaceOrderRequest struct {
	UserID    int64
	AddressID int64
	PayMethod models.PayMethod
	SKUIDs    []int64
}

type PlacedOrder struct {
	OrderID     string             `json:"order_id"`
	Status      models.OrderStatus `json:"status"`
	TotalCount  int                `json:"total_count"`
	TotalAmount decimal.Decimal    `json:"total_amount"`
	TransCost   decimal.Decimal    `json:"trans_cost"`
}

type lineItem struct {
	skuID int64
	count int
}

// PlaceOrder turns the selected cart entries into an order. Stock for every
// line is taken with a compare-and-swap on the stock value read, retried up
// to MaxAttempts times. Any failure rolls the whole order back; on success
// the committed SKUs are removed from the user's cart.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*PlacedOrder, error) {
	start := time.Now()
	placed, err := s.placeOrder(ctx, req)
	s.metrics.CommitTime.Observe(time.Since(start).Seconds())

	if err != nil {
		f := failure.From(err)
		s.metrics.Orders.WithLabelValues(string(f.Kind)).Inc()
		if f.Kind == failure.Unexpected {
			s.logger.Error("Order commit failed", zap.Int64("user_id", req.UserID), zap.Error(err))
		} else {
			s.logger.Info("Order rejected", zap.Int64("user_id", req.UserID), zap.String("kind", string(f.Kind)))
		}
		return nil, f
	}

	s.metrics.Orders.WithLabelValues("placed").Inc()
	return placed, nil
}

func (s *Service) placeOrder(ctx context.Context, req PlaceOrderRequest) (*PlacedOrder, error) {
	if req.UserID <= 0 || req.AddressID <= 0 || req.PayMethod == 0 || len(req.SKUIDs) == 0 {
		return nil, failure.New(failure.MissingParameter, "address_id, pay_method and sku_ids are required")
	}
	if !req.PayMethod.Valid() {
		return nil, failure.New(failure.InvalidPaymentMethod, "unsupported payment method %d", req.PayMethod)
	}

	addr, err := s.store.FindAddress(ctx, req.UserID, req.AddressID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, failure.New(failure.AddressNotFound, "address %d not found", req.AddressID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load address: %w", err)
	}

	items, err := s.cartItems(ctx, req.UserID, req.SKUIDs)
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		OrderID:     s.ids.Next(req.UserID),
		UserID:      req.UserID,
		AddressID:   addr.ID,
		TotalAmount: decimal.Zero,
		TransCost:   s.shipping,
		PayMethod:   req.PayMethod,
		Status:      models.StatusAwaitingPayment,
	}

	var lines []models.OrderLine
	err = s.store.InTx(ctx, func(tx repository.Tx) error {
		if err := tx.SavePoint(savepointName); err != nil {
			return fmt.Errorf("failed to set savepoint: %w", err)
		}
		committed, err := s.commitLines(ctx, tx, order, items)
		if err != nil {
			if rbErr := tx.RollbackTo(savepointName); rbErr != nil {
				s.logger.Error("Rollback to savepoint failed", zap.String("order_id", order.OrderID), zap.Error(rbErr))
			}
			return err
		}
		lines = committed
		return nil
	})
	if err != nil {
		return nil, err
	}

	skuIDs := make([]int64, len(items))
	for i, item := range items {
		skuIDs[i] = item.skuID
	}
	if err := s.carts.RemoveKeys(ctx, req.UserID, skuIDs...); err != nil {
		s.logger.Warn("Failed to clear committed cart entries", zap.String("order_id", order.OrderID), zap.Error(err))
	}

	s.dispatch(placedTask(order, lines))
	s.logger.Info("Order placed",
		zap.String("order_id", order.OrderID),
		zap.Int64("user_id", order.UserID),
		zap.Int("total_count", order.TotalCount))

	return &PlacedOrder{
		OrderID:     order.OrderID,
		Status:      order.Status,
		TotalCount:  order.TotalCount,
		TotalAmount: order.TotalAmount,
		TransCost:   order.TransCost,
	}, nil
}

// cartItems resolves the selected SKUs against the cart, dropping
// duplicates and ordering by SKU id so concurrent commits lock rows in the
// same order.
func (s *Service) cartItems(ctx context.Context, userID int64, skuIDs []int64) ([]lineItem, error) {
	entries, err := s.carts.ReadAll(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to read cart: %w", err)
	}

	seen := make(map[int64]bool, len(skuIDs))
	items := make([]lineItem, 0, len(skuIDs))
	for _, id := range skuIDs {
		if id <= 0 {
			return nil, failure.New(failure.MissingParameter, "invalid sku id %d", id)
		}
		if seen[id] {
			continue
		}
		seen[id] = true

		count, ok := entries[id]
		if !ok || count <= 0 {
			return nil, failure.New(failure.MissingParameter, "product %d is not in the cart", id)
		}
		items = append(items, lineItem{skuID: id, count: count})
	}

	sort.Slice(items, func(i, j int) bool { return items[i].skuID < items[j].skuID })
	return items, nil
}

func (s *Service) commitLines(ctx context.Context, tx repository.Tx, order *models.Order, items []lineItem) ([]models.OrderLine, error) {
	if err := tx.CreateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	lines := make([]models.OrderLine, 0, len(items))
	subtotal := decimal.Zero
	totalCount := 0
	for _, item := range items {
		line, err := s.reserve(ctx, tx, item)
		if err != nil {
			return nil, err
		}
		line.OrderID = order.OrderID
		if err := tx.CreateLine(ctx, line); err != nil {
			return nil, fmt.Errorf("failed to create order line: %w", err)
		}
		lines = append(lines, *line)
		totalCount += line.Count
		subtotal = subtotal.Add(line.Amount())
	}

	totalAmount := subtotal.Add(order.TransCost)
	if err := tx.UpdateOrderTotals(ctx, order.OrderID, totalCount, totalAmount); err != nil {
		return nil, fmt.Errorf("failed to update order totals: %w", err)
	}
	order.TotalCount = totalCount
	order.TotalAmount = totalAmount
	return lines, nil
}

// reserve decrements stock for one line with a conditional update, rereading
// and retrying when a concurrent commit changed the row first.
func (s *Service) reserve(ctx context.Context, tx repository.Tx, item lineItem) (*models.OrderLine, error) {
	for attempt := 1; ; attempt++ {
		sku, err := tx.ReadSKU(ctx, item.skuID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, failure.New(failure.ProductNotFound, "product %d does not exist", item.skuID)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read sku %d: %w", item.skuID, err)
		}

		if item.count > sku.Stock {
			return nil, failure.New(failure.InsufficientStock, "only %d of %s left", sku.Stock, sku.Name)
		}

		n, err := tx.ConditionalUpdate(ctx, sku.ID, sku.Stock, sku.Stock-item.count, sku.Sales+item.count)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			return &models.OrderLine{SKUID: sku.ID, Count: item.count, Price: sku.Price}, nil
		}

		s.metrics.LockRetries.Inc()
		if attempt >= s.cfg.MaxAttempts {
			return nil, failure.New(failure.OptimisticLockExhausted, "%s is selling fast, please try again", sku.Name)
		}
	}
}

func placedTask(order *models.Order, lines []models.OrderLine) *tasks.OrderPlaced {
	summary := make([]tasks.LineSummary, len(lines))
	for i, line := range lines {
		summary[i] = tasks.LineSummary{SKUID: line.SKUID, Count: line.Count, Price: line.Price}
	}
	return &tasks.OrderPlaced{
		OrderID:     order.OrderID,
		UserID:      order.UserID,
		TotalCount:  order.TotalCount,
		TotalAmount: order.TotalAmount,
		PayMethod:   order.PayMethod.String(),
		Lines:       summary,
	}
}
