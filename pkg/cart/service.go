package cart

import (
	"context"
	"errors"
	"sort"

	"github.com/example/freshmart/pkg/failure"
	"github.com/example/freshmart/pkg/models"
	"github.com/example/freshmart/pkg/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Catalog interface {
	GetSKU(ctx context.Context, id int64) (*models.SKU, error)
}

// Line is a cart or checkout row: the SKU plus the quantity requested and
// the resulting amount.
type Line struct {
	SKUID  int64           `json:"sku_id"`
	Name   string          `json:"name"`
	Unit   string          `json:"unit"`
	Price  decimal.Decimal `json:"price"`
	Stock  int             `json:"stock"`
	Count  int             `json:"count"`
	Amount decimal.Decimal `json:"amount"`
}

func NewLine(sku *models.SKU, count int) Line {
	return Line{
		SKUID:  sku.ID,
		Name:   sku.Name,
		Unit:   sku.Unit,
		Price:  sku.Price,
		Stock:  sku.Stock,
		Count:  count,
		Amount: sku.Price.Mul(decimal.NewFromInt(int64(count))),
	}
}

type View struct {
	Lines       []Line          `json:"lines"`
	TotalCount  int             `json:"total_count"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

type Service struct {
	catalog Catalog
	logger  *zap.Logger
}

func NewService(catalog Catalog, logger *zap.Logger) *Service {
	return &Service{catalog: catalog, logger: logger}
}

// Add accumulates count onto the existing entry and returns the number of
// items now in the cart.
func (s *Service) Add(ctx context.Context, store Store, owner, skuID int64, count int) (int, error) {
	sku, err := s.validate(ctx, skuID, count)
	if err != nil {
		return 0, err
	}

	entries, err := store.ReadAll(ctx, owner)
	if err != nil {
		return 0, s.unexpected("read cart", err)
	}
	total := entries[skuID] + count
	if total > sku.Stock {
		return 0, failure.New(failure.InsufficientStock, "only %d of %s left", sku.Stock, sku.Name)
	}
	if err := store.Set(ctx, owner, skuID, total); err != nil {
		return 0, s.unexpected("write cart", err)
	}

	entries[skuID] = total
	return itemCount(entries), nil
}

// Update replaces the quantity of one entry.
func (s *Service) Update(ctx context.Context, store Store, owner, skuID int64, count int) error {
	sku, err := s.validate(ctx, skuID, count)
	if err != nil {
		return err
	}
	if count > sku.Stock {
		return failure.New(failure.InsufficientStock, "only %d of %s left", sku.Stock, sku.Name)
	}
	if err := store.Set(ctx, owner, skuID, count); err != nil {
		return s.unexpected("write cart", err)
	}
	return nil
}

func (s *Service) Remove(ctx context.Context, store Store, owner, skuID int64) error {
	if skuID <= 0 {
		return failure.New(failure.MissingParameter, "sku_id is required")
	}
	if _, err := s.lookup(ctx, skuID); err != nil {
		return err
	}
	if err := store.RemoveKeys(ctx, owner, skuID); err != nil {
		return s.unexpected("write cart", err)
	}
	return nil
}

// View lists the cart. Entries whose SKU no longer exists are skipped.
func (s *Service) View(ctx context.Context, store Store, owner int64) (*View, error) {
	entries, err := store.ReadAll(ctx, owner)
	if err != nil {
		return nil, s.unexpected("read cart", err)
	}

	ids := make([]int64, 0, len(entries))
	for id := range entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	view := &View{Lines: []Line{}, TotalAmount: decimal.Zero}
	for _, id := range ids {
		sku, err := s.catalog.GetSKU(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, s.unexpected("load sku", err)
		}
		line := NewLine(sku, entries[id])
		view.Lines = append(view.Lines, line)
		view.TotalCount += line.Count
		view.TotalAmount = view.TotalAmount.Add(line.Amount)
	}
	return view, nil
}

// Merge folds an anonymous cart into the user's persistent cart by summing
// quantities, and returns the number of items in the merged cart.
func (s *Service) Merge(ctx context.Context, store Store, owner int64, anonymous map[int64]int) (int, error) {
	entries, err := store.ReadAll(ctx, owner)
	if err != nil {
		return 0, s.unexpected("read cart", err)
	}
	for id, count := range anonymous {
		if count <= 0 {
			continue
		}
		merged := entries[id] + count
		if err := store.Set(ctx, owner, id, merged); err != nil {
			return 0, s.unexpected("write cart", err)
		}
		entries[id] = merged
	}
	return itemCount(entries), nil
}

func (s *Service) validate(ctx context.Context, skuID int64, count int) (*models.SKU, error) {
	if skuID <= 0 {
		return nil, failure.New(failure.MissingParameter, "sku_id and count are required")
	}
	if count <= 0 {
		return nil, failure.New(failure.InvalidQuantity, "count must be a positive integer")
	}
	return s.lookup(ctx, skuID)
}

func (s *Service) lookup(ctx context.Context, skuID int64) (*models.SKU, error) {
	sku, err := s.catalog.GetSKU(ctx, skuID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, failure.New(failure.ProductNotFound, "product %d does not exist", skuID)
	}
	if err != nil {
		return nil, s.unexpected("load sku", err)
	}
	return sku, nil
}

func (s *Service) unexpected(op string, err error) error {
	s.logger.Error("Cart operation failed", zap.String("op", op), zap.Error(err))
	return failure.From(err)
}

func itemCount(entries map[int64]int) int {
	n := 0
	for _, count := range entries {
		n += count
	}
	return n
}
