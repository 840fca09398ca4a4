package repository

import (
	"context"
	"errors"

	"github.com/example/freshmart/pkg/models"
	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("record not found")

// Tx is the unit of work used while committing an order. Implementations
// must run at read-committed isolation so that a reread after a failed
// ConditionalUpdate observes the competing commit.
type Tx interface {
	SavePoint(name string) error
	RollbackTo(name string) error

	ReadSKU(ctx context.Context, id int64) (*models.SKU, error)
	// ConditionalUpdate writes stock and sales only while the stored stock
	// still equals expectedStock, and reports the number of rows changed.
	ConditionalUpdate(ctx context.Context, id int64, expectedStock, newStock, newSales int) (int64, error)

	CreateOrder(ctx context.Context, order *models.Order) error
	CreateLine(ctx context.Context, line *models.OrderLine) error
	UpdateOrderTotals(ctx context.Context, orderID string, totalCount int, totalAmount decimal.Decimal) error
}

// Store is implemented by MySQLStore and MemoryStore.
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error

	GetSKU(ctx context.Context, id int64) (*models.SKU, error)
	CreateSKU(ctx context.Context, sku *models.SKU) error

	CreateAddress(ctx context.Context, addr *models.Address) error
	FindAddress(ctx context.Context, userID, addressID int64) (*models.Address, error)
	LatestAddress(ctx context.Context, userID int64) (*models.Address, error)

	FindOrder(ctx context.Context, userID int64, orderID string) (*models.Order, error)
	ListOrders(ctx context.Context, userID int64, offset, limit int) ([]models.Order, int64, error)
	// UpdateOrderStatus moves an order from one status to another and, when
	// tradeID is set, records the gateway transaction. It returns false when
	// the order was no longer in the from status.
	UpdateOrderStatus(ctx context.Context, orderID string, from, to models.OrderStatus, tradeID *string) (bool, error)
	// SaveReviews writes review text onto the order's lines keyed by SKU,
	// ignoring SKUs that are not part of the order, then sets the status.
	SaveReviews(ctx context.Context, orderID string, reviews map[int64]string, status models.OrderStatus) error
}
