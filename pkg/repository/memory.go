package repository

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/example/freshmart/pkg/models"
	"github.com/shopspring/decimal"
)

// MemoryStore keeps everything in process. Conditional updates take a row
// lock held until commit or rollback, and plain reads see committed rows,
// which mirrors InnoDB at read-committed isolation.
type MemoryStore struct {
	mu   sync.Mutex
	cond *sync.Cond

	skus      map[int64]models.SKU
	locks     map[int64]*memoryTx
	addresses map[int64]models.Address
	orders    map[string]models.Order
	lines     map[string][]models.OrderLine

	nextSKUID  int64
	nextAddrID int64
	nextLineID int64
	now        func() time.Time
}

func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		skus:      make(map[int64]models.SKU),
		locks:     make(map[int64]*memoryTx),
		addresses: make(map[int64]models.Address),
		orders:    make(map[string]models.Order),
		lines:     make(map[string][]models.OrderLine),
		now:       time.Now,
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

func (s *MemoryStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	tx := &memoryTx{
		store:      s,
		skus:       make(map[int64]models.SKU),
		savepoints: make(map[string]memorySnapshot),
	}
	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}
	if err := ctx.Err(); err != nil {
		tx.rollback()
		return err
	}
	tx.commit()
	return nil
}

func (s *MemoryStore) GetSKU(_ context.Context, id int64) (*models.SKU, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sku, ok := s.skus[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &sku, nil
}

func (s *MemoryStore) CreateSKU(_ context.Context, sku *models.SKU) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sku.ID == 0 {
		s.nextSKUID++
		sku.ID = s.nextSKUID
	} else if sku.ID > s.nextSKUID {
		s.nextSKUID = sku.ID
	}
	if _, exists := s.skus[sku.ID]; exists {
		return errors.New("duplicate sku id")
	}
	s.skus[sku.ID] = *sku
	return nil
}

func (s *MemoryStore) CreateAddress(_ context.Context, addr *models.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextAddrID++
	addr.ID = s.nextAddrID
	if addr.CreatedAt.IsZero() {
		addr.CreatedAt = s.now()
	}
	s.addresses[addr.ID] = *addr
	return nil
}

func (s *MemoryStore) FindAddress(_ context.Context, userID, addressID int64) (*models.Address, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	addr, ok := s.addresses[addressID]
	if !ok || addr.UserID != userID {
		return nil, ErrNotFound
	}
	return &addr, nil
}

func (s *MemoryStore) LatestAddress(_ context.Context, userID int64) (*models.Address, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var latest *models.Address
	for _, addr := range s.addresses {
		if addr.UserID != userID {
			continue
		}
		if latest == nil || addr.CreatedAt.After(latest.CreatedAt) ||
			(addr.CreatedAt.Equal(latest.CreatedAt) && addr.ID > latest.ID) {
			a := addr
			latest = &a
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	return latest, nil
}

func (s *MemoryStore) FindOrder(_ context.Context, userID int64, orderID string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok || order.UserID != userID {
		return nil, ErrNotFound
	}
	order.Lines = s.linesOf(orderID)
	return &order, nil
}

func (s *MemoryStore) ListOrders(_ context.Context, userID int64, offset, limit int) ([]models.Order, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var owned []models.Order
	for _, order := range s.orders {
		if order.UserID == userID {
			owned = append(owned, order)
		}
	}
	sort.Slice(owned, func(i, j int) bool {
		if !owned[i].CreatedAt.Equal(owned[j].CreatedAt) {
			return owned[i].CreatedAt.After(owned[j].CreatedAt)
		}
		return owned[i].OrderID > owned[j].OrderID
	})

	total := int64(len(owned))
	if offset >= len(owned) {
		return nil, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(owned) {
		end = len(owned)
	}

	page := owned[offset:end]
	for i := range page {
		page[i].Lines = s.linesOf(page[i].OrderID)
	}
	return page, total, nil
}

func (s *MemoryStore) UpdateOrderStatus(_ context.Context, orderID string, from, to models.OrderStatus, tradeID *string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok || order.Status != from {
		return false, nil
	}
	order.Status = to
	if tradeID != nil {
		id := *tradeID
		order.TradeID = &id
	}
	order.UpdatedAt = s.now()
	s.orders[orderID] = order
	return true, nil
}

func (s *MemoryStore) SaveReviews(_ context.Context, orderID string, reviews map[int64]string, status models.OrderStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok {
		return ErrNotFound
	}
	lines := s.lines[orderID]
	for i := range lines {
		if content, ok := reviews[lines[i].SKUID]; ok {
			lines[i].Comment = content
		}
	}
	order.Status = status
	order.UpdatedAt = s.now()
	s.orders[orderID] = order
	return nil
}

// linesOf must be called with s.mu held.
func (s *MemoryStore) linesOf(orderID string) []models.OrderLine {
	src := s.lines[orderID]
	lines := make([]models.OrderLine, len(src))
	for i, line := range src {
		if sku, ok := s.skus[line.SKUID]; ok {
			line.SKU = &sku
		}
		lines[i] = line
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].SKUID < lines[j].SKUID })
	return lines
}

type memorySnapshot struct {
	skus   map[int64]models.SKU
	orders []models.Order
	lines  []models.OrderLine
	totals map[string]orderTotals
}

type orderTotals struct {
	count  int
	amount decimal.Decimal
}

type memoryTx struct {
	store *MemoryStore

	skus       map[int64]models.SKU
	orders     []models.Order
	lines      []models.OrderLine
	totals     map[string]orderTotals
	savepoints map[string]memorySnapshot
}

func (t *memoryTx) SavePoint(name string) error {
	snap := memorySnapshot{
		skus:   make(map[int64]models.SKU, len(t.skus)),
		orders: append([]models.Order(nil), t.orders...),
		lines:  append([]models.OrderLine(nil), t.lines...),
		totals: make(map[string]orderTotals, len(t.totals)),
	}
	for id, sku := range t.skus {
		snap.skus[id] = sku
	}
	for id, tot := range t.totals {
		snap.totals[id] = tot
	}
	t.savepoints[name] = snap
	return nil
}

// RollbackTo discards pending writes made after the savepoint. Row locks
// stay held until the transaction ends.
func (t *memoryTx) RollbackTo(name string) error {
	snap, ok := t.savepoints[name]
	if !ok {
		return errors.New("savepoint " + name + " does not exist")
	}
	t.skus = snap.skus
	t.orders = snap.orders
	t.lines = snap.lines
	t.totals = snap.totals
	delete(t.savepoints, name)
	return t.SavePoint(name)
}

func (t *memoryTx) ReadSKU(_ context.Context, id int64) (*models.SKU, error) {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if sku, ok := t.skus[id]; ok {
		return &sku, nil
	}
	sku, ok := s.skus[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &sku, nil
}

func (t *memoryTx) ConditionalUpdate(ctx context.Context, id int64, expectedStock, newStock, newSales int) (int64, error) {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if pending, ok := t.skus[id]; ok {
		if pending.Stock != expectedStock {
			return 0, nil
		}
		pending.Stock, pending.Sales = newStock, newSales
		t.skus[id] = pending
		return 1, nil
	}

	// Waiters only wake on Broadcast, so cancellation has to broadcast too.
	stop := context.AfterFunc(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.cond.Broadcast()
	})
	defer stop()

	for {
		owner, locked := s.locks[id]
		if !locked || owner == t {
			break
		}
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		s.cond.Wait()
	}

	sku, ok := s.skus[id]
	if !ok || sku.Stock != expectedStock {
		return 0, nil
	}
	s.locks[id] = t
	sku.Stock, sku.Sales = newStock, newSales
	t.skus[id] = sku
	return 1, nil
}

func (t *memoryTx) CreateOrder(_ context.Context, order *models.Order) error {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.orders[order.OrderID]; exists {
		return errors.New("duplicate order id " + order.OrderID)
	}
	for _, pending := range t.orders {
		if pending.OrderID == order.OrderID {
			return errors.New("duplicate order id " + order.OrderID)
		}
	}
	now := s.now()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now
	t.orders = append(t.orders, *order)
	return nil
}

func (t *memoryTx) CreateLine(_ context.Context, line *models.OrderLine) error {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextLineID++
	line.ID = s.nextLineID
	if line.CreatedAt.IsZero() {
		line.CreatedAt = s.now()
	}
	stored := *line
	stored.SKU = nil
	t.lines = append(t.lines, stored)
	return nil
}

func (t *memoryTx) UpdateOrderTotals(_ context.Context, orderID string, totalCount int, totalAmount decimal.Decimal) error {
	if t.totals == nil {
		t.totals = make(map[string]orderTotals)
	}
	t.totals[orderID] = orderTotals{count: totalCount, amount: totalAmount}
	return nil
}

func (t *memoryTx) commit() {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, sku := range t.skus {
		s.skus[id] = sku
	}
	for _, order := range t.orders {
		if tot, ok := t.totals[order.OrderID]; ok {
			order.TotalCount = tot.count
			order.TotalAmount = tot.amount
		}
		order.Lines = nil
		s.orders[order.OrderID] = order
	}
	for _, line := range t.lines {
		s.lines[line.OrderID] = append(s.lines[line.OrderID], line)
	}
	t.release()
}

func (t *memoryTx) rollback() {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	t.release()
}

// release must be called with the store mutex held.
func (t *memoryTx) release() {
	s := t.store
	for id, owner := range s.locks {
		if owner == t {
			delete(s.locks, id)
		}
	}
	s.cond.Broadcast()
}
