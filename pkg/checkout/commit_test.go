package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/example/freshmart/pkg/config"
	"github.com/example/freshmart/pkg/failure"
	"github.com/example/freshmart/pkg/metrics"
	"github.com/example/freshmart/pkg/models"
	"github.com/example/freshmart/pkg/payment"
	"github.com/example/freshmart/pkg/repository"
	"github.com/example/freshmart/pkg/tasks"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingDispatcher struct {
	mu    sync.Mutex
	tasks []tasks.Task
}

func (d *recordingDispatcher) Enqueue(task tasks.Task) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tasks = append(d.tasks, task)
	return true
}

func (d *recordingDispatcher) all() []tasks.Task {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]tasks.Task(nil), d.tasks...)
}

type fixture struct {
	svc     *Service
	store   *repository.MemoryStore
	carts   *repository.RedisRepository
	gateway *fakeGateway
	tasks   *recordingDispatcher
	metrics *metrics.Checkout
}

func newFixture(t *testing.T, wrap func(*repository.MemoryStore) repository.Store) *fixture {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	f := &fixture{
		store:   repository.NewMemoryStore(),
		carts:   repository.NewRedisRepositoryWithClient(client),
		gateway: &fakeGateway{},
		tasks:   &recordingDispatcher{},
		metrics: metrics.NewCheckout(prometheus.NewRegistry()),
	}

	var store repository.Store = f.store
	if wrap != nil {
		store = wrap(f.store)
	}

	cfg := config.CheckoutConfig{
		ShippingCost: 10,
		MaxAttempts:  3,
		PageSize:     2,
		Poll: config.PollConfig{
			MaxAttempts:    4,
			InitialBackoff: 10 * time.Millisecond,
			MaxBackoff:     15 * time.Millisecond,
			Timeout:        time.Second,
		},
	}
	f.svc = NewService(cfg, store, f.carts, f.gateway, f.tasks, f.metrics, zap.NewNop())
	return f
}

func (f *fixture) sku(t *testing.T, id int64, name, price string, stock int) {
	t.Helper()
	require.NoError(t, f.store.CreateSKU(context.Background(), &models.SKU{
		ID:    id,
		Name:  name,
		Unit:  "500g",
		Price: decimal.RequireFromString(price),
		Stock: stock,
	}))
}

func (f *fixture) address(t *testing.T, userID int64) int64 {
	t.Helper()
	addr := &models.Address{UserID: userID, ReceiverName: "Lin", ReceiverMobile: "13800000000", DetailAddr: "1 Market St", ZipCode: "100000"}
	require.NoError(t, f.store.CreateAddress(context.Background(), addr))
	return addr.ID
}

func (f *fixture) cart(t *testing.T, userID int64, entries map[int64]int) {
	t.Helper()
	for sku, count := range entries {
		require.NoError(t, f.carts.Set(context.Background(), userID, sku, count))
	}
}

func (f *fixture) stock(t *testing.T, id int64) (int, int) {
	t.Helper()
	sku, err := f.store.GetSKU(context.Background(), id)
	require.NoError(t, err)
	return sku.Stock, sku.Sales
}

func TestPlaceOrder_CommitsLinesAndClearsCart(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.sku(t, 1, "strawberry", "12.50", 10)
	f.sku(t, 2, "kiwi", "3.20", 5)
	f.sku(t, 3, "mango", "8.00", 5)
	addr := f.address(t, 7)
	f.cart(t, 7, map[int64]int{1: 2, 2: 3, 3: 1})

	placed, err := f.svc.PlaceOrder(ctx, PlaceOrderRequest{
		UserID:    7,
		AddressID: addr,
		PayMethod: models.PayCashOnDelivery,
		SKUIDs:    []int64{2, 1, 2},
	})
	require.NoError(t, err)

	assert.Equal(t, models.StatusAwaitingPayment, placed.Status)
	assert.Equal(t, 5, placed.TotalCount)
	assert.True(t, decimal.RequireFromString("44.6").Equal(placed.TotalAmount), placed.TotalAmount.String())
	assert.True(t, decimal.NewFromInt(10).Equal(placed.TransCost))

	stock, sales := f.stock(t, 1)
	assert.Equal(t, 8, stock)
	assert.Equal(t, 2, sales)
	stock, sales = f.stock(t, 2)
	assert.Equal(t, 2, stock)
	assert.Equal(t, 3, sales)

	order, err := f.store.FindOrder(ctx, 7, placed.OrderID)
	require.NoError(t, err)
	require.Len(t, order.Lines, 2)
	assert.Equal(t, int64(1), order.Lines[0].SKUID)
	assert.True(t, decimal.RequireFromString("12.50").Equal(order.Lines[0].Price))

	entries, err := f.carts.ReadAll(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, map[int64]int{3: 1}, entries)

	queued := f.tasks.all()
	require.Len(t, queued, 1)
	task, ok := queued[0].(*tasks.OrderPlaced)
	require.True(t, ok)
	assert.Equal(t, placed.OrderID, task.OrderID)
	assert.Len(t, task.Lines, 2)

	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.Orders.WithLabelValues("placed")))
}

func TestPlaceOrder_Validation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.sku(t, 1, "strawberry", "12.50", 2)
	addr := f.address(t, 7)
	other := f.address(t, 8)
	f.cart(t, 7, map[int64]int{1: 3, 404: 1})

	tests := map[string]struct {
		req  PlaceOrderRequest
		want failure.Kind
	}{
		"no skus":            {req: PlaceOrderRequest{UserID: 7, AddressID: addr, PayMethod: models.PayGateway}, want: failure.MissingParameter},
		"no address":         {req: PlaceOrderRequest{UserID: 7, PayMethod: models.PayGateway, SKUIDs: []int64{1}}, want: failure.MissingParameter},
		"unknown pay method": {req: PlaceOrderRequest{UserID: 7, AddressID: addr, PayMethod: 9, SKUIDs: []int64{1}}, want: failure.InvalidPaymentMethod},
		"foreign address":    {req: PlaceOrderRequest{UserID: 7, AddressID: other, PayMethod: models.PayGateway, SKUIDs: []int64{1}}, want: failure.AddressNotFound},
		"not in cart":        {req: PlaceOrderRequest{UserID: 7, AddressID: addr, PayMethod: models.PayGateway, SKUIDs: []int64{2}}, want: failure.MissingParameter},
		"unknown product":    {req: PlaceOrderRequest{UserID: 7, AddressID: addr, PayMethod: models.PayGateway, SKUIDs: []int64{404}}, want: failure.ProductNotFound},
		"over stock":         {req: PlaceOrderRequest{UserID: 7, AddressID: addr, PayMethod: models.PayGateway, SKUIDs: []int64{1}}, want: failure.InsufficientStock},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.PlaceOrder(ctx, tc.req)
			assert.Equal(t, tc.want, failure.KindOf(err))
		})
	}

	stock, sales := f.stock(t, 1)
	assert.Equal(t, 2, stock)
	assert.Equal(t, 0, sales)

	_, total, err := f.store.ListOrders(ctx, 7, 0, 10)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, f.tasks.all())
}

func TestPlaceOrder_ConcurrentBuyersAllSucceed(t *testing.T) {
	f := newFixture(t, nil)
	f.sku(t, 1, "strawberry", "12.50", 10)

	users := []int64{1, 2, 3}
	addrs := make(map[int64]int64)
	for _, uid := range users {
		addrs[uid] = f.address(t, uid)
		f.cart(t, uid, map[int64]int{1: 2})
	}

	var wg sync.WaitGroup
	errs := make([]error, len(users))
	for i, uid := range users {
		wg.Add(1)
		go func(i int, uid int64) {
			defer wg.Done()
			_, errs[i] = f.svc.PlaceOrder(context.Background(), PlaceOrderRequest{
				UserID:    uid,
				AddressID: addrs[uid],
				PayMethod: models.PayGateway,
				SKUIDs:    []int64{1},
			})
		}(i, uid)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	stock, sales := f.stock(t, 1)
	assert.Equal(t, 4, stock)
	assert.Equal(t, 6, sales)
}

func TestPlaceOrder_NeverOversells(t *testing.T) {
	f := newFixture(t, nil)
	f.sku(t, 1, "strawberry", "12.50", 5)

	users := []int64{1, 2}
	addrs := make(map[int64]int64)
	for _, uid := range users {
		addrs[uid] = f.address(t, uid)
		f.cart(t, uid, map[int64]int{1: 3})
	}

	var wg sync.WaitGroup
	errs := make([]error, len(users))
	for i, uid := range users {
		wg.Add(1)
		go func(i int, uid int64) {
			defer wg.Done()
			_, errs[i] = f.svc.PlaceOrder(context.Background(), PlaceOrderRequest{
				UserID:    uid,
				AddressID: addrs[uid],
				PayMethod: models.PayGateway,
				SKUIDs:    []int64{1},
			})
		}(i, uid)
	}
	wg.Wait()

	var succeeded int
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.Contains(t, []failure.Kind{failure.InsufficientStock, failure.OptimisticLockExhausted}, failure.KindOf(err))
	}
	assert.Equal(t, 1, succeeded)

	stock, sales := f.stock(t, 1)
	assert.Equal(t, 2, stock)
	assert.Equal(t, 3, sales)
}

// flakyStore fails the read of one SKU inside order transactions.
type flakyStore struct {
	*repository.MemoryStore
	failOn int64
}

func (s *flakyStore) InTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	return s.MemoryStore.InTx(ctx, func(tx repository.Tx) error {
		return fn(&flakyTx{Tx: tx, failOn: s.failOn})
	})
}

type flakyTx struct {
	repository.Tx
	failOn int64
}

func (t *flakyTx) ReadSKU(ctx context.Context, id int64) (*models.SKU, error) {
	if id == t.failOn {
		return nil, errors.New("connection reset by peer")
	}
	return t.Tx.ReadSKU(ctx, id)
}

func TestPlaceOrder_FailureRollsBackEveryLine(t *testing.T) {
	f := newFixture(t, func(s *repository.MemoryStore) repository.Store {
		return &flakyStore{MemoryStore: s, failOn: 2}
	})
	ctx := context.Background()
	f.sku(t, 1, "strawberry", "12.50", 10)
	f.sku(t, 2, "kiwi", "3.20", 10)
	f.sku(t, 3, "mango", "8.00", 10)
	addr := f.address(t, 7)
	f.cart(t, 7, map[int64]int{1: 2, 2: 1, 3: 4})

	_, err := f.svc.PlaceOrder(ctx, PlaceOrderRequest{UserID: 7, AddressID: addr, PayMethod: models.PayGateway, SKUIDs: []int64{1, 2, 3}})
	require.Error(t, err)
	assert.Equal(t, failure.Unexpected, failure.KindOf(err))
	assert.NotContains(t, err.Error(), "connection reset")

	for _, id := range []int64{1, 2, 3} {
		stock, sales := f.stock(t, id)
		assert.Equal(t, 10, stock, "sku %d", id)
		assert.Equal(t, 0, sales, "sku %d", id)
	}

	_, total, err := f.store.ListOrders(ctx, 7, 0, 10)
	require.NoError(t, err)
	assert.Zero(t, total)

	entries, err := f.carts.ReadAll(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, map[int64]int{1: 2, 2: 1, 3: 4}, entries)
	assert.Empty(t, f.tasks.all())
}

// racingStore makes the first lose conditional updates miss, as if another
// checkout changed the row between the read and the write. A negative lose
// misses every time.
type racingStore struct {
	*repository.MemoryStore
	lose  int
	calls int
}

func (s *racingStore) InTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	return s.MemoryStore.InTx(ctx, func(tx repository.Tx) error {
		return fn(&racingTx{Tx: tx, store: s})
	})
}

type racingTx struct {
	repository.Tx
	store *racingStore
}

func (t *racingTx) ConditionalUpdate(ctx context.Context, id int64, expectedStock, newStock, newSales int) (int64, error) {
	t.store.calls++
	if t.store.lose < 0 || t.store.calls <= t.store.lose {
		return 0, nil
	}
	return t.Tx.ConditionalUpdate(ctx, id, expectedStock, newStock, newSales)
}

func TestPlaceOrder_LockRetries(t *testing.T) {
	tests := map[string]struct {
		lose      int
		wantErr   failure.Kind
		wantCalls int
		wantStock int
	}{
		"retry after a lost race": {lose: 1, wantCalls: 2, wantStock: 8},
		"every attempt loses":     {lose: -1, wantErr: failure.OptimisticLockExhausted, wantCalls: 3, wantStock: 10},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			var racing *racingStore
			f := newFixture(t, func(s *repository.MemoryStore) repository.Store {
				racing = &racingStore{MemoryStore: s, lose: tc.lose}
				return racing
			})
			ctx := context.Background()
			f.sku(t, 1, "strawberry", "12.50", 10)
			addr := f.address(t, 7)
			f.cart(t, 7, map[int64]int{1: 2})

			placed, err := f.svc.PlaceOrder(ctx, PlaceOrderRequest{UserID: 7, AddressID: addr, PayMethod: models.PayGateway, SKUIDs: []int64{1}})
			assert.Equal(t, tc.wantCalls, racing.calls)

			stock, _ := f.stock(t, 1)
			assert.Equal(t, tc.wantStock, stock)

			_, total, listErr := f.store.ListOrders(ctx, 7, 0, 10)
			require.NoError(t, listErr)

			if tc.wantErr != "" {
				assert.Equal(t, tc.wantErr, failure.KindOf(err))
				assert.Zero(t, total)
				assert.Empty(t, f.tasks.all())
				assert.Equal(t, float64(3), testutil.ToFloat64(f.metrics.LockRetries))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, models.StatusAwaitingPayment, placed.Status)
			assert.Equal(t, int64(1), total)
			assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.LockRetries))
		})
	}
}

func TestPlaceOrder_RepeatedSnapshotCreatesSeparateOrders(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.sku(t, 1, "strawberry", "12.50", 10)
	addr := f.address(t, 7)
	req := PlaceOrderRequest{UserID: 7, AddressID: addr, PayMethod: models.PayCashOnDelivery, SKUIDs: []int64{1}}

	f.cart(t, 7, map[int64]int{1: 2})
	first, err := f.svc.PlaceOrder(ctx, req)
	require.NoError(t, err)

	f.cart(t, 7, map[int64]int{1: 2})
	second, err := f.svc.PlaceOrder(ctx, req)
	require.NoError(t, err)

	assert.NotEqual(t, first.OrderID, second.OrderID)
	stock, _ := f.stock(t, 1)
	assert.Equal(t, 6, stock)
}

func TestIDGenerator_Next(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 123000, time.UTC)
	g := &IDGenerator{now: func() time.Time { return fixed }}

	assert.Equal(t, "20240501120000000123"+"7", g.Next(7))
	assert.Equal(t, "20240501120000000124"+"7", g.Next(7))
	assert.Equal(t, "20240501120000000125"+"42", g.Next(42))
}

type fakeGateway struct {
	mu      sync.Mutex
	results []payment.Result
	errs    []error
	calls   int
}

func (g *fakeGateway) Query(_ context.Context, _ string) (payment.Result, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	i := g.calls
	g.calls++
	if i < len(g.errs) && g.errs[i] != nil {
		return payment.Result{}, g.errs[i]
	}
	if i < len(g.results) {
		return g.results[i], nil
	}
	return payment.Result{Status: payment.StatusPending}, nil
}

func (g *fakeGateway) BuildPaymentRedirectURL(orderID string, amount decimal.Decimal) (string, error) {
	return "https://pay.test/gateway?out_trade_no=" + orderID + "&total_amount=" + amount.StringFixed(2), nil
}
