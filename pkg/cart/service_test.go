package cart

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/example/freshmart/pkg/failure"
	"github.com/example/freshmart/pkg/models"
	"github.com/example/freshmart/pkg/repository"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newCatalog(t *testing.T) *repository.MemoryStore {
	t.Helper()
	store := repository.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.CreateSKU(ctx, &models.SKU{ID: 1, Name: "strawberry", Unit: "box", Price: decimal.RequireFromString("12.50"), Stock: 10}))
	require.NoError(t, store.CreateSKU(ctx, &models.SKU{ID: 2, Name: "kiwi", Unit: "kg", Price: decimal.RequireFromString("3.20"), Stock: 4}))
	return store
}

func newRedisStore(t *testing.T) *repository.RedisRepository {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return repository.NewRedisRepositoryWithClient(client)
}

func TestService_Add(t *testing.T) {
	stores := map[string]func(t *testing.T) Store{
		"redis":  func(t *testing.T) Store { return newRedisStore(t) },
		"cookie": func(t *testing.T) Store { return NewCookieStore(nil) },
	}

	for name, mk := range stores {
		t.Run(name, func(t *testing.T) {
			svc := NewService(newCatalog(t), zap.NewNop())
			store := mk(t)
			ctx := context.Background()

			n, err := svc.Add(ctx, store, 7, 1, 3)
			require.NoError(t, err)
			assert.Equal(t, 3, n)

			n, err = svc.Add(ctx, store, 7, 2, 1)
			require.NoError(t, err)
			assert.Equal(t, 4, n)

			n, err = svc.Add(ctx, store, 7, 1, 4)
			require.NoError(t, err)
			assert.Equal(t, 8, n)

			_, err = svc.Add(ctx, store, 7, 1, 4)
			assert.Equal(t, failure.InsufficientStock, failure.KindOf(err))

			entries, err := store.ReadAll(ctx, 7)
			require.NoError(t, err)
			assert.Equal(t, map[int64]int{1: 7, 2: 1}, entries)
		})
	}
}

func TestService_AddValidation(t *testing.T) {
	svc := NewService(newCatalog(t), zap.NewNop())
	store := NewCookieStore(nil)
	ctx := context.Background()

	tests := map[string]struct {
		skuID int64
		count int
		want  failure.Kind
	}{
		"missing sku":    {skuID: 0, count: 1, want: failure.MissingParameter},
		"zero count":     {skuID: 1, count: 0, want: failure.InvalidQuantity},
		"negative count": {skuID: 1, count: -2, want: failure.InvalidQuantity},
		"unknown sku":    {skuID: 99, count: 1, want: failure.ProductNotFound},
		"over stock":     {skuID: 2, count: 5, want: failure.InsufficientStock},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Add(ctx, store, 0, tc.skuID, tc.count)
			assert.Equal(t, tc.want, failure.KindOf(err))
		})
	}
}

func TestService_UpdateAndRemove(t *testing.T) {
	svc := NewService(newCatalog(t), zap.NewNop())
	store := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, svc.Update(ctx, store, 7, 1, 6))
	require.NoError(t, svc.Update(ctx, store, 7, 1, 6))
	require.NoError(t, svc.Update(ctx, store, 7, 2, 2))

	err := svc.Update(ctx, store, 7, 2, 5)
	assert.Equal(t, failure.InsufficientStock, failure.KindOf(err))

	require.NoError(t, svc.Remove(ctx, store, 7, 1))
	entries, err := store.ReadAll(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, map[int64]int{2: 2}, entries)

	err = svc.Remove(ctx, store, 7, 99)
	assert.Equal(t, failure.ProductNotFound, failure.KindOf(err))
}

func TestService_View(t *testing.T) {
	svc := NewService(newCatalog(t), zap.NewNop())
	store := NewCookieStore(map[int64]int{1: 2, 2: 3, 404: 1})

	view, err := svc.View(context.Background(), store, 0)
	require.NoError(t, err)

	require.Len(t, view.Lines, 2)
	assert.Equal(t, int64(1), view.Lines[0].SKUID)
	assert.True(t, decimal.RequireFromString("25").Equal(view.Lines[0].Amount))
	assert.True(t, decimal.RequireFromString("9.6").Equal(view.Lines[1].Amount))
	assert.Equal(t, 5, view.TotalCount)
	assert.True(t, decimal.RequireFromString("34.6").Equal(view.TotalAmount))
}

func TestService_Merge(t *testing.T) {
	svc := NewService(newCatalog(t), zap.NewNop())
	store := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, 7, 1, 2))

	n, err := svc.Merge(ctx, store, 7, map[int64]int{1: 3, 2: 1, 3: 0})
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	entries, err := store.ReadAll(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, map[int64]int{1: 5, 2: 1}, entries)
}

func TestCookieRoundTrip(t *testing.T) {
	raw, err := EncodeCookie(map[int64]int{1: 2, 15: 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"1":2,"15":1}`, raw)

	entries, err := DecodeCookie(raw)
	require.NoError(t, err)
	assert.Equal(t, map[int64]int{1: 2, 15: 1}, entries)

	entries, err = DecodeCookie("")
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = DecodeCookie(`{"apple":1}`)
	require.Error(t, err)
}
