package repository

import (
	"context"
	"fmt"
	"strconv"

	"github.com/example/freshmart/pkg/config"
	"github.com/go-redis/redis/v8"
)

// RedisRepository stores logged-in carts as one hash per user, field = SKU
// id and value = quantity.
type RedisRepository struct {
	client *redis.Client
}

func NewRedisRepository(cfg *config.RedisConfig) *RedisRepository {
	return &RedisRepository{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
			PoolSize: cfg.PoolSize,
		}),
	}
}

func NewRedisRepositoryWithClient(client *redis.Client) *RedisRepository {
	return &RedisRepository{client: client}
}

func CartKey(userID int64) string {
	return fmt.Sprintf("cart_%d", userID)
}

func (r *RedisRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisRepository) Close() error {
	return r.client.Close()
}

func (r *RedisRepository) ReadAll(ctx context.Context, userID int64) (map[int64]int, error) {
	raw, err := r.client.HGetAll(ctx, CartKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read cart: %w", err)
	}

	entries := make(map[int64]int, len(raw))
	for field, value := range raw {
		skuID, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			continue
		}
		count, err := strconv.Atoi(value)
		if err != nil {
			continue
		}
		entries[skuID] = count
	}
	return entries, nil
}

func (r *RedisRepository) Set(ctx context.Context, userID, skuID int64, count int) error {
	if err := r.client.HSet(ctx, CartKey(userID), strconv.FormatInt(skuID, 10), count).Err(); err != nil {
		return fmt.Errorf("failed to set cart entry: %w", err)
	}
	return nil
}

func (r *RedisRepository) RemoveKeys(ctx context.Context, userID int64, skuIDs ...int64) error {
	if len(skuIDs) == 0 {
		return nil
	}
	fields := make([]string, len(skuIDs))
	for i, id := range skuIDs {
		fields[i] = strconv.FormatInt(id, 10)
	}
	if err := r.client.HDel(ctx, CartKey(userID), fields...).Err(); err != nil {
		return fmt.Errorf("failed to remove cart entries: %w", err)
	}
	return nil
}
