package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
)

// Store holds purchase intent keyed by SKU. Logged-in carts live in Redis
// (repository.RedisRepository); anonymous carts travel as a cookie and are
// held in a CookieStore for the duration of a request.
type Store interface {
	ReadAll(ctx context.Context, owner int64) (map[int64]int, error)
	Set(ctx context.Context, owner, skuID int64, count int) error
	RemoveKeys(ctx context.Context, owner int64, skuIDs ...int64) error
}

// CookieStore is an in-request cart for anonymous visitors. The owner
// argument is ignored.
type CookieStore struct {
	entries map[int64]int
}

func NewCookieStore(entries map[int64]int) *CookieStore {
	copied := make(map[int64]int, len(entries))
	for id, n := range entries {
		copied[id] = n
	}
	return &CookieStore{entries: copied}
}

func (s *CookieStore) ReadAll(_ context.Context, _ int64) (map[int64]int, error) {
	return s.Entries(), nil
}

func (s *CookieStore) Set(_ context.Context, _ int64, skuID int64, count int) error {
	s.entries[skuID] = count
	return nil
}

func (s *CookieStore) RemoveKeys(_ context.Context, _ int64, skuIDs ...int64) error {
	for _, id := range skuIDs {
		delete(s.entries, id)
	}
	return nil
}

func (s *CookieStore) Entries() map[int64]int {
	out := make(map[int64]int, len(s.entries))
	for id, n := range s.entries {
		out[id] = n
	}
	return out
}

// DecodeCookie parses the cookie form {"<sku id>": count}. An empty value is
// an empty cart.
func DecodeCookie(raw string) (map[int64]int, error) {
	entries := make(map[int64]int)
	if raw == "" {
		return entries, nil
	}

	var decoded map[string]int
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil, fmt.Errorf("failed to decode cart cookie: %w", err)
	}
	for key, count := range decoded {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to decode cart cookie: bad sku id %q", key)
		}
		entries[id] = count
	}
	return entries, nil
}

func EncodeCookie(entries map[int64]int) (string, error) {
	encoded := make(map[string]int, len(entries))
	for id, count := range entries {
		encoded[strconv.FormatInt(id, 10)] = count
	}
	data, err := json.Marshal(encoded)
	if err != nil {
		return "", fmt.Errorf("failed to encode cart cookie: %w", err)
	}
	return string(data), nil
}
