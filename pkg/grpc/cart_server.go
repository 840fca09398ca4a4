package grpc

import (
	"context"

	"github.com/example/freshmart/pkg/cart"
	"github.com/example/freshmart/pkg/failure"
)

// CartServer serves both cart kinds: the Redis cart of a signed-in user and
// the anonymous cart the gateway keeps in a cookie and sends along.
type CartServer struct {
	carts *cart.Service
	redis cart.Store
}

func NewCartServer(svc *cart.Service, redis cart.Store) *CartServer {
	return &CartServer{carts: svc, redis: redis}
}

func (s *CartServer) AddItem(ctx context.Context, req *CartRequest) (*CartResponse, error) {
	store := s.storeFor(req)
	n, err := s.carts.Add(ctx, store, req.UserID, req.SKUID, req.Count)
	if err != nil {
		return &CartResponse{Failure: failure.From(err)}, nil
	}
	return s.reply(store, n), nil
}

func (s *CartServer) UpdateItem(ctx context.Context, req *CartRequest) (*CartResponse, error) {
	store := s.storeFor(req)
	if err := s.carts.Update(ctx, store, req.UserID, req.SKUID, req.Count); err != nil {
		return &CartResponse{Failure: failure.From(err)}, nil
	}
	return s.count(ctx, store, req.UserID), nil
}

func (s *CartServer) RemoveItem(ctx context.Context, req *CartRequest) (*CartResponse, error) {
	store := s.storeFor(req)
	if err := s.carts.Remove(ctx, store, req.UserID, req.SKUID); err != nil {
		return &CartResponse{Failure: failure.From(err)}, nil
	}
	return s.count(ctx, store, req.UserID), nil
}

func (s *CartServer) GetCart(ctx context.Context, req *CartRequest) (*CartResponse, error) {
	store := s.storeFor(req)
	view, err := s.carts.View(ctx, store, req.UserID)
	if err != nil {
		return &CartResponse{Failure: failure.From(err)}, nil
	}
	resp := s.reply(store, view.TotalCount)
	resp.View = view
	return resp, nil
}

// MergeCart folds the anonymous cart into the user's Redis cart. The
// response Cart is empty so the gateway drops the cookie.
func (s *CartServer) MergeCart(ctx context.Context, req *CartRequest) (*CartResponse, error) {
	if req.UserID <= 0 {
		return &CartResponse{Failure: failure.New(failure.MissingParameter, "user_id is required")}, nil
	}
	n, err := s.carts.Merge(ctx, s.redis, req.UserID, req.Cart)
	if err != nil {
		return &CartResponse{Failure: failure.From(err)}, nil
	}
	return &CartResponse{TotalCount: n}, nil
}

func (s *CartServer) storeFor(req *CartRequest) cart.Store {
	if req.UserID > 0 {
		return s.redis
	}
	return cart.NewCookieStore(req.Cart)
}

func (s *CartServer) count(ctx context.Context, store cart.Store, owner int64) *CartResponse {
	entries, err := store.ReadAll(ctx, owner)
	if err != nil {
		return &CartResponse{Failure: failure.From(err)}
	}
	n := 0
	for _, count := range entries {
		n += count
	}
	return s.reply(store, n)
}

func (s *CartServer) reply(store cart.Store, n int) *CartResponse {
	resp := &CartResponse{TotalCount: n}
	if cookie, ok := store.(*cart.CookieStore); ok {
		resp.Cart = cookie.Entries()
	}
	return resp
}
