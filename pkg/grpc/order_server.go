package grpc

import (
	"context"

	"github.com/example/freshmart/pkg/checkout"
	"github.com/example/freshmart/pkg/failure"
)

// OrderServer exposes the checkout service over gRPC.
type OrderServer struct {
	checkout *checkout.Service
}

func NewOrderServer(svc *checkout.Service) *OrderServer {
	return &OrderServer{checkout: svc}
}

func (s *OrderServer) PlaceOrder(ctx context.Context, req *PlaceOrderRequest) (*PlaceOrderResponse, error) {
	placed, err := s.checkout.PlaceOrder(ctx, checkout.PlaceOrderRequest{
		UserID:    req.UserID,
		AddressID: req.AddressID,
		PayMethod: req.PayMethod,
		SKUIDs:    req.SKUIDs,
	})
	return &PlaceOrderResponse{Order: placed, Failure: failure.From(err)}, nil
}

func (s *OrderServer) PreviewOrder(ctx context.Context, req *PreviewOrderRequest) (*PreviewOrderResponse, error) {
	preview, err := s.checkout.PreviewOrder(ctx, req.UserID, req.SKUIDs, req.Count)
	return &PreviewOrderResponse{Preview: preview, Failure: failure.From(err)}, nil
}

func (s *OrderServer) GetOrder(ctx context.Context, req *OrderRequest) (*OrderResponse, error) {
	order, err := s.checkout.GetOrder(ctx, req.UserID, req.OrderID)
	return &OrderResponse{Order: order, Failure: failure.From(err)}, nil
}

func (s *OrderServer) ListOrders(ctx context.Context, req *ListOrdersRequest) (*ListOrdersResponse, error) {
	page, err := s.checkout.ListOrders(ctx, req.UserID, req.Page)
	return &ListOrdersResponse{Page: page, Failure: failure.From(err)}, nil
}

func (s *OrderServer) PaymentURL(ctx context.Context, req *OrderRequest) (*PaymentURLResponse, error) {
	url, err := s.checkout.PaymentURL(ctx, req.UserID, req.OrderID)
	return &PaymentURLResponse{URL: url, Failure: failure.From(err)}, nil
}

func (s *OrderServer) ConfirmPayment(ctx context.Context, req *OrderRequest) (*ConfirmPaymentResponse, error) {
	res, err := s.checkout.ConfirmPayment(ctx, req.UserID, req.OrderID)
	return &ConfirmPaymentResponse{Payment: res, Failure: failure.From(err)}, nil
}

func (s *OrderServer) SubmitReview(ctx context.Context, req *SubmitReviewRequest) (*SubmitReviewResponse, error) {
	err := s.checkout.SubmitReview(ctx, req.UserID, req.OrderID, req.Reviews)
	return &SubmitReviewResponse{Failure: failure.From(err)}, nil
}

func (s *OrderServer) UpdateOrderStatus(ctx context.Context, req *UpdateOrderStatusRequest) (*OrderResponse, error) {
	order, err := s.checkout.AdvanceStatus(ctx, req.UserID, req.OrderID, req.Status)
	return &OrderResponse{Order: order, Failure: failure.From(err)}, nil
}
