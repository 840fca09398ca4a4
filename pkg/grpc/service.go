package grpc

import (
	"context"

	"google.golang.org/grpc"
)

const (
	orderServiceName = "freshmart.order.v1.OrderService"
	cartServiceName  = "freshmart.order.v1.CartService"
)

// OrderService is the server side of freshmart.order.v1.OrderService.
type OrderService interface {
	PlaceOrder(ctx context.Context, req *PlaceOrderRequest) (*PlaceOrderResponse, error)
	PreviewOrder(ctx context.Context, req *PreviewOrderRequest) (*PreviewOrderResponse, error)
	GetOrder(ctx context.Context, req *OrderRequest) (*OrderResponse, error)
	ListOrders(ctx context.Context, req *ListOrdersRequest) (*ListOrdersResponse, error)
	PaymentURL(ctx context.Context, req *OrderRequest) (*PaymentURLResponse, error)
	ConfirmPayment(ctx context.Context, req *OrderRequest) (*ConfirmPaymentResponse, error)
	SubmitReview(ctx context.Context, req *SubmitReviewRequest) (*SubmitReviewResponse, error)
	UpdateOrderStatus(ctx context.Context, req *UpdateOrderStatusRequest) (*OrderResponse, error)
}

// CartService is the server side of freshmart.order.v1.CartService.
type CartService interface {
	AddItem(ctx context.Context, req *CartRequest) (*CartResponse, error)
	UpdateItem(ctx context.Context, req *CartRequest) (*CartResponse, error)
	RemoveItem(ctx context.Context, req *CartRequest) (*CartResponse, error)
	GetCart(ctx context.Context, req *CartRequest) (*CartResponse, error)
	MergeCart(ctx context.Context, req *CartRequest) (*CartResponse, error)
}

var orderServiceDesc = grpc.ServiceDesc{
	ServiceName: orderServiceName,
	HandlerType: (*OrderService)(nil),
	Methods: []grpc.MethodDesc{
		unary(orderServiceName, "PlaceOrder", OrderService.PlaceOrder),
		unary(orderServiceName, "PreviewOrder", OrderService.PreviewOrder),
		unary(orderServiceName, "GetOrder", OrderService.GetOrder),
		unary(orderServiceName, "ListOrders", OrderService.ListOrders),
		unary(orderServiceName, "PaymentURL", OrderService.PaymentURL),
		unary(orderServiceName, "ConfirmPayment", OrderService.ConfirmPayment),
		unary(orderServiceName, "SubmitReview", OrderService.SubmitReview),
		unary(orderServiceName, "UpdateOrderStatus", OrderService.UpdateOrderStatus),
	},
	Streams: []grpc.StreamDesc{},
}

var cartServiceDesc = grpc.ServiceDesc{
	ServiceName: cartServiceName,
	HandlerType: (*CartService)(nil),
	Methods: []grpc.MethodDesc{
		unary(cartServiceName, "AddItem", CartService.AddItem),
		unary(cartServiceName, "UpdateItem", CartService.UpdateItem),
		unary(cartServiceName, "RemoveItem", CartService.RemoveItem),
		unary(cartServiceName, "GetCart", CartService.GetCart),
		unary(cartServiceName, "MergeCart", CartService.MergeCart),
	},
	Streams: []grpc.StreamDesc{},
}

func RegisterOrderService(s grpc.ServiceRegistrar, srv OrderService) {
	s.RegisterService(&orderServiceDesc, srv)
}

func RegisterCartService(s grpc.ServiceRegistrar, srv CartService) {
	s.RegisterService(&cartServiceDesc, srv)
}

func fullMethod(service, method string) string {
	return "/" + service + "/" + method
}

// unary builds the method descriptor that decodes Req, runs the interceptor
// chain and dispatches to call on the registered implementation.
func unary[S any, Req any, Resp any](service, method string, call func(S, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	name := fullMethod(service, method)
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			impl := srv.(S)
			if interceptor == nil {
				return call(impl, ctx, in)
			}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(impl, ctx, req.(*Req))
			}
			return interceptor(ctx, in, &grpc.UnaryServerInfo{Server: srv, FullMethod: name}, handler)
		},
	}
}
