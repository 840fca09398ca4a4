package grpc

import (
	"context"

	"github.com/example/freshmart/pkg/checkout"
	"github.com/example/freshmart/pkg/models"
	"google.golang.org/grpc"
)

// OrderClient calls OrderService and returns domain failures as
// *failure.Failure errors.
type OrderClient struct {
	conn grpc.ClientConnInterface
}

func NewOrderClient(conn grpc.ClientConnInterface) *OrderClient {
	return &OrderClient{conn: conn}
}

func (c *OrderClient) PlaceOrder(ctx context.Context, req *PlaceOrderRequest) (*checkout.PlacedOrder, error) {
	var resp PlaceOrderResponse
	if err := invoke(ctx, c.conn, fullMethod(orderServiceName, "PlaceOrder"), req, &resp); err != nil {
		return nil, err
	}
	return resp.Order, nil
}

func (c *OrderClient) PreviewOrder(ctx context.Context, req *PreviewOrderRequest) (*checkout.Preview, error) {
	var resp PreviewOrderResponse
	if err := invoke(ctx, c.conn, fullMethod(orderServiceName, "PreviewOrder"), req, &resp); err != nil {
		return nil, err
	}
	return resp.Preview, nil
}

func (c *OrderClient) GetOrder(ctx context.Context, userID int64, orderID string) (*checkout.OrderView, error) {
	var resp OrderResponse
	req := &OrderRequest{UserID: userID, OrderID: orderID}
	if err := invoke(ctx, c.conn, fullMethod(orderServiceName, "GetOrder"), req, &resp); err != nil {
		return nil, err
	}
	return resp.Order, nil
}

func (c *OrderClient) ListOrders(ctx context.Context, userID int64, page int) (*checkout.OrderPage, error) {
	var resp ListOrdersResponse
	req := &ListOrdersRequest{UserID: userID, Page: page}
	if err := invoke(ctx, c.conn, fullMethod(orderServiceName, "ListOrders"), req, &resp); err != nil {
		return nil, err
	}
	return resp.Page, nil
}

func (c *OrderClient) PaymentURL(ctx context.Context, userID int64, orderID string) (string, error) {
	var resp PaymentURLResponse
	req := &OrderRequest{UserID: userID, OrderID: orderID}
	if err := invoke(ctx, c.conn, fullMethod(orderServiceName, "PaymentURL"), req, &resp); err != nil {
		return "", err
	}
	return resp.URL, nil
}

func (c *OrderClient) ConfirmPayment(ctx context.Context, userID int64, orderID string) (*checkout.PaymentResult, error) {
	var resp ConfirmPaymentResponse
	req := &OrderRequest{UserID: userID, OrderID: orderID}
	if err := invoke(ctx, c.conn, fullMethod(orderServiceName, "ConfirmPayment"), req, &resp); err != nil {
		return nil, err
	}
	return resp.Payment, nil
}

func (c *OrderClient) SubmitReview(ctx context.Context, req *SubmitReviewRequest) error {
	var resp SubmitReviewResponse
	return invoke(ctx, c.conn, fullMethod(orderServiceName, "SubmitReview"), req, &resp)
}

func (c *OrderClient) UpdateOrderStatus(ctx context.Context, userID int64, orderID string, status models.OrderStatus) (*checkout.OrderView, error) {
	var resp OrderResponse
	req := &UpdateOrderStatusRequest{UserID: userID, OrderID: orderID, Status: status}
	if err := invoke(ctx, c.conn, fullMethod(orderServiceName, "UpdateOrderStatus"), req, &resp); err != nil {
		return nil, err
	}
	return resp.Order, nil
}

type CartClient struct {
	conn grpc.ClientConnInterface
}

func NewCartClient(conn grpc.ClientConnInterface) *CartClient {
	return &CartClient{conn: conn}
}

func (c *CartClient) AddItem(ctx context.Context, req *CartRequest) (*CartResponse, error) {
	return c.call(ctx, "AddItem", req)
}

func (c *CartClient) UpdateItem(ctx context.Context, req *CartRequest) (*CartResponse, error) {
	return c.call(ctx, "UpdateItem", req)
}

func (c *CartClient) RemoveItem(ctx context.Context, req *CartRequest) (*CartResponse, error) {
	return c.call(ctx, "RemoveItem", req)
}

func (c *CartClient) GetCart(ctx context.Context, req *CartRequest) (*CartResponse, error) {
	return c.call(ctx, "GetCart", req)
}

func (c *CartClient) MergeCart(ctx context.Context, req *CartRequest) (*CartResponse, error) {
	return c.call(ctx, "MergeCart", req)
}

func (c *CartClient) call(ctx context.Context, method string, req *CartRequest) (*CartResponse, error) {
	var resp CartResponse
	if err := invoke(ctx, c.conn, fullMethod(cartServiceName, method), req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func invoke(ctx context.Context, conn grpc.ClientConnInterface, method string, in any, out response) error {
	if err := conn.Invoke(ctx, method, in, out, grpc.CallContentSubtype(codecName)); err != nil {
		return err
	}
	if f := out.failed(); f != nil {
		return f
	}
	return nil
}
