package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/example/freshmart/pkg/checkout"
	"github.com/example/freshmart/pkg/config"
	"github.com/example/freshmart/pkg/failure"
	rpc "github.com/example/freshmart/pkg/grpc"
	"github.com/example/freshmart/pkg/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeOrders struct {
	err      error
	lastUser int64
	placeReq *rpc.PlaceOrderRequest
	status   models.OrderStatus
}

func (f *fakeOrders) PlaceOrder(_ context.Context, req *rpc.PlaceOrderRequest) (*checkout.PlacedOrder, error) {
	f.lastUser, f.placeReq = req.UserID, req
	if f.err != nil {
		return nil, f.err
	}
	return &checkout.PlacedOrder{OrderID: "202405011200000001237", Status: models.StatusAwaitingPayment, TotalAmount: decimal.RequireFromString("35")}, nil
}

func (f *fakeOrders) PreviewOrder(_ context.Context, req *rpc.PreviewOrderRequest) (*checkout.Preview, error) {
	f.lastUser = req.UserID
	return &checkout.Preview{TotalCount: req.Count}, f.err
}

func (f *fakeOrders) GetOrder(_ context.Context, userID int64, orderID string) (*checkout.OrderView, error) {
	f.lastUser = userID
	if f.err != nil {
		return nil, f.err
	}
	return &checkout.OrderView{OrderID: orderID}, nil
}

func (f *fakeOrders) ListOrders(_ context.Context, userID int64, page int) (*checkout.OrderPage, error) {
	f.lastUser = userID
	return &checkout.OrderPage{Page: page, Pages: 1}, f.err
}

func (f *fakeOrders) PaymentURL(_ context.Context, userID int64, orderID string) (string, error) {
	f.lastUser = userID
	return "https://pay.test/?out_trade_no=" + orderID, f.err
}

func (f *fakeOrders) ConfirmPayment(_ context.Context, userID int64, orderID string) (*checkout.PaymentResult, error) {
	f.lastUser = userID
	if f.err != nil {
		return nil, f.err
	}
	return &checkout.PaymentResult{OrderID: orderID, TradeID: "T1", Status: models.StatusAwaitingReview}, nil
}

func (f *fakeOrders) SubmitReview(_ context.Context, req *rpc.SubmitReviewRequest) error {
	f.lastUser = req.UserID
	return f.err
}

func (f *fakeOrders) UpdateOrderStatus(_ context.Context, userID int64, orderID string, status models.OrderStatus) (*checkout.OrderView, error) {
	f.lastUser, f.status = userID, status
	if f.err != nil {
		return nil, f.err
	}
	return &checkout.OrderView{OrderID: orderID, Status: status, StatusName: status.String()}, nil
}

type fakeCarts struct {
	last *rpc.CartRequest
	resp *rpc.CartResponse
}

func (f *fakeCarts) handle(req *rpc.CartRequest) (*rpc.CartResponse, error) {
	f.last = req
	if f.resp != nil {
		return f.resp, nil
	}
	return &rpc.CartResponse{}, nil
}

func (f *fakeCarts) AddItem(_ context.Context, req *rpc.CartRequest) (*rpc.CartResponse, error) {
	return f.handle(req)
}

func (f *fakeCarts) UpdateItem(_ context.Context, req *rpc.CartRequest) (*rpc.CartResponse, error) {
	return f.handle(req)
}

func (f *fakeCarts) RemoveItem(_ context.Context, req *rpc.CartRequest) (*rpc.CartResponse, error) {
	return f.handle(req)
}

func (f *fakeCarts) GetCart(_ context.Context, req *rpc.CartRequest) (*rpc.CartResponse, error) {
	return f.handle(req)
}

func (f *fakeCarts) MergeCart(_ context.Context, req *rpc.CartRequest) (*rpc.CartResponse, error) {
	return f.handle(req)
}

func newTestGateway(orders *fakeOrders, carts *fakeCarts) http.Handler {
	cfg := &config.Config{
		Gateway: config.GatewayConfig{CartCookie: "cart"},
		Metrics: config.MetricsConfig{Enabled: true, Path: "/metrics"},
	}
	gw := NewGateway(cfg, zap.NewNop(), orders, carts, prometheus.NewRegistry())
	gw.SetupRoutes()
	return gw.Handler()
}

func doRequest(h http.Handler, method, path, body string, header http.Header, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func asUser(id string) http.Header {
	return http.Header{UserHeader: []string{id}}
}

func errorKind(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Kind string `json:"kind"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error.Kind
}

func TestRequireUser(t *testing.T) {
	h := newTestGateway(&fakeOrders{}, &fakeCarts{})

	tests := map[string]struct {
		header http.Header
		want   int
	}{
		"missing header": {header: nil, want: http.StatusUnauthorized},
		"not a number":   {header: asUser("abc"), want: http.StatusUnauthorized},
		"negative":       {header: asUser("-3"), want: http.StatusUnauthorized},
		"valid":          {header: asUser("7"), want: http.StatusOK},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			w := doRequest(h, http.MethodGet, "/api/v1/orders", "", tc.header)
			assert.Equal(t, tc.want, w.Code)
			if tc.want == http.StatusUnauthorized {
				assert.Equal(t, "Unauthenticated", errorKind(t, w))
			}
		})
	}
}

func TestPlaceOrder(t *testing.T) {
	orders := &fakeOrders{}
	h := newTestGateway(orders, &fakeCarts{})

	w := doRequest(h, http.MethodPost, "/api/v1/orders",
		`{"address_id":3,"pay_method":2,"sku_ids":[1,2]}`, asUser("7"))
	require.Equal(t, http.StatusCreated, w.Code)

	assert.Equal(t, int64(7), orders.lastUser)
	assert.Equal(t, models.PayGateway, orders.placeReq.PayMethod)
	assert.Equal(t, []int64{1, 2}, orders.placeReq.SKUIDs)

	var placed checkout.PlacedOrder
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &placed))
	assert.Equal(t, "202405011200000001237", placed.OrderID)
}

func TestFailureStatusCodes(t *testing.T) {
	tests := map[string]struct {
		err  error
		want int
		kind string
	}{
		"missing parameter":  {err: failure.New(failure.MissingParameter, "x"), want: http.StatusBadRequest},
		"address not found":  {err: failure.New(failure.AddressNotFound, "x"), want: http.StatusNotFound},
		"insufficient stock": {err: failure.New(failure.InsufficientStock, "x"), want: http.StatusConflict},
		"lock exhausted":     {err: failure.New(failure.OptimisticLockExhausted, "x"), want: http.StatusConflict},
		"payment failed":     {err: failure.New(failure.PaymentFailed, "x"), want: http.StatusPaymentRequired},
		"payment timeout":    {err: failure.New(failure.PaymentTimeout, "x"), want: http.StatusGatewayTimeout},
		"unexpected":         {err: failure.From(errors.New("deadlock")), want: http.StatusInternalServerError},
		"transport":          {err: errors.New("connection refused"), want: http.StatusServiceUnavailable, kind: "ServiceUnavailable"},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			h := newTestGateway(&fakeOrders{err: tc.err}, &fakeCarts{})
			w := doRequest(h, http.MethodPost, "/api/v1/orders",
				`{"address_id":3,"pay_method":1,"sku_ids":[1]}`, asUser("7"))
			assert.Equal(t, tc.want, w.Code)

			kind := tc.kind
			if kind == "" {
				kind = string(failure.KindOf(tc.err))
			}
			assert.Equal(t, kind, errorKind(t, w))
		})
	}
}

func TestAnonymousCartUsesCookie(t *testing.T) {
	carts := &fakeCarts{resp: &rpc.CartResponse{TotalCount: 3, Cart: map[int64]int{1: 2, 2: 1}}}
	h := newTestGateway(&fakeOrders{}, carts)

	w := doRequest(h, http.MethodPost, "/api/v1/cart/items", `{"sku_id":2,"count":1}`, nil,
		&http.Cookie{Name: "cart", Value: url.QueryEscape(`{"1":2}`)})
	require.Equal(t, http.StatusOK, w.Code)

	assert.Zero(t, carts.last.UserID)
	assert.Equal(t, map[int64]int{1: 2}, carts.last.Cart)
	assert.Equal(t, int64(2), carts.last.SKUID)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	raw, err := url.QueryUnescape(cookies[0].Value)
	require.NoError(t, err)
	assert.JSONEq(t, `{"1":2,"2":1}`, raw)
}

func TestSignedInCartSkipsCookie(t *testing.T) {
	carts := &fakeCarts{resp: &rpc.CartResponse{TotalCount: 1}}
	h := newTestGateway(&fakeOrders{}, carts)

	w := doRequest(h, http.MethodDelete, "/api/v1/cart/items/4", "", asUser("7"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(7), carts.last.UserID)
	assert.Equal(t, int64(4), carts.last.SKUID)
	assert.Empty(t, w.Result().Cookies())

	w = doRequest(h, http.MethodPut, "/api/v1/cart/items/abc", `{"count":1}`, asUser("7"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMergeCartClearsCookie(t *testing.T) {
	carts := &fakeCarts{resp: &rpc.CartResponse{TotalCount: 5}}
	h := newTestGateway(&fakeOrders{}, carts)

	w := doRequest(h, http.MethodPost, "/api/v1/cart/merge", "", asUser("7"),
		&http.Cookie{Name: "cart", Value: url.QueryEscape(`{"3":2}`)})
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, int64(7), carts.last.UserID)
	assert.Equal(t, map[int64]int{3: 2}, carts.last.Cart)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "cart", cookies[0].Name)
	assert.Less(t, cookies[0].MaxAge, 0)
}

func TestUpdateOrderStatus(t *testing.T) {
	orders := &fakeOrders{}
	h := newTestGateway(orders, &fakeCarts{})

	w := doRequest(h, http.MethodPut, "/api/v1/orders/o-1/status", `{"status":"AWAITING_SHIPMENT"}`, asUser("7"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.StatusAwaitingShipment, orders.status)

	w = doRequest(h, http.MethodPut, "/api/v1/orders/o-1/status", `{"status":"SHIPPED"}`, asUser("7"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, string(failure.InvalidOrderStatus), errorKind(t, w))
}

func TestPaymentRoutes(t *testing.T) {
	h := newTestGateway(&fakeOrders{}, &fakeCarts{})

	w := doRequest(h, http.MethodPost, "/api/v1/orders/o-1/pay", "", asUser("7"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "out_trade_no=o-1")

	w = doRequest(h, http.MethodPost, "/api/v1/orders/o-1/payment/confirm", "", asUser("7"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"trade_id":"T1"`)
}

func TestHealthAndMetrics(t *testing.T) {
	h := newTestGateway(&fakeOrders{}, &fakeCarts{})

	w := doRequest(h, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(h, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "freshmart_gateway_http_requests_total")
}
