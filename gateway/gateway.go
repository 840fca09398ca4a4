package gateway

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/example/freshmart/pkg/checkout"
	"github.com/example/freshmart/pkg/config"
	"github.com/example/freshmart/pkg/failure"
	rpc "github.com/example/freshmart/pkg/grpc"
	"github.com/example/freshmart/pkg/metrics"
	"github.com/example/freshmart/pkg/models"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// OrderAPI is the order service as seen from the edge.
type OrderAPI interface {
	PlaceOrder(ctx context.Context, req *rpc.PlaceOrderRequest) (*checkout.PlacedOrder, error)
	PreviewOrder(ctx context.Context, req *rpc.PreviewOrderRequest) (*checkout.Preview, error)
	GetOrder(ctx context.Context, userID int64, orderID string) (*checkout.OrderView, error)
	ListOrders(ctx context.Context, userID int64, page int) (*checkout.OrderPage, error)
	PaymentURL(ctx context.Context, userID int64, orderID string) (string, error)
	ConfirmPayment(ctx context.Context, userID int64, orderID string) (*checkout.PaymentResult, error)
	SubmitReview(ctx context.Context, req *rpc.SubmitReviewRequest) error
	UpdateOrderStatus(ctx context.Context, userID int64, orderID string, status models.OrderStatus) (*checkout.OrderView, error)
}

type CartAPI interface {
	AddItem(ctx context.Context, req *rpc.CartRequest) (*rpc.CartResponse, error)
	UpdateItem(ctx context.Context, req *rpc.CartRequest) (*rpc.CartResponse, error)
	RemoveItem(ctx context.Context, req *rpc.CartRequest) (*rpc.CartResponse, error)
	GetCart(ctx context.Context, req *rpc.CartRequest) (*rpc.CartResponse, error)
	MergeCart(ctx context.Context, req *rpc.CartRequest) (*rpc.CartResponse, error)
}

type Gateway struct {
	config   *config.Config
	logger   *zap.Logger
	router   *gin.Engine
	server   *http.Server
	orders   OrderAPI
	carts    CartAPI
	gatherer prometheus.Gatherer
}

func NewGateway(cfg *config.Config, logger *zap.Logger, orders OrderAPI, carts CartAPI, reg *prometheus.Registry) *Gateway {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggerMiddleware(logger))
	router.Use(metricsMiddleware(metrics.NewHTTP(reg, "gateway")))

	return &Gateway{
		config:   cfg,
		logger:   logger,
		router:   router,
		orders:   orders,
		carts:    carts,
		gatherer: reg,
	}
}

func (g *Gateway) SetupRoutes() {
	g.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if g.config.Metrics.Enabled {
		path := g.config.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		g.router.GET(path, gin.WrapH(metrics.Handler(g.gatherer)))
	}

	v1 := g.router.Group("/api/v1")
	{
		carts := v1.Group("/cart", OptionalUser())
		{
			carts.GET("", g.getCart)
			carts.POST("/items", g.addCartItem)
			carts.PUT("/items/:sku_id", g.updateCartItem)
			carts.DELETE("/items/:sku_id", g.removeCartItem)
		}
		v1.POST("/cart/merge", RequireUser(), g.mergeCart)

		orders := v1.Group("/orders", RequireUser())
		{
			orders.POST("/preview", g.previewOrder)
			orders.POST("", g.placeOrder)
			orders.GET("", g.listOrders)
			orders.GET("/:id", g.getOrder)
			orders.POST("/:id/pay", g.paymentURL)
			orders.POST("/:id/payment/confirm", g.confirmPayment)
			orders.POST("/:id/reviews", g.submitReview)
			orders.PUT("/:id/status", g.updateOrderStatus)
		}
	}
}

func (g *Gateway) Handler() http.Handler {
	return g.router
}

func (g *Gateway) Start() error {
	addr := g.config.Gateway.Addr()
	g.server = &http.Server{
		Addr:              addr,
		Handler:           g.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	g.logger.Info("Gateway starting", zap.String("address", addr))
	if err := g.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (g *Gateway) Shutdown(ctx context.Context) error {
	if g.server == nil {
		return nil
	}
	return g.server.Shutdown(ctx)
}

// fail writes err as a JSON error. Failures from the order service keep
// their kind; anything else means the service could not be reached.
func (g *Gateway) fail(c *gin.Context, err error) {
	var f *failure.Failure
	if !errors.As(err, &f) {
		g.logger.Error("Order service call failed", zap.String("path", c.FullPath()), zap.Error(err))
		abortWithError(c, http.StatusServiceUnavailable, "ServiceUnavailable", "the order service is unavailable, please retry")
		return
	}
	abortWithError(c, statusFor(f.Kind), string(f.Kind), f.Message)
}

func abortWithError(c *gin.Context, status int, kind, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": gin.H{"kind": kind, "message": message}})
}

func statusFor(kind failure.Kind) int {
	switch kind {
	case failure.MissingParameter, failure.InvalidQuantity, failure.InvalidPaymentMethod:
		return http.StatusBadRequest
	case failure.AddressNotFound, failure.ProductNotFound, failure.OrderNotFound:
		return http.StatusNotFound
	case failure.InsufficientStock, failure.OptimisticLockExhausted, failure.InvalidOrderStatus:
		return http.StatusConflict
	case failure.PaymentFailed:
		return http.StatusPaymentRequired
	case failure.PaymentTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func loggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

func metricsMiddleware(m *metrics.HTTP) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		handler := c.FullPath()
		if handler == "" {
			handler = "unmatched"
		}
		m.Requests.WithLabelValues(handler, http.StatusText(c.Writer.Status())).Inc()
		m.LatencyMS.WithLabelValues(handler).Observe(float64(time.Since(start).Milliseconds()))
	}
}
