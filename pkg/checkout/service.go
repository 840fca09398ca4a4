package checkout

import (
	"context"
	"time"

	"github.com/example/freshmart/pkg/cart"
	"github.com/example/freshmart/pkg/config"
	"github.com/example/freshmart/pkg/metrics"
	"github.com/example/freshmart/pkg/payment"
	"github.com/example/freshmart/pkg/repository"
	"github.com/example/freshmart/pkg/tasks"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Dispatcher accepts background work without waiting for it.
type Dispatcher interface {
	Enqueue(task tasks.Task) bool
}

// Service is the order commit service.
type Service struct {
	cfg      config.CheckoutConfig
	shipping decimal.Decimal

	store   repository.Store
	carts   cart.Store
	gateway payment.Gateway
	tasks   Dispatcher
	metrics *metrics.Checkout
	ids     *IDGenerator
	logger  *zap.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

func NewService(
	cfg config.CheckoutConfig,
	store repository.Store,
	carts cart.Store,
	gateway payment.Gateway,
	dispatcher Dispatcher,
	m *metrics.Checkout,
	logger *zap.Logger,
) *Service {
	cfg = withDefaults(cfg)
	return &Service{
		cfg:      cfg,
		shipping: decimal.NewFromInt(cfg.ShippingCost),
		store:    store,
		carts:    carts,
		gateway:  gateway,
		tasks:    dispatcher,
		metrics:  m,
		ids:      NewIDGenerator(),
		logger:   logger,
		sleep:    sleepContext,
	}
}

func withDefaults(cfg config.CheckoutConfig) config.CheckoutConfig {
	if cfg.ShippingCost < 0 {
		cfg.ShippingCost = 0
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 2
	}
	if cfg.Poll.MaxAttempts <= 0 {
		cfg.Poll.MaxAttempts = 10
	}
	if cfg.Poll.InitialBackoff <= 0 {
		cfg.Poll.InitialBackoff = 200 * time.Millisecond
	}
	if cfg.Poll.MaxBackoff < cfg.Poll.InitialBackoff {
		cfg.Poll.MaxBackoff = cfg.Poll.InitialBackoff
	}
	if cfg.Poll.Timeout <= 0 {
		cfg.Poll.Timeout = 30 * time.Second
	}
	return cfg
}

func (s *Service) dispatch(task tasks.Task) {
	if s.tasks == nil {
		return
	}
	if !s.tasks.Enqueue(task) {
		s.logger.Warn("Background task not queued", zap.String("order_id", task.OrderRef()))
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
