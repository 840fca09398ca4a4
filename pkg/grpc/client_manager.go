package grpc

import (
	"context"
	"fmt"
	"time"

	"github.com/example/freshmart/pkg/config"
	"github.com/example/freshmart/pkg/discovery"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const (
	orderServiceDiscoveryName = "order-service"

	lookupTimeout = 2 * time.Second
	dialTimeout   = 5 * time.Second
)

// ClientManager owns the gateway's connection to the order service.
type ClientManager struct {
	config    *config.Config
	discovery *discovery.ServiceDiscovery
	logger    *zap.Logger

	orderClient *OrderClient
	cartClient  *CartClient

	orderConn *grpc.ClientConn
}

// disc may be nil, in which case the configured address is used.
func NewClientManager(cfg *config.Config, logger *zap.Logger, disc *discovery.ServiceDiscovery) *ClientManager {
	return &ClientManager{
		config:    cfg,
		discovery: disc,
		logger:    logger,
	}
}

// Connect resolves the order service and dials it. Both the order and cart
// clients share the one connection.
func (m *ClientManager) Connect(ctx context.Context) error {
	target := m.resolve(ctx)
	m.logger.Info("Connecting to order service", zap.String("target", target))

	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	conn, err := grpc.DialContext(dialCtx, target,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
		grpc.WithBlock(),
	)
	if err != nil {
		return fmt.Errorf("failed to connect to order service at %s: %w", target, err)
	}

	m.orderConn = conn
	m.orderClient = NewOrderClient(conn)
	m.cartClient = NewCartClient(conn)
	return nil
}

// resolve returns the first registered order service instance, falling back
// to gateway.order_service.
func (m *ClientManager) resolve(ctx context.Context) string {
	fallback := m.config.Gateway.OrderService
	if m.discovery == nil {
		return fallback
	}

	lookupCtx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	instances, err := m.discovery.Discover(lookupCtx, orderServiceDiscoveryName)
	switch {
	case err != nil:
		m.logger.Warn("Order service lookup failed", zap.String("fallback", fallback), zap.Error(err))
		return fallback
	case len(instances) == 0:
		return fallback
	}
	return instances[0].Addr()
}

func (m *ClientManager) OrderClient() *OrderClient {
	return m.orderClient
}

func (m *ClientManager) CartClient() *CartClient {
	return m.cartClient
}

func (m *ClientManager) Close() error {
	if m.orderConn == nil {
		return nil
	}
	return m.orderConn.Close()
}
