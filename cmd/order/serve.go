package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/freshmart/pkg/cart"
	"github.com/example/freshmart/pkg/checkout"
	"github.com/example/freshmart/pkg/discovery"
	"github.com/example/freshmart/pkg/events"
	"github.com/example/freshmart/pkg/grpc"
	"github.com/example/freshmart/pkg/metrics"
	"github.com/example/freshmart/pkg/payment"
	"github.com/example/freshmart/pkg/repository"
	"github.com/example/freshmart/pkg/tasks"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the order gRPC service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
}

func serve(ctx context.Context) error {
	logger.Info("Starting order service",
		zap.String("name", cfg.Server.Name),
		zap.Int("port", cfg.Server.Port),
		zap.String("storage", cfg.Storage.Driver))

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	redisRepo := repository.NewRedisRepository(&cfg.Redis)
	defer redisRepo.Close()
	if err := redisRepo.Ping(ctx); err != nil {
		logger.Warn("Redis connection failed", zap.Error(err))
	} else {
		logger.Info("Redis connected successfully")
	}

	handlers := []tasks.Handler{tasks.MailHandler(tasks.NewLogMailer(logger.Named("mail")))}

	mongoRepo, err := repository.NewMongoRepository(&cfg.MongoDB)
	if err != nil {
		logger.Warn("MongoDB unavailable, order audit disabled", zap.Error(err))
	} else {
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			mongoRepo.Close(closeCtx)
		}()
		handlers = append(handlers, tasks.AuditHandler(mongoRepo, cfg.Server.Name))
	}

	if events.Enabled(cfg.Kafka) {
		publisher := events.NewPublisher(cfg.Kafka, cfg.Server.Name)
		defer publisher.Close()
		handlers = append(handlers, tasks.EventHandler(publisher))
		logger.Info("Publishing order events", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}

	queue, err := tasks.NewQueue(cfg.Tasks, logger.Named("tasks"), handlers...)
	if err != nil {
		return err
	}
	defer queue.Shutdown()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	checkoutSvc := checkout.NewService(cfg.Checkout, store, redisRepo, payment.NewHTTPGateway(cfg.Payment),
		queue, metrics.NewCheckout(reg), logger.Named("checkout"))
	cartSvc := cart.NewService(store, logger.Named("cart"))

	server := grpc.NewServer(grpc.NewOrderServer(checkoutSvc), grpc.NewCartServer(cartSvc, redisRepo), logger.Named("grpc"))

	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(cfg.Server.Addr()); err != nil {
			serverErr <- err
		}
	}()
	defer server.Stop()

	metricsServer := startMetrics(reg)

	sd, err := discovery.NewServiceDiscovery(&cfg.Etcd, logger.Named("discovery"))
	if err != nil {
		logger.Warn("Failed to connect to etcd, continuing without service discovery", zap.Error(err))
	}
	instance := &discovery.ServiceInstance{Name: cfg.Server.Name, Host: cfg.Server.Host, Port: cfg.Server.Port}
	if sd != nil {
		defer sd.Close()
		leaseCtx, stopKeepAlive := context.WithCancel(context.Background())
		defer stopKeepAlive()
		if err := sd.Register(leaseCtx, instance); err != nil {
			logger.Warn("Failed to register service", zap.Error(err))
		} else {
			logger.Info("Service registered in etcd",
				zap.String("name", cfg.Server.Name),
				zap.String("address", instance.Addr()))
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info("Received shutdown signal")
	case err := <-serverErr:
		logger.Error("Server error", zap.Error(err))
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if sd != nil {
		if err := sd.Deregister(shutdownCtx, instance); err != nil {
			logger.Error("Failed to deregister service", zap.Error(err))
		}
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Metrics server shutdown failed", zap.Error(err))
		}
	}

	logger.Info("Service stopped")
	return nil
}

func startMetrics(reg *prometheus.Registry) *http.Server {
	if !cfg.Metrics.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(cfg.Metrics.Path, metrics.Handler(reg))
	srv := &http.Server{Addr: cfg.Metrics.Addr(), Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("Metrics server started", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", zap.Error(err))
		}
	}()
	return srv
}
