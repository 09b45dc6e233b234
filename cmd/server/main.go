package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/farmmarket/gateway"
	"github.com/example/farmmarket/pkg/cart"
	"github.com/example/farmmarket/pkg/config"
	"github.com/example/farmmarket/pkg/discovery"
	"github.com/example/farmmarket/pkg/fixtures"
	"github.com/example/farmmarket/pkg/identity"
	"github.com/example/farmmarket/pkg/order"
	"github.com/example/farmmarket/pkg/repository"
	"github.com/example/farmmarket/pkg/store"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config/server-config.yaml", "path to config file")
	flag.Parse()

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Setup logger
	logger, err := zap.NewProduction()
	if err != nil {
		panic(fmt.Sprintf("Failed to create logger: %v", err))
	}
	defer logger.Sync()

	logger.Info("Starting marketplace server",
		zap.String("name", cfg.Server.Name),
		zap.Int("port", cfg.Server.Port),
		zap.String("store_backend", cfg.Store.Backend),
		zap.String("cart_backend", cfg.Cart.Backend),
		zap.String("identity_backend", cfg.Identity.Backend))

	ctx := context.Background()

	// Record store
	recordStore, err := store.New(cfg)
	if err != nil {
		logger.Fatal("Failed to create record store", zap.Error(err))
	}

	// Redis is needed by the redis cart backend and mysql identity sessions
	var redisRepo *repository.RedisRepository
	if cfg.Cart.Backend == "redis" || cfg.Identity.Backend == "mysql" {
		redisRepo = repository.NewRedisRepository(&cfg.Redis)
		defer redisRepo.Close()

		if err := redisRepo.Ping(ctx); err != nil {
			logger.Warn("Redis connection failed", zap.Error(err))
		} else {
			logger.Info("Redis connected successfully")
		}
	}

	// Cart persistence
	var cartStore cart.Store
	switch cfg.Cart.Backend {
	case "memory", "mem", "":
		cartStore = cart.NewMemoryStore()
	case "redis":
		cartStore = cart.NewRedisStore(redisRepo)
	default:
		logger.Fatal("Unknown cart backend", zap.String("backend", cfg.Cart.Backend))
	}

	// Identity provider
	provider, err := identity.New(cfg, recordStore, redisRepo)
	if err != nil {
		logger.Fatal("Failed to create identity provider", zap.Error(err))
	}

	// Mongo audit trail is optional
	var audit *repository.MongoRepository
	var auditSink order.Audit = order.NopAudit{}
	if cfg.MongoDB.URI != "" {
		audit, err = repository.NewMongoRepository(&cfg.MongoDB)
		if err != nil {
			logger.Fatal("Failed to connect to MongoDB", zap.Error(err))
		}
		defer audit.Close(ctx)
		auditSink = audit
	}

	orders := order.NewManager(recordStore, auditSink, logger)

	// Demo fixtures
	if cfg.Demo {
		if err := fixtures.Seed(ctx, recordStore, provider); err != nil {
			logger.Fatal("Failed to seed demo data", zap.Error(err))
		}
		logger.Info("Demo data seeded")
	}

	// Register in etcd when configured
	if len(cfg.Etcd.Endpoints) > 0 {
		registry, err := discovery.NewRegistry(&cfg.Etcd)
		if err != nil {
			logger.Fatal("Failed to connect to etcd", zap.Error(err))
		}
		defer registry.Close()

		instance := &discovery.Instance{
			Name: cfg.Server.Name,
			Host: cfg.Server.Host,
			Port: cfg.Server.Port,
		}
		if err := registry.Register(ctx, instance); err != nil {
			logger.Fatal("Failed to register instance", zap.Error(err))
		}
		defer func() {
			if err := registry.Deregister(ctx, instance); err != nil {
				logger.Error("Failed to deregister instance", zap.Error(err))
			}
		}()

		logger.Info("Instance registered in etcd",
			zap.String("name", cfg.Server.Name),
			zap.String("address", instance.Addr()))
	}

	// Gateway
	gw := gateway.NewGateway(cfg, logger, provider, recordStore, cartStore, orders, audit)
	gw.SetupRoutes()

	serverErr := make(chan error, 1)
	go func() {
		if err := gw.Start(); err != nil {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info("Received shutdown signal")
	case err := <-serverErr:
		logger.Fatal("Server error", zap.Error(err))
	}

	logger.Info("Server stopped")
}
