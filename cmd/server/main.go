// Package main is the entry point for the stokado API server.
// Multi-tenant architecture: database per tenant.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stokado/internal/core/tenant"
	"stokado/internal/domain/auth"
	"stokado/internal/domain/catalogs/product"
	"stokado/internal/domain/catalogs/warehouse"
	"stokado/internal/domain/kardex"
	"stokado/internal/domain/movements"
	"stokado/internal/domain/valuation"
	v1 "stokado/internal/infrastructure/http/v1"
	"stokado/internal/infrastructure/http/v1/handlers"
	"stokado/internal/infrastructure/migrations"
	"stokado/internal/infrastructure/storage/postgres"
	authrepo "stokado/internal/infrastructure/storage/postgres/auth_repo"
	catalogrepo "stokado/internal/infrastructure/storage/postgres/catalog_repo"
	ledgerrepo "stokado/internal/infrastructure/storage/postgres/ledger_repo"
	settingsrepo "stokado/internal/infrastructure/storage/postgres/settings_repo"
	"stokado/pkg/config"
	"stokado/pkg/logger"
	"stokado/pkg/numerator"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx := context.Background()
	log.Infow("starting stokado server", "env", cfg.Env)

	// --- Meta database ---
	metaPool, err := postgres.NewPool(ctx, cfg.MetaDB.DSN, postgres.DefaultPoolConfig())
	if err != nil {
		log.Fatalw("connect meta database", "error", err)
	}
	defer metaPool.Close()

	if err := migrations.UpMeta(ctx, metaPool); err != nil {
		log.Fatalw("migrate meta database", "error", err)
	}
	log.Info("meta database ready")

	// --- Tenant registry and pool manager ---
	registry := tenant.NewPostgresRegistry(metaPool)

	managerCfg := tenant.DefaultManagerConfig()
	managerCfg.MaxPools = cfg.Tenant.MaxPools
	managerCfg.IdleTimeout = cfg.Tenant.IdleTimeout
	managerCfg.DBUser = cfg.Tenant.DBUser
	managerCfg.DBPassword = cfg.Tenant.DBPassword
	managerCfg.SSLMode = cfg.Tenant.SSLMode

	manager := tenant.NewManager(registry, managerCfg)
	manager.Start(ctx)
	defer manager.Shutdown()

	// --- Domain services ---
	// Repos resolve their pool (or ambient transaction) from the request
	// context seeded by the tenant middleware.
	txm := postgres.NewTxManager()
	ledgerRepo := ledgerrepo.New()
	settingsRepo := settingsrepo.New()

	cache := valuation.NewStockCache(valuation.DefaultCacheTTL)
	engine := valuation.NewEngine(ledgerRepo, cache, settingsRepo)

	auditStore, err := postgres.NewAuditStore()
	if err != nil {
		log.Fatalw("init audit store", "error", err)
	}
	numeratorSvc := numerator.NewService(postgres.NewSequenceStorage(), "")
	movementsSvc := movements.NewService(ledgerRepo, engine, txm, numeratorSvc, auditStore)
	kardexGen := kardex.NewGenerator(ledgerRepo, engine)

	authSvc := auth.NewService(authrepo.New(), cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	productSvc := product.NewService(catalogrepo.NewProductRepo())
	warehouseSvc := warehouse.NewService(catalogrepo.NewWarehouseRepo())

	router := v1.NewRouter(v1.Handlers{
		Health:    handlers.NewHealthHandler(manager),
		Auth:      handlers.NewAuthHandler(authSvc),
		Stock:     handlers.NewStockHandler(engine),
		Documents: handlers.NewDocumentsHandler(movementsSvc),
		Balance:   handlers.NewBalanceHandler(movementsSvc),
		Kardex:    handlers.NewKardexHandler(kardexGen),
		Catalog:   handlers.NewCatalogHandler(productSvc, warehouseSvc, catalogrepo.NewPositionRepo()),
	}, v1.Deps{
		Manager:     manager,
		TxManager:   txm,
		Validator:   authSvc,
		Idempotency: postgres.NewIdempotencyStore(24 * time.Hour),
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalw("forced shutdown", "error", err)
	}
	log.Info("server stopped")
}
