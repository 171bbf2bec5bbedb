// Package main seeds a tenant database with demo data.
// Usage: seed --tenant <tenant-uuid>
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"stokado/internal/core/id"
	"stokado/internal/core/tenant"
	"stokado/internal/core/types"
	"stokado/internal/domain/auth"
	"stokado/internal/domain/inventory"
	"stokado/internal/domain/movements"
	"stokado/internal/domain/periods"
	"stokado/internal/domain/valuation"
	"stokado/internal/infrastructure/storage/postgres"
	authrepo "stokado/internal/infrastructure/storage/postgres/auth_repo"
	catalogrepo "stokado/internal/infrastructure/storage/postgres/catalog_repo"
	ledgerrepo "stokado/internal/infrastructure/storage/postgres/ledger_repo"
	"stokado/pkg/config"
	"stokado/pkg/logger"
	"stokado/pkg/numerator"
)

func main() {
	tenantID := flag.String("tenant", "", "tenant UUID to seed")
	flag.Parse()

	log, err := logger.New(logger.Config{Level: "info", Development: true})
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(os.Getenv("STOKADO_CONFIG"))
	if err != nil {
		log.Fatalw("load config", "error", err)
	}
	if *tenantID == "" {
		log.Fatal("--tenant is required")
	}

	ctx := context.Background()

	metaPool, err := postgres.NewPool(ctx, cfg.MetaDB.DSN, postgres.DefaultPoolConfig())
	if err != nil {
		log.Fatalw("connect meta database", "error", err)
	}
	defer metaPool.Close()

	t, err := tenant.NewPostgresRegistry(metaPool).GetByID(ctx, *tenantID)
	if err != nil {
		log.Fatalw("resolve tenant", "error", err, "tenant_id", *tenantID)
	}

	dsn := t.DSNWithSSL(cfg.Tenant.DBUser, cfg.Tenant.DBPassword, cfg.Tenant.SSLMode)
	pool, err := postgres.NewPool(ctx, dsn, postgres.DefaultPoolConfig())
	if err != nil {
		log.Fatalw("connect tenant database", "error", err)
	}
	defer pool.Close()

	// Repos and services resolve the pool and transaction manager from ctx,
	// same as a request served through the tenant middleware.
	ctx = tenant.WithPool(ctx, pool)
	ctx = tenant.WithTxManager(ctx, postgres.NewTxManager())
	ctx = tenant.WithTenant(ctx, t)

	if err := seed(ctx, cfg, log); err != nil {
		log.Fatalw("seeding failed", "error", err)
	}
	log.Info("seeding completed")
}

func seed(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	authSvc := auth.NewService(authrepo.New(), cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if _, err := authSvc.Register(ctx, "admin@stokado.dev", "Admin123!", []string{"admin"}); err != nil {
		log.Warnw("admin user not created (may already exist)", "error", err)
	}

	// Catalogs go in through COPY; volume is small here but the path is the
	// same one large imports use.
	products := [][]any{
		{id.New(), "SKU-001", "Steel bolt M8", "UN"},
		{id.New(), "SKU-002", "Steel nut M8", "UN"},
		{id.New(), "SKU-003", "Lubricant oil", "L"},
	}
	n, err := postgres.CopyInto(ctx, "products", []string{"id", "sku", "name", "unit"}, products)
	if err != nil {
		return fmt.Errorf("seed products: %w", err)
	}
	log.Infow("products seeded", "count", n)

	warehouses := [][]any{
		{id.New(), "MAIN", "Main warehouse"},
		{id.New(), "AUX", "Auxiliary warehouse"},
	}
	if _, err := postgres.CopyInto(ctx, "warehouses", []string{"id", "code", "name"}, warehouses); err != nil {
		return fmt.Errorf("seed warehouses: %w", err)
	}

	positionRepo := catalogrepo.NewPositionRepo()
	ledgerRepo := ledgerrepo.New()
	engine := valuation.NewEngine(ledgerRepo,
		valuation.NewStockCache(valuation.DefaultCacheTTL),
		periods.Static{Cfg: periods.Config{Method: inventory.MethodWeightedAverage}})
	auditStore, err := postgres.NewAuditStore()
	if err != nil {
		return fmt.Errorf("init audit store: %w", err)
	}
	svc := movements.NewService(ledgerRepo, engine, tenant.MustGetTxManager(ctx),
		numerator.NewService(postgres.NewSequenceStorage(), ""), auditStore)

	productID := products[0][0].(id.ID)
	warehouseID := warehouses[0][0].(id.ID)
	position, err := positionRepo.EnsurePosition(ctx, productID, warehouseID)
	if err != nil {
		return fmt.Errorf("ensure position: %w", err)
	}

	opening := time.Now().AddDate(0, -1, 0)
	if _, err := svc.CreateLotAndEntryMovement(ctx, position.ID,
		types.NewQuantityFromInt(100), types.MustMoney("2.50"), opening); err != nil {
		return fmt.Errorf("seed initial balance: %w", err)
	}
	log.Infow("initial balance seeded", "position_id", position.ID)

	purchase := []movements.DocumentLine{{
		PositionID: position.ID,
		Quantity:   types.NewQuantityFromInt(50),
		UnitPrice:  types.MustMoney("3.00"),
		Label:      "demo purchase",
	}}
	if _, err := svc.ProcessDocumentLines(ctx, purchase, movements.OpPurchase, "", time.Now().AddDate(0, 0, -7)); err != nil {
		return fmt.Errorf("seed purchase: %w", err)
	}

	sale := []movements.DocumentLine{{
		PositionID: position.ID,
		Quantity:   types.NewQuantityFromInt(30),
	}}
	result, err := svc.ProcessDocumentLines(ctx, sale, movements.OpSale, "", time.Now())
	if err != nil {
		return fmt.Errorf("seed sale: %w", err)
	}
	log.Infow("demo document flow seeded", "sale_number", result.Number)
	return nil
}
