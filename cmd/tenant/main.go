// Package main provides a CLI for tenant provisioning.
// Usage: tenant create --slug acme --name "ACME Corp"
//        tenant list
//        tenant migrate --all
//        tenant suspend <tenant-id>
//        tenant activate <tenant-id>
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"stokado/internal/core/tenant"
	"stokado/internal/infrastructure/migrations"
	"stokado/internal/infrastructure/storage/postgres"
	"stokado/pkg/config"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load(os.Getenv("STOKADO_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	switch os.Args[1] {
	case "create":
		createTenant(ctx, cfg)
	case "list":
		listTenants(ctx, cfg)
	case "migrate":
		migrateTenants(ctx, cfg)
	case "suspend":
		setStatus(ctx, cfg, tenant.StatusSuspended)
	case "activate":
		setStatus(ctx, cfg, tenant.StatusActive)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Stokado tenant management CLI

Usage:
  tenant <command> [options]

Commands:
  create    Provision a new tenant (database + schema + registry row)
  list      List active tenants
  migrate   Run schema migrations for tenant(s)
  suspend   Suspend a tenant
  activate  Activate a suspended tenant
  help      Show this help

Configuration comes from STOKADO_* environment variables or the YAML
file named by STOKADO_CONFIG (meta_db.dsn, tenant.db_user, ...).

Examples:
  tenant create --slug acme --name "ACME Corporation"
  tenant migrate --all
  tenant suspend <tenant-uuid>`)
}

func metaPool(ctx context.Context, cfg *config.Config) *pgxpool.Pool {
	pool, err := postgres.NewPool(ctx, cfg.MetaDB.DSN, postgres.DefaultPoolConfig())
	if err != nil {
		fmt.Printf("error connecting to meta database: %v\n", err)
		os.Exit(1)
	}
	return pool
}

func createTenant(ctx context.Context, cfg *config.Config) {
	var slug, name string
	for i := 2; i < len(os.Args); i++ {
		switch os.Args[i] {
		case "--slug":
			if i+1 < len(os.Args) {
				slug = os.Args[i+1]
				i++
			}
		case "--name":
			if i+1 < len(os.Args) {
				name = os.Args[i+1]
				i++
			}
		}
	}

	input := tenant.CreateTenantInput{Slug: slug, DisplayName: name}
	if err := input.Validate(); err != nil {
		fmt.Printf("error: %v\n", err)
		fmt.Println("usage: tenant create --slug <slug> --name <name>")
		os.Exit(1)
	}
	if input.DBHost == "" {
		input.DBHost = "localhost"
	}
	if input.DBPort == 0 {
		input.DBPort = 5432
	}
	dbName := input.GenerateDBName()

	pool := metaPool(ctx, cfg)
	defer pool.Close()
	registry := tenant.NewPostgresRegistry(pool)

	fmt.Printf("creating tenant %q...\n", input.Slug)

	// Database creation needs a connection outside any pool transaction.
	fmt.Printf("  creating database %s...\n", dbName)
	if _, err := pool.Exec(ctx, fmt.Sprintf(`CREATE DATABASE %q`, dbName)); err != nil {
		if strings.Contains(err.Error(), "already exists") {
			fmt.Println("  database already exists")
		} else {
			fmt.Printf("error creating database: %v\n", err)
			os.Exit(1)
		}
	}

	t := &tenant.Tenant{
		Slug:        input.Slug,
		DisplayName: input.DisplayName,
		DBName:      dbName,
		DBHost:      input.DBHost,
		DBPort:      input.DBPort,
		Status:      tenant.StatusActive,
	}

	fmt.Println("  running migrations...")
	if err := migrateOne(ctx, cfg, t); err != nil {
		fmt.Printf("error migrating tenant database: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("  registering tenant...")
	if err := registry.Create(ctx, t); err != nil {
		fmt.Printf("error registering tenant: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\ntenant %q created\n", t.Slug)
	fmt.Printf("  id:       %s\n", t.ID)
	fmt.Printf("  database: %s\n", t.DBName)
}

func listTenants(ctx context.Context, cfg *config.Config) {
	pool := metaPool(ctx, cfg)
	defer pool.Close()

	tenants, err := tenant.NewPostgresRegistry(pool).ListActive(ctx)
	if err != nil {
		fmt.Printf("error listing tenants: %v\n", err)
		os.Exit(1)
	}
	if len(tenants) == 0 {
		fmt.Println("no active tenants")
		return
	}

	fmt.Printf("%-36s %-20s %-30s %-15s %-10s\n", "TENANT_ID", "SLUG", "NAME", "DATABASE", "STATUS")
	fmt.Println(strings.Repeat("-", 115))
	for _, t := range tenants {
		fmt.Printf("%-36s %-20s %-30s %-15s %-10s\n",
			t.ID, t.Slug, t.DisplayName, t.DBName, t.Status)
	}
}

func migrateTenants(ctx context.Context, cfg *config.Config) {
	var targetID string
	var all bool
	for i := 2; i < len(os.Args); i++ {
		switch os.Args[i] {
		case "--id":
			if i+1 < len(os.Args) {
				targetID = os.Args[i+1]
				i++
			}
		case "--all":
			all = true
		}
	}
	if !all && targetID == "" {
		fmt.Println("error: specify --id <tenant-uuid> or --all")
		os.Exit(1)
	}

	pool := metaPool(ctx, cfg)
	defer pool.Close()
	registry := tenant.NewPostgresRegistry(pool)

	var tenants []*tenant.Tenant
	if all {
		var err error
		tenants, err = registry.ListActive(ctx)
		if err != nil {
			fmt.Printf("error: %v\n", err)
			os.Exit(1)
		}
	} else {
		t, err := registry.GetByID(ctx, targetID)
		if err != nil {
			fmt.Printf("error: tenant %q not found\n", targetID)
			os.Exit(1)
		}
		tenants = []*tenant.Tenant{t}
	}

	for _, t := range tenants {
		fmt.Printf("migrating %s (%s)...\n", t.Slug, t.DBName)
		if err := migrateOne(ctx, cfg, t); err != nil {
			fmt.Printf("  failed: %v\n", err)
			continue
		}
		fmt.Println("  done")
	}
}

func migrateOne(ctx context.Context, cfg *config.Config, t *tenant.Tenant) error {
	dsn := t.DSNWithSSL(cfg.Tenant.DBUser, cfg.Tenant.DBPassword, cfg.Tenant.SSLMode)
	pool, err := postgres.NewPool(ctx, dsn, postgres.DefaultPoolConfig())
	if err != nil {
		return err
	}
	defer pool.Close()
	return migrations.Up(ctx, pool)
}

func setStatus(ctx context.Context, cfg *config.Config, status tenant.Status) {
	if len(os.Args) < 3 {
		fmt.Printf("usage: tenant %s <tenant-uuid>\n", os.Args[1])
		os.Exit(1)
	}
	tenantID := os.Args[2]

	pool := metaPool(ctx, cfg)
	defer pool.Close()

	if err := tenant.NewPostgresRegistry(pool).UpdateStatusByID(ctx, tenantID, status); err != nil {
		fmt.Printf("error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("tenant %s is now %s\n", tenantID, status)
}
