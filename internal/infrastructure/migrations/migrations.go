// Package migrations embeds the tenant database schema and applies it with
// goose. Each tenant database is migrated independently on provisioning.
package migrations

import (
	"context"
	"embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed sql/*.sql meta/*.sql
var fs embed.FS

// Up applies all pending tenant-schema migrations to the pool's database.
func Up(ctx context.Context, pool *pgxpool.Pool) error {
	return up(ctx, pool, "sql")
}

// UpMeta applies the meta-database schema (tenant registry).
func UpMeta(ctx context.Context, pool *pgxpool.Pool) error {
	return up(ctx, pool, "meta")
}

func up(ctx context.Context, pool *pgxpool.Pool, dir string) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	goose.SetBaseFS(fs)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, dir); err != nil {
		return fmt.Errorf("apply %s migrations: %w", dir, err)
	}
	return nil
}
