// Package catalogrepo implements the product, warehouse and position stores.
package catalogrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgconn"

	"stokado/internal/core/apperror"
	"stokado/internal/core/id"
	"stokado/internal/domain/catalogs/product"
	"stokado/internal/domain/catalogs/warehouse"
	"stokado/internal/domain/filter"
	"stokado/internal/domain/inventory"
	"stokado/internal/infrastructure/storage/postgres"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

const pgUniqueViolation = "23505"

// ProductRepo implements product.Repository.
type ProductRepo struct{}

func NewProductRepo() *ProductRepo { return &ProductRepo{} }

func (r *ProductRepo) Create(ctx context.Context, p *product.Product) error {
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now

	query, args, err := psql.
		Insert("products").
		Columns("id", "sku", "name", "unit", "created_at", "updated_at").
		Values(p.ID, p.SKU, p.Name, p.Unit, p.CreatedAt, p.UpdatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build create product: %w", err)
	}
	if _, err := postgres.GetQuerier(ctx).Exec(ctx, query, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return apperror.NewDuplicate("product", "sku", p.SKU)
		}
		return fmt.Errorf("create product: %w", err)
	}
	return nil
}

func (r *ProductRepo) GetByID(ctx context.Context, productID id.ID) (*product.Product, error) {
	query, args, err := psql.
		Select("id", "sku", "name", "unit", "created_at", "updated_at").
		From("products").
		Where(sq.Eq{"id": productID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get product: %w", err)
	}

	var p product.Product
	if err := pgxscan.Get(ctx, postgres.GetQuerier(ctx), &p, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("product", productID.String())
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return &p, nil
}

var productSortColumns = map[string]string{
	"sku":        "sku",
	"name":       "name",
	"created_at": "created_at",
}

func (r *ProductRepo) List(ctx context.Context, params filter.ListParams) ([]product.Product, error) {
	b := psql.
		Select("id", "sku", "name", "unit", "created_at", "updated_at").
		From("products").
		OrderBy(params.OrderClause(productSortColumns, "name ASC")).
		Limit(params.Limit).
		Offset(params.Offset)
	if params.Search != "" {
		b = b.Where(sq.Or{
			sq.ILike{"sku": "%" + params.Search + "%"},
			sq.ILike{"name": "%" + params.Search + "%"},
		})
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list products: %w", err)
	}

	var out []product.Product
	if err := pgxscan.Select(ctx, postgres.GetQuerier(ctx), &out, query, args...); err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return out, nil
}

// WarehouseRepo implements warehouse.Repository.
type WarehouseRepo struct{}

func NewWarehouseRepo() *WarehouseRepo { return &WarehouseRepo{} }

func (r *WarehouseRepo) Create(ctx context.Context, w *warehouse.Warehouse) error {
	now := time.Now().UTC()
	w.CreatedAt, w.UpdatedAt = now, now

	query, args, err := psql.
		Insert("warehouses").
		Columns("id", "code", "name", "created_at", "updated_at").
		Values(w.ID, w.Code, w.Name, w.CreatedAt, w.UpdatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build create warehouse: %w", err)
	}
	if _, err := postgres.GetQuerier(ctx).Exec(ctx, query, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return apperror.NewDuplicate("warehouse", "code", w.Code)
		}
		return fmt.Errorf("create warehouse: %w", err)
	}
	return nil
}

func (r *WarehouseRepo) GetByID(ctx context.Context, warehouseID id.ID) (*warehouse.Warehouse, error) {
	query, args, err := psql.
		Select("id", "code", "name", "created_at", "updated_at").
		From("warehouses").
		Where(sq.Eq{"id": warehouseID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get warehouse: %w", err)
	}

	var w warehouse.Warehouse
	if err := pgxscan.Get(ctx, postgres.GetQuerier(ctx), &w, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("warehouse", warehouseID.String())
		}
		return nil, fmt.Errorf("get warehouse: %w", err)
	}
	return &w, nil
}

var warehouseSortColumns = map[string]string{
	"code": "code",
	"name": "name",
}

func (r *WarehouseRepo) List(ctx context.Context, params filter.ListParams) ([]warehouse.Warehouse, error) {
	b := psql.
		Select("id", "code", "name", "created_at", "updated_at").
		From("warehouses").
		OrderBy(params.OrderClause(warehouseSortColumns, "code ASC")).
		Limit(params.Limit).
		Offset(params.Offset)
	if params.Search != "" {
		b = b.Where(sq.Or{
			sq.ILike{"code": "%" + params.Search + "%"},
			sq.ILike{"name": "%" + params.Search + "%"},
		})
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list warehouses: %w", err)
	}

	var out []warehouse.Warehouse
	if err := pgxscan.Select(ctx, postgres.GetQuerier(ctx), &out, query, args...); err != nil {
		return nil, fmt.Errorf("list warehouses: %w", err)
	}
	return out, nil
}

// PositionRepo implements inventory.PositionRepository.
type PositionRepo struct{}

func NewPositionRepo() *PositionRepo { return &PositionRepo{} }

func (r *PositionRepo) EnsurePosition(ctx context.Context, productID, warehouseID id.ID) (*inventory.Position, error) {
	q := postgres.GetQuerier(ctx)

	// Upsert on the (product, warehouse) unique pair; DO UPDATE makes
	// RETURNING yield the existing row on conflict.
	var p inventory.Position
	err := pgxscan.Get(ctx, q, &p, `
		INSERT INTO positions (id, product_id, warehouse_id, created_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (product_id, warehouse_id)
		DO UPDATE SET product_id = EXCLUDED.product_id
		RETURNING id, product_id, warehouse_id, created_at
	`, id.New(), productID, warehouseID)
	if err != nil {
		return nil, fmt.Errorf("ensure position: %w", err)
	}
	return &p, nil
}

func (r *PositionRepo) ListPositions(ctx context.Context, warehouseID id.ID) ([]inventory.Position, error) {
	b := psql.
		Select("id", "product_id", "warehouse_id", "created_at").
		From("positions").
		OrderBy("created_at ASC")
	if !id.IsNil(warehouseID) {
		b = b.Where(sq.Eq{"warehouse_id": warehouseID})
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list positions: %w", err)
	}

	var out []inventory.Position
	if err := pgxscan.Select(ctx, postgres.GetQuerier(ctx), &out, query, args...); err != nil {
		return nil, fmt.Errorf("list positions: %w", err)
	}
	return out, nil
}
