// Package ledgerrepo implements inventory.LedgerRepository on PostgreSQL.
//
// Quantities are stored as BIGINT scaled by 1e4, costs as NUMERIC. Every
// aggregate counts PROCESADO movements only and bounds by movement date when
// a cutoff is given.
package ledgerrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"stokado/internal/core/apperror"
	"stokado/internal/core/id"
	"stokado/internal/core/types"
	"stokado/internal/domain/inventory"
	"stokado/internal/infrastructure/storage/postgres"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Repo is the PostgreSQL ledger store.
type Repo struct{}

func New() *Repo {
	return &Repo{}
}

func (r *Repo) GetPosition(ctx context.Context, positionID id.ID) (*inventory.Position, error) {
	query, args, err := psql.
		Select("id", "product_id", "warehouse_id", "created_at").
		From("positions").
		Where(sq.Eq{"id": positionID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get position: %w", err)
	}

	var p inventory.Position
	if err := pgxscan.Get(ctx, postgres.GetQuerier(ctx), &p, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("position", positionID.String())
		}
		return nil, fmt.Errorf("get position: %w", err)
	}
	return &p, nil
}

const lotColumns = "id, position_id, initial_qty, unit_cost, ingress_date, label, created_at"

func (r *Repo) GetLot(ctx context.Context, lotID id.ID) (*inventory.Lot, error) {
	query, args, err := psql.
		Select(lotColumns).
		From("lots").
		Where(sq.Eq{"id": lotID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get lot: %w", err)
	}

	var lot inventory.Lot
	if err := pgxscan.Get(ctx, postgres.GetQuerier(ctx), &lot, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("lot", lotID.String())
		}
		return nil, fmt.Errorf("get lot: %w", err)
	}
	return &lot, nil
}

func (r *Repo) ListLotsByPosition(ctx context.Context, positionID id.ID) ([]inventory.Lot, error) {
	query, args, err := psql.
		Select(lotColumns).
		From("lots").
		Where(sq.Eq{"position_id": positionID}).
		OrderBy("ingress_date ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list lots: %w", err)
	}

	var lots []inventory.Lot
	if err := pgxscan.Select(ctx, postgres.GetQuerier(ctx), &lots, query, args...); err != nil {
		return nil, fmt.Errorf("list lots: %w", err)
	}
	return lots, nil
}

// sumItems totals item quantities for a lot under one movement kind.
func (r *Repo) sumItems(ctx context.Context, lotID id.ID, kind inventory.MovementKind, asOf *time.Time) (types.Quantity, error) {
	b := psql.
		Select("COALESCE(SUM(i.quantity), 0)").
		From("movement_items i").
		Join("movements m ON m.id = i.movement_id").
		Where(sq.Eq{
			"i.lot_id": lotID,
			"m.kind":   kind,
			"m.state":  inventory.StateProcessed,
		})
	if asOf != nil {
		b = b.Where(sq.LtOrEq{"m.date": *asOf})
	}
	query, args, err := b.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build sum items: %w", err)
	}

	var sum int64
	if err := postgres.GetQuerier(ctx).QueryRow(ctx, query, args...).Scan(&sum); err != nil {
		return 0, fmt.Errorf("sum items: %w", err)
	}
	return types.NewQuantityFromInt64Scaled(sum), nil
}

func (r *Repo) SumLotEntries(ctx context.Context, lotID id.ID, asOf *time.Time) (types.Quantity, error) {
	return r.sumItems(ctx, lotID, inventory.KindEntry, asOf)
}

func (r *Repo) SumLotAdjustments(ctx context.Context, lotID id.ID, asOf *time.Time) (types.Quantity, error) {
	return r.sumItems(ctx, lotID, inventory.KindAdjustment, asOf)
}

func (r *Repo) SumLotExits(ctx context.Context, lotID id.ID, asOf *time.Time) (types.Quantity, error) {
	b := psql.
		Select("COALESCE(SUM(a.quantity), 0)").
		From("exit_allocations a").
		Join("movement_items i ON i.id = a.item_id").
		Join("movements m ON m.id = i.movement_id").
		Where(sq.Eq{
			"a.lot_id": lotID,
			"m.state":  inventory.StateProcessed,
		})
	if asOf != nil {
		b = b.Where(sq.LtOrEq{"m.date": *asOf})
	}
	query, args, err := b.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build sum exits: %w", err)
	}

	var sum int64
	if err := postgres.GetQuerier(ctx).QueryRow(ctx, query, args...).Scan(&sum); err != nil {
		return 0, fmt.Errorf("sum exits: %w", err)
	}
	return types.NewQuantityFromInt64Scaled(sum), nil
}

func (r *Repo) CountLotMovementRefs(ctx context.Context, lotID id.ID, asOf *time.Time) (int64, error) {
	dateCond := ""
	args := []any{lotID, inventory.StateProcessed}
	if asOf != nil {
		dateCond = " AND m.date <= $3"
		args = append(args, *asOf)
	}

	// Items targeting the lot plus allocations charged to it.
	query := `
		SELECT
			(SELECT COUNT(*)
			   FROM movement_items i
			   JOIN movements m ON m.id = i.movement_id
			  WHERE i.lot_id = $1 AND m.state = $2` + dateCond + `)
			+
			(SELECT COUNT(*)
			   FROM exit_allocations a
			   JOIN movement_items i ON i.id = a.item_id
			   JOIN movements m ON m.id = i.movement_id
			  WHERE a.lot_id = $1 AND m.state = $2` + dateCond + `)`

	var n int64
	if err := postgres.GetQuerier(ctx).QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count lot refs: %w", err)
	}
	return n, nil
}

func (r *Repo) SumUnallocatedExits(ctx context.Context, positionID id.ID, asOf *time.Time) (types.Quantity, error) {
	b := psql.
		Select("COALESCE(SUM(a.quantity), 0)").
		From("exit_allocations a").
		Join("movement_items i ON i.id = a.item_id").
		Join("movements m ON m.id = i.movement_id").
		Where(sq.Eq{
			"a.lot_id":      id.Nil,
			"i.position_id": positionID,
			"m.state":       inventory.StateProcessed,
		})
	if asOf != nil {
		b = b.Where(sq.LtOrEq{"m.date": *asOf})
	}
	query, args, err := b.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build sum unallocated: %w", err)
	}

	var sum int64
	if err := postgres.GetQuerier(ctx).QueryRow(ctx, query, args...).Scan(&sum); err != nil {
		return 0, fmt.Errorf("sum unallocated exits: %w", err)
	}
	return types.NewQuantityFromInt64Scaled(sum), nil
}

func (r *Repo) GetInitialBalanceDate(ctx context.Context, positionID id.ID) (*time.Time, error) {
	query, args, err := psql.
		Select("m.date").
		From("movements m").
		Join("movement_items i ON i.movement_id = m.id").
		Where(sq.Eq{
			"i.position_id":  positionID,
			"m.document_ref": inventory.InitialBalanceRef,
			"m.state":        inventory.StateProcessed,
		}).
		OrderBy("m.date ASC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build initial balance date: %w", err)
	}

	var d time.Time
	err = postgres.GetQuerier(ctx).QueryRow(ctx, query, args...).Scan(&d)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get initial balance date: %w", err)
	}
	return &d, nil
}

func (r *Repo) GetInitialBalanceItem(ctx context.Context, positionID, lotID id.ID) (*inventory.MovementItem, error) {
	query, args, err := psql.
		Select("i.id", "i.movement_id", "i.position_id", "i.lot_id", "i.quantity", "i.created_at").
		From("movement_items i").
		Join("movements m ON m.id = i.movement_id").
		Where(sq.Eq{
			"i.position_id":  positionID,
			"i.lot_id":       lotID,
			"m.document_ref": inventory.InitialBalanceRef,
		}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build initial balance item: %w", err)
	}

	var item inventory.MovementItem
	if err := pgxscan.Get(ctx, postgres.GetQuerier(ctx), &item, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("initial balance item", positionID.String())
		}
		return nil, fmt.Errorf("get initial balance item: %w", err)
	}
	return &item, nil
}

func (r *Repo) FindInitialBalanceLot(ctx context.Context, positionID id.ID) (*inventory.Lot, error) {
	query, args, err := psql.
		Select(
			"l.id", "l.position_id", "l.initial_qty", "l.unit_cost",
			"l.ingress_date", "l.label", "l.created_at",
		).
		From("lots l").
		Join("movement_items i ON i.lot_id = l.id").
		Join("movements m ON m.id = i.movement_id").
		Where(sq.Eq{
			"l.position_id":  positionID,
			"m.document_ref": inventory.InitialBalanceRef,
		}).
		OrderBy("l.created_at ASC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build find initial balance lot: %w", err)
	}

	var lot inventory.Lot
	if err := pgxscan.Get(ctx, postgres.GetQuerier(ctx), &lot, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("initial balance lot", positionID.String())
		}
		return nil, fmt.Errorf("find initial balance lot: %w", err)
	}
	return &lot, nil
}

// ledgerRowRecord is the flat scan target for ListLedgerRows.
type ledgerRowRecord struct {
	MovementID  id.ID                  `db:"movement_id"`
	Number      string                 `db:"number"`
	Kind        inventory.MovementKind `db:"kind"`
	Date        time.Time              `db:"date"`
	DocumentRef string                 `db:"document_ref"`
	ItemID      id.ID                  `db:"item_id"`
	LotID       id.ID                  `db:"lot_id"`
	Quantity    types.Quantity         `db:"quantity"`
}

func (r *Repo) ListLedgerRows(ctx context.Context, positionID id.ID, from, to time.Time) ([]inventory.LedgerRow, error) {
	query, args, err := psql.
		Select(
			"m.id AS movement_id", "m.number", "m.kind", "m.date", "m.document_ref",
			"i.id AS item_id", "i.lot_id", "i.quantity",
		).
		From("movement_items i").
		Join("movements m ON m.id = i.movement_id").
		Where(sq.Eq{
			"i.position_id": positionID,
			"m.state":       inventory.StateProcessed,
		}).
		Where(sq.GtOrEq{"m.date": from}).
		Where(sq.LtOrEq{"m.date": to}).
		OrderBy("m.date ASC", "m.id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list ledger rows: %w", err)
	}

	q := postgres.GetQuerier(ctx)
	var records []ledgerRowRecord
	if err := pgxscan.Select(ctx, q, &records, query, args...); err != nil {
		return nil, fmt.Errorf("list ledger rows: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	rows := make([]inventory.LedgerRow, 0, len(records))
	for _, rec := range records {
		rows = append(rows, inventory.LedgerRow{
			MovementID:  rec.MovementID,
			Number:      rec.Number,
			Kind:        rec.Kind,
			Date:        rec.Date,
			DocumentRef: rec.DocumentRef,
			ItemID:      rec.ItemID,
			LotID:       rec.LotID,
			Quantity:    rec.Quantity,
		})
	}
	return rows, nil
}

func (r *Repo) CreateLot(ctx context.Context, lot *inventory.Lot) error {
	if lot.CreatedAt.IsZero() {
		lot.CreatedAt = time.Now().UTC()
	}
	query, args, err := psql.
		Insert("lots").
		Columns("id", "position_id", "initial_qty", "unit_cost", "ingress_date", "label", "created_at").
		Values(lot.ID, lot.PositionID, lot.InitialQty.Int64Scaled(), lot.UnitCost,
			lot.IngressDate, lot.Label, lot.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build create lot: %w", err)
	}
	if _, err := postgres.GetQuerier(ctx).Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("create lot: %w", err)
	}
	return nil
}

func (r *Repo) UpdateLotInitialBalance(ctx context.Context, lot *inventory.Lot) error {
	query, args, err := psql.
		Update("lots").
		Set("initial_qty", lot.InitialQty.Int64Scaled()).
		Set("unit_cost", lot.UnitCost).
		Set("ingress_date", lot.IngressDate).
		Where(sq.Eq{"id": lot.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update lot: %w", err)
	}
	tag, err := postgres.GetQuerier(ctx).Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update lot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("lot", lot.ID.String())
	}
	return nil
}

func (r *Repo) CreateMovement(ctx context.Context, m *inventory.Movement, items []inventory.MovementItem, allocs []inventory.ExitAllocation) error {
	q := postgres.GetQuerier(ctx)
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	query, args, err := psql.
		Insert("movements").
		Columns("id", "number", "kind", "state", "date", "document_ref", "created_at").
		Values(m.ID, m.Number, m.Kind, m.State, m.Date, m.DocumentRef, m.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build create movement: %w", err)
	}
	if _, err := q.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("create movement: %w", err)
	}

	if len(items) > 0 {
		b := psql.Insert("movement_items").
			Columns("id", "movement_id", "position_id", "lot_id", "quantity", "created_at")
		now := time.Now().UTC()
		for _, it := range items {
			createdAt := it.CreatedAt
			if createdAt.IsZero() {
				createdAt = now
			}
			b = b.Values(it.ID, it.MovementID, it.PositionID, it.LotID, it.Quantity.Int64Scaled(), createdAt)
		}
		query, args, err = b.ToSql()
		if err != nil {
			return fmt.Errorf("build create items: %w", err)
		}
		if _, err := q.Exec(ctx, query, args...); err != nil {
			return fmt.Errorf("create movement items: %w", err)
		}
	}

	if len(allocs) > 0 {
		b := psql.Insert("exit_allocations").
			Columns("id", "item_id", "lot_id", "quantity", "unit_cost")
		for _, a := range allocs {
			b = b.Values(a.ID, a.ItemID, a.LotID, a.Quantity.Int64Scaled(), a.UnitCost)
		}
		query, args, err = b.ToSql()
		if err != nil {
			return fmt.Errorf("build create allocations: %w", err)
		}
		if _, err := q.Exec(ctx, query, args...); err != nil {
			return fmt.Errorf("create exit allocations: %w", err)
		}
	}
	return nil
}

func (r *Repo) UpdateMovementItemQuantity(ctx context.Context, itemID id.ID, qty types.Quantity) error {
	query, args, err := psql.
		Update("movement_items").
		Set("quantity", qty.Int64Scaled()).
		Where(sq.Eq{"id": itemID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update item: %w", err)
	}
	tag, err := postgres.GetQuerier(ctx).Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update movement item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("movement item", itemID.String())
	}
	return nil
}

var _ inventory.LedgerRepository = (*Repo)(nil)
