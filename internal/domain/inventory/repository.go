package inventory

import (
	"context"
	"time"

	"stokado/internal/core/id"
	"stokado/internal/core/types"
)

// LedgerRepository is the storage contract for the movement ledger.
//
// Every aggregate query counts PROCESADO movements only and honors the asOf
// cutoff when non-nil (movement date at or before asOf). Movements and allocations are
// create-only; lots are update-only through the initial-balance correction.
type LedgerRepository interface {
	// GetPosition returns the position or apperror NotFound.
	GetPosition(ctx context.Context, positionID id.ID) (*Position, error)

	// GetLot returns the lot or apperror NotFound.
	GetLot(ctx context.Context, lotID id.ID) (*Lot, error)

	// ListLotsByPosition returns every lot of the position, ingress date
	// ascending, lot id ascending.
	ListLotsByPosition(ctx context.Context, positionID id.ID) ([]Lot, error)

	// SumLotEntries totals ENTRADA item quantities for the lot.
	SumLotEntries(ctx context.Context, lotID id.ID, asOf *time.Time) (types.Quantity, error)

	// SumLotExits totals exit allocation quantities charged to the lot.
	SumLotExits(ctx context.Context, lotID id.ID, asOf *time.Time) (types.Quantity, error)

	// SumLotAdjustments totals signed AJUSTE item quantities for the lot.
	SumLotAdjustments(ctx context.Context, lotID id.ID, asOf *time.Time) (types.Quantity, error)

	// CountLotMovementRefs counts PROCESADO items or allocations that
	// reference the lot, date-bounded. Zero means the lot is virgin.
	CountLotMovementRefs(ctx context.Context, lotID id.ID, asOf *time.Time) (int64, error)

	// SumUnallocatedExits totals exit allocations with a Nil lot for the
	// position (legacy rows).
	SumUnallocatedExits(ctx context.Context, positionID id.ID, asOf *time.Time) (types.Quantity, error)

	// GetInitialBalanceDate returns the date of the position's SALDO-INICIAL
	// movement, or nil when the position has none.
	GetInitialBalanceDate(ctx context.Context, positionID id.ID) (*time.Time, error)

	// GetInitialBalanceItem returns the movement item of the position's
	// initial-balance entry for the given lot, or apperror NotFound.
	GetInitialBalanceItem(ctx context.Context, positionID, lotID id.ID) (*MovementItem, error)

	// FindInitialBalanceLot returns the position's initial-balance lot,
	// or apperror NotFound.
	FindInitialBalanceLot(ctx context.Context, positionID id.ID) (*Lot, error)

	// ListLedgerRows returns PROCESADO rows for the position within
	// [from, to], ordered by date ascending then movement id ascending,
	// with exit allocations attached.
	ListLedgerRows(ctx context.Context, positionID id.ID, from, to time.Time) ([]LedgerRow, error)

	// CreateLot inserts a lot.
	CreateLot(ctx context.Context, lot *Lot) error

	// UpdateLotInitialBalance rewrites initial quantity, unit cost and
	// ingress date of an initial-balance lot. The only lot mutation.
	UpdateLotInitialBalance(ctx context.Context, lot *Lot) error

	// CreateMovement inserts a movement header with its items and, for exit
	// lines, their allocations, atomically within the ambient transaction.
	CreateMovement(ctx context.Context, m *Movement, items []MovementItem, allocs []ExitAllocation) error

	// UpdateMovementItemQuantity rewrites one item quantity. Used only by
	// initial-balance correction.
	UpdateMovementItemQuantity(ctx context.Context, itemID id.ID, qty types.Quantity) error
}

// PositionRepository manages position rows from the catalog side. The ledger
// itself never creates positions.
type PositionRepository interface {
	// EnsurePosition returns the position for (product, warehouse), creating
	// it on first use.
	EnsurePosition(ctx context.Context, productID, warehouseID id.ID) (*Position, error)

	// ListPositions returns every position of a warehouse; Nil lists all.
	ListPositions(ctx context.Context, warehouseID id.ID) ([]Position, error)
}
