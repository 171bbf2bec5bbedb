// Package inventory defines the ledger data model: positions, lots, movements
// and exit allocations. Stock is never stored; every quantity is derived by
// replaying the append-only movement ledger.
package inventory

import (
	"time"

	"stokado/internal/core/id"
	"stokado/internal/core/types"
)

// MovementKind classifies ledger movements.
type MovementKind string

const (
	// KindEntry adds stock to a lot (purchases, initial balances).
	KindEntry MovementKind = "ENTRADA"

	// KindExit removes stock via per-lot allocations.
	KindExit MovementKind = "SALIDA"

	// KindAdjustment carries a signed quantity; the sign alone decides
	// whether it replays as an entry or an exit.
	KindAdjustment MovementKind = "AJUSTE"
)

// MovementState is the processing state of a movement.
type MovementState string

const (
	// StateProcessed - the movement affects stock.
	StateProcessed MovementState = "PROCESADO"

	// StateVoided - the movement is excluded from every computation.
	StateVoided MovementState = "ANULADO"
)

// ValuationMethod selects the costing policy. Per-tenant configuration,
// read at computation time and never stored on movements.
type ValuationMethod string

const (
	MethodWeightedAverage ValuationMethod = "WEIGHTED_AVERAGE"
	MethodFIFO            ValuationMethod = "FIFO"
)

// IsValid reports whether m is a known method.
func (m ValuationMethod) IsValid() bool {
	return m == MethodWeightedAverage || m == MethodFIFO
}

// InitialBalanceRef is the reserved document reference that marks
// initial-balance movements.
const InitialBalanceRef = "SALDO-INICIAL"

// Position is an inventory position: one product in one warehouse.
// It carries no stored quantity.
type Position struct {
	ID          id.ID     `db:"id"`
	ProductID   id.ID     `db:"product_id"`
	WarehouseID id.ID     `db:"warehouse_id"`
	CreatedAt   time.Time `db:"created_at"`
}

// Lot is a batch of stock that entered a position at a single cost.
//
// InitialQty is nonzero only for initial-balance lots; commercial lots carry
// zero and their quantity flows through ENTRADA movement items. Lots are
// immutable except through initial-balance correction.
type Lot struct {
	ID          id.ID          `db:"id"`
	PositionID  id.ID          `db:"position_id"`
	InitialQty  types.Quantity `db:"initial_qty"`
	UnitCost    types.Money    `db:"unit_cost"`
	IngressDate time.Time      `db:"ingress_date"`
	Label       string         `db:"label"`
	CreatedAt   time.Time      `db:"created_at"`
}

// Movement is a ledger document header.
type Movement struct {
	ID          id.ID         `db:"id"`
	Number      string        `db:"number"`
	Kind        MovementKind  `db:"kind"`
	State       MovementState `db:"state"`
	Date        time.Time     `db:"date"`
	DocumentRef string        `db:"document_ref"`
	CreatedAt   time.Time     `db:"created_at"`
}

// IsInitialBalance reports whether the movement seeds an opening balance.
func (m *Movement) IsInitialBalance() bool {
	return m.DocumentRef == InitialBalanceRef
}

// MovementItem is one line of a movement. LotID is set for ENTRADA and
// AJUSTE lines targeting a specific lot; SALIDA lines leave it Nil and own
// allocations instead. Quantity is signed only for AJUSTE lines.
type MovementItem struct {
	ID         id.ID          `db:"id"`
	MovementID id.ID          `db:"movement_id"`
	PositionID id.ID          `db:"position_id"`
	LotID      id.ID          `db:"lot_id"`
	Quantity   types.Quantity `db:"quantity"`
	CreatedAt  time.Time      `db:"created_at"`
}

// ExitAllocation records how much of an exit line was taken from which lot,
// at which cost. LotID equal to id.Nil marks a legacy unallocated exit; new
// write paths never produce such rows.
type ExitAllocation struct {
	ID       id.ID          `db:"id"`
	ItemID   id.ID          `db:"item_id"`
	LotID    id.ID          `db:"lot_id"`
	Quantity types.Quantity `db:"quantity"`
	UnitCost types.Money    `db:"unit_cost"`
}

// IsUnallocated reports whether the allocation lacks a lot reference.
func (a *ExitAllocation) IsUnallocated() bool {
	return id.IsNil(a.LotID)
}

// LedgerRow is one movement line joined with its header, as replayed by the
// Kardex generator.
type LedgerRow struct {
	MovementID  id.ID
	Number      string
	Kind        MovementKind
	Date        time.Time
	DocumentRef string
	ItemID      id.ID
	LotID       id.ID
	Quantity    types.Quantity
}
