// Package valuation computes stock quantities and costs by replaying the
// movement ledger. Nothing here persists stock: every figure is derived, and
// the cache only memoizes current-state (unbounded) queries.
package valuation

import (
	"time"

	"stokado/internal/core/id"
	"stokado/internal/core/types"
)

// LotStock is the derived state of a single lot.
type LotStock struct {
	LotID       id.ID          `json:"lotId"`
	PositionID  id.ID          `json:"positionId"`
	Quantity    types.Quantity `json:"quantity"`
	UnitCost    types.Money    `json:"unitCost"`
	IngressDate time.Time      `json:"ingressDate"`
}

// InventoryStock is the derived state of an inventory position.
type InventoryStock struct {
	PositionID id.ID          `json:"positionId"`
	Quantity   types.Quantity `json:"quantity"`
	// AverageCost is sum(qty*cost)/sum(qty) over positive lots, zero when empty.
	AverageCost types.Money `json:"averageCost"`
	TotalValue  types.Money `json:"totalValue"`
	// Lots is the positive-lot breakdown behind the aggregate.
	Lots []LotStock `json:"lots"`
}

// AvailableLot is a lot with positive derived stock, in FIFO order.
type AvailableLot struct {
	LotID       id.ID
	Available   types.Quantity
	UnitCost    types.Money
	IngressDate time.Time
}

// LotConsumption is one step of a FIFO consumption plan.
type LotConsumption struct {
	LotID    id.ID          `json:"lotId"`
	Quantity types.Quantity `json:"quantity"`
	UnitCost types.Money    `json:"unitCost"`
}
