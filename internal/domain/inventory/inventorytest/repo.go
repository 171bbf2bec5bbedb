// Package inventorytest provides an in-memory LedgerRepository for package
// tests. It mirrors the aggregate semantics of the postgres implementation:
// PROCESADO-only, date-bounded by movement date.
package inventorytest

import (
	"context"
	"sort"
	"sync"
	"time"

	"stokado/internal/core/apperror"
	"stokado/internal/core/id"
	"stokado/internal/core/types"
	"stokado/internal/domain/inventory"
)

// Repo is an in-memory inventory.LedgerRepository.
type Repo struct {
	mu          sync.Mutex
	positions   map[id.ID]inventory.Position
	lots        map[id.ID]inventory.Lot
	lotOrder    []id.ID
	movements   map[id.ID]inventory.Movement
	items       []inventory.MovementItem
	allocations []inventory.ExitAllocation

	// Err, when set, is returned by every method. Simulates storage failure.
	Err error
}

func NewRepo() *Repo {
	return &Repo{
		positions: make(map[id.ID]inventory.Position),
		lots:      make(map[id.ID]inventory.Lot),
		movements: make(map[id.ID]inventory.Movement),
	}
}

// AddPosition registers a position and returns its id.
func (r *Repo) AddPosition() id.ID {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := inventory.Position{ID: id.New(), ProductID: id.New(), WarehouseID: id.New()}
	r.positions[p.ID] = p
	return p.ID
}

// AddLot registers a lot directly (no movement) and returns its id.
func (r *Repo) AddLot(positionID id.ID, initialQty types.Quantity, unitCost types.Money, ingress time.Time) id.ID {
	lot := inventory.Lot{
		ID:          id.New(),
		PositionID:  positionID,
		InitialQty:  initialQty,
		UnitCost:    unitCost,
		IngressDate: ingress,
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lots[lot.ID] = lot
	r.lotOrder = append(r.lotOrder, lot.ID)
	return lot.ID
}

// AddMovement registers a movement header and returns its id.
func (r *Repo) AddMovement(kind inventory.MovementKind, state inventory.MovementState, date time.Time, docRef string) id.ID {
	m := inventory.Movement{
		ID: id.New(), Number: docRef, Kind: kind, State: state, Date: date, DocumentRef: docRef,
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.movements[m.ID] = m
	return m.ID
}

// AddItem attaches an item to a movement and returns its id.
func (r *Repo) AddItem(movementID, positionID, lotID id.ID, qty types.Quantity) id.ID {
	it := inventory.MovementItem{
		ID: id.New(), MovementID: movementID, PositionID: positionID, LotID: lotID, Quantity: qty,
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, it)
	return it.ID
}

// AddAllocation attaches an exit allocation to an item.
func (r *Repo) AddAllocation(itemID, lotID id.ID, qty types.Quantity, cost types.Money) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.allocations = append(r.allocations, inventory.ExitAllocation{
		ID: id.New(), ItemID: itemID, LotID: lotID, Quantity: qty, UnitCost: cost,
	})
}

// Movements returns a copy of all stored headers.
func (r *Repo) Movements() []inventory.Movement {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]inventory.Movement, 0, len(r.movements))
	for _, m := range r.movements {
		out = append(out, m)
	}
	return out
}

// Items returns a copy of all stored items.
func (r *Repo) Items() []inventory.MovementItem {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]inventory.MovementItem(nil), r.items...)
}

// Allocations returns a copy of all stored allocations.
func (r *Repo) Allocations() []inventory.ExitAllocation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]inventory.ExitAllocation(nil), r.allocations...)
}

func (r *Repo) GetPosition(_ context.Context, positionID id.ID) (*inventory.Position, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.positions[positionID]
	if !ok {
		return nil, apperror.NewNotFound("position", positionID.String())
	}
	return &p, nil
}

func (r *Repo) GetLot(_ context.Context, lotID id.ID) (*inventory.Lot, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	lot, ok := r.lots[lotID]
	if !ok {
		return nil, apperror.NewNotFound("lot", lotID.String())
	}
	return &lot, nil
}

func (r *Repo) ListLotsByPosition(_ context.Context, positionID id.ID) ([]inventory.Lot, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []inventory.Lot
	for _, lotID := range r.lotOrder {
		lot := r.lots[lotID]
		if lot.PositionID == positionID {
			out = append(out, lot)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].IngressDate.Equal(out[j].IngressDate) {
			return out[i].IngressDate.Before(out[j].IngressDate)
		}
		return id.Less(out[i].ID, out[j].ID)
	})
	return out, nil
}

// movementCounts reports whether the item's movement is replayable.
func (r *Repo) processedOnOrBefore(movementID id.ID, asOf *time.Time) bool {
	m, ok := r.movements[movementID]
	if !ok || m.State != inventory.StateProcessed {
		return false
	}
	if asOf != nil && m.Date.After(*asOf) {
		return false
	}
	return true
}

func (r *Repo) SumLotEntries(_ context.Context, lotID id.ID, asOf *time.Time) (types.Quantity, error) {
	if r.Err != nil {
		return 0, r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var sum types.Quantity
	for _, it := range r.items {
		if it.LotID != lotID || !r.processedOnOrBefore(it.MovementID, asOf) {
			continue
		}
		if r.movements[it.MovementID].Kind == inventory.KindEntry {
			sum += it.Quantity
		}
	}
	return sum, nil
}

func (r *Repo) SumLotExits(_ context.Context, lotID id.ID, asOf *time.Time) (types.Quantity, error) {
	if r.Err != nil {
		return 0, r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var sum types.Quantity
	for _, a := range r.allocations {
		if a.LotID != lotID {
			continue
		}
		it := r.findItem(a.ItemID)
		if it == nil || !r.processedOnOrBefore(it.MovementID, asOf) {
			continue
		}
		sum += a.Quantity
	}
	return sum, nil
}

func (r *Repo) SumLotAdjustments(_ context.Context, lotID id.ID, asOf *time.Time) (types.Quantity, error) {
	if r.Err != nil {
		return 0, r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var sum types.Quantity
	for _, it := range r.items {
		if it.LotID != lotID || !r.processedOnOrBefore(it.MovementID, asOf) {
			continue
		}
		if r.movements[it.MovementID].Kind == inventory.KindAdjustment {
			sum += it.Quantity
		}
	}
	return sum, nil
}

func (r *Repo) CountLotMovementRefs(_ context.Context, lotID id.ID, asOf *time.Time) (int64, error) {
	if r.Err != nil {
		return 0, r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, it := range r.items {
		if it.LotID == lotID && r.processedOnOrBefore(it.MovementID, asOf) {
			n++
		}
	}
	for _, a := range r.allocations {
		if a.LotID != lotID {
			continue
		}
		it := r.findItem(a.ItemID)
		if it != nil && r.processedOnOrBefore(it.MovementID, asOf) {
			n++
		}
	}
	return n, nil
}

func (r *Repo) SumUnallocatedExits(_ context.Context, positionID id.ID, asOf *time.Time) (types.Quantity, error) {
	if r.Err != nil {
		return 0, r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var sum types.Quantity
	for _, a := range r.allocations {
		if !a.IsUnallocated() {
			continue
		}
		it := r.findItem(a.ItemID)
		if it == nil || it.PositionID != positionID || !r.processedOnOrBefore(it.MovementID, asOf) {
			continue
		}
		sum += a.Quantity
	}
	return sum, nil
}

func (r *Repo) GetInitialBalanceDate(_ context.Context, positionID id.ID) (*time.Time, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, it := range r.items {
		if it.PositionID != positionID {
			continue
		}
		m := r.movements[it.MovementID]
		if m.DocumentRef == inventory.InitialBalanceRef && m.State == inventory.StateProcessed {
			d := m.Date
			return &d, nil
		}
	}
	return nil, nil
}

func (r *Repo) GetInitialBalanceItem(_ context.Context, positionID, lotID id.ID) (*inventory.MovementItem, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.items {
		it := r.items[i]
		if it.PositionID != positionID || it.LotID != lotID {
			continue
		}
		if r.movements[it.MovementID].DocumentRef == inventory.InitialBalanceRef {
			return &it, nil
		}
	}
	return nil, apperror.NewNotFound("initial balance item", positionID.String())
}

func (r *Repo) FindInitialBalanceLot(_ context.Context, positionID id.ID) (*inventory.Lot, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, it := range r.items {
		if it.PositionID != positionID || id.IsNil(it.LotID) {
			continue
		}
		if r.movements[it.MovementID].DocumentRef == inventory.InitialBalanceRef {
			lot := r.lots[it.LotID]
			return &lot, nil
		}
	}
	return nil, apperror.NewNotFound("initial balance lot", positionID.String())
}

func (r *Repo) ListLedgerRows(_ context.Context, positionID id.ID, from, to time.Time) ([]inventory.LedgerRow, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var rows []inventory.LedgerRow
	for _, it := range r.items {
		if it.PositionID != positionID {
			continue
		}
		m := r.movements[it.MovementID]
		if m.State != inventory.StateProcessed || m.Date.Before(from) || m.Date.After(to) {
			continue
		}
		rows = append(rows, inventory.LedgerRow{
			MovementID:  m.ID,
			Number:      m.Number,
			Kind:        m.Kind,
			Date:        m.Date,
			DocumentRef: m.DocumentRef,
			ItemID:      it.ID,
			LotID:       it.LotID,
			Quantity:    it.Quantity,
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].Date.Equal(rows[j].Date) {
			return rows[i].Date.Before(rows[j].Date)
		}
		return id.Less(rows[i].MovementID, rows[j].MovementID)
	})
	return rows, nil
}

func (r *Repo) CreateLot(_ context.Context, lot *inventory.Lot) error {
	if r.Err != nil {
		return r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lots[lot.ID] = *lot
	r.lotOrder = append(r.lotOrder, lot.ID)
	return nil
}

func (r *Repo) UpdateLotInitialBalance(_ context.Context, lot *inventory.Lot) error {
	if r.Err != nil {
		return r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.lots[lot.ID]
	if !ok {
		return apperror.NewNotFound("lot", lot.ID.String())
	}
	stored.InitialQty = lot.InitialQty
	stored.UnitCost = lot.UnitCost
	stored.IngressDate = lot.IngressDate
	r.lots[lot.ID] = stored
	return nil
}

func (r *Repo) CreateMovement(_ context.Context, m *inventory.Movement, items []inventory.MovementItem, allocs []inventory.ExitAllocation) error {
	if r.Err != nil {
		return r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.movements[m.ID] = *m
	r.items = append(r.items, items...)
	r.allocations = append(r.allocations, allocs...)
	return nil
}

func (r *Repo) UpdateMovementItemQuantity(_ context.Context, itemID id.ID, qty types.Quantity) error {
	if r.Err != nil {
		return r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.items {
		if r.items[i].ID == itemID {
			r.items[i].Quantity = qty
			return nil
		}
	}
	return apperror.NewNotFound("movement item", itemID.String())
}

func (r *Repo) findItem(itemID id.ID) *inventory.MovementItem {
	for i := range r.items {
		if r.items[i].ID == itemID {
			return &r.items[i]
		}
	}
	return nil
}

var _ inventory.LedgerRepository = (*Repo)(nil)
