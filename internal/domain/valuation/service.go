package valuation

import (
	"context"
	"sort"
	"time"

	"stokado/internal/core/apperror"
	"stokado/internal/core/id"
	"stokado/internal/core/types"
	"stokado/internal/domain/inventory"
	"stokado/internal/domain/periods"
	"stokado/pkg/logger"
)

// Engine derives stock quantities and costs from the movement ledger.
//
// asOf semantics on every method: nil means "current state": the query may be
// served from the cache and populates it; non-nil bounds the replay to
// movements dated at or before asOf and never touches the cache. A bare query
// resolves its cutoff through ResolveCutoff, so a tenant with a configured
// period end sees its current state bounded by that instant; the result is
// still cacheable because writers invalidate on every write.
type Engine struct {
	repo   inventory.LedgerRepository
	cache  *StockCache
	config periods.Provider
}

// NewEngine creates the engine. cache and config may be nil (no memoization,
// built-in defaults).
func NewEngine(repo inventory.LedgerRepository, cache *StockCache, config periods.Provider) *Engine {
	return &Engine{repo: repo, cache: cache, config: config}
}

// ComputeLotStock derives the stock of one lot:
// ENTRADA items minus exit allocations plus signed AJUSTE items, PROCESADO only.
// A lot no movement references falls back to its stored initial quantity,
// gated by date when asOf is set. The result is floored at zero.
func (e *Engine) ComputeLotStock(ctx context.Context, lotID id.ID, asOf *time.Time) (LotStock, error) {
	bare := asOf == nil
	if bare && e.cache != nil {
		if s, ok := e.cache.GetLot(lotID); ok {
			return s, nil
		}
	}
	if bare {
		asOf = e.ResolveCutoff(ctx, nil)
	}

	lot, err := e.repo.GetLot(ctx, lotID)
	if err != nil {
		return LotStock{}, err
	}

	qty, err := e.replayLot(ctx, lot, asOf)
	if err != nil {
		return LotStock{}, err
	}

	s := LotStock{
		LotID:       lot.ID,
		PositionID:  lot.PositionID,
		Quantity:    qty,
		UnitCost:    lot.UnitCost,
		IngressDate: lot.IngressDate,
	}
	if bare && e.cache != nil {
		e.cache.SetLot(s)
	}
	return s, nil
}

// replayLot computes the floored lot quantity from the ledger.
func (e *Engine) replayLot(ctx context.Context, lot *inventory.Lot, asOf *time.Time) (types.Quantity, error) {
	refs, err := e.repo.CountLotMovementRefs(ctx, lot.ID, asOf)
	if err != nil {
		return 0, err
	}

	if refs == 0 {
		// Virgin lot: only the stored initial quantity exists. Gate on the
		// initial-balance movement date when the position has one, otherwise
		// on the lot's ingress date.
		if asOf != nil {
			gate := lot.IngressDate
			ibDate, err := e.repo.GetInitialBalanceDate(ctx, lot.PositionID)
			if err != nil {
				return 0, err
			}
			if ibDate != nil {
				gate = *ibDate
			}
			if gate.After(*asOf) {
				return 0, nil
			}
		}
		return lot.InitialQty.FloorZero(), nil
	}

	entries, err := e.repo.SumLotEntries(ctx, lot.ID, asOf)
	if err != nil {
		return 0, err
	}
	exits, err := e.repo.SumLotExits(ctx, lot.ID, asOf)
	if err != nil {
		return 0, err
	}
	adjustments, err := e.repo.SumLotAdjustments(ctx, lot.ID, asOf)
	if err != nil {
		return 0, err
	}

	return (entries - exits + adjustments).FloorZero(), nil
}

// ComputeInventoryStock aggregates the position's positive lots into a total
// quantity and a weighted-average cost, then subtracts legacy unallocated
// exits as a final floored adjustment.
func (e *Engine) ComputeInventoryStock(ctx context.Context, positionID id.ID, asOf *time.Time) (InventoryStock, error) {
	bare := asOf == nil
	if bare && e.cache != nil {
		if s, ok := e.cache.GetPosition(positionID); ok {
			return s, nil
		}
	}
	if bare {
		asOf = e.ResolveCutoff(ctx, nil)
	}

	if _, err := e.repo.GetPosition(ctx, positionID); err != nil {
		return InventoryStock{}, err
	}

	lots, err := e.repo.ListLotsByPosition(ctx, positionID)
	if err != nil {
		return InventoryStock{}, err
	}

	var totalQty types.Quantity
	totalValue := types.ZeroMoney()
	breakdown := make([]LotStock, 0, len(lots))
	for i := range lots {
		qty, err := e.replayLot(ctx, &lots[i], asOf)
		if err != nil {
			return InventoryStock{}, err
		}
		if !qty.IsPositive() {
			continue
		}
		totalQty += qty
		totalValue = totalValue.Add(qty.Mul(lots[i].UnitCost))
		breakdown = append(breakdown, LotStock{
			LotID:       lots[i].ID,
			PositionID:  positionID,
			Quantity:    qty,
			UnitCost:    lots[i].UnitCost,
			IngressDate: lots[i].IngressDate,
		})
	}

	avg := types.WeightedUnitCost(totalValue, totalQty)

	unallocated, err := e.repo.SumUnallocatedExits(ctx, positionID, asOf)
	if err != nil {
		return InventoryStock{}, err
	}
	qty := (totalQty - unallocated).FloorZero()

	s := InventoryStock{
		PositionID:  positionID,
		Quantity:    qty,
		AverageCost: avg,
		TotalValue:  qty.Mul(avg),
		Lots:        breakdown,
	}
	if bare && e.cache != nil {
		e.cache.SetPosition(s)
	}
	return s, nil
}

// ListFIFOAvailableLots returns the position's lots with positive derived
// stock, ordered by ingress date ascending with lot id as tie-break. The
// ordering is the FIFO contract: deterministic for equal dates.
func (e *Engine) ListFIFOAvailableLots(ctx context.Context, positionID id.ID, asOf *time.Time) ([]AvailableLot, error) {
	asOf = e.ResolveCutoff(ctx, asOf)
	if _, err := e.repo.GetPosition(ctx, positionID); err != nil {
		return nil, err
	}

	lots, err := e.repo.ListLotsByPosition(ctx, positionID)
	if err != nil {
		return nil, err
	}

	available := make([]AvailableLot, 0, len(lots))
	for i := range lots {
		qty, err := e.replayLot(ctx, &lots[i], asOf)
		if err != nil {
			return nil, err
		}
		if !qty.IsPositive() {
			continue
		}
		available = append(available, AvailableLot{
			LotID:       lots[i].ID,
			Available:   qty,
			UnitCost:    lots[i].UnitCost,
			IngressDate: lots[i].IngressDate,
		})
	}

	sort.SliceStable(available, func(i, j int) bool {
		if !available[i].IngressDate.Equal(available[j].IngressDate) {
			return available[i].IngressDate.Before(available[j].IngressDate)
		}
		return id.Less(available[i].LotID, available[j].LotID)
	})
	return available, nil
}

// ComputeFIFOConsumption plans a greedy FIFO draw of needed units. It returns
// InsufficientStock, planning nothing, when the position cannot cover the
// full amount. The plan is a value; nothing is committed.
func (e *Engine) ComputeFIFOConsumption(ctx context.Context, positionID id.ID, needed types.Quantity, asOf *time.Time) ([]LotConsumption, error) {
	if !needed.IsPositive() {
		return nil, apperror.NewValidation("requested quantity must be positive")
	}

	lots, err := e.ListFIFOAvailableLots(ctx, positionID, asOf)
	if err != nil {
		return nil, err
	}

	var total types.Quantity
	for _, l := range lots {
		total += l.Available
	}
	if total < needed {
		return nil, apperror.NewInsufficientStock(positionID.String(), needed.String(), total.String())
	}

	plan := make([]LotConsumption, 0, len(lots))
	remaining := needed
	for _, l := range lots {
		if remaining.IsZero() {
			break
		}
		take := remaining.Min(l.Available)
		plan = append(plan, LotConsumption{
			LotID:    l.LotID,
			Quantity: take,
			UnitCost: l.UnitCost,
		})
		remaining -= take
	}
	return plan, nil
}

// ComputeAverageSaleCost returns the unit cost an exit of qty would be valued
// at under the given method. A dry run: no state changes under any method.
func (e *Engine) ComputeAverageSaleCost(ctx context.Context, positionID id.ID, qty types.Quantity, method inventory.ValuationMethod, asOf *time.Time) (types.Money, error) {
	if !qty.IsPositive() {
		return types.ZeroMoney(), apperror.NewValidation("quantity must be positive")
	}

	switch e.ResolveMethod(ctx, method) {
	case inventory.MethodFIFO:
		plan, err := e.ComputeFIFOConsumption(ctx, positionID, qty, asOf)
		if err != nil {
			return types.ZeroMoney(), err
		}
		total := types.ZeroMoney()
		for _, c := range plan {
			total = total.Add(c.Quantity.Mul(c.UnitCost))
		}
		return types.WeightedUnitCost(total, qty), nil

	default:
		stock, err := e.ComputeInventoryStock(ctx, positionID, asOf)
		if err != nil {
			return types.ZeroMoney(), err
		}
		return stock.AverageCost, nil
	}
}

// ResolveMethod returns the method if set, otherwise the tenant's configured
// method. Configuration failures are recovered locally: log a warning and
// default to WEIGHTED_AVERAGE. They never reach a caller.
func (e *Engine) ResolveMethod(ctx context.Context, method inventory.ValuationMethod) inventory.ValuationMethod {
	if method.IsValid() {
		return method
	}
	if e.config == nil {
		return inventory.MethodWeightedAverage
	}
	cfg, err := e.config.GetConfig(ctx)
	if err != nil {
		logger.Warn(ctx, "valuation config unavailable, defaulting to weighted average", "error", err)
		return inventory.MethodWeightedAverage
	}
	if !cfg.Method.IsValid() {
		return inventory.MethodWeightedAverage
	}
	return cfg.Method
}

// ResolveCutoff returns asOf when set, otherwise the configured period end.
// Configuration failures fall back to nil (current state) with a warning.
func (e *Engine) ResolveCutoff(ctx context.Context, asOf *time.Time) *time.Time {
	if asOf != nil {
		return asOf
	}
	if e.config == nil {
		return nil
	}
	cfg, err := e.config.GetConfig(ctx)
	if err != nil {
		logger.Warn(ctx, "period config unavailable, using current time as cutoff", "error", err)
		return nil
	}
	return cfg.PeriodEnd
}

// InvalidateAfterWrite drops cached figures for a position and its touched
// lots. Writers call it synchronously after committing.
func (e *Engine) InvalidateAfterWrite(positionID id.ID, lotIDs ...id.ID) {
	if e.cache == nil {
		return
	}
	e.cache.InvalidatePosition(positionID)
	for _, lotID := range lotIDs {
		e.cache.InvalidateLot(lotID)
	}
}
