package kardex

import (
	"context"
	"time"

	"stokado/internal/core/apperror"
	"stokado/internal/core/id"
	"stokado/internal/core/types"
	"stokado/internal/domain/inventory"
	"stokado/internal/domain/valuation"
	"stokado/pkg/logger"
)

// Generator builds Kardex reports by replaying the ledger.
type Generator struct {
	repo   inventory.LedgerRepository
	engine *valuation.Engine
}

func NewGenerator(repo inventory.LedgerRepository, engine *valuation.Engine) *Generator {
	return &Generator{repo: repo, engine: engine}
}

// replayState carries the running balance through the replay. FIFO mode also
// carries the call-private working lot set; it is never shared or persisted.
type replayState struct {
	qty     types.Quantity
	value   types.Money
	working []valuation.AvailableLot
}

func (st *replayState) avg() types.Money {
	return types.WeightedUnitCost(st.value, st.qty)
}

// add applies an inbound quantity at a cost.
func (st *replayState) add(q types.Quantity, cost types.Money) {
	st.qty += q
	st.value = st.value.Add(q.Mul(cost))
}

// addWorking credits an inbound quantity to the lot's working entry, creating
// one at the tail when the lot is not in the set. A lot already present keeps
// its position, so its earlier FIFO slot absorbs the added quantity. Lotless
// rows always open a new tranche.
func (st *replayState) addWorking(lotID id.ID, q types.Quantity, cost types.Money, date time.Time) {
	if !id.IsNil(lotID) {
		for i := range st.working {
			if st.working[i].LotID == lotID {
				st.working[i].Available += q
				return
			}
		}
	}
	st.working = append(st.working, valuation.AvailableLot{
		LotID:       lotID,
		Available:   q,
		UnitCost:    cost,
		IngressDate: date,
	})
}

// subtract applies an outbound quantity at a cost, flooring both balance
// figures at zero. An emptied position carries zero value.
func (st *replayState) subtract(q types.Quantity, cost types.Money) {
	st.qty = (st.qty - q).FloorZero()
	if st.qty.IsZero() {
		st.value = types.ZeroMoney()
		return
	}
	st.value = types.FloorZeroMoney(st.value.Sub(q.Mul(cost)))
}

// Generate builds the report for [from, to] under the given method.
//
// The opening balance is the position state at the instant before the period
// (from minus one day, 23:59:59.999), floored to zero. Replay walks PROCESADO items
// in (date, movement id) order. A dangling lot reference degrades its line to
// zero cost so a report always completes.
func (g *Generator) Generate(ctx context.Context, positionID id.ID, from, to time.Time, method inventory.ValuationMethod) (*Report, error) {
	if to.Before(from) {
		return nil, apperror.NewValidation("report range is inverted")
	}
	method = g.engine.ResolveMethod(ctx, method)

	if _, err := g.repo.GetPosition(ctx, positionID); err != nil {
		return nil, err
	}

	openingAt := openingCutoff(from)
	opening, st, err := g.loadOpening(ctx, positionID, openingAt, method)
	if err != nil {
		return nil, err
	}

	ledger, err := g.repo.ListLedgerRows(ctx, positionID, from, to)
	if err != nil {
		return nil, err
	}

	rows := make([]Row, 0, len(ledger))
	for i := range ledger {
		rows = g.replayRow(ctx, rows, &ledger[i], method, st)
	}

	report := &Report{
		PositionID: positionID,
		From:       from,
		To:         to,
		Method:     method,
		Opening:    opening,
		Rows:       rows,
		Final: Balance{
			Quantity: st.qty,
			UnitCost: st.avg(),
			Value:    st.value,
		},
	}
	return report, nil
}

// openingCutoff is the last instant of the day before from.
func openingCutoff(from time.Time) time.Time {
	y, m, d := from.Date()
	return time.Date(y, m, d, 23, 59, 59, 999_000_000, from.Location()).AddDate(0, 0, -1)
}

func (g *Generator) loadOpening(ctx context.Context, positionID id.ID, at time.Time, method inventory.ValuationMethod) (Opening, *replayState, error) {
	stock, err := g.engine.ComputeInventoryStock(ctx, positionID, &at)
	if err != nil {
		return Opening{}, nil, err
	}

	qty := stock.Quantity.FloorZero()
	cost := stock.AverageCost
	value := qty.Mul(cost)
	if qty.IsZero() {
		cost = types.ZeroMoney()
		value = types.ZeroMoney()
	}

	st := &replayState{qty: qty, value: value}
	if method == inventory.MethodFIFO {
		working, err := g.engine.ListFIFOAvailableLots(ctx, positionID, &at)
		if err != nil {
			return Opening{}, nil, err
		}
		st.working = working
	}

	return Opening{Date: at, Quantity: qty, UnitCost: cost, Value: value}, st, nil
}

// replayRow appends the report rows for one ledger row and advances the state.
func (g *Generator) replayRow(ctx context.Context, rows []Row, lr *inventory.LedgerRow, method inventory.ValuationMethod, st *replayState) []Row {
	switch lr.Kind {
	case inventory.KindEntry:
		return append(rows, g.entryRow(ctx, lr, lr.Quantity, st))

	case inventory.KindExit:
		return g.exitRows(rows, lr, lr.Quantity, method, st)

	case inventory.KindAdjustment:
		// The item's sign alone decides the treatment: positive replays as
		// an entry, negative as an exit of the absolute value.
		if lr.Quantity.IsNegative() {
			return g.exitRows(rows, lr, lr.Quantity.Abs(), method, st)
		}
		return append(rows, g.entryRow(ctx, lr, lr.Quantity, st))

	default:
		logger.Warn(ctx, "kardex: unknown movement kind skipped",
			"kind", lr.Kind, "movement", lr.MovementID)
		return rows
	}
}

func (g *Generator) entryRow(ctx context.Context, lr *inventory.LedgerRow, q types.Quantity, st *replayState) Row {
	cost := types.ZeroMoney()
	switch {
	case !id.IsNil(lr.LotID):
		lot, err := g.repo.GetLot(ctx, lr.LotID)
		if err != nil {
			// Dangling reference: the line degrades to zero cost.
			logger.Warn(ctx, "kardex: lot reference unresolved, line costed at zero",
				"lot", lr.LotID, "movement", lr.MovementID)
		} else {
			cost = lot.UnitCost
		}
	case lr.Kind == inventory.KindAdjustment:
		// Positive adjustment without a lot: valued at the running average.
		cost = st.avg()
	}

	st.add(q, cost)
	if st.working != nil {
		st.addWorking(lr.LotID, q, cost, lr.Date)
	}

	return Row{
		Date:         lr.Date,
		Number:       lr.Number,
		DocumentRef:  lr.DocumentRef,
		Kind:         lr.Kind,
		Direction:    DirIn,
		LotID:        lr.LotID,
		Quantity:     q,
		UnitCost:     cost,
		Total:        q.Mul(cost),
		BalanceQty:   st.qty,
		BalanceValue: st.value,
	}
}

func (g *Generator) exitRows(rows []Row, lr *inventory.LedgerRow, q types.Quantity, method inventory.ValuationMethod, st *replayState) []Row {
	if method != inventory.MethodFIFO {
		// Weighted average: one row, cost locked at the pre-exit average.
		cost := st.avg()
		st.subtract(q, cost)
		return append(rows, Row{
			Date:         lr.Date,
			Number:       lr.Number,
			DocumentRef:  lr.DocumentRef,
			Kind:         lr.Kind,
			Direction:    DirOut,
			Quantity:     q,
			UnitCost:     cost,
			Total:        q.Mul(cost),
			BalanceQty:   st.qty,
			BalanceValue: st.value,
		})
	}

	// FIFO: fan out one row per lot consumed from the working set.
	remaining := q
	for remaining.IsPositive() && len(st.working) > 0 {
		head := &st.working[0]
		take := remaining.Min(head.Available)
		st.subtract(take, head.UnitCost)
		rows = append(rows, Row{
			Date:         lr.Date,
			Number:       lr.Number,
			DocumentRef:  lr.DocumentRef,
			Kind:         lr.Kind,
			Direction:    DirOut,
			LotID:        head.LotID,
			Quantity:     take,
			UnitCost:     head.UnitCost,
			Total:        take.Mul(head.UnitCost),
			BalanceQty:   st.qty,
			BalanceValue: st.value,
		})
		remaining -= take
		head.Available -= take
		if head.Available.IsZero() {
			st.working = st.working[1:]
		}
	}

	if remaining.IsPositive() {
		// The ledger over-draws the working set (legacy data). The remainder
		// reports at zero cost so the report still completes.
		st.subtract(remaining, types.ZeroMoney())
		rows = append(rows, Row{
			Date:         lr.Date,
			Number:       lr.Number,
			DocumentRef:  lr.DocumentRef,
			Kind:         lr.Kind,
			Direction:    DirOut,
			Quantity:     remaining,
			UnitCost:     types.ZeroMoney(),
			Total:        types.ZeroMoney(),
			BalanceQty:   st.qty,
			BalanceValue: st.value,
		})
	}
	return rows
}
