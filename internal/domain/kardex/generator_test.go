package kardex

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stokado/internal/core/apperror"
	"stokado/internal/core/id"
	"stokado/internal/core/types"
	"stokado/internal/domain/inventory"
	"stokado/internal/domain/inventory/inventorytest"
	"stokado/internal/domain/valuation"
)

func qty(v float64) types.Quantity { return types.NewQuantityFromFloat64(v) }
func money(s string) types.Money   { return types.MustMoney(s) }

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func newGenerator(repo *inventorytest.Repo) *Generator {
	return NewGenerator(repo, valuation.NewEngine(repo, nil, nil))
}

// seedEntry records a lot and its ENTRADA item, returning the lot id.
func seedEntry(r *inventorytest.Repo, posID id.ID, q types.Quantity, cost types.Money, d time.Time, ref string) id.ID {
	lotID := r.AddLot(posID, 0, cost, d)
	mvID := r.AddMovement(inventory.KindEntry, inventory.StateProcessed, d, ref)
	r.AddItem(mvID, posID, lotID, q)
	return lotID
}

// seedExit records a SALIDA item with a single allocation.
func seedExit(r *inventorytest.Repo, posID, lotID id.ID, q types.Quantity, cost types.Money, d time.Time, ref string) {
	mvID := r.AddMovement(inventory.KindExit, inventory.StateProcessed, d, ref)
	itemID := r.AddItem(mvID, posID, id.Nil, q)
	r.AddAllocation(itemID, lotID, q, cost)
}

func TestGenerate_OpeningBalanceBeforePeriod(t *testing.T) {
	repo := inventorytest.NewRepo()
	posID := repo.AddPosition()

	// January activity feeds the opening; February is the report window.
	seedEntry(repo, posID, qty(100), money("10"), date(2025, 1, 10), "ENT-1")
	seedEntry(repo, posID, qty(20), money("15"), date(2025, 2, 5), "ENT-2")

	g := newGenerator(repo)
	report, err := g.Generate(context.Background(), posID,
		date(2025, 2, 1), date(2025, 2, 28), inventory.MethodWeightedAverage)
	require.NoError(t, err)

	assert.Equal(t, qty(100), report.Opening.Quantity)
	assert.True(t, report.Opening.UnitCost.Equal(money("10")))
	assert.True(t, report.Opening.Value.Equal(money("1000")))
	// The opening instant is the last millisecond of the prior day.
	assert.Equal(t, time.Date(2025, 1, 31, 23, 59, 59, 999_000_000, time.UTC), report.Opening.Date)

	require.Len(t, report.Rows, 1, "only February movements replay as rows")
	assert.Equal(t, qty(20), report.Rows[0].Quantity)
}

func TestGenerate_EmptyHistoryZeroOpening(t *testing.T) {
	repo := inventorytest.NewRepo()
	posID := repo.AddPosition()

	g := newGenerator(repo)
	report, err := g.Generate(context.Background(), posID,
		date(2025, 1, 1), date(2025, 1, 31), inventory.MethodFIFO)
	require.NoError(t, err)

	assert.True(t, report.Opening.Quantity.IsZero())
	assert.True(t, report.Opening.Value.IsZero())
	assert.Empty(t, report.Rows)
	assert.True(t, report.Final.Quantity.IsZero())
	assert.True(t, report.Final.Value.IsZero())
}

func TestGenerate_PositionNotFound(t *testing.T) {
	g := newGenerator(inventorytest.NewRepo())
	_, err := g.Generate(context.Background(), id.New(),
		date(2025, 1, 1), date(2025, 1, 31), inventory.MethodFIFO)
	assert.True(t, apperror.IsNotFound(err))
}

func TestGenerate_WeightedAverageLocksPreExitCost(t *testing.T) {
	repo := inventorytest.NewRepo()
	posID := repo.AddPosition()

	lot1 := seedEntry(repo, posID, qty(10), money("10"), date(2025, 1, 5), "ENT-1")
	seedEntry(repo, posID, qty(10), money("20"), date(2025, 1, 10), "ENT-2")
	seedExit(repo, posID, lot1, qty(4), money("10"), date(2025, 1, 20), "SAL-1")

	g := newGenerator(repo)
	report, err := g.Generate(context.Background(), posID,
		date(2025, 1, 1), date(2025, 1, 31), inventory.MethodWeightedAverage)
	require.NoError(t, err)
	require.Len(t, report.Rows, 3)

	exit := report.Rows[2]
	assert.Equal(t, DirOut, exit.Direction)
	// Pre-exit average: (10*10 + 10*20) / 20 = 15.
	assert.True(t, exit.UnitCost.Equal(money("15")), "got %s", exit.UnitCost)
	assert.Equal(t, qty(16), exit.BalanceQty)
	assert.True(t, exit.BalanceValue.Equal(money("240")), "got %s", exit.BalanceValue)

	assert.Equal(t, report.Rows[2].BalanceQty, report.Final.Quantity,
		"final balance is the last row's balance")
}

func TestGenerate_FIFOExitFansOutPerLot(t *testing.T) {
	repo := inventorytest.NewRepo()
	posID := repo.AddPosition()

	lot1 := seedEntry(repo, posID, qty(10), money("10"), date(2025, 1, 5), "ENT-1")
	lot2 := seedEntry(repo, posID, qty(10), money("20"), date(2025, 1, 10), "ENT-2")
	seedExit(repo, posID, lot1, qty(14), money("10"), date(2025, 1, 20), "SAL-1")

	g := newGenerator(repo)
	report, err := g.Generate(context.Background(), posID,
		date(2025, 1, 1), date(2025, 1, 31), inventory.MethodFIFO)
	require.NoError(t, err)

	// Two entries plus the exit split across both lots.
	require.Len(t, report.Rows, 4)

	first, second := report.Rows[2], report.Rows[3]
	assert.Equal(t, lot1, first.LotID)
	assert.Equal(t, qty(10), first.Quantity)
	assert.True(t, first.UnitCost.Equal(money("10")))

	assert.Equal(t, lot2, second.LotID)
	assert.Equal(t, qty(4), second.Quantity)
	assert.True(t, second.UnitCost.Equal(money("20")))

	assert.Equal(t, qty(6), report.Final.Quantity)
	assert.True(t, report.Final.Value.Equal(money("120")), "got %s", report.Final.Value)
}

func TestGenerate_FIFOAdjustmentKeepsLotOrder(t *testing.T) {
	repo := inventorytest.NewRepo()
	posID := repo.AddPosition()

	lotA := seedEntry(repo, posID, qty(10), money("5"), date(2025, 1, 1), "ENT-1")
	lotB := seedEntry(repo, posID, qty(10), money("8"), date(2025, 1, 2), "ENT-2")

	// A later positive adjustment tops up lot A; the extra units belong to
	// A's original FIFO slot, not to a new tranche behind lot B.
	adjUp := repo.AddMovement(inventory.KindAdjustment, inventory.StateProcessed, date(2025, 1, 3), "AJ-1")
	repo.AddItem(adjUp, posID, lotA, qty(5))

	seedExit(repo, posID, lotA, qty(16), money("5"), date(2025, 1, 4), "SAL-1")

	g := newGenerator(repo)
	report, err := g.Generate(context.Background(), posID,
		date(2025, 1, 1), date(2025, 1, 31), inventory.MethodFIFO)
	require.NoError(t, err)

	// Two entries, the adjustment, and the exit split across both lots.
	require.Len(t, report.Rows, 5)

	first, second := report.Rows[3], report.Rows[4]
	assert.Equal(t, lotA, first.LotID)
	assert.Equal(t, qty(15), first.Quantity, "lot A drains fully, adjustment included, before lot B")
	assert.True(t, first.UnitCost.Equal(money("5")))

	assert.Equal(t, lotB, second.LotID)
	assert.Equal(t, qty(1), second.Quantity)
	assert.True(t, second.UnitCost.Equal(money("8")))

	assert.Equal(t, qty(9), report.Final.Quantity)
	assert.True(t, report.Final.Value.Equal(money("72")), "got %s", report.Final.Value)
}

func TestGenerate_AdjustmentSignRule(t *testing.T) {
	repo := inventorytest.NewRepo()
	posID := repo.AddPosition()

	lotID := seedEntry(repo, posID, qty(10), money("10"), date(2025, 1, 5), "ENT-1")

	// Positive adjustment referencing the lot replays as an entry at lot cost.
	adjUp := repo.AddMovement(inventory.KindAdjustment, inventory.StateProcessed, date(2025, 1, 10), "AJ-1")
	repo.AddItem(adjUp, posID, lotID, qty(5))

	// Negative adjustment replays as an exit of the absolute value.
	adjDown := repo.AddMovement(inventory.KindAdjustment, inventory.StateProcessed, date(2025, 1, 15), "AJ-2")
	repo.AddItem(adjDown, posID, lotID, qty(-3))

	g := newGenerator(repo)
	report, err := g.Generate(context.Background(), posID,
		date(2025, 1, 1), date(2025, 1, 31), inventory.MethodWeightedAverage)
	require.NoError(t, err)
	require.Len(t, report.Rows, 3)

	up := report.Rows[1]
	assert.Equal(t, inventory.KindAdjustment, up.Kind)
	assert.Equal(t, DirIn, up.Direction)
	assert.Equal(t, qty(5), up.Quantity)
	assert.True(t, up.UnitCost.Equal(money("10")), "positive adjustment valued at lot cost")
	assert.Equal(t, qty(15), up.BalanceQty)

	down := report.Rows[2]
	assert.Equal(t, inventory.KindAdjustment, down.Kind)
	assert.Equal(t, DirOut, down.Direction)
	assert.Equal(t, qty(3), down.Quantity, "magnitude, not the stored sign")
	assert.Equal(t, qty(12), down.BalanceQty)
}

func TestGenerate_DanglingLotDegradesToZeroCost(t *testing.T) {
	repo := inventorytest.NewRepo()
	posID := repo.AddPosition()

	// ENTRADA item pointing at a lot id that does not resolve.
	mvID := repo.AddMovement(inventory.KindEntry, inventory.StateProcessed, date(2025, 1, 5), "ENT-X")
	repo.AddItem(mvID, posID, id.New(), qty(10))

	g := newGenerator(repo)
	report, err := g.Generate(context.Background(), posID,
		date(2025, 1, 1), date(2025, 1, 31), inventory.MethodWeightedAverage)
	require.NoError(t, err, "a broken reference must not abort the report")
	require.Len(t, report.Rows, 1)

	assert.True(t, report.Rows[0].UnitCost.IsZero())
	assert.Equal(t, qty(10), report.Rows[0].BalanceQty)
	assert.True(t, report.Rows[0].BalanceValue.IsZero())
}

func TestGenerate_VoidedMovementsExcluded(t *testing.T) {
	repo := inventorytest.NewRepo()
	posID := repo.AddPosition()

	seedEntry(repo, posID, qty(10), money("10"), date(2025, 1, 5), "ENT-1")
	lotID := repo.AddLot(posID, 0, money("99"), date(2025, 1, 6))
	voided := repo.AddMovement(inventory.KindEntry, inventory.StateVoided, date(2025, 1, 6), "ENT-V")
	repo.AddItem(voided, posID, lotID, qty(50))

	g := newGenerator(repo)
	report, err := g.Generate(context.Background(), posID,
		date(2025, 1, 1), date(2025, 1, 31), inventory.MethodWeightedAverage)
	require.NoError(t, err)
	require.Len(t, report.Rows, 1)
	assert.Equal(t, qty(10), report.Final.Quantity)
}

func TestGenerate_BalanceContinuity(t *testing.T) {
	repo := inventorytest.NewRepo()
	posID := repo.AddPosition()

	lot1 := seedEntry(repo, posID, qty(10), money("10"), date(2025, 1, 2), "ENT-1")
	seedEntry(repo, posID, qty(5), money("12"), date(2025, 1, 3), "ENT-2")
	seedExit(repo, posID, lot1, qty(7), money("10"), date(2025, 1, 4), "SAL-1")
	seedExit(repo, posID, lot1, qty(3), money("10"), date(2025, 1, 5), "SAL-2")

	g := newGenerator(repo)
	report, err := g.Generate(context.Background(), posID,
		date(2025, 1, 1), date(2025, 1, 31), inventory.MethodFIFO)
	require.NoError(t, err)

	// Each row's balance equals the previous balance adjusted by the row.
	prev := report.Opening.Quantity
	for i, row := range report.Rows {
		expected := prev + row.Quantity
		if row.Direction == DirOut {
			expected = (prev - row.Quantity).FloorZero()
		}
		assert.Equal(t, expected, row.BalanceQty, "row %d breaks balance continuity", i)
		prev = row.BalanceQty
	}
	assert.Equal(t, prev, report.Final.Quantity)
}

func TestGenerate_InvertedRange(t *testing.T) {
	repo := inventorytest.NewRepo()
	posID := repo.AddPosition()

	g := newGenerator(repo)
	_, err := g.Generate(context.Background(), posID,
		date(2025, 2, 1), date(2025, 1, 1), inventory.MethodFIFO)
	assert.Error(t, err)
}

func TestRender_Reproducible(t *testing.T) {
	repo := inventorytest.NewRepo()
	posID := repo.AddPosition()
	lot1 := seedEntry(repo, posID, qty(3.5), money("10.123456789"), date(2025, 1, 2), "ENT-1")
	seedExit(repo, posID, lot1, qty(1.25), money("10.123456789"), date(2025, 1, 3), "SAL-1")

	g := newGenerator(repo)
	ctx := context.Background()

	first, err := g.Generate(ctx, posID, date(2025, 1, 1), date(2025, 1, 31), inventory.MethodFIFO)
	require.NoError(t, err)
	second, err := g.Generate(ctx, posID, date(2025, 1, 1), date(2025, 1, 31), inventory.MethodFIFO)
	require.NoError(t, err)

	assert.Equal(t, first.Render(), second.Render(), "two runs over the same ledger render identically")
}

func TestRender_FixedPrecision(t *testing.T) {
	repo := inventorytest.NewRepo()
	posID := repo.AddPosition()
	seedEntry(repo, posID, qty(3.5), money("10.1"), date(2025, 1, 2), "ENT-1")

	g := newGenerator(repo)
	report, err := g.Generate(context.Background(), posID,
		date(2025, 1, 1), date(2025, 1, 31), inventory.MethodWeightedAverage)
	require.NoError(t, err)

	rendered := report.Render()
	assert.Equal(t, "0.0000", rendered.OpeningQty, "quantities carry exactly 4 decimals")
	assert.Equal(t, "0.00000000", rendered.OpeningValue, "money carries exactly 8 decimals")
	require.Len(t, rendered.Rows, 1)
	assert.Equal(t, "3.5000", rendered.Rows[0].Quantity)
	assert.Equal(t, "10.10000000", rendered.Rows[0].UnitCost)
	assert.Equal(t, "35.35000000", rendered.Rows[0].Total)
	assert.Equal(t, "35.35000000", rendered.FinalValue)
}
