package valuation

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
	"stokado/internal/domain/periods"
)

func qty(v float64) types.Quantity { return types.NewQuantityFromFloat64(v) }
func money(s string) types.Money   { return types.MustMoney(s) }

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

// seedLotWithEntry creates a lot plus a PROCESADO ENTRADA item carrying qty.
func seedLotWithEntry(r *inventorytest.Repo, posID id.ID, q types.Quantity, cost types.Money, d time.Time) id.ID {
	lotID := r.AddLot(posID, 0, cost, d)
	mvID := r.AddMovement(inventory.KindEntry, inventory.StateProcessed, d, "FC-001")
	r.AddItem(mvID, posID, lotID, q)
	return lotID
}

func TestComputeLotStock_ReplaysEntriesExitsAdjustments(t *testing.T) {
	repo := inventorytest.NewRepo()
	posID := repo.AddPosition()
	lotID := seedLotWithEntry(repo, posID, qty(100), money("10"), date(2025, 1, 10))

	// Exit of 30 allocated to the lot.
	exitID := repo.AddMovement(inventory.KindExit, inventory.StateProcessed, date(2025, 1, 15), "ND-002")
	itemID := repo.AddItem(exitID, posID, id.Nil, qty(30))
	repo.AddAllocation(itemID, lotID, qty(30), money("10"))

	// Adjustment of -5 on the lot.
	adjID := repo.AddMovement(inventory.KindAdjustment, inventory.StateProcessed, date(2025, 1, 20), "AJ-003")
	repo.AddItem(adjID, posID, lotID, qty(-5))

	engine := NewEngine(repo, nil, nil)
	stock, err := engine.ComputeLotStock(context.Background(), lotID, nil)
	require.NoError(t, err)
	assert.Equal(t, qty(65), stock.Quantity)
	assert.Equal(t, posID, stock.PositionID)
}

func TestComputeLotStock_IgnoresVoidedMovements(t *testing.T) {
	repo := inventorytest.NewRepo()
	posID := repo.AddPosition()
	lotID := seedLotWithEntry(repo, posID, qty(50), money("4"), date(2025, 2, 1))

	voided := repo.AddMovement(inventory.KindExit, inventory.StateVoided, date(2025, 2, 5), "ND-X")
	itemID := repo.AddItem(voided, posID, id.Nil, qty(50))
	repo.AddAllocation(itemID, lotID, qty(50), money("4"))

	engine := NewEngine(repo, nil, nil)
	stock, err := engine.ComputeLotStock(context.Background(), lotID, nil)
	require.NoError(t, err)
	assert.Equal(t, qty(50), stock.Quantity, "voided exit must not reduce stock")
}

func TestComputeLotStock_FlooredAtZero(t *testing.T) {
	repo := inventorytest.NewRepo()
	posID := repo.AddPosition()
	lotID := seedLotWithEntry(repo, posID, qty(10), money("2"), date(2025, 3, 1))

	exitID := repo.AddMovement(inventory.KindExit, inventory.StateProcessed, date(2025, 3, 2), "ND-9")
	itemID := repo.AddItem(exitID, posID, id.Nil, qty(25))
	repo.AddAllocation(itemID, lotID, qty(25), money("2"))

	engine := NewEngine(repo, nil, nil)
	stock, err := engine.ComputeLotStock(context.Background(), lotID, nil)
	require.NoError(t, err)
	assert.Equal(t, types.Quantity(0), stock.Quantity, "over-drawn lot reports zero, never negative")
}

func TestComputeLotStock_VirginLotFallback(t *testing.T) {
	repo := inventorytest.NewRepo()
	posID := repo.AddPosition()
	// Lot with stored initial quantity and no movements at all.
	lotID := repo.AddLot(posID, qty(40), money("7.5"), date(2025, 1, 5))

	engine := NewEngine(repo, nil, nil)

	stock, err := engine.ComputeLotStock(context.Background(), lotID, nil)
	require.NoError(t, err)
	assert.Equal(t, qty(40), stock.Quantity, "virgin lot falls back to stored initial quantity")

	// Date-bounded before ingress: the initial quantity is not yet in stock.
	before := date(2025, 1, 1)
	stock, err = engine.ComputeLotStock(context.Background(), lotID, &before)
	require.NoError(t, err)
	assert.Equal(t, types.Quantity(0), stock.Quantity)

	// On or after ingress it is.
	after := date(2025, 1, 5)
	stock, err = engine.ComputeLotStock(context.Background(), lotID, &after)
	require.NoError(t, err)
	assert.Equal(t, qty(40), stock.Quantity)
}

func TestComputeLotStock_VirginGateUsesInitialBalanceMovementDate(t *testing.T) {
	repo := inventorytest.NewRepo()
	posID := repo.AddPosition()

	// The initial-balance movement exists for the position (dated Jan 20) but
	// references another lot; the virgin lot's own ingress date is Jan 5.
	ibLot := repo.AddLot(posID, qty(10), money("1"), date(2025, 1, 20))
	ibMove := repo.AddMovement(inventory.KindEntry, inventory.StateProcessed, date(2025, 1, 20), inventory.InitialBalanceRef)
	repo.AddItem(ibMove, posID, ibLot, qty(10))

	virgin := repo.AddLot(posID, qty(40), money("2"), date(2025, 1, 5))

	engine := NewEngine(repo, nil, nil)
	asOf := date(2025, 1, 10)
	stock, err := engine.ComputeLotStock(context.Background(), virgin, &asOf)
	require.NoError(t, err)
	assert.Equal(t, types.Quantity(0), stock.Quantity,
		"initial-balance movement date overrides the lot ingress date as the gate")
}

func TestComputeLotStock_NotFound(t *testing.T) {
	repo := inventorytest.NewRepo()
	engine := NewEngine(repo, nil, nil)

	_, err := engine.ComputeLotStock(context.Background(), id.New(), nil)
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
}

func TestComputeLotStock_DateBounded(t *testing.T) {
	repo := inventorytest.NewRepo()
	posID := repo.AddPosition()
	lotID := seedLotWithEntry(repo, posID, qty(100), money("10"), date(2025, 1, 10))

	exitID := repo.AddMovement(inventory.KindExit, inventory.StateProcessed, date(2025, 1, 20), "ND-1")
	itemID := repo.AddItem(exitID, posID, id.Nil, qty(60))
	repo.AddAllocation(itemID, lotID, qty(60), money("10"))

	engine := NewEngine(repo, nil, nil)

	mid := date(2025, 1, 15)
	stock, err := engine.ComputeLotStock(context.Background(), lotID, &mid)
	require.NoError(t, err)
	assert.Equal(t, qty(100), stock.Quantity, "exit after asOf must be excluded")

	end := date(2025, 1, 31)
	stock, err = engine.ComputeLotStock(context.Background(), lotID, &end)
	require.NoError(t, err)
	assert.Equal(t, qty(40), stock.Quantity)
}

func TestComputeInventoryStock_WeightedAverage(t *testing.T) {
	repo := inventorytest.NewRepo()
	posID := repo.AddPosition()
	lot1 := seedLotWithEntry(repo, posID, qty(10), money("10"), date(2025, 1, 1))
	lot2 := seedLotWithEntry(repo, posID, qty(30), money("20"), date(2025, 1, 2))

	engine := NewEngine(repo, nil, nil)
	stock, err := engine.ComputeInventoryStock(context.Background(), posID, nil)
	require.NoError(t, err)

	assert.Equal(t, qty(40), stock.Quantity)
	// (10*10 + 30*20) / 40 = 17.5
	assert.True(t, stock.AverageCost.Equal(money("17.5")),
		"got %s", stock.AverageCost)
	assert.True(t, stock.TotalValue.Equal(money("700")), "got %s", stock.TotalValue)

	// The aggregate carries its positive-lot breakdown.
	require.Len(t, stock.Lots, 2)
	assert.Equal(t, lot1, stock.Lots[0].LotID)
	assert.Equal(t, qty(10), stock.Lots[0].Quantity)
	assert.True(t, stock.Lots[0].UnitCost.Equal(money("10")))
	assert.Equal(t, lot2, stock.Lots[1].LotID)
	assert.Equal(t, qty(30), stock.Lots[1].Quantity)
	assert.Equal(t, posID, stock.Lots[1].PositionID)
}

func TestComputeInventoryStock_EmptyPositionZeroCost(t *testing.T) {
	repo := inventorytest.NewRepo()
	posID := repo.AddPosition()

	engine := NewEngine(repo, nil, nil)
	stock, err := engine.ComputeInventoryStock(context.Background(), posID, nil)
	require.NoError(t, err)
	assert.True(t, stock.Quantity.IsZero())
	assert.True(t, stock.AverageCost.IsZero(), "zero stock yields zero average cost, not an error")
}

func TestComputeInventoryStock_SubtractsUnallocatedExits(t *testing.T) {
	repo := inventorytest.NewRepo()
	posID := repo.AddPosition()
	seedLotWithEntry(repo, posID, qty(50), money("8"), date(2025, 1, 1))

	// Legacy exit with no lot reference.
	exitID := repo.AddMovement(inventory.KindExit, inventory.StateProcessed, date(2025, 1, 10), "ND-L")
	itemID := repo.AddItem(exitID, posID, id.Nil, qty(12))
	repo.AddAllocation(itemID, id.Nil, qty(12), money("0"))

	engine := NewEngine(repo, nil, nil)
	stock, err := engine.ComputeInventoryStock(context.Background(), posID, nil)
	require.NoError(t, err)
	assert.Equal(t, qty(38), stock.Quantity)
}

func TestComputeInventoryStock_NegativeLotsExcludedFromAverage(t *testing.T) {
	repo := inventorytest.NewRepo()
	posID := repo.AddPosition()
	seedLotWithEntry(repo, posID, qty(10), money("10"), date(2025, 1, 1))

	// Second lot over-drawn to a floored zero.
	lot2 := seedLotWithEntry(repo, posID, qty(5), money("100"), date(2025, 1, 2))
	exitID := repo.AddMovement(inventory.KindExit, inventory.StateProcessed, date(2025, 1, 3), "ND-2")
	itemID := repo.AddItem(exitID, posID, id.Nil, qty(9))
	repo.AddAllocation(itemID, lot2, qty(9), money("100"))

	engine := NewEngine(repo, nil, nil)
	stock, err := engine.ComputeInventoryStock(context.Background(), posID, nil)
	require.NoError(t, err)
	assert.Equal(t, qty(10), stock.Quantity)
	assert.True(t, stock.AverageCost.Equal(money("10")),
		"exhausted lot must not drag the average; got %s", stock.AverageCost)
}

func TestListFIFOAvailableLots_OrderAndTieBreak(t *testing.T) {
	repo := inventorytest.NewRepo()
	posID := repo.AddPosition()

	sameDay := date(2025, 2, 1)
	lotB := seedLotWithEntry(repo, posID, qty(5), money("2"), sameDay)
	lotC := seedLotWithEntry(repo, posID, qty(5), money("3"), sameDay)
	lotA := seedLotWithEntry(repo, posID, qty(5), money("1"), date(2025, 1, 1))

	engine := NewEngine(repo, nil, nil)
	lots, err := engine.ListFIFOAvailableLots(context.Background(), posID, nil)
	require.NoError(t, err)
	require.Len(t, lots, 3)

	assert.Equal(t, lotA, lots[0].LotID, "oldest ingress first")
	// Same ingress date: ascending lot id (UUIDv7 creation order).
	assert.Equal(t, lotB, lots[1].LotID)
	assert.Equal(t, lotC, lots[2].LotID)

	// Rerun yields the identical order.
	again, err := engine.ListFIFOAvailableLots(context.Background(), posID, nil)
	require.NoError(t, err)
	assert.Equal(t, lots, again)
}

func TestComputeFIFOConsumption_GreedyWalk(t *testing.T) {
	repo := inventorytest.NewRepo()
	posID := repo.AddPosition()
	lot1 := seedLotWithEntry(repo, posID, qty(10), money("5"), date(2025, 1, 1))
	lot2 := seedLotWithEntry(repo, posID, qty(20), money("6"), date(2025, 1, 2))

	engine := NewEngine(repo, nil, nil)
	plan, err := engine.ComputeFIFOConsumption(context.Background(), posID, qty(15), nil)
	require.NoError(t, err)
	require.Len(t, plan, 2)

	assert.Equal(t, lot1, plan[0].LotID)
	assert.Equal(t, qty(10), plan[0].Quantity)
	assert.Equal(t, lot2, plan[1].LotID)
	assert.Equal(t, qty(5), plan[1].Quantity)
}

func TestComputeFIFOConsumption_InsufficientStock(t *testing.T) {
	repo := inventorytest.NewRepo()
	posID := repo.AddPosition()
	seedLotWithEntry(repo, posID, qty(10), money("5"), date(2025, 1, 1))

	engine := NewEngine(repo, nil, nil)
	plan, err := engine.ComputeFIFOConsumption(context.Background(), posID, qty(11), nil)
	require.Error(t, err)
	assert.True(t, apperror.IsInsufficientStock(err))
	assert.Nil(t, plan, "no partial plan on shortfall")
}

func TestComputeFIFOConsumption_ExactFit(t *testing.T) {
	repo := inventorytest.NewRepo()
	posID := repo.AddPosition()
	seedLotWithEntry(repo, posID, qty(10), money("5"), date(2025, 1, 1))

	engine := NewEngine(repo, nil, nil)
	plan, err := engine.ComputeFIFOConsumption(context.Background(), posID, qty(10), nil)
	require.NoError(t, err)
	require.Len(t, plan, 1)
	assert.Equal(t, qty(10), plan[0].Quantity)
}

func TestComputeAverageSaleCost_WeightedAverage(t *testing.T) {
	repo := inventorytest.NewRepo()
	posID := repo.AddPosition()
	seedLotWithEntry(repo, posID, qty(10), money("10"), date(2025, 1, 1))
	seedLotWithEntry(repo, posID, qty(10), money("20"), date(2025, 1, 2))

	engine := NewEngine(repo, nil, nil)
	cost, err := engine.ComputeAverageSaleCost(context.Background(), posID, qty(5), inventory.MethodWeightedAverage, nil)
	require.NoError(t, err)
	assert.True(t, cost.Equal(money("15")), "got %s", cost)
}

func TestComputeAverageSaleCost_FIFOIsDryRun(t *testing.T) {
	repo := inventorytest.NewRepo()
	posID := repo.AddPosition()
	seedLotWithEntry(repo, posID, qty(10), money("10"), date(2025, 1, 1))
	seedLotWithEntry(repo, posID, qty(10), money("20"), date(2025, 1, 2))

	engine := NewEngine(repo, nil, nil)

	// 15 units: 10 at 10 plus 5 at 20 → 200/15.
	cost, err := engine.ComputeAverageSaleCost(context.Background(), posID, qty(15), inventory.MethodFIFO, nil)
	require.NoError(t, err)
	expected := money("200").Div(qty(15).Decimal())
	assert.True(t, cost.Equal(expected), "got %s want %s", cost, expected)

	// Dry run: stock unchanged, a second identical call returns the same cost.
	stock, err := engine.ComputeInventoryStock(context.Background(), posID, nil)
	require.NoError(t, err)
	assert.Equal(t, qty(20), stock.Quantity)

	cost2, err := engine.ComputeAverageSaleCost(context.Background(), posID, qty(15), inventory.MethodFIFO, nil)
	require.NoError(t, err)
	assert.True(t, cost.Equal(cost2))
}

func TestBareQueriesBoundedByConfiguredPeriodEnd(t *testing.T) {
	repo := inventorytest.NewRepo()
	posID := repo.AddPosition()
	lotID := seedLotWithEntry(repo, posID, qty(100), money("10"), date(2025, 1, 10))

	// Exit dated after the open period's end.
	exitID := repo.AddMovement(inventory.KindExit, inventory.StateProcessed, date(2025, 1, 20), "ND-1")
	itemID := repo.AddItem(exitID, posID, id.Nil, qty(60))
	repo.AddAllocation(itemID, lotID, qty(60), money("10"))

	periodEnd := date(2025, 1, 15)
	engine := NewEngine(repo, nil, periods.Static{Cfg: periods.Config{PeriodEnd: &periodEnd}})
	ctx := context.Background()

	lotStock, err := engine.ComputeLotStock(ctx, lotID, nil)
	require.NoError(t, err)
	assert.Equal(t, qty(100), lotStock.Quantity,
		"bare lot query must exclude movements past the period end")

	posStock, err := engine.ComputeInventoryStock(ctx, posID, nil)
	require.NoError(t, err)
	assert.Equal(t, qty(100), posStock.Quantity)

	lots, err := engine.ListFIFOAvailableLots(ctx, posID, nil)
	require.NoError(t, err)
	require.Len(t, lots, 1)
	assert.Equal(t, qty(100), lots[0].Available)

	// An explicit asOf overrides the configured period end.
	later := date(2025, 1, 31)
	lotStock, err = engine.ComputeLotStock(ctx, lotID, &later)
	require.NoError(t, err)
	assert.Equal(t, qty(40), lotStock.Quantity)
}

func TestResolveMethod_FallsBackOnConfigFailure(t *testing.T) {
	repo := inventorytest.NewRepo()
	engine := NewEngine(repo, nil, failingProvider{})

	m := engine.ResolveMethod(context.Background(), "")
	assert.Equal(t, inventory.MethodWeightedAverage, m,
		"config failure is recovered locally, never surfaced")
}

func TestResolveMethod_UsesConfiguredMethod(t *testing.T) {
	repo := inventorytest.NewRepo()
	engine := NewEngine(repo, nil, periods.Static{Cfg: periods.Config{Method: inventory.MethodFIFO}})

	assert.Equal(t, inventory.MethodFIFO, engine.ResolveMethod(context.Background(), ""))
	// Explicit method wins over configuration.
	assert.Equal(t, inventory.MethodWeightedAverage,
		engine.ResolveMethod(context.Background(), inventory.MethodWeightedAverage))
}

type failingProvider struct{}

func (failingProvider) GetConfig(context.Context) (periods.Config, error) {
	return periods.Config{}, assert.AnError
}

func TestCacheLifecycle(t *testing.T) {
	repo := inventorytest.NewRepo()
	posID := repo.AddPosition()
	lotID := seedLotWithEntry(repo, posID, qty(100), money("10"), date(2025, 1, 1))

	cache := NewStockCache(DefaultCacheTTL)
	engine := NewEngine(repo, cache, nil)
	ctx := context.Background()

	// Bare query populates the cache.
	_, err := engine.ComputeLotStock(ctx, lotID, nil)
	require.NoError(t, err)
	_, ok := cache.GetLot(lotID)
	assert.True(t, ok)

	_, err = engine.ComputeInventoryStock(ctx, posID, nil)
	require.NoError(t, err)
	_, ok = cache.GetPosition(posID)
	assert.True(t, ok)

	// Date-bounded queries bypass and never overwrite the cache.
	asOf := date(2024, 12, 31)
	bounded, err := engine.ComputeLotStock(ctx, lotID, &asOf)
	require.NoError(t, err)
	assert.True(t, bounded.Quantity.IsZero())
	cached, ok := cache.GetLot(lotID)
	require.True(t, ok)
	assert.Equal(t, qty(100), cached.Quantity, "bounded query must not poison the cache")

	// Invalidation drops both granularities.
	engine.InvalidateAfterWrite(posID, lotID)
	_, ok = cache.GetLot(lotID)
	assert.False(t, ok)
	_, ok = cache.GetPosition(posID)
	assert.False(t, ok)
}

func TestCacheServesRepeatReads(t *testing.T) {
	repo := inventorytest.NewRepo()
	posID := repo.AddPosition()
	lotID := seedLotWithEntry(repo, posID, qty(10), money("3"), date(2025, 1, 1))

	cache := NewStockCache(DefaultCacheTTL)
	engine := NewEngine(repo, cache, nil)
	ctx := context.Background()

	first, err := engine.ComputeLotStock(ctx, lotID, nil)
	require.NoError(t, err)

	// Storage failure after priming: the cached figure still serves.
	repo.Err = assert.AnError
	second, err := engine.ComputeLotStock(ctx, lotID, nil)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
