package movements

import (
	"context"
	"fmt"
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

type passTx struct{}

func (passTx) RunInTransaction(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

type fakeNumerator struct{ n int }

func (f *fakeNumerator) Next(_ context.Context, sequence string) (string, error) {
	f.n++
	return fmt.Sprintf("%s-%06d", sequence, f.n), nil
}

func qty(v float64) types.Quantity { return types.NewQuantityFromFloat64(v) }
func money(s string) types.Money   { return types.MustMoney(s) }

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func newService(repo *inventorytest.Repo, cache *valuation.StockCache) (*Service, *valuation.Engine) {
	engine := valuation.NewEngine(repo, cache, nil)
	return NewService(repo, engine, passTx{}, &fakeNumerator{}, nil), engine
}

func TestCreateLotAndEntryMovement(t *testing.T) {
	repo := inventorytest.NewRepo()
	posID := repo.AddPosition()
	svc, engine := newService(repo, nil)
	ctx := context.Background()

	lot, err := svc.CreateLotAndEntryMovement(ctx, posID, qty(100), money("12.5"), date(2025, 1, 1))
	require.NoError(t, err)
	assert.Equal(t, qty(100), lot.InitialQty, "initial-balance lot stores its quantity")

	movements := repo.Movements()
	require.Len(t, movements, 1)
	assert.Equal(t, inventory.InitialBalanceRef, movements[0].DocumentRef)
	assert.Equal(t, inventory.KindEntry, movements[0].Kind)

	items := repo.Items()
	require.Len(t, items, 1)
	assert.Equal(t, lot.ID, items[0].LotID)
	assert.Equal(t, qty(100), items[0].Quantity)

	stock, err := engine.ComputeInventoryStock(ctx, posID, nil)
	require.NoError(t, err)
	assert.Equal(t, qty(100), stock.Quantity)
}

func TestCreateLotAndEntryMovement_Validation(t *testing.T) {
	repo := inventorytest.NewRepo()
	posID := repo.AddPosition()
	svc, _ := newService(repo, nil)
	ctx := context.Background()

	_, err := svc.CreateLotAndEntryMovement(ctx, posID, qty(0), money("1"), date(2025, 1, 1))
	assert.Error(t, err, "zero quantity rejected")

	_, err = svc.CreateLotAndEntryMovement(ctx, posID, qty(5), money("-1"), date(2025, 1, 1))
	assert.Error(t, err, "negative cost rejected")

	_, err = svc.CreateLotAndEntryMovement(ctx, id.New(), qty(5), money("1"), date(2025, 1, 1))
	assert.True(t, apperror.IsNotFound(err))
}

func TestCreateLotAndEntryMovement_RejectsSecondInitialBalance(t *testing.T) {
	repo := inventorytest.NewRepo()
	posID := repo.AddPosition()
	svc, _ := newService(repo, nil)
	ctx := context.Background()

	_, err := svc.CreateLotAndEntryMovement(ctx, posID, qty(10), money("1"), date(2025, 1, 1))
	require.NoError(t, err)

	_, err = svc.CreateLotAndEntryMovement(ctx, posID, qty(20), money("2"), date(2025, 1, 2))
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeDuplicate, appErr.Code)
}

func TestProcessDocumentLines_Purchase(t *testing.T) {
	repo := inventorytest.NewRepo()
	posID := repo.AddPosition()
	svc, engine := newService(repo, nil)
	ctx := context.Background()

	result, err := svc.ProcessDocumentLines(ctx, []DocumentLine{
		{PositionID: posID, Quantity: qty(10), UnitPrice: money("4")},
	}, OpPurchase, inventory.MethodWeightedAverage, date(2025, 1, 5))
	require.NoError(t, err)
	require.Len(t, result.Lines, 1)
	assert.True(t, result.Lines[0].UnitCost.Equal(money("4")))

	// The purchase lot stores zero initial quantity; stock flows through the item.
	lotID := result.Lines[0].Lots[0].LotID
	storedLot, err := repo.GetLot(ctx, lotID)
	require.NoError(t, err)
	assert.True(t, storedLot.InitialQty.IsZero())

	stock, err := engine.ComputeInventoryStock(ctx, posID, nil)
	require.NoError(t, err)
	assert.Equal(t, qty(10), stock.Quantity)
	assert.True(t, stock.AverageCost.Equal(money("4")))
}

func TestProcessDocumentLines_SaleWeightedAverageCostFIFODepletion(t *testing.T) {
	repo := inventorytest.NewRepo()
	posID := repo.AddPosition()
	svc, engine := newService(repo, nil)
	ctx := context.Background()

	_, err := svc.ProcessDocumentLines(ctx, []DocumentLine{
		{PositionID: posID, Quantity: qty(10), UnitPrice: money("10")},
	}, OpPurchase, inventory.MethodWeightedAverage, date(2025, 1, 1))
	require.NoError(t, err)
	_, err = svc.ProcessDocumentLines(ctx, []DocumentLine{
		{PositionID: posID, Quantity: qty(10), UnitPrice: money("20")},
	}, OpPurchase, inventory.MethodWeightedAverage, date(2025, 1, 2))
	require.NoError(t, err)

	result, err := svc.ProcessDocumentLines(ctx, []DocumentLine{
		{PositionID: posID, Quantity: qty(12)},
	}, OpSale, inventory.MethodWeightedAverage, date(2025, 1, 10))
	require.NoError(t, err)
	require.Len(t, result.Lines, 1)

	// Costing is weighted average (15), depletion is physical FIFO:
	// 10 from the first lot, 2 from the second.
	assert.True(t, result.Lines[0].UnitCost.Equal(money("15")),
		"got %s", result.Lines[0].UnitCost)
	require.Len(t, result.Lines[0].Lots, 2)
	assert.Equal(t, qty(10), result.Lines[0].Lots[0].Quantity)
	assert.Equal(t, qty(2), result.Lines[0].Lots[1].Quantity)

	stock, err := engine.ComputeInventoryStock(ctx, posID, nil)
	require.NoError(t, err)
	assert.Equal(t, qty(8), stock.Quantity)
	assert.True(t, stock.AverageCost.Equal(money("20")), "only the newer lot remains")
}

func TestProcessDocumentLines_SaleFIFOCost(t *testing.T) {
	repo := inventorytest.NewRepo()
	posID := repo.AddPosition()
	svc, _ := newService(repo, nil)
	ctx := context.Background()

	_, err := svc.ProcessDocumentLines(ctx, []DocumentLine{
		{PositionID: posID, Quantity: qty(10), UnitPrice: money("10")},
	}, OpPurchase, inventory.MethodFIFO, date(2025, 1, 1))
	require.NoError(t, err)
	_, err = svc.ProcessDocumentLines(ctx, []DocumentLine{
		{PositionID: posID, Quantity: qty(10), UnitPrice: money("20")},
	}, OpPurchase, inventory.MethodFIFO, date(2025, 1, 2))
	require.NoError(t, err)

	result, err := svc.ProcessDocumentLines(ctx, []DocumentLine{
		{PositionID: posID, Quantity: qty(15)},
	}, OpSale, inventory.MethodFIFO, date(2025, 1, 10))
	require.NoError(t, err)

	// (10*10 + 5*20) / 15
	expected := money("200").Div(qty(15).Decimal())
	assert.True(t, result.Lines[0].UnitCost.Equal(expected),
		"got %s want %s", result.Lines[0].UnitCost, expected)
}

func TestProcessDocumentLines_MultiLineSharesWorkingSet(t *testing.T) {
	repo := inventorytest.NewRepo()
	posID := repo.AddPosition()
	svc, _ := newService(repo, nil)
	ctx := context.Background()

	_, err := svc.ProcessDocumentLines(ctx, []DocumentLine{
		{PositionID: posID, Quantity: qty(10), UnitPrice: money("10")},
	}, OpPurchase, inventory.MethodFIFO, date(2025, 1, 1))
	require.NoError(t, err)
	_, err = svc.ProcessDocumentLines(ctx, []DocumentLine{
		{PositionID: posID, Quantity: qty(10), UnitPrice: money("20")},
	}, OpPurchase, inventory.MethodFIFO, date(2025, 1, 2))
	require.NoError(t, err)

	// Two lines of 8: the second must continue where the first stopped, not
	// re-consume the first lot.
	result, err := svc.ProcessDocumentLines(ctx, []DocumentLine{
		{PositionID: posID, Quantity: qty(8)},
		{PositionID: posID, Quantity: qty(8)},
	}, OpSale, inventory.MethodFIFO, date(2025, 1, 10))
	require.NoError(t, err)
	require.Len(t, result.Lines, 2)

	assert.Equal(t, qty(8), result.Lines[0].Lots[0].Quantity)
	// Second line: 2 left in lot one, 6 from lot two.
	require.Len(t, result.Lines[1].Lots, 2)
	assert.Equal(t, qty(2), result.Lines[1].Lots[0].Quantity)
	assert.Equal(t, qty(6), result.Lines[1].Lots[1].Quantity)
}

func TestProcessDocumentLines_InsufficientStockAbortsDocument(t *testing.T) {
	repo := inventorytest.NewRepo()
	posID := repo.AddPosition()
	svc, engine := newService(repo, nil)
	ctx := context.Background()

	_, err := svc.ProcessDocumentLines(ctx, []DocumentLine{
		{PositionID: posID, Quantity: qty(10), UnitPrice: money("10")},
	}, OpPurchase, inventory.MethodFIFO, date(2025, 1, 1))
	require.NoError(t, err)
	movementsBefore := len(repo.Movements())

	// First line fits, second overshoots: the whole document must abort.
	_, err = svc.ProcessDocumentLines(ctx, []DocumentLine{
		{PositionID: posID, Quantity: qty(6)},
		{PositionID: posID, Quantity: qty(6)},
	}, OpSale, inventory.MethodFIFO, date(2025, 1, 5))
	require.Error(t, err)
	assert.True(t, apperror.IsInsufficientStock(err))

	assert.Len(t, repo.Movements(), movementsBefore, "no movement persisted on abort")
	stock, err := engine.ComputeInventoryStock(ctx, posID, nil)
	require.NoError(t, err)
	assert.Equal(t, qty(10), stock.Quantity, "stock untouched on abort")
}

func TestProcessDocumentLines_InvalidatesCache(t *testing.T) {
	repo := inventorytest.NewRepo()
	posID := repo.AddPosition()
	cache := valuation.NewStockCache(valuation.DefaultCacheTTL)
	svc, engine := newService(repo, cache)
	ctx := context.Background()

	_, err := svc.ProcessDocumentLines(ctx, []DocumentLine{
		{PositionID: posID, Quantity: qty(10), UnitPrice: money("5")},
	}, OpPurchase, inventory.MethodWeightedAverage, date(2025, 1, 1))
	require.NoError(t, err)

	// Prime the cache, then write again: the stale figure must be dropped.
	stock, err := engine.ComputeInventoryStock(ctx, posID, nil)
	require.NoError(t, err)
	assert.Equal(t, qty(10), stock.Quantity)

	_, err = svc.ProcessDocumentLines(ctx, []DocumentLine{
		{PositionID: posID, Quantity: qty(4)},
	}, OpSale, inventory.MethodWeightedAverage, date(2025, 1, 2))
	require.NoError(t, err)

	stock, err = engine.ComputeInventoryStock(ctx, posID, nil)
	require.NoError(t, err)
	assert.Equal(t, qty(6), stock.Quantity, "read after write sees the new state")
}

func TestCorrectInitialBalance(t *testing.T) {
	repo := inventorytest.NewRepo()
	posID := repo.AddPosition()
	svc, engine := newService(repo, nil)
	ctx := context.Background()

	lot, err := svc.CreateLotAndEntryMovement(ctx, posID, qty(100), money("10"), date(2025, 1, 1))
	require.NoError(t, err)

	newQty := qty(80)
	newCost := money("12")
	err = svc.CorrectInitialBalance(ctx, posID, InitialBalanceCorrection{
		Quantity: &newQty,
		UnitCost: &newCost,
	})
	require.NoError(t, err)

	stored, err := repo.GetLot(ctx, lot.ID)
	require.NoError(t, err)
	assert.Equal(t, qty(80), stored.InitialQty)
	assert.True(t, stored.UnitCost.Equal(money("12")))

	// The SALDO-INICIAL item follows the corrected quantity.
	item, err := repo.GetInitialBalanceItem(ctx, posID, lot.ID)
	require.NoError(t, err)
	assert.Equal(t, qty(80), item.Quantity)

	stock, err := engine.ComputeInventoryStock(ctx, posID, nil)
	require.NoError(t, err)
	assert.Equal(t, qty(80), stock.Quantity)
	assert.True(t, stock.AverageCost.Equal(money("12")))
}

func TestCorrectInitialBalance_NoInitialBalance(t *testing.T) {
	repo := inventorytest.NewRepo()
	posID := repo.AddPosition()
	svc, _ := newService(repo, nil)

	newQty := qty(5)
	err := svc.CorrectInitialBalance(context.Background(), posID, InitialBalanceCorrection{Quantity: &newQty})
	assert.True(t, apperror.IsNotFound(err))
}

func TestCorrectInitialBalance_EmptyCorrection(t *testing.T) {
	repo := inventorytest.NewRepo()
	posID := repo.AddPosition()
	svc, _ := newService(repo, nil)

	err := svc.CorrectInitialBalance(context.Background(), posID, InitialBalanceCorrection{})
	assert.Error(t, err)
}
