package valuation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"stokado/internal/core/id"
	"stokado/internal/core/types"
)

func TestStockCache_TTLExpiry(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	c := NewStockCache(time.Minute)
	c.now = func() time.Time { return now }

	lotID := id.New()
	c.SetLot(LotStock{LotID: lotID, Quantity: types.NewQuantityFromInt(5)})

	_, ok := c.GetLot(lotID)
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok = c.GetLot(lotID)
	assert.False(t, ok, "entries expire after the TTL")
}

func TestStockCache_Reset(t *testing.T) {
	c := NewStockCache(0)
	lotID, posID := id.New(), id.New()
	c.SetLot(LotStock{LotID: lotID})
	c.SetPosition(InventoryStock{PositionID: posID})

	c.Reset()

	_, ok := c.GetLot(lotID)
	assert.False(t, ok)
	_, ok = c.GetPosition(posID)
	assert.False(t, ok)
}
