package valuation

import (
	"sync"
	"time"

	"stokado/internal/core/id"
)

// DefaultCacheTTL bounds staleness as a safety net; coherency is
// invalidate-on-write, the TTL only covers missed invalidations.
const DefaultCacheTTL = 10 * time.Minute

type lotEntry struct {
	stock     LotStock
	expiresAt time.Time
}

type positionEntry struct {
	stock     InventoryStock
	expiresAt time.Time
}

// StockCache memoizes current-state stock figures. Date-bounded queries never
// touch it. Writers invalidate synchronously after committing; readers may
// observe pre-invalidation values in the interim.
//
// Always an injected dependency, never a package singleton.
type StockCache struct {
	mu        sync.RWMutex
	ttl       time.Duration
	lots      map[id.ID]lotEntry
	positions map[id.ID]positionEntry
	now       func() time.Time
}

// NewStockCache creates a cache with the given TTL (DefaultCacheTTL if <= 0).
func NewStockCache(ttl time.Duration) *StockCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &StockCache{
		ttl:       ttl,
		lots:      make(map[id.ID]lotEntry),
		positions: make(map[id.ID]positionEntry),
		now:       time.Now,
	}
}

// GetLot returns the cached lot stock if present and fresh.
func (c *StockCache) GetLot(lotID id.ID) (LotStock, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.lots[lotID]
	if !ok || c.now().After(e.expiresAt) {
		return LotStock{}, false
	}
	return e.stock, true
}

// SetLot stores a lot stock figure.
func (c *StockCache) SetLot(s LotStock) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lots[s.LotID] = lotEntry{stock: s, expiresAt: c.now().Add(c.ttl)}
}

// GetPosition returns the cached position stock if present and fresh.
func (c *StockCache) GetPosition(positionID id.ID) (InventoryStock, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.positions[positionID]
	if !ok || c.now().After(e.expiresAt) {
		return InventoryStock{}, false
	}
	return e.stock, true
}

// SetPosition stores a position stock figure.
func (c *StockCache) SetPosition(s InventoryStock) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.positions[s.PositionID] = positionEntry{stock: s, expiresAt: c.now().Add(c.ttl)}
}

// InvalidateLot drops the lot entry.
func (c *StockCache) InvalidateLot(lotID id.ID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.lots, lotID)
}

// InvalidatePosition drops the position entry.
func (c *StockCache) InvalidatePosition(positionID id.ID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.positions, positionID)
}

// Reset drops everything.
func (c *StockCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lots = make(map[id.ID]lotEntry)
	c.positions = make(map[id.ID]positionEntry)
}
