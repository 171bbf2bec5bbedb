package tenant

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"stokado/pkg/logger"
)

// ManagerConfig tunes pool lifecycle behavior.
type ManagerConfig struct {
	// MaxPools caps the number of simultaneously open tenant pools.
	MaxPools int

	// IdleTimeout is how long an unused pool survives before eviction.
	IdleTimeout time.Duration

	// EvictionInterval is how often the eviction loop runs.
	EvictionInterval time.Duration

	// MaxConnsPerPool caps connections per tenant database.
	MaxConnsPerPool int32

	// DBUser / DBPassword are the shared credentials for tenant databases.
	DBUser     string
	DBPassword string
	SSLMode    string
}

// DefaultManagerConfig returns production defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		MaxPools:         100,
		IdleTimeout:      15 * time.Minute,
		EvictionInterval: time.Minute,
		MaxConnsPerPool:  10,
		SSLMode:          "disable",
	}
}

// managedPool wraps a pgx pool with usage accounting for eviction.
type managedPool struct {
	pool       *pgxpool.Pool
	tenantID   string
	lastUsedAt atomic.Int64 // unix nano
}

func (m *managedPool) touch() {
	m.lastUsedAt.Store(time.Now().UnixNano())
}

func (m *managedPool) idleSince() time.Time {
	return time.Unix(0, m.lastUsedAt.Load())
}

// Manager resolves tenant database pools on demand and evicts idle ones.
// Safe for concurrent use.
type Manager struct {
	registry Registry
	cfg      ManagerConfig

	pools     sync.Map // tenantID -> *managedPool
	poolCount atomic.Int32

	// createMu serializes pool creation per tenant to avoid a thundering
	// herd opening duplicate pools on cold start.
	createMu sync.Mutex

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewManager creates a pool manager. Call Start to enable eviction.
func NewManager(registry Registry, cfg ManagerConfig) *Manager {
	if cfg.MaxPools <= 0 {
		cfg.MaxPools = DefaultManagerConfig().MaxPools
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultManagerConfig().IdleTimeout
	}
	if cfg.EvictionInterval <= 0 {
		cfg.EvictionInterval = DefaultManagerConfig().EvictionInterval
	}
	if cfg.MaxConnsPerPool <= 0 {
		cfg.MaxConnsPerPool = DefaultManagerConfig().MaxConnsPerPool
	}
	if cfg.SSLMode == "" {
		cfg.SSLMode = "disable"
	}
	return &Manager{
		registry: registry,
		cfg:      cfg,
		stopCh:   make(chan struct{}),
	}
}

// Start launches the background eviction loop.
func (m *Manager) Start(ctx context.Context) {
	go m.evictionLoop(ctx)
}

// Resolve returns the tenant record and a live pool for it.
// Inactive tenants are rejected before a pool is opened.
func (m *Manager) Resolve(ctx context.Context, tenantID string) (*Tenant, *pgxpool.Pool, error) {
	t, err := m.registry.GetByID(ctx, tenantID)
	if err != nil {
		return nil, nil, err
	}
	if !t.IsActive() {
		return nil, nil, fmt.Errorf("tenant %s: %w", t.Slug, ErrTenantNotActive)
	}

	pool, err := m.getOrCreatePool(ctx, t)
	if err != nil {
		return nil, nil, err
	}
	return t, pool, nil
}

func (m *Manager) getOrCreatePool(ctx context.Context, t *Tenant) (*pgxpool.Pool, error) {
	if v, ok := m.pools.Load(t.ID); ok {
		mp := v.(*managedPool)
		mp.touch()
		return mp.pool, nil
	}

	m.createMu.Lock()
	defer m.createMu.Unlock()

	// Re-check under the lock.
	if v, ok := m.pools.Load(t.ID); ok {
		mp := v.(*managedPool)
		mp.touch()
		return mp.pool, nil
	}

	if int(m.poolCount.Load()) >= m.cfg.MaxPools {
		if !m.evictOldestLocked() {
			return nil, ErrMaxPoolLimit
		}
	}

	dsn := t.DSNWithSSL(m.cfg.DBUser, m.cfg.DBPassword, m.cfg.SSLMode)
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse tenant dsn: %w", err)
	}
	poolCfg.MaxConns = m.cfg.MaxConnsPerPool

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open tenant pool %s: %w", t.Slug, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping tenant db %s: %w", t.Slug, err)
	}

	mp := &managedPool{pool: pool, tenantID: t.ID}
	mp.touch()
	m.pools.Store(t.ID, mp)
	m.poolCount.Add(1)

	logger.Info(ctx, "tenant pool opened",
		"tenant", t.Slug,
		"db", t.DBName,
		"open_pools", m.poolCount.Load(),
	)
	return pool, nil
}

// evictOldestLocked closes the least recently used pool. Caller holds createMu.
func (m *Manager) evictOldestLocked() bool {
	var oldest *managedPool
	m.pools.Range(func(_, v any) bool {
		mp := v.(*managedPool)
		if oldest == nil || mp.idleSince().Before(oldest.idleSince()) {
			oldest = mp
		}
		return true
	})
	if oldest == nil {
		return false
	}
	m.closePool(oldest)
	return true
}

func (m *Manager) closePool(mp *managedPool) {
	m.pools.Delete(mp.tenantID)
	m.poolCount.Add(-1)
	mp.pool.Close()
}

func (m *Manager) evictionLoop(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.EvictionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.evictIdle(ctx)
		}
	}
}

func (m *Manager) evictIdle(ctx context.Context) {
	cutoff := time.Now().Add(-m.cfg.IdleTimeout)
	var evicted int
	m.pools.Range(func(_, v any) bool {
		mp := v.(*managedPool)
		if mp.idleSince().Before(cutoff) {
			m.closePool(mp)
			evicted++
		}
		return true
	})
	if evicted > 0 {
		logger.Info(ctx, "evicted idle tenant pools",
			"evicted", evicted,
			"open_pools", m.poolCount.Load(),
		)
	}
}

// Stats reports current pool usage.
func (m *Manager) Stats() (open int, max int) {
	return int(m.poolCount.Load()), m.cfg.MaxPools
}

// Shutdown stops the eviction loop and closes every open pool.
func (m *Manager) Shutdown() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	m.pools.Range(func(_, v any) bool {
		m.closePool(v.(*managedPool))
		return true
	})
}
