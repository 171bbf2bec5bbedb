// Package periods exposes per-tenant valuation configuration: the active
// costing method and the open accounting period. This is a lookup client
// only; period lifecycle management lives elsewhere.
package periods

import (
	"context"
	"time"

	"stokado/internal/domain/inventory"
)

// Config is the per-tenant valuation configuration.
type Config struct {
	// Method is the active costing policy.
	Method inventory.ValuationMethod

	// PeriodEnd is the end of the open accounting period, nil when the
	// tenant runs without period control.
	PeriodEnd *time.Time
}

// Provider resolves the tenant's valuation configuration.
//
// Callers must treat failures as recoverable: fall back to defaults
// (WEIGHTED_AVERAGE, cutoff "now"), log a warning and proceed. A provider
// error never reaches an API response.
type Provider interface {
	GetConfig(ctx context.Context) (Config, error)
}

// Static is a fixed-config provider for tests and single-tenant tools.
type Static struct {
	Cfg Config
}

func (s Static) GetConfig(_ context.Context) (Config, error) {
	return s.Cfg, nil
}
