// Package settingsrepo reads and writes per-tenant valuation settings and
// implements periods.Provider.
package settingsrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"stokado/internal/core/apperror"
	"stokado/internal/domain/inventory"
	"stokado/internal/domain/periods"
	"stokado/internal/infrastructure/storage/postgres"
)

const (
	keyValuationMethod = "valuation_method"
	keyPeriodEnd       = "period_end"
)

// Repo stores settings as key/value rows in tenant_settings.
type Repo struct{}

func New() *Repo { return &Repo{} }

func (r *Repo) get(ctx context.Context, key string) (string, error) {
	var value string
	err := postgres.GetQuerier(ctx).QueryRow(ctx,
		`SELECT value FROM tenant_settings WHERE key = $1`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", apperror.NewNotFound("setting", key)
		}
		return "", apperror.NewConfigUnavailable(key, err)
	}
	return value, nil
}

func (r *Repo) set(ctx context.Context, key, value string) error {
	_, err := postgres.GetQuerier(ctx).Exec(ctx, `
		INSERT INTO tenant_settings (key, value, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = $2, updated_at = now()
	`, key, value)
	if err != nil {
		return fmt.Errorf("set setting %q: %w", key, err)
	}
	return nil
}

// GetConfig implements periods.Provider. Missing keys fall back to defaults;
// a storage failure surfaces as ConfigurationUnavailable for callers to
// recover from locally.
func (r *Repo) GetConfig(ctx context.Context) (periods.Config, error) {
	cfg := periods.Config{Method: inventory.MethodWeightedAverage}

	method, err := r.get(ctx, keyValuationMethod)
	switch {
	case err == nil:
		if m := inventory.ValuationMethod(method); m.IsValid() {
			cfg.Method = m
		}
	case apperror.IsNotFound(err):
		// unset: keep the default
	default:
		return periods.Config{}, err
	}

	raw, err := r.get(ctx, keyPeriodEnd)
	switch {
	case err == nil:
		end, perr := time.Parse(time.RFC3339, raw)
		if perr != nil {
			return periods.Config{}, apperror.NewConfigUnavailable(keyPeriodEnd, perr)
		}
		cfg.PeriodEnd = &end
	case apperror.IsNotFound(err):
		// unset: tenant runs without period control
	default:
		return periods.Config{}, err
	}

	return cfg, nil
}

// SetValuationMethod stores the tenant's costing policy.
func (r *Repo) SetValuationMethod(ctx context.Context, method inventory.ValuationMethod) error {
	if !method.IsValid() {
		return apperror.NewValidation("unknown valuation method")
	}
	return r.set(ctx, keyValuationMethod, string(method))
}

// SetPeriodEnd stores (or clears, with nil) the open period end.
func (r *Repo) SetPeriodEnd(ctx context.Context, end *time.Time) error {
	if end == nil {
		_, err := postgres.GetQuerier(ctx).Exec(ctx,
			`DELETE FROM tenant_settings WHERE key = $1`, keyPeriodEnd)
		return err
	}
	return r.set(ctx, keyPeriodEnd, end.UTC().Format(time.RFC3339))
}

var _ periods.Provider = (*Repo)(nil)
