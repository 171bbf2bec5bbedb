package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"stokado/internal/core/tenant"
	"stokado/pkg/logger"
)

var tracer = otel.Tracer("stokado/storage/postgres")

// TxManager implements tx.Manager and tx.ReadOnlyManager on the tenant pool
// stored in ctx. Nested RunInTransaction calls join the open transaction.
type TxManager struct{}

func NewTxManager() *TxManager {
	return &TxManager{}
}

// RunInTransaction executes fn inside a ReadCommitted transaction.
func (m *TxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.run(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, fn)
}

// ReadOnly executes fn inside a read-only transaction.
func (m *TxManager) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.run(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted, AccessMode: pgx.ReadOnly}, fn)
}

func (m *TxManager) run(ctx context.Context, opts pgx.TxOptions, fn func(ctx context.Context) error) error {
	// Join the ambient transaction instead of nesting.
	if _, ok := txFromContext(ctx); ok {
		return fn(ctx)
	}

	pool, err := tenant.GetPool(ctx)
	if err != nil {
		return fmt.Errorf("tx: %w", err)
	}

	ctx, span := tracer.Start(ctx, "postgres.transaction")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.isolation", string(opts.IsoLevel)),
		attribute.Bool("db.read_only", opts.AccessMode == pgx.ReadOnly),
	)

	tx, err := pool.BeginTx(ctx, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "begin failed")
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(withTx(ctx, tx)); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			logger.Error(ctx, "tx rollback failed", "error", rbErr)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "rolled back")
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "commit failed")
		return fmt.Errorf("commit tx: %w", err)
	}
	span.SetStatus(codes.Ok, "")
	return nil
}
