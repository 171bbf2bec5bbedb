// Package postgres implements storage on PostgreSQL: connection pools, the
// transaction manager, batch COPY, counters, idempotency and the audit trail.
package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"stokado/internal/core/tenant"
)

type txCtxKey struct{}

// Querier is the subset of pgx both pgxpool.Pool and pgx.Tx satisfy.
// Repositories run on it so the same code works inside and outside a
// transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// withTx stores the transaction in ctx.
func withTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, txCtxKey{}, tx)
}

// txFromContext retrieves the ambient transaction, if any.
func txFromContext(ctx context.Context) (pgx.Tx, bool) {
	tx, ok := ctx.Value(txCtxKey{}).(pgx.Tx)
	return tx, ok
}

// GetQuerier returns the ambient transaction when one is open, otherwise the
// tenant pool. Panics when neither is in ctx: repositories must only run
// under tenant middleware or an explicit pool context.
func GetQuerier(ctx context.Context) Querier {
	if tx, ok := txFromContext(ctx); ok {
		return tx
	}
	return tenant.MustGetPool(ctx)
}
