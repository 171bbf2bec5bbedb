// Package tx defines transaction management contracts.
// Domain services depend on these interfaces; the pgx-backed implementation
// lives in infrastructure/storage/postgres.
package tx

import (
	"context"
)

// Manager runs functions inside a database transaction.
type Manager interface {
	// RunInTransaction executes fn within a transaction. An error from fn
	// rolls the transaction back; nil commits it. Nested calls reuse the
	// transaction already stored in ctx.
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// ReadOnlyManager extends Manager with read-only transaction support.
type ReadOnlyManager interface {
	Manager

	// ReadOnly executes fn in a read-only transaction; writes fail.
	ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error
}
