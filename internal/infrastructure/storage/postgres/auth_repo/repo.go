// Package authrepo implements the user store.
package authrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgconn"

	"stokado/internal/core/apperror"
	"stokado/internal/domain/auth"
	"stokado/internal/infrastructure/storage/postgres"
)

// Repo implements auth.Repository on the users table.
type Repo struct{}

func New() *Repo { return &Repo{} }

func (r *Repo) Create(ctx context.Context, u *auth.User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	_, err := postgres.GetQuerier(ctx).Exec(ctx, `
		INSERT INTO users (id, email, password_hash, roles, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, u.ID, u.Email, u.PasswordHash, u.Roles, u.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperror.NewDuplicate("user", "email", u.Email)
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *Repo) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	var u auth.User
	err := pgxscan.Get(ctx, postgres.GetQuerier(ctx), &u, `
		SELECT id, email, password_hash, roles, created_at
		FROM users
		WHERE email = $1
	`, email)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("user", email)
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return &u, nil
}

var _ auth.Repository = (*Repo)(nil)
