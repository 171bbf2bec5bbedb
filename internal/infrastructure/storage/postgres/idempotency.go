package postgres

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgconn"

	"stokado/internal/core/apperror"
)

// IdempotencyStore makes document registration replay-safe: the same
// Idempotency-Key returns the stored response instead of re-processing.
type IdempotencyStore struct {
	ttl time.Duration
}

// NewIdempotencyStore creates the store. Records older than ttl are ignored
// (and eventually purged by a maintenance job).
func NewIdempotencyStore(ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &IdempotencyStore{ttl: ttl}
}

// IdempotencyRecord is a completed operation keyed by client key.
type IdempotencyRecord struct {
	Key         string    `db:"key"`
	RequestHash string    `db:"request_hash"`
	Status      int       `db:"status"`
	Response    []byte    `db:"response"`
	CreatedAt   time.Time `db:"created_at"`
}

// HashRequest fingerprints the request body so key reuse with a different
// payload is detectable.
func HashRequest(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// Begin claims the key. It returns the stored record when the operation
// already completed, an IdempotencyConflict when it is in flight, and
// an IdempotencyMismatch when the key is reused with a different body.
func (s *IdempotencyStore) Begin(ctx context.Context, key, requestHash string) (*IdempotencyRecord, error) {
	q := GetQuerier(ctx)

	_, err := q.Exec(ctx, `
		INSERT INTO idempotency_keys (key, request_hash, status, created_at)
		VALUES ($1, $2, 0, now())
	`, key, requestHash)
	if err == nil {
		return nil, nil // key claimed, proceed
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return nil, fmt.Errorf("idempotency begin: %w", err)
	}

	var rec IdempotencyRecord
	err = pgxscan.Get(ctx, q, &rec, `
		SELECT key, request_hash, status, response, created_at
		FROM idempotency_keys
		WHERE key = $1 AND created_at > now() - make_interval(secs => $2)
	`, key, s.ttl.Seconds())
	if err != nil {
		if pgxscan.NotFound(err) {
			// Expired record: claim is racing the purge, treat as conflict.
			return nil, apperror.NewIdempotencyConflict(key)
		}
		return nil, fmt.Errorf("idempotency lookup: %w", err)
	}

	if rec.RequestHash != requestHash {
		return nil, apperror.NewIdempotencyMismatch(key)
	}
	if rec.Status == 0 {
		return nil, apperror.NewIdempotencyConflict(key)
	}
	return &rec, nil
}

// Complete stores the final response for the key.
func (s *IdempotencyStore) Complete(ctx context.Context, key string, status int, response []byte) error {
	q := GetQuerier(ctx)
	_, err := q.Exec(ctx, `
		UPDATE idempotency_keys
		SET status = $2, response = $3
		WHERE key = $1
	`, key, status, response)
	if err != nil {
		return fmt.Errorf("idempotency complete: %w", err)
	}
	return nil
}

// Release drops an in-flight claim after a failed operation so the client
// can retry with the same key.
func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	q := GetQuerier(ctx)
	_, err := q.Exec(ctx, `DELETE FROM idempotency_keys WHERE key = $1 AND status = 0`, key)
	if err != nil {
		return fmt.Errorf("idempotency release: %w", err)
	}
	return nil
}
