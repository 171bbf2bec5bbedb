package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/klauspost/compress/zstd"

	appctx "stokado/internal/core/context"
	"stokado/internal/core/id"
	"stokado/pkg/logger"
)

// AuditStore persists an append-only audit trail. Payloads are JSON
// compressed with zstd; corrections and document registrations produce the
// bulk of the volume and compress well.
//
// Record never fails the caller: the business write already committed, so a
// broken trail is logged and dropped.
type AuditStore struct {
	encoder *zstd.Encoder
}

func NewAuditStore() (*AuditStore, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, err
	}
	return &AuditStore{encoder: enc}, nil
}

func (s *AuditStore) Record(ctx context.Context, action, entity, entityID string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		logger.Error(ctx, "audit: marshal payload failed", "action", action, "error", err)
		return
	}
	compressed := s.encoder.EncodeAll(raw, nil)

	var userID string
	if uc := appctx.GetUser(ctx); uc != nil {
		userID = uc.UserID
	}

	q := GetQuerier(ctx)
	_, err = q.Exec(ctx, `
		INSERT INTO audit_log (id, action, entity, entity_id, user_id, payload_zstd, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7)
	`, id.New(), action, entity, entityID, userID, compressed, time.Now().UTC())
	if err != nil {
		logger.Error(ctx, "audit: insert failed", "action", action, "entity", entity, "error", err)
	}
}
