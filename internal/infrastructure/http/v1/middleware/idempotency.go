package middleware

import (
	"bytes"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"stokado/internal/core/apperror"
	"stokado/internal/infrastructure/storage/postgres"
	"stokado/pkg/logger"
)

const idempotencyHeader = "Idempotency-Key"

// responseRecorder buffers the response body so a successful outcome can be
// stored against the idempotency key.
type responseRecorder struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (r *responseRecorder) Write(p []byte) (int, error) {
	r.body.Write(p)
	return r.ResponseWriter.Write(p)
}

// Idempotency makes mutating endpoints replay-safe. A request with a known
// key returns the stored response; a key reused with a different body is
// rejected. Requests without the header pass through untouched.
func Idempotency(store *postgres.IdempotencyStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(idempotencyHeader)
		if key == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.Error(apperror.NewValidation("unreadable request body"))
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		rec, err := store.Begin(ctx, key, postgres.HashRequest(body))
		if err != nil {
			c.Error(err)
			c.Abort()
			return
		}
		if rec != nil {
			// Replay: serve the stored response verbatim.
			c.Data(rec.Status, "application/json", rec.Response)
			c.Abort()
			return
		}

		recorder := &responseRecorder{ResponseWriter: c.Writer}
		c.Writer = recorder
		c.Next()

		status := c.Writer.Status()
		if status >= http.StatusOK && status < http.StatusMultipleChoices {
			if err := store.Complete(ctx, key, status, recorder.body.Bytes()); err != nil {
				logger.Error(ctx, "idempotency: store response failed", "key", key, "error", err)
			}
			return
		}
		// Failed operation: free the key for retry.
		if err := store.Release(ctx, key); err != nil {
			logger.Error(ctx, "idempotency: release failed", "key", key, "error", err)
		}
	}
}
