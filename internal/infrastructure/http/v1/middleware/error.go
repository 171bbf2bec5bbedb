// Package middleware holds the gin middleware chain: tracing, logging,
// recovery, tenant resolution, authentication, idempotency and the error
// renderer.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"stokado/internal/core/apperror"
	"stokado/pkg/logger"
)

// errorResponse is the wire shape of a failed request (RFC 7807 flavored).
type errorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// ErrorHandler renders errors attached by handlers via c.Error. Handlers
// never write error JSON themselves.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err

		appErr, ok := apperror.AsAppError(err)
		if !ok {
			logger.Error(c.Request.Context(), "unhandled error", "error", err)
			c.JSON(http.StatusInternalServerError, errorResponse{
				Code:    apperror.CodeInternal,
				Message: "Internal server error",
			})
			return
		}

		if appErr.HTTPStatus >= http.StatusInternalServerError {
			logger.Error(c.Request.Context(), "request failed",
				"code", appErr.Code, "error", appErr.Err)
		}
		c.JSON(appErr.HTTPStatus, errorResponse{
			Code:    appErr.Code,
			Message: appErr.Message,
			Details: appErr.Details,
		})
	}
}
