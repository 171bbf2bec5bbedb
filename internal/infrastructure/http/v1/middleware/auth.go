package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"stokado/internal/core/apperror"
	appctx "stokado/internal/core/context"
	"stokado/internal/domain/auth"
)

// TokenValidator validates a bearer token. Satisfied by auth.Service.
type TokenValidator interface {
	Validate(token string) (*auth.Claims, error)
}

// AuthRequired rejects requests without a valid bearer token and seeds the
// user identity into the request context. The token's tenant must match the
// resolved tenant header.
func AuthRequired(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || token == "" {
			c.Error(apperror.NewUnauthorized("bearer token required"))
			c.Abort()
			return
		}

		claims, err := validator.Validate(token)
		if err != nil {
			c.Error(err)
			c.Abort()
			return
		}

		if headerTenant := c.GetHeader(tenantHeader); headerTenant != "" &&
			claims.TenantID != "" && claims.TenantID != headerTenant {
			c.Error(apperror.NewForbidden("token does not belong to this tenant"))
			c.Abort()
			return
		}

		ctx := appctx.WithUser(c.Request.Context(), &appctx.UserContext{
			UserID:   claims.UserID,
			TenantID: claims.TenantID,
			Email:    claims.Email,
			Roles:    claims.Roles,
		})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
