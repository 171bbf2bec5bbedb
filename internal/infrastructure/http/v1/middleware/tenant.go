package middleware

import (
	"github.com/gin-gonic/gin"

	"stokado/internal/core/apperror"
	"stokado/internal/core/tenant"
	"stokado/internal/core/tx"
)

const tenantHeader = "X-Tenant-ID"

// TenantResolver resolves the tenant database for the request and stores the
// pool, tenant record and transaction manager in the request context. Every
// route below it runs against that tenant's isolated database.
func TenantResolver(manager *tenant.Manager, txm tx.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := c.GetHeader(tenantHeader)
		if tenantID == "" {
			c.Error(apperror.NewValidation("X-Tenant-ID header is required"))
			c.Abort()
			return
		}

		ctx := c.Request.Context()
		t, pool, err := manager.Resolve(ctx, tenantID)
		if err != nil {
			switch err {
			case tenant.ErrTenantNotFound:
				c.Error(apperror.NewNotFound("tenant", tenantID))
			default:
				c.Error(apperror.NewInternal(err))
			}
			c.Abort()
			return
		}

		ctx = tenant.WithTenant(ctx, t)
		ctx = tenant.WithPool(ctx, pool)
		ctx = tenant.WithTxManager(ctx, txm)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
