// Package handlers implements the v1 HTTP endpoints. Handlers bind, call a
// domain service and attach errors with c.Error; the error middleware does
// the rendering.
package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"stokado/internal/core/apperror"
	"stokado/internal/core/id"
	"stokado/internal/core/types"
)

// pathID parses a UUID path parameter.
func pathID(c *gin.Context, name string) (id.ID, bool) {
	v, err := id.Parse(c.Param(name))
	if err != nil {
		c.Error(apperror.NewValidation(name + " must be a UUID"))
		return id.Nil, false
	}
	return v, true
}

// asOfQuery parses the optional asOf query parameter (RFC3339).
func asOfQuery(c *gin.Context) (*time.Time, bool) {
	raw := c.Query("asOf")
	if raw == "" {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		c.Error(apperror.NewValidation("asOf must be RFC3339"))
		return nil, false
	}
	return &t, true
}

// moneyField parses a decimal string from a request body.
func moneyField(c *gin.Context, name, raw string) (types.Money, bool) {
	m, err := types.NewMoneyFromString(raw)
	if err != nil {
		c.Error(apperror.NewValidation(name + " must be a decimal string"))
		return types.ZeroMoney(), false
	}
	return m, true
}
