package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"stokado/internal/core/tenant"
)

// HealthHandler reports liveness and pool usage.
type HealthHandler struct {
	manager *tenant.Manager
}

func NewHealthHandler(manager *tenant.Manager) *HealthHandler {
	return &HealthHandler{manager: manager}
}

// Get handles GET /healthz.
func (h *HealthHandler) Get(c *gin.Context) {
	open, max := h.manager.Stats()
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"open_pools": open,
		"max_pools":  max,
	})
}
