package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"stokado/internal/core/apperror"
	"stokado/internal/core/tenant"
	"stokado/internal/domain/auth"
	"stokado/internal/infrastructure/http/v1/dto"
)

// AuthHandler exposes login and registration.
type AuthHandler struct {
	svc *auth.Service
}

func NewAuthHandler(svc *auth.Service) *AuthHandler {
	return &AuthHandler{svc: svc}
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperror.NewValidation(err.Error()))
		return
	}

	ctx := c.Request.Context()
	token, err := h.svc.Login(ctx, tenant.GetTenantID(ctx), req.Email, req.Password)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, dto.TokenResponse{Token: token})
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperror.NewValidation(err.Error()))
		return
	}

	u, err := h.svc.Register(c.Request.Context(), req.Email, req.Password, req.Roles)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": u.ID.String(), "email": u.Email})
}
