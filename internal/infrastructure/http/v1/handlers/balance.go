package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"stokado/internal/core/apperror"
	"stokado/internal/core/types"
	"stokado/internal/domain/movements"
	"stokado/internal/infrastructure/http/v1/dto"
)

// BalanceHandler manages initial balances.
type BalanceHandler struct {
	svc *movements.Service
}

func NewBalanceHandler(svc *movements.Service) *BalanceHandler {
	return &BalanceHandler{svc: svc}
}

// Create handles POST /positions/:id/initial-balance.
func (h *BalanceHandler) Create(c *gin.Context) {
	positionID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req dto.InitialBalanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperror.NewValidation(err.Error()))
		return
	}
	cost, ok := moneyField(c, "unitCost", req.UnitCost)
	if !ok {
		return
	}

	lot, err := h.svc.CreateLotAndEntryMovement(c.Request.Context(),
		positionID, req.Quantity, cost, req.IngressDate)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, dto.LotResponse{
		ID:          lot.ID.String(),
		PositionID:  lot.PositionID.String(),
		InitialQty:  lot.InitialQty.String(),
		UnitCost:    types.FormatMoney(lot.UnitCost),
		IngressDate: lot.IngressDate,
		Label:       lot.Label,
	})
}

// Correct handles PATCH /positions/:id/initial-balance.
func (h *BalanceHandler) Correct(c *gin.Context) {
	positionID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req dto.CorrectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperror.NewValidation(err.Error()))
		return
	}

	corr := movements.InitialBalanceCorrection{
		Quantity:    req.Quantity,
		IngressDate: req.IngressDate,
	}
	if req.UnitCost != nil {
		cost, ok := moneyField(c, "unitCost", *req.UnitCost)
		if !ok {
			return
		}
		corr.UnitCost = &cost
	}

	if err := h.svc.CorrectInitialBalance(c.Request.Context(), positionID, corr); err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}
