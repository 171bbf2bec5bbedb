package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"stokado/internal/core/apperror"
	"stokado/internal/core/id"
	"stokado/internal/core/types"
	"stokado/internal/domain/inventory"
	"stokado/internal/domain/movements"
	"stokado/internal/infrastructure/http/v1/dto"
)

// DocumentsHandler registers commercial documents against the ledger.
type DocumentsHandler struct {
	svc *movements.Service
}

func NewDocumentsHandler(svc *movements.Service) *DocumentsHandler {
	return &DocumentsHandler{svc: svc}
}

var operationKinds = map[string]movements.OperationKind{
	"PURCHASE":    movements.OpPurchase,
	"SALE":        movements.OpSale,
	"CONSUMPTION": movements.OpConsumption,
}

// Process handles POST /documents/process.
func (h *DocumentsHandler) Process(c *gin.Context) {
	var req dto.ProcessDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperror.NewValidation(err.Error()))
		return
	}

	opKind, ok := operationKinds[req.Kind]
	if !ok {
		c.Error(apperror.NewValidation("kind must be PURCHASE, SALE or CONSUMPTION"))
		return
	}
	method := inventory.ValuationMethod(req.Method)
	if req.Method != "" && !method.IsValid() {
		c.Error(apperror.NewValidation("method must be WEIGHTED_AVERAGE or FIFO"))
		return
	}

	lines := make([]movements.DocumentLine, 0, len(req.Lines))
	for _, l := range req.Lines {
		positionID, err := id.Parse(l.PositionID)
		if err != nil {
			c.Error(apperror.NewValidation("positionId must be a UUID"))
			return
		}
		price := types.ZeroMoney()
		if l.UnitPrice != "" {
			price, ok = moneyField(c, "unitPrice", l.UnitPrice)
			if !ok {
				return
			}
		}
		lines = append(lines, movements.DocumentLine{
			PositionID: positionID,
			Quantity:   l.Quantity,
			UnitPrice:  price,
			Label:      l.Label,
		})
	}

	result, err := h.svc.ProcessDocumentLines(c.Request.Context(), lines, opKind, method, req.Date)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, dto.NewDocumentResultResponse(result))
}
