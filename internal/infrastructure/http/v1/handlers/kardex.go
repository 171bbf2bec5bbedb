package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"stokado/internal/core/apperror"
	"stokado/internal/domain/inventory"
	"stokado/internal/domain/kardex"
)

// KardexHandler serves the stock ledger report.
type KardexHandler struct {
	generator *kardex.Generator
}

func NewKardexHandler(generator *kardex.Generator) *KardexHandler {
	return &KardexHandler{generator: generator}
}

// Get handles GET /positions/:id/kardex?from=&to=&method=.
func (h *KardexHandler) Get(c *gin.Context) {
	positionID, ok := pathID(c, "id")
	if !ok {
		return
	}

	from, err := time.Parse(time.RFC3339, c.Query("from"))
	if err != nil {
		c.Error(apperror.NewValidation("from must be RFC3339"))
		return
	}
	to, err := time.Parse(time.RFC3339, c.Query("to"))
	if err != nil {
		c.Error(apperror.NewValidation("to must be RFC3339"))
		return
	}
	method := inventory.ValuationMethod(c.Query("method"))
	if c.Query("method") != "" && !method.IsValid() {
		c.Error(apperror.NewValidation("method must be WEIGHTED_AVERAGE or FIFO"))
		return
	}

	report, err := h.generator.Generate(c.Request.Context(), positionID, from, to, method)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, report.Render())
}
