package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"stokado/internal/core/apperror"
	"stokado/internal/core/types"
	"stokado/internal/domain/inventory"
	"stokado/internal/domain/valuation"
	"stokado/internal/infrastructure/http/v1/dto"
)

// StockHandler exposes derived stock queries.
type StockHandler struct {
	engine *valuation.Engine
}

func NewStockHandler(engine *valuation.Engine) *StockHandler {
	return &StockHandler{engine: engine}
}

// GetPositionStock handles GET /positions/:id/stock.
func (h *StockHandler) GetPositionStock(c *gin.Context) {
	positionID, ok := pathID(c, "id")
	if !ok {
		return
	}
	asOf, ok := asOfQuery(c)
	if !ok {
		return
	}

	stock, err := h.engine.ComputeInventoryStock(c.Request.Context(), positionID, asOf)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, dto.NewInventoryStockResponse(stock))
}

// GetLotStock handles GET /lots/:id/stock.
func (h *StockHandler) GetLotStock(c *gin.Context) {
	lotID, ok := pathID(c, "id")
	if !ok {
		return
	}
	asOf, ok := asOfQuery(c)
	if !ok {
		return
	}

	stock, err := h.engine.ComputeLotStock(c.Request.Context(), lotID, asOf)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, dto.NewLotStockResponse(stock))
}

// ListAvailableLots handles GET /positions/:id/lots.
func (h *StockHandler) ListAvailableLots(c *gin.Context) {
	positionID, ok := pathID(c, "id")
	if !ok {
		return
	}
	asOf, ok := asOfQuery(c)
	if !ok {
		return
	}

	lots, err := h.engine.ListFIFOAvailableLots(c.Request.Context(), positionID, asOf)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"lots": dto.NewAvailableLotResponses(lots)})
}

// GetSaleCost handles GET /positions/:id/sale-cost?qty=&method=&asOf=.
// A dry run: it never changes stock under any method.
func (h *StockHandler) GetSaleCost(c *gin.Context) {
	positionID, ok := pathID(c, "id")
	if !ok {
		return
	}
	asOf, ok := asOfQuery(c)
	if !ok {
		return
	}

	var qty types.Quantity
	if err := qty.UnmarshalJSON([]byte(c.Query("qty"))); err != nil || !qty.IsPositive() {
		c.Error(apperror.NewValidation("qty must be a positive decimal"))
		return
	}
	method := inventory.ValuationMethod(c.Query("method"))

	ctx := c.Request.Context()
	cost, err := h.engine.ComputeAverageSaleCost(ctx, positionID, qty, method, asOf)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, dto.SaleCostResponse{
		PositionID: positionID.String(),
		Quantity:   qty.String(),
		Method:     string(h.engine.ResolveMethod(ctx, method)),
		UnitCost:   types.FormatMoney(cost),
	})
}
