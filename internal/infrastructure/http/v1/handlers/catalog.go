package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"stokado/internal/core/apperror"
	"stokado/internal/core/id"
	"stokado/internal/domain/catalogs/product"
	"stokado/internal/domain/catalogs/warehouse"
	"stokado/internal/domain/filter"
	"stokado/internal/domain/inventory"
	"stokado/internal/infrastructure/http/v1/dto"
)

// CatalogHandler exposes products, warehouses and positions.
type CatalogHandler struct {
	products   *product.Service
	warehouses *warehouse.Service
	positions  inventory.PositionRepository
}

func NewCatalogHandler(products *product.Service, warehouses *warehouse.Service, positions inventory.PositionRepository) *CatalogHandler {
	return &CatalogHandler{products: products, warehouses: warehouses, positions: positions}
}

func listParams(c *gin.Context) filter.ListParams {
	limit, _ := strconv.ParseUint(c.Query("limit"), 10, 64)
	offset, _ := strconv.ParseUint(c.Query("offset"), 10, 64)
	return filter.ListParams{
		Search:   c.Query("q"),
		Limit:    limit,
		Offset:   offset,
		SortBy:   c.Query("sortBy"),
		SortDesc: c.Query("order") == "desc",
	}
}

// CreateProduct handles POST /products.
func (h *CatalogHandler) CreateProduct(c *gin.Context) {
	var req dto.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperror.NewValidation(err.Error()))
		return
	}
	p, err := h.products.Create(c.Request.Context(), req.SKU, req.Name, req.Unit)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// ListProducts handles GET /products.
func (h *CatalogHandler) ListProducts(c *gin.Context) {
	items, err := h.products.List(c.Request.Context(), listParams(c))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// CreateWarehouse handles POST /warehouses.
func (h *CatalogHandler) CreateWarehouse(c *gin.Context) {
	var req dto.CreateWarehouseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperror.NewValidation(err.Error()))
		return
	}
	w, err := h.warehouses.Create(c.Request.Context(), req.Code, req.Name)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, w)
}

// ListWarehouses handles GET /warehouses.
func (h *CatalogHandler) ListWarehouses(c *gin.Context) {
	items, err := h.warehouses.List(c.Request.Context(), listParams(c))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// EnsurePosition handles POST /positions.
func (h *CatalogHandler) EnsurePosition(c *gin.Context) {
	var req dto.EnsurePositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperror.NewValidation(err.Error()))
		return
	}
	productID, err := id.Parse(req.ProductID)
	if err != nil {
		c.Error(apperror.NewValidation("productId must be a UUID"))
		return
	}
	warehouseID, err := id.Parse(req.WarehouseID)
	if err != nil {
		c.Error(apperror.NewValidation("warehouseId must be a UUID"))
		return
	}

	ctx := c.Request.Context()
	if _, err := h.products.Get(ctx, productID); err != nil {
		c.Error(err)
		return
	}
	if _, err := h.warehouses.Get(ctx, warehouseID); err != nil {
		c.Error(err)
		return
	}

	p, err := h.positions.EnsurePosition(ctx, productID, warehouseID)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, dto.PositionResponse{
		ID:          p.ID.String(),
		ProductID:   p.ProductID.String(),
		WarehouseID: p.WarehouseID.String(),
	})
}

// ListPositions handles GET /positions?warehouseId=.
func (h *CatalogHandler) ListPositions(c *gin.Context) {
	warehouseID := id.Nil
	if raw := c.Query("warehouseId"); raw != "" {
		parsed, err := id.Parse(raw)
		if err != nil {
			c.Error(apperror.NewValidation("warehouseId must be a UUID"))
			return
		}
		warehouseID = parsed
	}

	positions, err := h.positions.ListPositions(c.Request.Context(), warehouseID)
	if err != nil {
		c.Error(err)
		return
	}
	out := make([]dto.PositionResponse, 0, len(positions))
	for _, p := range positions {
		out = append(out, dto.PositionResponse{
			ID:          p.ID.String(),
			ProductID:   p.ProductID.String(),
			WarehouseID: p.WarehouseID.String(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"items": out})
}
