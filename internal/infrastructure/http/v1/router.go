// Package v1 assembles the HTTP API.
package v1

import (
	"github.com/gin-gonic/gin"

	"stokado/internal/core/tenant"
	"stokado/internal/core/tx"
	"stokado/internal/infrastructure/http/v1/handlers"
	"stokado/internal/infrastructure/http/v1/middleware"
	"stokado/internal/infrastructure/storage/postgres"
)

// Handlers groups everything the router mounts.
type Handlers struct {
	Health    *handlers.HealthHandler
	Auth      *handlers.AuthHandler
	Stock     *handlers.StockHandler
	Documents *handlers.DocumentsHandler
	Balance   *handlers.BalanceHandler
	Kardex    *handlers.KardexHandler
	Catalog   *handlers.CatalogHandler
}

// Deps carries the cross-cutting pieces the middleware chain needs.
type Deps struct {
	Manager     *tenant.Manager
	TxManager   tx.Manager
	Validator   middleware.TokenValidator
	Idempotency *postgres.IdempotencyStore
}

// NewRouter wires middleware and routes into a gin engine.
func NewRouter(h Handlers, d Deps) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery())
	r.Use(middleware.Trace())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.ErrorHandler())

	r.GET("/healthz", h.Health.Get)

	api := r.Group("/api/v1")
	api.Use(middleware.TenantResolver(d.Manager, d.TxManager))

	api.POST("/auth/login", h.Auth.Login)
	api.POST("/auth/register", h.Auth.Register)

	authed := api.Group("")
	authed.Use(middleware.AuthRequired(d.Validator))

	authed.GET("/positions/:id/stock", h.Stock.GetPositionStock)
	authed.GET("/positions/:id/lots", h.Stock.ListAvailableLots)
	authed.GET("/positions/:id/sale-cost", h.Stock.GetSaleCost)
	authed.GET("/positions/:id/kardex", h.Kardex.Get)
	authed.GET("/lots/:id/stock", h.Stock.GetLotStock)

	authed.POST("/positions/:id/initial-balance", h.Balance.Create)
	authed.PATCH("/positions/:id/initial-balance", h.Balance.Correct)

	authed.POST("/documents/process", middleware.Idempotency(d.Idempotency), h.Documents.Process)

	authed.POST("/products", h.Catalog.CreateProduct)
	authed.GET("/products", h.Catalog.ListProducts)
	authed.POST("/warehouses", h.Catalog.CreateWarehouse)
	authed.GET("/warehouses", h.Catalog.ListWarehouses)
	authed.POST("/positions", h.Catalog.EnsurePosition)
	authed.GET("/positions", h.Catalog.ListPositions)

	return r
}
