// Package dto defines the wire types of the v1 API. Quantities are rendered
// with 4 decimals and monetary values with 8, matching the report contract.
package dto

import (
	"time"

	"stokado/internal/core/types"
	"stokado/internal/domain/movements"
	"stokado/internal/domain/valuation"
)

// --- stock ---

// LotStockResponse is the derived state of one lot.
type LotStockResponse struct {
	LotID       string    `json:"lotId"`
	PositionID  string    `json:"positionId"`
	Quantity    string    `json:"quantity"`
	UnitCost    string    `json:"unitCost"`
	IngressDate time.Time `json:"ingressDate"`
}

func NewLotStockResponse(s valuation.LotStock) LotStockResponse {
	return LotStockResponse{
		LotID:       s.LotID.String(),
		PositionID:  s.PositionID.String(),
		Quantity:    s.Quantity.String(),
		UnitCost:    types.FormatMoney(s.UnitCost),
		IngressDate: s.IngressDate,
	}
}

// InventoryStockResponse is the derived state of a position with its
// positive-lot breakdown.
type InventoryStockResponse struct {
	PositionID  string             `json:"positionId"`
	Quantity    string             `json:"quantity"`
	AverageCost string             `json:"averageCost"`
	TotalValue  string             `json:"totalValue"`
	Lots        []LotStockResponse `json:"lots"`
}

func NewInventoryStockResponse(s valuation.InventoryStock) InventoryStockResponse {
	out := InventoryStockResponse{
		PositionID:  s.PositionID.String(),
		Quantity:    s.Quantity.String(),
		AverageCost: types.FormatMoney(s.AverageCost),
		TotalValue:  types.FormatMoney(s.TotalValue),
		Lots:        make([]LotStockResponse, 0, len(s.Lots)),
	}
	for _, l := range s.Lots {
		out.Lots = append(out.Lots, NewLotStockResponse(l))
	}
	return out
}

// AvailableLotResponse is one FIFO-ordered lot with stock.
type AvailableLotResponse struct {
	LotID       string    `json:"lotId"`
	Available   string    `json:"available"`
	UnitCost    string    `json:"unitCost"`
	IngressDate time.Time `json:"ingressDate"`
}

func NewAvailableLotResponses(lots []valuation.AvailableLot) []AvailableLotResponse {
	out := make([]AvailableLotResponse, 0, len(lots))
	for _, l := range lots {
		out = append(out, AvailableLotResponse{
			LotID:       l.LotID.String(),
			Available:   l.Available.String(),
			UnitCost:    types.FormatMoney(l.UnitCost),
			IngressDate: l.IngressDate,
		})
	}
	return out
}

// SaleCostResponse is the dry-run exit valuation.
type SaleCostResponse struct {
	PositionID string `json:"positionId"`
	Quantity   string `json:"quantity"`
	Method     string `json:"method"`
	UnitCost   string `json:"unitCost"`
}

// --- documents ---

// DocumentLineRequest is one line of a document to register.
type DocumentLineRequest struct {
	PositionID string         `json:"positionId" binding:"required"`
	Quantity   types.Quantity `json:"quantity"`
	UnitPrice  string         `json:"unitPrice"`
	Label      string         `json:"label"`
}

// ProcessDocumentRequest registers a document against the ledger.
type ProcessDocumentRequest struct {
	Kind   string                `json:"kind" binding:"required"`
	Method string                `json:"method"`
	Date   time.Time             `json:"date" binding:"required"`
	Lines  []DocumentLineRequest `json:"lines" binding:"required"`
}

// LotConsumptionResponse is one lot touched by a line.
type LotConsumptionResponse struct {
	LotID    string `json:"lotId"`
	Quantity string `json:"quantity"`
	UnitCost string `json:"unitCost"`
}

// LineResultResponse reports costing and depletion per line.
type LineResultResponse struct {
	PositionID string                   `json:"positionId"`
	UnitCost   string                   `json:"unitCost"`
	Lots       []LotConsumptionResponse `json:"lots"`
}

// DocumentResultResponse is the outcome of document registration.
type DocumentResultResponse struct {
	MovementID string               `json:"movementId"`
	Number     string               `json:"number"`
	Lines      []LineResultResponse `json:"lines"`
}

func NewDocumentResultResponse(r *movements.DocumentResult) DocumentResultResponse {
	out := DocumentResultResponse{
		MovementID: r.MovementID.String(),
		Number:     r.Number,
	}
	for _, line := range r.Lines {
		lr := LineResultResponse{
			PositionID: line.PositionID.String(),
			UnitCost:   types.FormatMoney(line.UnitCost),
		}
		for _, c := range line.Lots {
			lr.Lots = append(lr.Lots, LotConsumptionResponse{
				LotID:    c.LotID.String(),
				Quantity: c.Quantity.String(),
				UnitCost: types.FormatMoney(c.UnitCost),
			})
		}
		out.Lines = append(out.Lines, lr)
	}
	return out
}

// --- initial balance ---

// InitialBalanceRequest seeds a position's opening stock.
type InitialBalanceRequest struct {
	Quantity    types.Quantity `json:"quantity"`
	UnitCost    string         `json:"unitCost" binding:"required"`
	IngressDate time.Time      `json:"ingressDate" binding:"required"`
}

// CorrectionRequest rewrites initial-balance fields; absent fields stay.
type CorrectionRequest struct {
	Quantity    *types.Quantity `json:"quantity"`
	UnitCost    *string         `json:"unitCost"`
	IngressDate *time.Time      `json:"ingressDate"`
}

// LotResponse is a stored lot.
type LotResponse struct {
	ID          string    `json:"id"`
	PositionID  string    `json:"positionId"`
	InitialQty  string    `json:"initialQty"`
	UnitCost    string    `json:"unitCost"`
	IngressDate time.Time `json:"ingressDate"`
	Label       string    `json:"label,omitempty"`
}

// --- auth ---

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type RegisterRequest struct {
	Email    string   `json:"email" binding:"required"`
	Password string   `json:"password" binding:"required"`
	Roles    []string `json:"roles"`
}

type TokenResponse struct {
	Token string `json:"token"`
}

// --- catalogs ---

type CreateProductRequest struct {
	SKU  string `json:"sku" binding:"required"`
	Name string `json:"name" binding:"required"`
	Unit string `json:"unit"`
}

type CreateWarehouseRequest struct {
	Code string `json:"code" binding:"required"`
	Name string `json:"name" binding:"required"`
}

type EnsurePositionRequest struct {
	ProductID   string `json:"productId" binding:"required"`
	WarehouseID string `json:"warehouseId" binding:"required"`
}

type PositionResponse struct {
	ID          string `json:"id"`
	ProductID   string `json:"productId"`
	WarehouseID string `json:"warehouseId"`
}
