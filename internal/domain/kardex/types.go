// Package kardex generates the stock ledger report for one inventory
// position: an opening balance followed by a chronological replay of the
// period's movements, valued under the requested costing method.
package kardex

import (
	"time"

	"stokado/internal/core/id"
	"stokado/internal/core/types"
	"stokado/internal/domain/inventory"
)

// Direction is the stock effect of a report row.
type Direction string

const (
	DirIn  Direction = "IN"
	DirOut Direction = "OUT"
)

// Opening is the report's opening balance, back-calculated at the instant
// before the period starts. Never negative.
type Opening struct {
	Date     time.Time      `json:"date"`
	Quantity types.Quantity `json:"quantity"`
	UnitCost types.Money    `json:"unitCost"`
	Value    types.Money    `json:"value"`
}

// Row is one report line. FIFO exits produce one row per lot consumed, so a
// single movement item may span several rows.
type Row struct {
	Date        time.Time              `json:"date"`
	Number      string                 `json:"number"`
	DocumentRef string                 `json:"documentRef"`
	Kind        inventory.MovementKind `json:"kind"`
	Direction   Direction              `json:"direction"`
	LotID       id.ID                  `json:"lotId"`
	Quantity    types.Quantity         `json:"quantity"`
	UnitCost    types.Money            `json:"unitCost"`
	Total       types.Money            `json:"total"`

	// Running balance after this row.
	BalanceQty   types.Quantity `json:"balanceQty"`
	BalanceValue types.Money    `json:"balanceValue"`
}

// Balance is the report's closing state.
type Balance struct {
	Quantity types.Quantity `json:"quantity"`
	UnitCost types.Money    `json:"unitCost"`
	Value    types.Money    `json:"value"`
}

// Report is a generated Kardex.
type Report struct {
	PositionID id.ID                     `json:"positionId"`
	From       time.Time                 `json:"from"`
	To         time.Time                 `json:"to"`
	Method     inventory.ValuationMethod `json:"method"`
	Opening    Opening                   `json:"opening"`
	Rows       []Row                     `json:"rows"`
	Final      Balance                   `json:"final"`
}

// RenderedRow is a Row with the fixed-precision string representation the
// report contract requires: 4 decimals for quantities, 8 for money.
type RenderedRow struct {
	Date         string `json:"date"`
	Number       string `json:"number"`
	DocumentRef  string `json:"documentRef"`
	Kind         string `json:"kind"`
	Direction    string `json:"direction"`
	LotID        string `json:"lotId,omitempty"`
	Quantity     string `json:"quantity"`
	UnitCost     string `json:"unitCost"`
	Total        string `json:"total"`
	BalanceQty   string `json:"balanceQty"`
	BalanceValue string `json:"balanceValue"`
}

// RenderedReport is the bit-reproducible textual form of a Report.
type RenderedReport struct {
	PositionID      string        `json:"positionId"`
	From            string        `json:"from"`
	To              string        `json:"to"`
	Method          string        `json:"method"`
	OpeningDate     string        `json:"openingDate"`
	OpeningQty      string        `json:"openingQty"`
	OpeningUnitCost string        `json:"openingUnitCost"`
	OpeningValue    string        `json:"openingValue"`
	Rows            []RenderedRow `json:"rows"`
	FinalQty        string        `json:"finalQty"`
	FinalUnitCost   string        `json:"finalUnitCost"`
	FinalValue      string        `json:"finalValue"`
}

const renderDateLayout = "2006-01-02 15:04:05.000"

// Render formats the report with the fixed output precision. Two identical
// ledgers render byte-identical reports.
func (r *Report) Render() RenderedReport {
	out := RenderedReport{
		PositionID:      r.PositionID.String(),
		From:            r.From.UTC().Format(renderDateLayout),
		To:              r.To.UTC().Format(renderDateLayout),
		Method:          string(r.Method),
		OpeningDate:     r.Opening.Date.UTC().Format(renderDateLayout),
		OpeningQty:      r.Opening.Quantity.String(),
		OpeningUnitCost: types.FormatMoney(r.Opening.UnitCost),
		OpeningValue:    types.FormatMoney(r.Opening.Value),
		FinalQty:        r.Final.Quantity.String(),
		FinalUnitCost:   types.FormatMoney(r.Final.UnitCost),
		FinalValue:      types.FormatMoney(r.Final.Value),
	}
	out.Rows = make([]RenderedRow, 0, len(r.Rows))
	for _, row := range r.Rows {
		rr := RenderedRow{
			Date:         row.Date.UTC().Format(renderDateLayout),
			Number:       row.Number,
			DocumentRef:  row.DocumentRef,
			Kind:         string(row.Kind),
			Direction:    string(row.Direction),
			Quantity:     row.Quantity.String(),
			UnitCost:     types.FormatMoney(row.UnitCost),
			Total:        types.FormatMoney(row.Total),
			BalanceQty:   row.BalanceQty.String(),
			BalanceValue: types.FormatMoney(row.BalanceValue),
		}
		if !id.IsNil(row.LotID) {
			rr.LotID = row.LotID.String()
		}
		out.Rows = append(out.Rows, rr)
	}
	return out
}
