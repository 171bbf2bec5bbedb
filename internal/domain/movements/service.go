// Package movements writes to the ledger: initial balances, document line
// processing and initial-balance correction. Every write runs in one
// transaction and invalidates the stock cache synchronously after commit.
package movements

import (
	"context"
	"time"

	"stokado/internal/core/apperror"
	"stokado/internal/core/id"
	"stokado/internal/core/tx"
	"stokado/internal/core/types"
	"stokado/internal/domain/inventory"
	"stokado/internal/domain/valuation"
	"stokado/pkg/logger"
)

// OperationKind classifies a processed document.
type OperationKind string

const (
	// OpPurchase creates a new lot per line at the line price.
	OpPurchase OperationKind = "PURCHASE"

	// OpSale consumes stock FIFO, costed by the active valuation method.
	OpSale OperationKind = "SALE"

	// OpConsumption is an internal issue; same mechanics as a sale.
	OpConsumption OperationKind = "CONSUMPTION"
)

func (k OperationKind) isEntry() bool { return k == OpPurchase }

// Sequence codes for correlative numbering.
const (
	seqEntry          = "ENT"
	seqExit           = "SAL"
	seqInitialBalance = "SDI"
)

// Numerator issues correlative document numbers. Satisfied by pkg/numerator.
type Numerator interface {
	Next(ctx context.Context, sequence string) (string, error)
}

// AuditRecorder persists an audit trail entry. Failures are logged, never
// propagated: the business write already committed.
type AuditRecorder interface {
	Record(ctx context.Context, action, entity, entityID string, payload any)
}

// NoopAudit discards audit entries.
type NoopAudit struct{}

func (NoopAudit) Record(context.Context, string, string, string, any) {}

// DocumentLine is one line of a document to process.
type DocumentLine struct {
	PositionID id.ID
	Quantity   types.Quantity
	// UnitPrice is the acquisition cost for purchase lines; ignored otherwise.
	UnitPrice types.Money
	Label     string
}

// LineResult reports how one line was costed and depleted.
type LineResult struct {
	PositionID id.ID                     `json:"positionId"`
	UnitCost   types.Money               `json:"unitCost"`
	Lots       []valuation.LotConsumption `json:"lots"`
}

// DocumentResult is the outcome of ProcessDocumentLines.
type DocumentResult struct {
	MovementID id.ID        `json:"movementId"`
	Number     string       `json:"number"`
	Lines      []LineResult `json:"lines"`
}

// Service is the ledger write service.
type Service struct {
	repo      inventory.LedgerRepository
	engine    *valuation.Engine
	txm       tx.Manager
	numerator Numerator
	audit     AuditRecorder
}

// NewService wires the write service. audit may be nil.
func NewService(repo inventory.LedgerRepository, engine *valuation.Engine, txm tx.Manager, numerator Numerator, audit AuditRecorder) *Service {
	if audit == nil {
		audit = NoopAudit{}
	}
	return &Service{repo: repo, engine: engine, txm: txm, numerator: numerator, audit: audit}
}

// CreateLotAndEntryMovement seeds an initial balance: a lot with a nonzero
// stored initial quantity plus a SALDO-INICIAL ENTRADA movement carrying the
// same quantity. A position gets exactly one initial balance.
func (s *Service) CreateLotAndEntryMovement(ctx context.Context, positionID id.ID, qty types.Quantity, unitCost types.Money, ingressDate time.Time) (*inventory.Lot, error) {
	if !qty.IsPositive() {
		return nil, apperror.NewValidation("initial quantity must be positive")
	}
	if unitCost.IsNegative() {
		return nil, apperror.NewValidation("unit cost must not be negative")
	}
	if _, err := s.repo.GetPosition(ctx, positionID); err != nil {
		return nil, err
	}
	if _, err := s.repo.FindInitialBalanceLot(ctx, positionID); err == nil {
		return nil, apperror.NewDuplicate("initial balance", "position", positionID.String())
	} else if !apperror.IsNotFound(err) {
		return nil, err
	}

	lot := &inventory.Lot{
		ID:          id.New(),
		PositionID:  positionID,
		InitialQty:  qty,
		UnitCost:    unitCost,
		IngressDate: ingressDate,
		Label:       inventory.InitialBalanceRef,
	}

	err := s.txm.RunInTransaction(ctx, func(txCtx context.Context) error {
		number, err := s.numerator.Next(txCtx, seqInitialBalance)
		if err != nil {
			return err
		}
		if err := s.repo.CreateLot(txCtx, lot); err != nil {
			return err
		}
		movement := &inventory.Movement{
			ID:          id.New(),
			Number:      number,
			Kind:        inventory.KindEntry,
			State:       inventory.StateProcessed,
			Date:        ingressDate,
			DocumentRef: inventory.InitialBalanceRef,
		}
		item := inventory.MovementItem{
			ID:         id.New(),
			MovementID: movement.ID,
			PositionID: positionID,
			LotID:      lot.ID,
			Quantity:   qty,
		}
		return s.repo.CreateMovement(txCtx, movement, []inventory.MovementItem{item}, nil)
	})
	if err != nil {
		return nil, err
	}

	s.engine.InvalidateAfterWrite(positionID, lot.ID)
	logger.Info(ctx, "initial balance created",
		"position", positionID, "lot", lot.ID, "qty", qty, "cost", types.FormatMoney(unitCost))
	return lot, nil
}

// ProcessDocumentLines registers one document as a single movement in a
// single transaction.
//
// Purchase lines each create a zero-initial-quantity lot at the line price
// plus an ENTRADA item. All other kinds are exits: the reported unit cost
// comes from the active valuation method, while physical depletion is always
// FIFO; costing and depletion are deliberately decoupled. An exit line owns
// one allocation per lot it touched. Any shortfall aborts the whole document.
func (s *Service) ProcessDocumentLines(ctx context.Context, lines []DocumentLine, opKind OperationKind, method inventory.ValuationMethod, docDate time.Time) (*DocumentResult, error) {
	if len(lines) == 0 {
		return nil, apperror.NewValidation("document has no lines")
	}
	for i := range lines {
		if !lines[i].Quantity.IsPositive() {
			return nil, apperror.NewValidation("line quantity must be positive")
		}
		if opKind.isEntry() && lines[i].UnitPrice.IsNegative() {
			return nil, apperror.NewValidation("line price must not be negative")
		}
		if _, err := s.repo.GetPosition(ctx, lines[i].PositionID); err != nil {
			return nil, err
		}
	}
	method = s.engine.ResolveMethod(ctx, method)

	var result *DocumentResult
	err := s.txm.RunInTransaction(ctx, func(txCtx context.Context) error {
		var err error
		if opKind.isEntry() {
			result, err = s.processEntry(txCtx, lines, docDate)
		} else {
			result, err = s.processExit(txCtx, lines, method, docDate)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	s.invalidateResult(result, lines)
	logger.Info(ctx, "document processed",
		"number", result.Number, "kind", opKind, "lines", len(lines))
	s.audit.Record(ctx, "document.process", "movement", result.MovementID.String(), result)
	return result, nil
}

func (s *Service) processEntry(ctx context.Context, lines []DocumentLine, docDate time.Time) (*DocumentResult, error) {
	number, err := s.numerator.Next(ctx, seqEntry)
	if err != nil {
		return nil, err
	}
	movement := &inventory.Movement{
		ID:          id.New(),
		Number:      number,
		Kind:        inventory.KindEntry,
		State:       inventory.StateProcessed,
		Date:        docDate,
		DocumentRef: number,
	}

	result := &DocumentResult{MovementID: movement.ID, Number: number}
	items := make([]inventory.MovementItem, 0, len(lines))
	for _, line := range lines {
		// Commercial lots store zero initial quantity: their stock flows
		// exclusively through the ledger.
		lot := &inventory.Lot{
			ID:          id.New(),
			PositionID:  line.PositionID,
			InitialQty:  0,
			UnitCost:    line.UnitPrice,
			IngressDate: docDate,
			Label:       line.Label,
		}
		if err := s.repo.CreateLot(ctx, lot); err != nil {
			return nil, err
		}
		items = append(items, inventory.MovementItem{
			ID:         id.New(),
			MovementID: movement.ID,
			PositionID: line.PositionID,
			LotID:      lot.ID,
			Quantity:   line.Quantity,
		})
		result.Lines = append(result.Lines, LineResult{
			PositionID: line.PositionID,
			UnitCost:   line.UnitPrice,
			Lots: []valuation.LotConsumption{{
				LotID: lot.ID, Quantity: line.Quantity, UnitCost: line.UnitPrice,
			}},
		})
	}

	if err := s.repo.CreateMovement(ctx, movement, items, nil); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Service) processExit(ctx context.Context, lines []DocumentLine, method inventory.ValuationMethod, docDate time.Time) (*DocumentResult, error) {
	number, err := s.numerator.Next(ctx, seqExit)
	if err != nil {
		return nil, err
	}
	movement := &inventory.Movement{
		ID:          id.New(),
		Number:      number,
		Kind:        inventory.KindExit,
		State:       inventory.StateProcessed,
		Date:        docDate,
		DocumentRef: number,
	}

	// Per-position working sets so multiple lines of the same position
	// deplete sequentially without re-reading committed state.
	working := make(map[id.ID][]valuation.AvailableLot)

	result := &DocumentResult{MovementID: movement.ID, Number: number}
	items := make([]inventory.MovementItem, 0, len(lines))
	var allocs []inventory.ExitAllocation

	for _, line := range lines {
		set, ok := working[line.PositionID]
		if !ok {
			set, err = s.engine.ListFIFOAvailableLots(ctx, line.PositionID, nil)
			if err != nil {
				return nil, err
			}
		}

		unitCost, err := s.lineUnitCost(ctx, line, method, set)
		if err != nil {
			return nil, err
		}

		plan, rest, err := consumeFromSet(set, line.PositionID, line.Quantity)
		if err != nil {
			return nil, err
		}
		working[line.PositionID] = rest

		item := inventory.MovementItem{
			ID:         id.New(),
			MovementID: movement.ID,
			PositionID: line.PositionID,
			LotID:      id.Nil,
			Quantity:   line.Quantity,
		}
		items = append(items, item)
		for _, c := range plan {
			allocs = append(allocs, inventory.ExitAllocation{
				ID:       id.New(),
				ItemID:   item.ID,
				LotID:    c.LotID,
				Quantity: c.Quantity,
				UnitCost: c.UnitCost,
			})
		}
		result.Lines = append(result.Lines, LineResult{
			PositionID: line.PositionID,
			UnitCost:   unitCost,
			Lots:       plan,
		})
	}

	if err := s.repo.CreateMovement(ctx, movement, items, allocs); err != nil {
		return nil, err
	}
	return result, nil
}

// lineUnitCost values an exit line: the position average under WEIGHTED_AVERAGE,
// the cost-weighted mean of the pending FIFO draw otherwise. The working set
// is authoritative for FIFO so earlier lines of the document are respected.
func (s *Service) lineUnitCost(ctx context.Context, line DocumentLine, method inventory.ValuationMethod, set []valuation.AvailableLot) (types.Money, error) {
	if method == inventory.MethodFIFO {
		plan, _, err := consumeFromSet(set, line.PositionID, line.Quantity)
		if err != nil {
			return types.ZeroMoney(), err
		}
		total := types.ZeroMoney()
		for _, c := range plan {
			total = total.Add(c.Quantity.Mul(c.UnitCost))
		}
		return types.WeightedUnitCost(total, line.Quantity), nil
	}
	stock, err := s.engine.ComputeInventoryStock(ctx, line.PositionID, nil)
	if err != nil {
		return types.ZeroMoney(), err
	}
	return stock.AverageCost, nil
}

// consumeFromSet draws needed units FIFO from the working set, returning the
// plan and the depleted set. Shortfall yields InsufficientStock and no plan.
func consumeFromSet(set []valuation.AvailableLot, positionID id.ID, needed types.Quantity) ([]valuation.LotConsumption, []valuation.AvailableLot, error) {
	var total types.Quantity
	for _, l := range set {
		total += l.Available
	}
	if total < needed {
		return nil, nil, apperror.NewInsufficientStock(positionID.String(), needed.String(), total.String())
	}

	plan := make([]valuation.LotConsumption, 0, len(set))
	rest := make([]valuation.AvailableLot, 0, len(set))
	remaining := needed
	for _, l := range set {
		if remaining.IsZero() {
			rest = append(rest, l)
			continue
		}
		take := remaining.Min(l.Available)
		plan = append(plan, valuation.LotConsumption{
			LotID: l.LotID, Quantity: take, UnitCost: l.UnitCost,
		})
		remaining -= take
		if left := l.Available - take; left.IsPositive() {
			l.Available = left
			rest = append(rest, l)
		}
	}
	return plan, rest, nil
}

func (s *Service) invalidateResult(result *DocumentResult, lines []DocumentLine) {
	seen := make(map[id.ID]bool)
	for _, line := range lines {
		if !seen[line.PositionID] {
			seen[line.PositionID] = true
		}
	}
	for _, lr := range result.Lines {
		lots := make([]id.ID, 0, len(lr.Lots))
		for _, c := range lr.Lots {
			lots = append(lots, c.LotID)
		}
		s.engine.InvalidateAfterWrite(lr.PositionID, lots...)
	}
}

// InitialBalanceCorrection carries the fields to rewrite; nil leaves a field
// untouched.
type InitialBalanceCorrection struct {
	Quantity    *types.Quantity
	UnitCost    *types.Money
	IngressDate *time.Time
}

// CorrectInitialBalance rewrites the position's initial-balance lot and, when
// the quantity changes, the matching SALDO-INICIAL movement item. It touches
// nothing else: subsequent movements are never revalued.
func (s *Service) CorrectInitialBalance(ctx context.Context, positionID id.ID, corr InitialBalanceCorrection) error {
	if corr.Quantity == nil && corr.UnitCost == nil && corr.IngressDate == nil {
		return apperror.NewValidation("correction carries no fields")
	}
	if corr.Quantity != nil && !corr.Quantity.IsPositive() {
		return apperror.NewValidation("corrected quantity must be positive")
	}
	if corr.UnitCost != nil && corr.UnitCost.IsNegative() {
		return apperror.NewValidation("corrected unit cost must not be negative")
	}

	lot, err := s.repo.FindInitialBalanceLot(ctx, positionID)
	if err != nil {
		return err
	}

	before := *lot
	if corr.Quantity != nil {
		lot.InitialQty = *corr.Quantity
	}
	if corr.UnitCost != nil {
		lot.UnitCost = *corr.UnitCost
	}
	if corr.IngressDate != nil {
		lot.IngressDate = *corr.IngressDate
	}

	err = s.txm.RunInTransaction(ctx, func(txCtx context.Context) error {
		if err := s.repo.UpdateLotInitialBalance(txCtx, lot); err != nil {
			return err
		}
		if corr.Quantity == nil {
			return nil
		}
		item, err := s.repo.GetInitialBalanceItem(txCtx, positionID, lot.ID)
		if err != nil {
			// A lot marked initial-balance without its movement item is a
			// broken reference; corrections must not paper over it.
			if apperror.IsNotFound(err) {
				return apperror.NewInconsistentReference("initial balance item", positionID.String())
			}
			return err
		}
		return s.repo.UpdateMovementItemQuantity(txCtx, item.ID, *corr.Quantity)
	})
	if err != nil {
		return err
	}

	s.engine.InvalidateAfterWrite(positionID, lot.ID)
	s.audit.Record(ctx, "initial_balance.correct", "lot", lot.ID.String(), map[string]any{
		"before": map[string]any{
			"qty": before.InitialQty, "cost": types.FormatMoney(before.UnitCost), "ingress": before.IngressDate,
		},
		"after": map[string]any{
			"qty": lot.InitialQty, "cost": types.FormatMoney(lot.UnitCost), "ingress": lot.IngressDate,
		},
	})
	logger.Info(ctx, "initial balance corrected", "position", positionID, "lot", lot.ID)
	return nil
}
