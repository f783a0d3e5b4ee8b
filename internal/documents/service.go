package documents

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gescom-app/gescom/internal/shared"
)

// StockAdjuster applies stock movements triggered by document lifecycle
// events (delivery note shipped, purchase order received).
type StockAdjuster interface {
	Adjust(ctx context.Context, productID int64, delta decimal.Decimal) error
}

// AuditRecorder persists audit trail entries.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ServiceConfig carries tunables for document creation.
type ServiceConfig struct {
	// PaymentTermDays sets the invoice due date offset from the issue date.
	PaymentTermDays int
}

// Service provides business logic for commercial documents.
type Service struct {
	repo   Repository
	stock  StockAdjuster
	audit  AuditRecorder
	logger *slog.Logger
	cfg    ServiceConfig
}

// NewService creates a new document service.
func NewService(repo Repository, logger *slog.Logger, cfg ServiceConfig) *Service {
	if cfg.PaymentTermDays <= 0 {
		cfg.PaymentTermDays = 30
	}
	return &Service{repo: repo, logger: logger, cfg: cfg}
}

// SetStockAdjuster wires the catalog stock hook.
func (s *Service) SetStockAdjuster(stock StockAdjuster) {
	s.stock = stock
}

// SetAuditRecorder wires the audit trail writer.
func (s *Service) SetAuditRecorder(audit AuditRecorder) {
	s.audit = audit
}

// PaymentTermDays exposes the configured default payment term.
func (s *Service) PaymentTermDays() int {
	return s.cfg.PaymentTermDays
}

// buildLines validates the requested lines and derives their amounts.
func buildLines(reqs []LineRequest) ([]Line, error) {
	lines := make([]Line, 0, len(reqs))
	for i, req := range reqs {
		if !req.Quantity.IsPositive() {
			return nil, fmt.Errorf("line %d: %w", i+1, ErrInvalidQuantity)
		}
		line := Line{
			ProductID:       req.ProductID,
			Label:           req.Label,
			Quantity:        req.Quantity,
			UnitPrice:       req.UnitPrice,
			DiscountPercent: req.DiscountPercent,
			VATPercent:      req.VATPercent,
			FodecApplicable: req.FodecApplicable,
			FodecPercent:    req.FodecPercent,
			LineOrder:       req.LineOrder,
		}
		if line.LineOrder == 0 {
			line.LineOrder = i + 1
		}
		computed, err := ComputeLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		lines = append(lines, computed)
	}
	return lines, nil
}

// Create builds a new document: number from the family sequence, initial
// status per kind, totals aggregated from freshly derived lines. The
// sequence bump and the inserts commit together.
func (s *Service) Create(ctx context.Context, req CreateDocumentRequest) (*Document, error) {
	if !req.Kind.IsValid() {
		return nil, ErrInvalidKind
	}
	if req.Kind == KindCreditNote {
		return nil, fmt.Errorf("%w: credit notes are issued against an invoice", ErrKindMismatch)
	}
	if req.CustomerID == 0 {
		return nil, ErrCustomerMissing
	}

	issueDate := time.Now()
	if req.IssueDate != nil {
		issueDate = *req.IssueDate
	}

	lines, err := buildLines(req.Lines)
	if err != nil {
		return nil, err
	}

	var docID int64
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		seq, err := repo.NextSequence(ctx, req.Kind.Family(), issueDate.Year())
		if err != nil {
			return err
		}

		doc := Document{
			Kind:       req.Kind,
			Number:     FormatNumber(req.Kind, issueDate, seq),
			CustomerID: req.CustomerID,
			IssueDate:  issueDate,
			Status:     req.Kind.InitialStatus(),
			Totals:     Aggregate(lines),
			Notes:      req.Notes,
		}
		if req.Kind == KindInvoice {
			due := issueDate.AddDate(0, 0, s.cfg.PaymentTermDays)
			doc.DueDate = &due
		}

		id, err := repo.Create(ctx, doc)
		if err != nil {
			return fmt.Errorf("create document: %w", err)
		}
		docID = id

		for _, line := range lines {
			line.DocumentID = docID
			if _, err := repo.InsertLine(ctx, line); err != nil {
				return fmt.Errorf("insert line: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.repo.Get(ctx, docID)
}

// UpdateLines replaces the line set of an editable document and recomputes
// every derived field and the totals in one transaction, so aggregate totals
// never go stale after a line mutation.
func (s *Service) UpdateLines(ctx context.Context, id int64, req UpdateLinesRequest) (*Document, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.Kind == KindCreditNote {
		return nil, ErrImmutable
	}
	if !existing.Kind.LinesEditable(existing.Status) {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotEditable, existing.Number, existing.Status)
	}

	lines, err := buildLines(req.Lines)
	if err != nil {
		return nil, err
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if err := repo.DeleteLines(ctx, id); err != nil {
			return err
		}
		for _, line := range lines {
			line.DocumentID = id
			if _, err := repo.InsertLine(ctx, line); err != nil {
				return err
			}
		}
		return repo.UpdateTotals(ctx, id, Aggregate(lines))
	})
	if err != nil {
		return nil, fmt.Errorf("update lines: %w", err)
	}

	return s.repo.Get(ctx, id)
}

// Transition moves a document to a new status if the move is legal for its
// kind. Invoice settlement and cancellation carry payment rules and live in
// the billing service; this path refuses them.
func (s *Service) Transition(ctx context.Context, id int64, to Status) (*Document, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.Kind == KindCreditNote {
		return nil, ErrImmutable
	}
	if existing.Kind == KindInvoice && (to == StatusPaid || to == StatusCancelled) {
		return nil, fmt.Errorf("%w: %s is managed by billing", ErrIllegalTransition, to)
	}
	if !existing.Kind.CanTransition(existing.Status, to) {
		return nil, fmt.Errorf("%w: %s cannot go from %s to %s",
			ErrIllegalTransition, existing.Kind, existing.Status, to)
	}

	if err := s.repo.UpdateStatus(ctx, id, to); err != nil {
		return nil, err
	}

	s.applyStockEffects(ctx, existing, to)
	s.recordAudit(ctx, "document.transition", existing, map[string]any{
		"from": existing.Status, "to": to,
	})

	return s.repo.Get(ctx, id)
}

// applyStockEffects moves stock when goods physically leave or enter:
// shipping a delivery note decrements, receiving a purchase order increments.
// Stock is advisory, not transactional with the status change.
func (s *Service) applyStockEffects(ctx context.Context, doc *Document, to Status) {
	if s.stock == nil {
		return
	}
	var sign decimal.Decimal
	switch {
	case doc.Kind == KindDeliveryNote && to == StatusShipped:
		sign = decimal.NewFromInt(-1)
	case doc.Kind == KindPurchaseOrder && to == StatusReceived:
		sign = decimal.NewFromInt(1)
	default:
		return
	}
	for _, line := range doc.Lines {
		if err := s.stock.Adjust(ctx, line.ProductID, line.Quantity.Mul(sign)); err != nil && s.logger != nil {
			s.logger.Warn("stock adjustment failed",
				slog.Int64("product_id", line.ProductID), slog.Any("error", err))
		}
	}
}

// ConvertQuote spawns a delivery note or invoice from an accepted quote,
// copying the commercial inputs and re-deriving every amount under a fresh
// number. The new document back-references the quote.
func (s *Service) ConvertQuote(ctx context.Context, quoteID int64, target Kind) (*Document, error) {
	if target != KindDeliveryNote && target != KindInvoice {
		return nil, fmt.Errorf("%w: quotes convert to delivery notes or invoices", ErrKindMismatch)
	}

	quote, err := s.repo.Get(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	if quote.Kind != KindQuote {
		return nil, fmt.Errorf("%w: %s is a %s", ErrKindMismatch, quote.Number, quote.Kind)
	}
	if quote.Status != StatusAccepted {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotConvertible, quote.Number, quote.Status)
	}

	issueDate := time.Now()
	lines := make([]Line, 0, len(quote.Lines))
	for _, src := range quote.Lines {
		line := Line{
			ProductID:       src.ProductID,
			Label:           src.Label,
			Quantity:        src.Quantity,
			UnitPrice:       src.UnitPrice,
			DiscountPercent: src.DiscountPercent,
			VATPercent:      src.VATPercent,
			FodecApplicable: src.FodecApplicable,
			FodecPercent:    src.FodecPercent,
			LineOrder:       src.LineOrder,
		}
		computed, err := ComputeLine(line)
		if err != nil {
			return nil, err
		}
		lines = append(lines, computed)
	}

	var docID int64
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		seq, err := repo.NextSequence(ctx, target.Family(), issueDate.Year())
		if err != nil {
			return err
		}

		quoteRef := quote.ID
		doc := Document{
			Kind:       target,
			Number:     FormatNumber(target, issueDate, seq),
			CustomerID: quote.CustomerID,
			IssueDate:  issueDate,
			Status:     target.InitialStatus(),
			Totals:     Aggregate(lines),
			RelatedID:  &quoteRef,
		}
		if target == KindInvoice {
			due := issueDate.AddDate(0, 0, s.cfg.PaymentTermDays)
			doc.DueDate = &due
		}

		id, err := repo.Create(ctx, doc)
		if err != nil {
			return err
		}
		docID = id

		for _, line := range lines {
			line.DocumentID = docID
			if _, err := repo.InsertLine(ctx, line); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("convert quote: %w", err)
	}

	s.recordAudit(ctx, "document.convert", quote, map[string]any{"target": target, "new_id": docID})

	return s.repo.Get(ctx, docID)
}

// Delete removes a document with its lines and payments, clearing any
// back-reference pointing at it, all in one transaction.
func (s *Service) Delete(ctx context.Context, id int64) error {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		return repo.Delete(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}

	s.recordAudit(ctx, "document.delete", existing, nil)
	return nil
}

// Get returns a document with its lines.
func (s *Service) Get(ctx context.Context, id int64) (*Document, error) {
	return s.repo.Get(ctx, id)
}

// List returns filtered document headers.
func (s *Service) List(ctx context.Context, req ListRequest) ([]Document, int, error) {
	return s.repo.List(ctx, req)
}

func (s *Service) recordAudit(ctx context.Context, action string, doc *Document, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if meta == nil {
		meta = map[string]any{}
	}
	meta["number"] = doc.Number
	err := s.audit.Record(ctx, shared.AuditLog{
		Action:   action,
		Entity:   "document",
		EntityID: strconv.FormatInt(doc.ID, 10),
		Meta:     meta,
	})
	if err != nil && s.logger != nil {
		s.logger.Warn("audit record failed", slog.Any("error", err))
	}
}
