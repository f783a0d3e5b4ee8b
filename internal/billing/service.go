package billing

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/gescom-app/gescom/internal/documents"
	"github.com/gescom-app/gescom/internal/shared"
	"github.com/gescom-app/gescom/internal/tax"
)

// AuditRecorder persists audit trail entries.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service handles invoice settlement business logic.
type Service struct {
	repo    Repository
	cache   *RevenueCache
	audit   AuditRecorder
	logger  *slog.Logger
	revenue singleflight.Group
}

// NewService builds a Service instance.
func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// SetRevenueCache wires the Redis revenue cache.
func (s *Service) SetRevenueCache(cache *RevenueCache) {
	s.cache = cache
}

// SetAuditRecorder wires the audit trail writer.
func (s *Service) SetAuditRecorder(audit AuditRecorder) {
	s.audit = audit
}

// balanceLocked computes the settlement position of an invoice using the
// given repository, which may be transactional. Credited is the (negative)
// sum of related credit note totals.
func balanceLocked(ctx context.Context, repo Repository, invoice *documents.Document) (InvoiceBalance, error) {
	paid, err := repo.SumValidPayments(ctx, invoice.ID)
	if err != nil {
		return InvoiceBalance{}, err
	}
	creditNotes, err := repo.ListCreditNotes(ctx, invoice.ID)
	if err != nil {
		return InvoiceBalance{}, err
	}
	credited := decimal.Decimal{}
	for _, note := range creditNotes {
		credited = credited.Add(note.Totals.InclTax)
	}
	return InvoiceBalance{
		Total:       invoice.Totals.InclTax,
		Credited:    credited,
		Paid:        paid,
		Outstanding: invoice.Totals.InclTax.Add(credited).Sub(paid),
	}, nil
}

// Balance returns the settlement position of an invoice.
func (s *Service) Balance(ctx context.Context, invoiceID int64) (InvoiceBalance, error) {
	invoice, err := s.getInvoice(ctx, s.repo, invoiceID)
	if err != nil {
		return InvoiceBalance{}, err
	}
	return balanceLocked(ctx, s.repo, invoice)
}

func (s *Service) getInvoice(ctx context.Context, repo Repository, id int64) (*documents.Document, error) {
	doc, err := repo.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.Kind != documents.KindInvoice {
		return nil, fmt.Errorf("%w: %s is a %s", ErrNotInvoice, doc.Number, doc.Kind)
	}
	return doc, nil
}

// ApplyPayment records a valid payment against a sent invoice. When the
// outstanding balance reaches zero, within the settlement epsilon, the
// invoice transitions to PAID in the same transaction.
func (s *Service) ApplyPayment(ctx context.Context, input ApplyPaymentInput) (*Payment, error) {
	if !input.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	paidAt := time.Now()
	if input.PaidAt != nil {
		paidAt = *input.PaidAt
	}

	var created *Payment
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		invoice, err := s.getInvoice(ctx, repo, input.InvoiceID)
		if err != nil {
			return err
		}
		if invoice.Status != documents.StatusSent {
			return fmt.Errorf("%w: %s is %s", ErrNotPayable, invoice.Number, invoice.Status)
		}

		payment := Payment{
			DocumentID: invoice.ID,
			Amount:     input.Amount,
			Method:     input.Method,
			PaidAt:     paidAt,
			Status:     PaymentValid,
		}
		id, err := repo.InsertPayment(ctx, payment)
		if err != nil {
			return fmt.Errorf("insert payment: %w", err)
		}
		payment.ID = id
		created = &payment

		balance, err := balanceLocked(ctx, repo, invoice)
		if err != nil {
			return err
		}
		if balance.Outstanding.LessThanOrEqual(tax.SettlementEpsilon) {
			if err := repo.UpdateDocumentStatus(ctx, invoice.ID, documents.StatusPaid); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, "payment.apply", input.InvoiceID, map[string]any{
		"payment_id": created.ID, "amount": created.Amount.String(), "method": created.Method,
	})
	return created, nil
}

// VoidPayment voids a payment, restoring the invoice's outstanding balance.
// A paid invoice whose balance becomes positive again reverts to SENT.
func (s *Service) VoidPayment(ctx context.Context, paymentID int64) (*Payment, error) {
	var voided *Payment
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		payment, err := repo.GetPayment(ctx, paymentID)
		if err != nil {
			return err
		}
		if payment.Status == PaymentVoid {
			return ErrPaymentAlreadyVoid
		}
		if err := repo.UpdatePaymentStatus(ctx, paymentID, PaymentVoid); err != nil {
			return err
		}
		payment.Status = PaymentVoid
		voided = payment

		invoice, err := s.getInvoice(ctx, repo, payment.DocumentID)
		if err != nil {
			return err
		}
		balance, err := balanceLocked(ctx, repo, invoice)
		if err != nil {
			return err
		}
		if invoice.Status == documents.StatusPaid && balance.Outstanding.GreaterThan(tax.SettlementEpsilon) {
			if err := repo.UpdateDocumentStatus(ctx, invoice.ID, documents.StatusSent); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, "payment.void", voided.DocumentID, map[string]any{"payment_id": voided.ID})
	return voided, nil
}

// CancelInvoice cancels an invoice that has no valid payments. Cancelled
// invoices drop out of revenue aggregation.
func (s *Service) CancelInvoice(ctx context.Context, invoiceID int64) (*documents.Document, error) {
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		invoice, err := s.getInvoice(ctx, repo, invoiceID)
		if err != nil {
			return err
		}
		if !invoice.Kind.CanTransition(invoice.Status, documents.StatusCancelled) {
			return fmt.Errorf("%w: %s is %s", ErrNotCancellable, invoice.Number, invoice.Status)
		}
		paid, err := repo.SumValidPayments(ctx, invoice.ID)
		if err != nil {
			return err
		}
		if paid.IsPositive() {
			return fmt.Errorf("%w: %s", ErrInvoiceHasPayments, invoice.Number)
		}
		return repo.UpdateDocumentStatus(ctx, invoice.ID, documents.StatusCancelled)
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx)
	s.recordAudit(ctx, "invoice.cancel", invoiceID, nil)
	return s.repo.GetDocument(ctx, invoiceID)
}

// CreateCreditNote issues an immutable credit note against a sent or paid
// invoice. Its lines carry negated amounts so the note reduces the invoice's
// effective balance and the revenue aggregate.
func (s *Service) CreateCreditNote(ctx context.Context, input CreateCreditNoteInput) (*documents.Document, error) {
	var noteID int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		invoice, err := s.getInvoice(ctx, repo, input.InvoiceID)
		if err != nil {
			return err
		}
		if invoice.Status != documents.StatusSent && invoice.Status != documents.StatusPaid {
			return fmt.Errorf("%w: %s is %s", ErrNotCreditable, invoice.Number, invoice.Status)
		}

		lines, err := creditLines(invoice, input.Lines)
		if err != nil {
			return err
		}

		issueDate := time.Now()
		seq, err := repo.NextSequence(ctx, documents.KindCreditNote.Family(), issueDate.Year())
		if err != nil {
			return err
		}

		origin := invoice.ID
		note := documents.Document{
			Kind:       documents.KindCreditNote,
			Number:     documents.FormatNumber(documents.KindCreditNote, issueDate, seq),
			CustomerID: invoice.CustomerID,
			IssueDate:  issueDate,
			Status:     documents.StatusIssued,
			Totals:     documents.Aggregate(lines),
			Notes:      input.Notes,
			RelatedID:  &origin,
		}

		id, err := repo.CreateDocument(ctx, note)
		if err != nil {
			return fmt.Errorf("create credit note: %w", err)
		}
		noteID = id

		for _, line := range lines {
			line.DocumentID = noteID
			if _, err := repo.InsertDocumentLine(ctx, line); err != nil {
				return fmt.Errorf("insert credit note line: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx)
	s.recordAudit(ctx, "creditnote.issue", input.InvoiceID, map[string]any{"credit_note_id": noteID})
	return s.repo.GetDocument(ctx, noteID)
}

// creditLines values the credited lines as negative adjustments against the
// invoice: amounts are derived on the positive quantities, then negated.
// An empty request credits the full invoice line set.
func creditLines(invoice *documents.Document, reqs []documents.LineRequest) ([]documents.Line, error) {
	if len(reqs) == 0 {
		reqs = make([]documents.LineRequest, 0, len(invoice.Lines))
		for _, src := range invoice.Lines {
			reqs = append(reqs, documents.LineRequest{
				ProductID:       src.ProductID,
				Label:           src.Label,
				Quantity:        src.Quantity,
				UnitPrice:       src.UnitPrice,
				DiscountPercent: src.DiscountPercent,
				VATPercent:      src.VATPercent,
				FodecApplicable: src.FodecApplicable,
				FodecPercent:    src.FodecPercent,
				LineOrder:       src.LineOrder,
			})
		}
	}

	lines := make([]documents.Line, 0, len(reqs))
	for i, req := range reqs {
		if !req.Quantity.IsPositive() {
			return nil, fmt.Errorf("line %d: %w", i+1, documents.ErrInvalidQuantity)
		}
		line := documents.Line{
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
		computed, err := documents.ComputeLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		computed.Quantity = computed.Quantity.Neg()
		computed.ExclTax = computed.ExclTax.Neg()
		computed.Fodec = computed.Fodec.Neg()
		computed.VATBase = computed.VATBase.Neg()
		computed.VAT = computed.VAT.Neg()
		computed.InclTax = computed.InclTax.Neg()
		lines = append(lines, computed)
	}
	return lines, nil
}

// Revenue returns the issued revenue summary. Concurrent callers collapse
// onto one computation and results are served from Redis until the TTL or
// an invalidating write.
func (s *Service) Revenue(ctx context.Context) (RevenueSummary, error) {
	if summary, ok := s.cache.Get(ctx); ok {
		return summary, nil
	}

	value, err, _ := s.revenue.Do(revenueCacheKey, func() (interface{}, error) {
		invoiced, credited, err := s.repo.RevenueTotals(ctx)
		if err != nil {
			return RevenueSummary{}, err
		}
		summary := RevenueSummary{
			Invoiced: invoiced,
			Credited: credited,
			Net:      invoiced.Add(credited),
		}
		s.cache.Set(ctx, summary)
		return summary, nil
	})
	if err != nil {
		return RevenueSummary{}, err
	}
	return value.(RevenueSummary), nil
}

// ListPayments returns the payments recorded against an invoice.
func (s *Service) ListPayments(ctx context.Context, invoiceID int64) ([]Payment, error) {
	return s.repo.ListPayments(ctx, invoiceID)
}

func (s *Service) recordAudit(ctx context.Context, action string, invoiceID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		Action:   action,
		Entity:   "invoice",
		EntityID: strconv.FormatInt(invoiceID, 10),
		Meta:     meta,
	})
	if err != nil && s.logger != nil {
		s.logger.Warn("audit record failed", slog.Any("error", err))
	}
}
