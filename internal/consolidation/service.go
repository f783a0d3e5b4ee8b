// Package consolidation merges the lines of several delivery notes for one
// customer into a single invoice, re-deriving every amount from merged
// quantities instead of copying totals.
package consolidation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/gescom-app/gescom/internal/documents"
	"github.com/gescom-app/gescom/internal/shared"
)

// Preconditions are checked before any write; a violation aborts the whole
// operation with nothing persisted.
var (
	ErrEmptySelection      = errors.New("at least one source document is required")
	ErrCustomerMismatch    = errors.New("source documents belong to different customers")
	ErrKindMismatch        = errors.New("only delivery notes can be consolidated")
	ErrDuplicateSource     = errors.New("source document selected twice")
	ErrAlreadyConsolidated = errors.New("source document is already linked to an invoice")
)

// Config carries consolidation tunables.
type Config struct {
	// PaymentTermDays sets the invoice due date offset from the issue date.
	PaymentTermDays int
}

// Result is the outcome of a consolidation. Warnings flag source lines whose
// pricing terms diverged from the representative first-seen line; the
// first-seen values are the ones applied.
type Result struct {
	Invoice  *documents.Document `json:"invoice"`
	Warnings []string            `json:"warnings,omitempty"`
}

// AuditRecorder persists audit trail entries.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service implements the consolidation engine.
type Service struct {
	repo   documents.Repository
	audit  AuditRecorder
	logger *slog.Logger
	cfg    Config
}

// NewService creates a consolidation service.
func NewService(repo documents.Repository, logger *slog.Logger, cfg Config) *Service {
	if cfg.PaymentTermDays <= 0 {
		cfg.PaymentTermDays = 30
	}
	return &Service{repo: repo, logger: logger, cfg: cfg}
}

// SetAuditRecorder wires the audit trail writer.
func (s *Service) SetAuditRecorder(audit AuditRecorder) {
	s.audit = audit
}

// mergedLine tracks one product group during the merge. The representative
// pricing terms come from the first-seen line of the product, in the
// caller-provided selection order.
type mergedLine struct {
	line       documents.Line
	sourceDoc  string
	divergence []string
}

// Consolidate merges the given delivery notes into one invoice. All
// preconditions precede any mutation; the sequence bump, the invoice insert
// and the source back-references commit as one transaction.
func (s *Service) Consolidate(ctx context.Context, sourceIDs []int64) (*Result, error) {
	if len(sourceIDs) == 0 {
		return nil, ErrEmptySelection
	}

	seen := make(map[int64]struct{}, len(sourceIDs))
	sources := make([]*documents.Document, 0, len(sourceIDs))
	for _, id := range sourceIDs {
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateSource, id)
		}
		seen[id] = struct{}{}

		doc, err := s.repo.Get(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load source %d: %w", id, err)
		}
		if doc.Kind != documents.KindDeliveryNote {
			return nil, fmt.Errorf("%w: %s is a %s", ErrKindMismatch, doc.Number, doc.Kind)
		}
		if doc.RelatedID != nil {
			return nil, fmt.Errorf("%w: %s", ErrAlreadyConsolidated, doc.Number)
		}
		sources = append(sources, doc)
	}

	customerID := sources[0].CustomerID
	for _, doc := range sources[1:] {
		if doc.CustomerID != customerID {
			return nil, fmt.Errorf("%w: %s", ErrCustomerMismatch, doc.Number)
		}
	}

	merged, warnings, err := mergeLines(sources)
	if err != nil {
		return nil, err
	}

	issueDate := time.Now()
	dueDate := issueDate.AddDate(0, 0, s.cfg.PaymentTermDays)

	var invoiceID int64
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo documents.Repository) error {
		seq, err := repo.NextSequence(ctx, documents.KindInvoice.Family(), issueDate.Year())
		if err != nil {
			return err
		}

		invoice := documents.Document{
			Kind:       documents.KindInvoice,
			Number:     documents.FormatNumber(documents.KindInvoice, issueDate, seq),
			CustomerID: customerID,
			IssueDate:  issueDate,
			DueDate:    &dueDate,
			Status:     documents.StatusDraft,
			// Totals are recomputed from the consolidated lines, never
			// copied from the sources.
			Totals: documents.Aggregate(merged),
		}

		id, err := repo.Create(ctx, invoice)
		if err != nil {
			return fmt.Errorf("create invoice: %w", err)
		}
		invoiceID = id

		for _, line := range merged {
			line.DocumentID = invoiceID
			if _, err := repo.InsertLine(ctx, line); err != nil {
				return fmt.Errorf("insert invoice line: %w", err)
			}
		}

		// Sources stay behind for audit; only the back-reference changes.
		for _, src := range sources {
			if err := repo.SetRelated(ctx, src.ID, &invoiceID); err != nil {
				return fmt.Errorf("link source %s: %w", src.Number, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, invoiceID, sources, warnings)

	invoice, err := s.repo.Get(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	return &Result{Invoice: invoice, Warnings: warnings}, nil
}

// mergeLines groups all source lines by product, sums quantities within a
// group and re-derives amounts through the tax calculator so discount, FODEC
// and VAT apply once to the merged base. Single-line groups are recomputed
// the same way, which also repairs stale derived fields on a source line.
func mergeLines(sources []*documents.Document) ([]documents.Line, []string, error) {
	groups := make(map[int64]*mergedLine)
	var order []int64

	for _, doc := range sources {
		for _, src := range doc.Lines {
			group, ok := groups[src.ProductID]
			if !ok {
				groups[src.ProductID] = &mergedLine{
					line: documents.Line{
						ProductID:       src.ProductID,
						Label:           src.Label,
						Quantity:        src.Quantity,
						UnitPrice:       src.UnitPrice,
						DiscountPercent: src.DiscountPercent,
						VATPercent:      src.VATPercent,
						FodecApplicable: src.FodecApplicable,
						FodecPercent:    src.FodecPercent,
					},
					sourceDoc: doc.Number,
				}
				order = append(order, src.ProductID)
				continue
			}

			group.line.Quantity = group.line.Quantity.Add(src.Quantity)
			if !src.UnitPrice.Equal(group.line.UnitPrice) {
				group.divergence = append(group.divergence, fmt.Sprintf(
					"product %d: unit price %s in %s differs from %s in %s",
					src.ProductID, src.UnitPrice, doc.Number, group.line.UnitPrice, group.sourceDoc))
			}
			if !src.DiscountPercent.Equal(group.line.DiscountPercent) {
				group.divergence = append(group.divergence, fmt.Sprintf(
					"product %d: discount %s%% in %s differs from %s%% in %s",
					src.ProductID, src.DiscountPercent, doc.Number, group.line.DiscountPercent, group.sourceDoc))
			}
		}
	}

	var warnings []string
	lines := make([]documents.Line, 0, len(order))
	for i, productID := range order {
		group := groups[productID]
		group.line.LineOrder = i + 1
		computed, err := documents.ComputeLine(group.line)
		if err != nil {
			return nil, nil, fmt.Errorf("product %d: %w", productID, err)
		}
		lines = append(lines, computed)
		warnings = append(warnings, group.divergence...)
	}
	return lines, warnings, nil
}

func (s *Service) recordAudit(ctx context.Context, invoiceID int64, sources []*documents.Document, warnings []string) {
	if s.audit == nil {
		return
	}
	sourceNumbers := make([]string, 0, len(sources))
	for _, src := range sources {
		sourceNumbers = append(sourceNumbers, src.Number)
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		Action:   "consolidation.merge",
		Entity:   "document",
		EntityID: strconv.FormatInt(invoiceID, 10),
		Meta:     map[string]any{"sources": sourceNumbers, "warnings": warnings},
	})
	if err != nil && s.logger != nil {
		s.logger.Warn("audit record failed", slog.Any("error", err))
	}
}
