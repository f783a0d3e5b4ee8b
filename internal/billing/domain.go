// Package billing manages invoice settlement: payments, credit notes,
// cancellation and revenue aggregation.
package billing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/gescom-app/gescom/internal/documents"
)

// PaymentStatus marks a payment as counting towards settlement or not.
type PaymentStatus string

const (
	PaymentValid PaymentStatus = "VALID"
	PaymentVoid  PaymentStatus = "VOID"
)

// Payment belongs to one invoice. The sum of valid payments determines the
// invoice's settlement state.
type Payment struct {
	ID         int64           `json:"id"`
	DocumentID int64           `json:"document_id"`
	Amount     decimal.Decimal `json:"amount"`
	Method     string          `json:"method"`
	PaidAt     time.Time       `json:"paid_at"`
	Status     PaymentStatus   `json:"status"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// ApplyPaymentInput records a payment against an invoice.
type ApplyPaymentInput struct {
	InvoiceID int64           `json:"invoice_id" validate:"required"`
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"method" validate:"required"`
	PaidAt    *time.Time      `json:"paid_at,omitempty"`
}

// CreateCreditNoteInput issues a credit note against an invoice. When Lines
// is empty the full invoice line set is credited.
type CreateCreditNoteInput struct {
	InvoiceID int64                   `json:"invoice_id" validate:"required"`
	Lines     []documents.LineRequest `json:"lines,omitempty" validate:"dive"`
	Notes     *string                 `json:"notes,omitempty"`
}

// InvoiceBalance summarises an invoice's settlement position. Credited is
// negative, mirroring the credit note totals it aggregates.
type InvoiceBalance struct {
	Total       decimal.Decimal `json:"total"`
	Credited    decimal.Decimal `json:"credited"`
	Paid        decimal.Decimal `json:"paid"`
	Outstanding decimal.Decimal `json:"outstanding"`
}

// RevenueSummary aggregates issued revenue: non-cancelled invoices plus the
// (negative) credit note totals.
type RevenueSummary struct {
	Invoiced decimal.Decimal `json:"invoiced"`
	Credited decimal.Decimal `json:"credited"`
	Net      decimal.Decimal `json:"net"`
}
