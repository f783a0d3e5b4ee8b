package billing

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/gescom-app/gescom/internal/documents"
)

// Repository defines data access for settlement. WithTx yields a Repository
// whose operations share one transaction: payment rows, status transitions
// and credit note inserts must commit or roll back together.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error

	GetDocument(ctx context.Context, id int64) (*documents.Document, error)
	UpdateDocumentStatus(ctx context.Context, id int64, status documents.Status) error
	NextSequence(ctx context.Context, family string, year int) (int64, error)
	CreateDocument(ctx context.Context, doc documents.Document) (int64, error)
	InsertDocumentLine(ctx context.Context, line documents.Line) (int64, error)

	// ListCreditNotes returns the credit notes back-referencing an invoice.
	ListCreditNotes(ctx context.Context, invoiceID int64) ([]documents.Document, error)

	InsertPayment(ctx context.Context, payment Payment) (int64, error)
	GetPayment(ctx context.Context, id int64) (*Payment, error)
	ListPayments(ctx context.Context, documentID int64) ([]Payment, error)
	UpdatePaymentStatus(ctx context.Context, id int64, status PaymentStatus) error
	SumValidPayments(ctx context.Context, documentID int64) (decimal.Decimal, error)

	// RevenueTotals sums invoice and credit note totals, excluding
	// cancelled invoices from the invoiced figure.
	RevenueTotals(ctx context.Context) (invoiced, credited decimal.Decimal, err error)
}
