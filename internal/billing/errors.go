package billing

import "errors"

// Domain errors for invoice settlement.
var (
	// ErrNotFound indicates the payment was not found.
	ErrNotFound = errors.New("payment not found")

	// ErrNotInvoice rejects settlement operations on other document kinds.
	ErrNotInvoice = errors.New("document is not an invoice")

	// Lifecycle errors.
	ErrNotPayable         = errors.New("invoice must be sent before payments apply")
	ErrInvoiceHasPayments = errors.New("invoice has valid payments; void them before cancelling")
	ErrNotCancellable     = errors.New("invoice cannot be cancelled in current status")
	ErrNotCreditable      = errors.New("credit notes apply to sent or paid invoices only")
	ErrPaymentAlreadyVoid = errors.New("payment is already void")

	// Validation errors.
	ErrInvalidAmount = errors.New("payment amount must be greater than zero")
)
