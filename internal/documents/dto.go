package documents

import (
	"time"

	"github.com/shopspring/decimal"
)

// LineRequest carries the commercial inputs of one line. Derived amounts are
// never accepted from callers; they are recomputed server side.
type LineRequest struct {
	ProductID       int64           `json:"product_id" validate:"required"`
	Label           string          `json:"label"`
	Quantity        decimal.Decimal `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	VATPercent      decimal.Decimal `json:"vat_percent"`
	FodecApplicable bool            `json:"fodec_applicable"`
	FodecPercent    decimal.Decimal `json:"fodec_percent"`
	LineOrder       int             `json:"line_order"`
}

// CreateDocumentRequest creates a new document of any kind except credit
// notes, which are issued through the billing service.
type CreateDocumentRequest struct {
	Kind       Kind          `json:"kind" validate:"required"`
	CustomerID int64         `json:"customer_id" validate:"required"`
	IssueDate  *time.Time    `json:"issue_date,omitempty"`
	Notes      *string       `json:"notes,omitempty"`
	Lines      []LineRequest `json:"lines" validate:"dive"`
}

// UpdateLinesRequest replaces the full line set of an editable document.
type UpdateLinesRequest struct {
	Lines []LineRequest `json:"lines" validate:"required,dive"`
}

// TransitionRequest moves a document to a new lifecycle status.
type TransitionRequest struct {
	Status Status `json:"status" validate:"required"`
}

// ConvertQuoteRequest spawns a delivery note or invoice from an accepted quote.
type ConvertQuoteRequest struct {
	Target Kind `json:"target" validate:"required"`
}

// ListRequest filters the document listing.
type ListRequest struct {
	Kind       *Kind
	CustomerID *int64
	Status     *Status
	Limit      int
	Offset     int
}
