// Package documents provides the commercial document entities shared by all
// document kinds: quotes, delivery notes, purchase orders, invoices and
// credit notes.
package documents

import (
	"time"

	"github.com/shopspring/decimal"
)

// Kind discriminates the document variants. All kinds share one line and
// total shape so the tax calculator and aggregator stay reusable.
type Kind string

const (
	KindQuote         Kind = "QUOTE"
	KindDeliveryNote  Kind = "DELIVERY_NOTE"
	KindPurchaseOrder Kind = "PURCHASE_ORDER"
	KindInvoice       Kind = "INVOICE"
	KindCreditNote    Kind = "CREDIT_NOTE"
)

// IsValid checks if the kind is a known document variant.
func (k Kind) IsValid() bool {
	switch k {
	case KindQuote, KindDeliveryNote, KindPurchaseOrder, KindInvoice, KindCreditNote:
		return true
	default:
		return false
	}
}

// Status represents a document lifecycle state. The set of reachable states
// depends on the document kind.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusSent      Status = "SENT"
	StatusAccepted  Status = "ACCEPTED"
	StatusRefused   Status = "REFUSED"
	StatusPrepared  Status = "PREPARED"
	StatusShipped   Status = "SHIPPED"
	StatusDelivered Status = "DELIVERED"
	StatusReceived  Status = "RECEIVED"
	StatusPaid      Status = "PAID"
	StatusCancelled Status = "CANCELLED"
	StatusIssued    Status = "ISSUED"
)

// transitions lists the legal status moves per kind. Invoice PAID is reached
// through payment settlement and CANCELLED through an explicit cancel, both
// in the billing service; they still appear here so the machine is complete.
var transitions = map[Kind]map[Status][]Status{
	KindQuote: {
		StatusDraft: {StatusSent},
		StatusSent:  {StatusAccepted, StatusRefused},
	},
	KindDeliveryNote: {
		StatusPrepared: {StatusShipped},
		StatusShipped:  {StatusDelivered},
	},
	KindPurchaseOrder: {
		StatusDraft: {StatusSent},
		StatusSent:  {StatusReceived},
	},
	KindInvoice: {
		StatusDraft: {StatusSent, StatusCancelled},
		StatusSent:  {StatusPaid, StatusCancelled},
		StatusPaid:  {StatusSent}, // voiding a payment can reopen the balance
	},
	KindCreditNote: {},
}

// InitialStatus returns the status a freshly created document starts in.
func (k Kind) InitialStatus() Status {
	switch k {
	case KindDeliveryNote:
		return StatusPrepared
	case KindCreditNote:
		return StatusIssued
	default:
		return StatusDraft
	}
}

// CanTransition reports whether moving from one status to another is legal
// for this kind.
func (k Kind) CanTransition(from, to Status) bool {
	for _, next := range transitions[k][from] {
		if next == to {
			return true
		}
	}
	return false
}

// LinesEditable reports whether lines may be added or changed while the
// document is in the given status. Credit notes are immutable from birth.
func (k Kind) LinesEditable(s Status) bool {
	switch k {
	case KindQuote, KindPurchaseOrder, KindInvoice:
		return s == StatusDraft
	case KindDeliveryNote:
		return s == StatusPrepared
	default:
		return false
	}
}

// Totals aggregates the per-line derived amounts at document level.
type Totals struct {
	ExclTax decimal.Decimal `json:"total_excl_tax"`
	Fodec   decimal.Decimal `json:"total_fodec"`
	VAT     decimal.Decimal `json:"total_vat"`
	InclTax decimal.Decimal `json:"total_incl_tax"`
}

// Document is the shared header for every commercial document kind.
type Document struct {
	ID         int64      `json:"id"`
	Kind       Kind       `json:"kind"`
	Number     string     `json:"number"`
	CustomerID int64      `json:"customer_id"`
	IssueDate  time.Time  `json:"issue_date"`
	DueDate    *time.Time `json:"due_date,omitempty"`
	Status     Status     `json:"status"`
	Totals     Totals     `json:"totals"`
	Notes      *string    `json:"notes,omitempty"`

	// RelatedID is a lookup-only back-reference: the invoice a delivery
	// note was consolidated into, or a credit note's origin invoice. It
	// never implies ownership.
	RelatedID *int64 `json:"related_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Lines     []Line    `json:"lines,omitempty"`
}

// Line belongs to exactly one document and weakly references a product.
// Unit price and tax attributes are captured at creation time; the five
// derived fields are computed, never set directly.
type Line struct {
	ID         int64  `json:"id"`
	DocumentID int64  `json:"document_id"`
	ProductID  int64  `json:"product_id"`
	Label      string `json:"label"`

	Quantity        decimal.Decimal `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	VATPercent      decimal.Decimal `json:"vat_percent"`
	FodecApplicable bool            `json:"fodec_applicable"`
	FodecPercent    decimal.Decimal `json:"fodec_percent"`

	ExclTax decimal.Decimal `json:"amount_excl_tax"`
	Fodec   decimal.Decimal `json:"fodec_amount"`
	VATBase decimal.Decimal `json:"vat_base"`
	VAT     decimal.Decimal `json:"vat_amount"`
	InclTax decimal.Decimal `json:"amount_incl_tax"`

	LineOrder int `json:"line_order"`
}
