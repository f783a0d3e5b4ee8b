// Package catalog manages the product referential: pricing and tax
// attributes captured onto document lines, plus a running stock level.
package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProductType distinguishes items sold to customers from items bought
// from suppliers.
type ProductType string

const (
	TypeSale     ProductType = "SALE"
	TypePurchase ProductType = "PURCHASE"
)

// IsValid reports whether the product type is a known value.
func (t ProductType) IsValid() bool {
	switch t {
	case TypeSale, TypePurchase:
		return true
	}
	return false
}

// Product is a sellable or purchasable item. VAT and FODEC attributes are
// defaults copied onto document lines at creation time; later product edits
// never rewrite existing lines.
type Product struct {
	ID              int64           `json:"id"`
	Reference       string          `json:"reference"`
	Name            string          `json:"name"`
	Type            ProductType     `json:"type"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	VATPercent      decimal.Decimal `json:"vat_percent"`
	FodecApplicable bool            `json:"fodec_applicable"`
	FodecPercent    decimal.Decimal `json:"fodec_percent"`
	Stock           decimal.Decimal `json:"stock"`
	IsActive        bool            `json:"is_active"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// ListFilters narrows the product listing.
type ListFilters struct {
	Search   string
	Type     *ProductType
	IsActive *bool
	Limit    int
	Offset   int
}
