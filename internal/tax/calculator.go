// Package tax derives the monetary fields of a document line from its
// commercial inputs. Amounts are decimal with three fractional digits
// (millimes); the computation order is a fiscal requirement and must not
// be rearranged.
package tax

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Precision is the number of fractional digits carried by every persisted
// monetary amount. Per-unit prices use sub-cent units, so two digits are
// not enough.
const Precision = 3

// SettlementEpsilon is the tolerance used when comparing cumulative
// payments against an invoice total.
var SettlementEpsilon = decimal.New(5, -(Precision + 1))

var (
	// ErrInvalidInput is the base error wrapped by all input rejections.
	ErrInvalidInput = errors.New("invalid line input")

	ErrNegativeQuantity   = fmt.Errorf("%w: quantity must not be negative", ErrInvalidInput)
	ErrNegativeUnitPrice  = fmt.Errorf("%w: unit price must not be negative", ErrInvalidInput)
	ErrDiscountOutOfRange = fmt.Errorf("%w: discount percent must be between 0 and 100", ErrInvalidInput)
	ErrNegativeVATRate    = fmt.Errorf("%w: VAT percent must not be negative", ErrInvalidInput)
	ErrNegativeFodecRate  = fmt.Errorf("%w: FODEC percent must not be negative", ErrInvalidInput)
)

var oneHundred = decimal.NewFromInt(100)

// LineInput carries everything needed to derive a line's amounts. Unit price
// and rates are the values captured at document-creation time, not the
// product's current ones.
type LineInput struct {
	Quantity        decimal.Decimal
	UnitPrice       decimal.Decimal
	DiscountPercent decimal.Decimal
	VATPercent      decimal.Decimal
	FodecApplicable bool
	FodecPercent    decimal.Decimal
}

// LineAmounts holds the five derived monetary fields of a line.
type LineAmounts struct {
	ExclTax decimal.Decimal
	Fodec   decimal.Decimal
	VATBase decimal.Decimal
	VAT     decimal.Decimal
	InclTax decimal.Decimal
}

// Round normalises an amount to the persisted precision, half away from zero.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Precision)
}

// Compute derives the five monetary fields in the legally mandated order:
// base excluding tax, FODEC levy, VAT base, VAT, total including tax.
// It is pure and bit-identical for identical inputs.
func Compute(in LineInput) (LineAmounts, error) {
	if in.Quantity.IsNegative() {
		return LineAmounts{}, ErrNegativeQuantity
	}
	if in.UnitPrice.IsNegative() {
		return LineAmounts{}, ErrNegativeUnitPrice
	}
	if in.DiscountPercent.IsNegative() || in.DiscountPercent.GreaterThan(oneHundred) {
		return LineAmounts{}, ErrDiscountOutOfRange
	}
	if in.VATPercent.IsNegative() {
		return LineAmounts{}, ErrNegativeVATRate
	}
	if in.FodecApplicable && in.FodecPercent.IsNegative() {
		return LineAmounts{}, ErrNegativeFodecRate
	}

	gross := in.Quantity.Mul(in.UnitPrice)
	exclTax := Round(gross.Sub(gross.Mul(in.DiscountPercent).Div(oneHundred)))

	fodec := decimal.Zero
	if in.FodecApplicable {
		fodec = Round(exclTax.Mul(in.FodecPercent).Div(oneHundred))
	}

	// FODEC enters the VAT base before VAT is applied.
	vatBase := exclTax.Add(fodec)
	vat := Round(vatBase.Mul(in.VATPercent).Div(oneHundred))
	inclTax := exclTax.Add(fodec).Add(vat)

	return LineAmounts{
		ExclTax: exclTax,
		Fodec:   fodec,
		VATBase: vatBase,
		VAT:     vat,
		InclTax: inclTax,
	}, nil
}
