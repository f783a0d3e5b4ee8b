package documents

import (
	"github.com/gescom-app/gescom/internal/tax"
)

// ComputeLine re-derives a line's monetary fields from its commercial
// inputs. Callers that mutate quantity or discount must pass the line back
// through here before persisting it.
func ComputeLine(line Line) (Line, error) {
	amounts, err := tax.Compute(tax.LineInput{
		Quantity:        line.Quantity,
		UnitPrice:       line.UnitPrice,
		DiscountPercent: line.DiscountPercent,
		VATPercent:      line.VATPercent,
		FodecApplicable: line.FodecApplicable,
		FodecPercent:    line.FodecPercent,
	})
	if err != nil {
		return Line{}, err
	}
	line.ExclTax = amounts.ExclTax
	line.Fodec = amounts.Fodec
	line.VATBase = amounts.VATBase
	line.VAT = amounts.VAT
	line.InclTax = amounts.InclTax
	return line, nil
}

// Aggregate sums per-line derived fields into document totals. An empty
// line list yields all-zero totals; the sum is commutative, so line order
// never changes the result.
func Aggregate(lines []Line) Totals {
	var t Totals
	for _, line := range lines {
		t.ExclTax = t.ExclTax.Add(line.ExclTax)
		t.Fodec = t.Fodec.Add(line.Fodec)
		t.VAT = t.VAT.Add(line.VAT)
		t.InclTax = t.InclTax.Add(line.InclTax)
	}
	return t
}
