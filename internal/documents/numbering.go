package documents

import (
	"fmt"
	"time"
)

// Family returns the numbering namespace for a kind. Credit notes share the
// invoice counter so the sequence stays gap-free across both variants.
func (k Kind) Family() string {
	switch k {
	case KindQuote:
		return "DV"
	case KindDeliveryNote:
		return "BL"
	case KindPurchaseOrder:
		return "BC"
	case KindInvoice, KindCreditNote:
		return "FA"
	default:
		return ""
	}
}

// numberPrefix is the human-readable prefix. It differs from the family only
// for credit notes, which carry the reserved "AV" avoir prefix.
func (k Kind) numberPrefix() string {
	if k == KindCreditNote {
		return "AV"
	}
	return k.Family()
}

// FormatNumber renders the sequential identifier for a document: prefix,
// two-digit year and a zero-padded sequence, e.g. "FA-26-00042".
func FormatNumber(k Kind, issueDate time.Time, seq int64) string {
	return fmt.Sprintf("%s-%s-%05d", k.numberPrefix(), issueDate.Format("06"), seq)
}
