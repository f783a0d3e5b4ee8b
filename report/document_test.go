package report

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/gescom-app/gescom/internal/customers"
	"github.com/gescom-app/gescom/internal/documents"
)

func TestBuildDocumentHTML(t *testing.T) {
	due := time.Date(2026, 4, 15, 0, 0, 0, 0, time.UTC)
	taxID := "1234567A"
	doc := &documents.Document{
		Kind:      documents.KindInvoice,
		Number:    "FA-26-00042",
		IssueDate: time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC),
		DueDate:   &due,
		Totals: documents.Totals{
			ExclTax: decimal.RequireFromString("1234.500"),
			Fodec:   decimal.RequireFromString("12.345"),
			VAT:     decimal.RequireFromString("236.901"),
			InclTax: decimal.RequireFromString("1483.746"),
		},
		Lines: []documents.Line{{
			Label:           "Ciment 50kg",
			Quantity:        decimal.RequireFromString("10"),
			UnitPrice:       decimal.RequireFromString("123.450"),
			DiscountPercent: decimal.Zero,
			VATPercent:      decimal.RequireFromString("19"),
			ExclTax:         decimal.RequireFromString("1234.500"),
		}},
	}
	customer := &customers.Customer{Name: "SARL Exemple", TaxID: &taxID}

	html, err := BuildDocumentHTML(doc, customer)
	require.NoError(t, err)

	require.Contains(t, html, "Facture FA-26-00042")
	require.Contains(t, html, "SARL Exemple")
	require.Contains(t, html, "1234567A")
	require.Contains(t, html, "16/03/2026")
	require.Contains(t, html, "15/04/2026")
	require.Contains(t, html, "Ciment 50kg")
	// French locale renders decimals with a comma.
	require.Contains(t, html, "234,500")
	require.Contains(t, html, "FODEC")
}

func TestBuildDocumentHTMLWithoutCustomer(t *testing.T) {
	doc := &documents.Document{
		Kind:      documents.KindQuote,
		Number:    "DV-26-00001",
		IssueDate: time.Now(),
	}
	html, err := BuildDocumentHTML(doc, nil)
	require.NoError(t, err)
	require.Contains(t, html, "Devis DV-26-00001")
}
