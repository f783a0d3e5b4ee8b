package report

import (
	"bytes"
	"html/template"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/gescom-app/gescom/internal/customers"
	"github.com/gescom-app/gescom/internal/documents"
)

// Amounts are printed in French locale figures with the dinar's three
// decimal places, e.g. "1 234,500".
var frenchPrinter = message.NewPrinter(language.French)

func formatAmount(d decimal.Decimal) string {
	f, _ := d.Round(3).Float64()
	return frenchPrinter.Sprintf("%.3f", f)
}

var kindTitles = map[documents.Kind]string{
	documents.KindQuote:         "Devis",
	documents.KindDeliveryNote:  "Bon de livraison",
	documents.KindPurchaseOrder: "Bon de commande",
	documents.KindInvoice:       "Facture",
	documents.KindCreditNote:    "Avoir",
}

var documentTemplate = template.Must(template.New("document").Parse(`<!DOCTYPE html>
<html lang="fr">
<head>
<meta charset="utf-8">
<title>{{.Title}} {{.Number}}</title>
<style>
body { font-family: Helvetica, Arial, sans-serif; font-size: 12px; color: #222; }
h1 { font-size: 20px; margin-bottom: 0; }
.meta { margin: 12px 0; }
table { width: 100%; border-collapse: collapse; margin-top: 16px; }
th, td { border: 1px solid #999; padding: 6px 8px; text-align: right; }
th:first-child, td:first-child { text-align: left; }
tfoot td { font-weight: bold; }
.notes { margin-top: 24px; font-style: italic; }
</style>
</head>
<body>
<h1>{{.Title}} {{.Number}}</h1>
<div class="meta">
<p>Date : {{.IssueDate}}{{if .DueDate}} &mdash; &Eacute;ch&eacute;ance : {{.DueDate}}{{end}}</p>
<p>Client : {{.CustomerName}}{{if .CustomerTaxID}} &mdash; MF : {{.CustomerTaxID}}{{end}}</p>
</div>
<table>
<thead>
<tr><th>D&eacute;signation</th><th>Qt&eacute;</th><th>P.U. HT</th><th>Remise</th><th>TVA</th><th>Total HT</th></tr>
</thead>
<tbody>
{{range .Lines}}
<tr><td>{{.Label}}</td><td>{{.Quantity}}</td><td>{{.UnitPrice}}</td><td>{{.Discount}}</td><td>{{.VATRate}}</td><td>{{.ExclTax}}</td></tr>
{{end}}
</tbody>
<tfoot>
<tr><td colspan="5">Total HT</td><td>{{.TotalExclTax}}</td></tr>
{{if .HasFodec}}<tr><td colspan="5">FODEC</td><td>{{.TotalFodec}}</td></tr>{{end}}
<tr><td colspan="5">Total TVA</td><td>{{.TotalVAT}}</td></tr>
<tr><td colspan="5">Total TTC</td><td>{{.TotalInclTax}}</td></tr>
</tfoot>
</table>
{{if .Notes}}<p class="notes">{{.Notes}}</p>{{end}}
</body>
</html>`))

type documentLineView struct {
	Label     string
	Quantity  string
	UnitPrice string
	Discount  string
	VATRate   string
	ExclTax   string
}

type documentView struct {
	Title         string
	Number        string
	IssueDate     string
	DueDate       string
	CustomerName  string
	CustomerTaxID string
	Lines         []documentLineView
	TotalExclTax  string
	HasFodec      bool
	TotalFodec    string
	TotalVAT      string
	TotalInclTax  string
	Notes         string
}

// BuildDocumentHTML renders a document into the printable HTML fed to
// Gotenberg.
func BuildDocumentHTML(doc *documents.Document, customer *customers.Customer) (string, error) {
	view := documentView{
		Title:        kindTitles[doc.Kind],
		Number:       doc.Number,
		IssueDate:    doc.IssueDate.Format("02/01/2006"),
		TotalExclTax: formatAmount(doc.Totals.ExclTax),
		HasFodec:     !doc.Totals.Fodec.IsZero(),
		TotalFodec:   formatAmount(doc.Totals.Fodec),
		TotalVAT:     formatAmount(doc.Totals.VAT),
		TotalInclTax: formatAmount(doc.Totals.InclTax),
	}
	if doc.DueDate != nil {
		view.DueDate = doc.DueDate.Format("02/01/2006")
	}
	if doc.Notes != nil {
		view.Notes = *doc.Notes
	}
	if customer != nil {
		view.CustomerName = customer.Name
		if customer.TaxID != nil {
			view.CustomerTaxID = *customer.TaxID
		}
	}

	for _, line := range doc.Lines {
		view.Lines = append(view.Lines, documentLineView{
			Label:     line.Label,
			Quantity:  line.Quantity.String(),
			UnitPrice: formatAmount(line.UnitPrice),
			Discount:  line.DiscountPercent.String() + " %",
			VATRate:   line.VATPercent.String() + " %",
			ExclTax:   formatAmount(line.ExclTax),
		})
	}

	var buf bytes.Buffer
	if err := documentTemplate.Execute(&buf, view); err != nil {
		return "", err
	}
	return buf.String(), nil
}
