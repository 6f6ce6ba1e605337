// Package render turns invoice documents into printable files.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"time"

	"milkrun/internal/billing"

	"github.com/shopspring/decimal"
)

//go:embed templates/invoice.html
var templates embed.FS

var invoiceTemplate = template.Must(
	template.New("invoice.html").
		Funcs(template.FuncMap{"money": money}).
		ParseFS(templates, "templates/invoice.html"),
)

type invoiceView struct {
	billing.Document
	StoreName   string
	PeriodLabel string
	From        string
	To          string
	GeneratedAt string
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// InvoiceHTML renders the printable HTML of an invoice.
func InvoiceHTML(doc billing.Document, storeName string, generatedAt time.Time) ([]byte, error) {
	view := invoiceView{
		Document:    doc,
		StoreName:   storeName,
		PeriodLabel: doc.Period.Label,
		From:        doc.Period.From(),
		To:          doc.Period.To(),
		GeneratedAt: generatedAt.Format("02 Jan 2006 15:04"),
	}
	var buf bytes.Buffer
	if err := invoiceTemplate.Execute(&buf, view); err != nil {
		return nil, fmt.Errorf("failed to render invoice html: %w", err)
	}
	return buf.Bytes(), nil
}
