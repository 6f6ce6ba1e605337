package billing

import (
	"sort"
	"strings"

	"milkrun/internal/model"
	"milkrun/internal/period"

	"github.com/shopspring/decimal"
	"github.com/ttacon/libphonenumber"
)

const unknownProductName = "Unknown product"

// Party is the billed customer as printed on the invoice.
type Party struct {
	Name    string
	Address string
	Phone   string
}

// Document is an invoice before it is rendered and stored.
type Document struct {
	BillNo          string
	Customer        Party
	Period          period.Period
	Lines           []model.InvoiceLine
	Subtotal        decimal.Decimal
	DeliveryCharges decimal.Decimal
	GrandTotal      decimal.Decimal
}

// Build prices a rollup with the current catalog. Products missing from the
// catalog are billed at zero under a placeholder name; dates without any
// positive quantity are left out.
func Build(rollup Rollup, products map[string]model.StoreProduct, customer *model.Customer, p period.Period, phoneRegion string) Document {
	doc := Document{
		Customer: Party{
			Name:    customer.Name,
			Address: customer.Address,
			Phone:   FormatPhone(customer.Phone, phoneRegion),
		},
		Period:          p,
		Subtotal:        decimal.Zero,
		DeliveryCharges: customer.DeliveryCost,
	}

	for _, day := range rollup.Days {
		line := model.InvoiceLine{Date: day.Date, Total: decimal.Zero}
		for productID, quantity := range day.Quantities {
			if !quantity.IsPositive() {
				continue
			}
			name, price := unknownProductName, decimal.Zero
			if product, ok := products[productID]; ok {
				name, price = product.Name, product.Price
			}
			itemTotal := quantity.Mul(price)
			line.Products = append(line.Products, model.InvoiceLineProduct{
				ProductID: productID,
				Name:      name,
				Quantity:  quantity,
				Price:     price,
				ItemTotal: itemTotal,
			})
			line.Total = line.Total.Add(itemTotal)
		}
		if len(line.Products) == 0 {
			continue
		}
		sort.Slice(line.Products, func(i, j int) bool {
			a, b := line.Products[i], line.Products[j]
			if a.Name != b.Name {
				return a.Name < b.Name
			}
			return a.ProductID < b.ProductID
		})
		doc.Lines = append(doc.Lines, line)
		doc.Subtotal = doc.Subtotal.Add(line.Total)
	}

	doc.GrandTotal = doc.Subtotal.Add(doc.DeliveryCharges)
	return doc
}

// FormatPhone prints a phone number in international form. Numbers that do
// not parse are returned as given.
func FormatPhone(raw, region string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	num, err := libphonenumber.Parse(raw, region)
	if err != nil {
		return raw
	}
	return libphonenumber.Format(num, libphonenumber.INTERNATIONAL)
}
