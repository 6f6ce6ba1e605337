// Package billing turns daily attendance into invoice documents.
package billing

import (
	"sort"

	"milkrun/internal/model"
	"milkrun/internal/period"
	"milkrun/internal/stock"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Rollup is the delivered quantity of one customer per date and product.
type Rollup struct {
	// Logs is the number of attendance logs that had an entry for the customer.
	Logs int
	Days []Day
}

// Day holds the delivered quantity per product ID for one business date.
type Day struct {
	Date       string
	Quantities map[string]decimal.Decimal
}

// Empty reports whether nothing was delivered to the customer. Logs whose
// products were all skipped or not delivered do not count.
func (r Rollup) Empty() bool {
	for _, day := range r.Days {
		for _, quantity := range day.Quantities {
			if quantity.IsPositive() {
				return false
			}
		}
	}
	return true
}

// ProductIDs returns every product referenced by the rollup.
func (r Rollup) ProductIDs() []uuid.UUID {
	seen := map[string]bool{}
	var ids []uuid.UUID
	for _, day := range r.Days {
		for productID := range day.Quantities {
			if seen[productID] {
				continue
			}
			seen[productID] = true
			if id, err := uuid.Parse(productID); err == nil {
				ids = append(ids, id)
			}
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}

// Aggregate sums the delivered quantities of one customer across logs.
// Two logs with the same business date are added together rather than one
// replacing the other.
func Aggregate(logs []model.AttendanceLog, customerID uuid.UUID) Rollup {
	byDate := map[string]map[string]decimal.Decimal{}
	var rollup Rollup

	for i := range logs {
		entry := logs[i].EntryFor(customerID)
		if entry == nil {
			continue
		}
		rollup.Logs++

		date := logs[i].BusinessDate
		if date == "" {
			date = logs[i].Date.Format(period.DateLayout)
		}
		quantities, ok := byDate[date]
		if !ok {
			quantities = map[string]decimal.Decimal{}
			byDate[date] = quantities
		}
		for _, product := range entry.Products {
			if stock.Status(product.Status) != stock.StatusDelivered {
				continue
			}
			key := product.ProductID.String()
			quantities[key] = quantities[key].Add(product.Quantity)
		}
	}

	dates := make([]string, 0, len(byDate))
	for date := range byDate {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	for _, date := range dates {
		rollup.Days = append(rollup.Days, Day{Date: date, Quantities: byDate[date]})
	}
	return rollup
}
