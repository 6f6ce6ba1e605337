package billing

import (
	"milkrun/internal/model"
	"milkrun/internal/period"
)

// Overlap identifies an existing invoice that covers part of a requested period.
type Overlap struct {
	Invoice model.Invoice
	// Legacy is set when the interval had to be derived from the period text.
	Legacy bool
}

// Details is the identity of the colliding invoice sent back to clients.
func (o Overlap) Details() map[string]interface{} {
	return map[string]interface{}{
		"id":     o.Invoice.ID,
		"billNo": o.Invoice.BillNo,
		"period": o.Invoice.Period,
		"url":    o.Invoice.Storage.SecureURL,
	}
}

// DetectOverlap checks existing invoices of one customer against the
// requested period. Invoices with stored dates are checked first; invoices
// without them are reinterpreted from their period text. The first match
// wins.
func DetectOverlap(existing []model.Invoice, requested period.Period) (Overlap, bool) {
	for _, inv := range existing {
		if inv.FromDate == nil || inv.ToDate == nil {
			continue
		}
		stored := period.Period{Start: period.Truncate(*inv.FromDate), End: period.Truncate(*inv.ToDate)}
		if stored.Overlaps(requested) {
			return Overlap{Invoice: inv}, true
		}
	}

	for _, inv := range existing {
		if inv.FromDate != nil && inv.ToDate != nil {
			continue
		}
		stored, err := period.Parse(inv.Period)
		if err != nil {
			continue
		}
		if stored.Overlaps(requested) {
			return Overlap{Invoice: inv, Legacy: true}, true
		}
	}
	return Overlap{}, false
}

// StoredPeriod recovers the period an invoice was generated for. Stored
// dates are preferred over the period text; the persisted kind decides
// which request shape the period came from, and is inferred from the text
// when absent.
func StoredPeriod(inv model.Invoice) (period.Period, error) {
	var (
		p   period.Period
		err error
	)
	if inv.FromDate != nil && inv.ToDate != nil {
		p, err = period.Between(*inv.FromDate, *inv.ToDate)
	} else {
		p, err = period.Parse(inv.Period)
	}
	if err != nil {
		return period.Period{}, err
	}

	switch inv.PeriodKind {
	case model.PeriodKindMonth:
		p.Kind = period.KindMonth
	case model.PeriodKindRange:
		p.Kind = period.KindRange
	default:
		if labelled, err := period.Parse(inv.Period); err == nil && labelled.Equal(p) {
			p.Kind = labelled.Kind
		}
	}
	if inv.Period != "" {
		p.Label = inv.Period
	}
	return p, nil
}
