package stock

import (
	"errors"
	"sort"

	"github.com/shopspring/decimal"
)

// Status is the delivery outcome of one product for one customer on one day.
type Status string

const (
	StatusDelivered    Status = "delivered"
	StatusNotDelivered Status = "not_delivered"
	StatusSkipped      Status = "skipped"
	StatusOutOfStock   Status = "out_of_stock"
)

// Statuses lists every accepted status value.
var Statuses = []Status{StatusDelivered, StatusNotDelivered, StatusSkipped, StatusOutOfStock}

func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

var (
	ErrUnknownEntry         = errors.New("no such customer product entry")
	ErrInvalidStatus        = errors.New("invalid delivery status")
	ErrNegativeQuantity     = errors.New("quantity must not be negative")
	ErrNotDelivered         = errors.New("quantity can only be set on delivered products")
	ErrConfirmationRequired = errors.New("changing status discards the entered quantity and must be confirmed")
)

// Entry is the state of one product for one customer.
type Entry struct {
	Status   Status          `json:"status"`
	Quantity decimal.Decimal `json:"quantity"`
}

// Sheet holds the in-progress attendance of an area for one day,
// keyed customerID -> productID.
//
// All mutations go through its methods so a product that is not delivered
// always carries a zero quantity.
type Sheet map[string]map[string]Entry

func NewSheet() Sheet {
	return Sheet{}
}

// AddProduct puts a product on a customer's line as delivered.
// An existing entry is overwritten.
func (s Sheet) AddProduct(customerID, productID string, quantity decimal.Decimal) error {
	if quantity.IsNegative() {
		return ErrNegativeQuantity
	}
	products, ok := s[customerID]
	if !ok {
		products = map[string]Entry{}
		s[customerID] = products
	}
	products[productID] = Entry{Status: StatusDelivered, Quantity: quantity}
	return nil
}

// RemoveProduct drops a product from a customer's line. A customer left
// with no products is kept so the roster still shows them.
func (s Sheet) RemoveProduct(customerID, productID string) {
	if products, ok := s[customerID]; ok {
		delete(products, productID)
	}
}

// SetStatus changes the status of an entry. Moving a delivered entry that
// has a quantity to any other status zeroes the quantity, which requires
// confirm to be true.
func (s Sheet) SetStatus(customerID, productID string, status Status, confirm bool) error {
	if !status.Valid() {
		return ErrInvalidStatus
	}
	entry, ok := s.lookup(customerID, productID)
	if !ok {
		return ErrUnknownEntry
	}
	if status != StatusDelivered {
		if entry.Status == StatusDelivered && entry.Quantity.IsPositive() && !confirm {
			return ErrConfirmationRequired
		}
		entry.Quantity = decimal.Zero
	}
	entry.Status = status
	s[customerID][productID] = entry
	return nil
}

func (s Sheet) SetQuantity(customerID, productID string, quantity decimal.Decimal) error {
	if quantity.IsNegative() {
		return ErrNegativeQuantity
	}
	entry, ok := s.lookup(customerID, productID)
	if !ok {
		return ErrUnknownEntry
	}
	if entry.Status != StatusDelivered && !quantity.IsZero() {
		return ErrNotDelivered
	}
	entry.Quantity = quantity
	s[customerID][productID] = entry
	return nil
}

// Get returns the entry for a customer product pair.
func (s Sheet) Get(customerID, productID string) (Entry, bool) {
	return s.lookup(customerID, productID)
}

// TotalDelivered sums the quantity of every delivered entry.
func (s Sheet) TotalDelivered() decimal.Decimal {
	total := decimal.Zero
	for _, products := range s {
		for _, entry := range products {
			if entry.Status == StatusDelivered {
				total = total.Add(entry.Quantity)
			}
		}
	}
	return total
}

// Normalize enforces the zero-quantity rule on a sheet that arrived from
// outside (a stored draft or a request body) and rejects bad values.
func (s Sheet) Normalize() error {
	for customerID, products := range s {
		for productID, entry := range products {
			if !entry.Status.Valid() {
				return ErrInvalidStatus
			}
			if entry.Quantity.IsNegative() {
				return ErrNegativeQuantity
			}
			if entry.Status != StatusDelivered {
				entry.Quantity = decimal.Zero
				s[customerID][productID] = entry
			}
		}
	}
	return nil
}

// Clone returns a deep copy.
func (s Sheet) Clone() Sheet {
	out := make(Sheet, len(s))
	for customerID, products := range s {
		cp := make(map[string]Entry, len(products))
		for productID, entry := range products {
			cp[productID] = entry
		}
		out[customerID] = cp
	}
	return out
}

// CustomerIDs returns the customers on the sheet in a stable order.
func (s Sheet) CustomerIDs() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ProductIDs returns a customer's products in a stable order.
func (s Sheet) ProductIDs(customerID string) []string {
	products := s[customerID]
	ids := make([]string, 0, len(products))
	for id := range products {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s Sheet) lookup(customerID, productID string) (Entry, bool) {
	products, ok := s[customerID]
	if !ok {
		return Entry{}, false
	}
	entry, ok := products[productID]
	return entry, ok
}
