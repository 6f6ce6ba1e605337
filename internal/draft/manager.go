package draft

import (
	"context"
	"errors"
	"fmt"
	"time"

	"milkrun/internal/apperr"
	"milkrun/internal/stock"

	"github.com/rs/zerolog"
)

const dateLayout = "2006-01-02"

var (
	ErrLocked      = errors.New("attendance for this date and area is already submitted")
	ErrPastDate    = errors.New("past dates can only be edited from a draft or a reopened submission")
	ErrNotReopened = errors.New("nothing has been submitted for this date and area")
)

// RosterCustomer is a customer of the area with the products they take.
type RosterCustomer struct {
	CustomerID string        `json:"customerId"`
	Name       string        `json:"name"`
	Products   []ProductLine `json:"products"`
}

// Submitted is the server-confirmed attendance for a key.
type Submitted struct {
	TotalDispatched    string
	ReturnedExpression string
	Sheet              stock.Sheet
}

// Session is what a client works on for one area and date.
type Session struct {
	Key                Key              `json:"key"`
	State              State            `json:"state"`
	Editable           bool             `json:"editable"`
	Roster             []RosterCustomer `json:"roster"`
	Sheet              stock.Sheet      `json:"sheet"`
	TotalDispatched    string           `json:"totalDispatched"`
	ReturnedExpression string           `json:"returnedExpression"`
}

// Manager decides the state of attendance sessions.
type Manager struct {
	store Store
	loc   *time.Location
	now   func() time.Time
	log   zerolog.Logger
}

func NewManager(store Store, loc *time.Location, log zerolog.Logger) *Manager {
	return &Manager{store: store, loc: loc, now: time.Now, log: log}
}

// Open resolves the session for a key. A submitted record always wins and
// discards any draft; otherwise a stored draft is restored; otherwise the
// sheet is seeded from the roster with every product delivered.
func (m *Manager) Open(ctx context.Context, key Key, roster []RosterCustomer, submitted *Submitted) (*Session, error) {
	if submitted != nil {
		if err := m.store.Delete(ctx, key); err != nil {
			m.log.Warn().Err(err).Str("key", key.String()).Msg("failed to discard draft shadowed by submission")
		}
		return &Session{
			Key:                key,
			State:              StateSubmitted,
			Editable:           false,
			Roster:             roster,
			Sheet:              submitted.Sheet.Clone(),
			TotalDispatched:    submitted.TotalDispatched,
			ReturnedExpression: submitted.ReturnedExpression,
		}, nil
	}

	d, err := m.store.Get(ctx, key)
	switch {
	case err == nil:
		sheet := d.Attendance
		if sheet == nil {
			sheet = stock.NewSheet()
		}
		if err := sheet.Normalize(); err != nil {
			return nil, fmt.Errorf("stored draft %s is invalid: %w", key, err)
		}
		return &Session{
			Key:                key,
			State:              StateDraft,
			Editable:           true,
			Roster:             ApplyModifications(roster, d.ModifiedProductLists),
			Sheet:              sheet,
			TotalDispatched:    d.TotalDispatched,
			ReturnedExpression: d.ReturnedExpression,
		}, nil
	case errors.Is(err, ErrNotFound):
	default:
		return nil, err
	}

	sheet, err := Seed(roster)
	if err != nil {
		return nil, err
	}
	return &Session{
		Key:      key,
		State:    StateNoData,
		Editable: !m.IsPast(key.Date),
		Roster:   roster,
		Sheet:    sheet,
	}, nil
}

// BeginEdit reopens a submitted record for correction.
func (m *Manager) BeginEdit(key Key, roster []RosterCustomer, submitted *Submitted) (*Session, error) {
	if submitted == nil {
		return nil, apperr.NotFoundf("attendance", "%s", ErrNotReopened.Error())
	}
	return &Session{
		Key:                key,
		State:              StateEditingSubmitted,
		Editable:           true,
		Roster:             roster,
		Sheet:              submitted.Sheet.Clone(),
		TotalDispatched:    submitted.TotalDispatched,
		ReturnedExpression: submitted.ReturnedExpression,
	}, nil
}

// Guard checks whether a write for key is allowed and returns the state the
// write happens in. editing is the client's explicit reopen of a submission.
func (m *Manager) Guard(ctx context.Context, key Key, submitted, editing bool) (State, error) {
	if submitted {
		if !editing {
			return StateSubmitted, apperr.Conflict(ErrLocked.Error(), map[string]interface{}{
				"date":   key.Date,
				"areaId": key.AreaID,
			})
		}
		return StateEditingSubmitted, nil
	}

	_, err := m.store.Get(ctx, key)
	switch {
	case err == nil:
		return StateDraft, nil
	case errors.Is(err, ErrNotFound):
	default:
		return "", err
	}

	if m.IsPast(key.Date) {
		return StateNoData, apperr.Validation("date", ErrPastDate.Error())
	}
	return StateNoData, nil
}

// IsPast reports whether a business date is before today in the business timezone.
func (m *Manager) IsPast(date string) bool {
	return date < m.now().In(m.loc).Format(dateLayout)
}

// Seed builds the starting sheet from subscriptions.
func Seed(roster []RosterCustomer) (stock.Sheet, error) {
	sheet := stock.NewSheet()
	for _, customer := range roster {
		for _, product := range customer.Products {
			if err := sheet.AddProduct(customer.CustomerID, product.ProductID, product.Quantity); err != nil {
				return nil, fmt.Errorf("customer %s: %w", customer.CustomerID, err)
			}
		}
	}
	return sheet, nil
}

// ApplyModifications replaces the product lists of customers that were
// changed in a draft. Customers no longer on the roster are ignored.
func ApplyModifications(roster []RosterCustomer, modified map[string][]ProductLine) []RosterCustomer {
	out := make([]RosterCustomer, len(roster))
	for i, customer := range roster {
		if products, ok := modified[customer.CustomerID]; ok {
			customer.Products = append([]ProductLine(nil), products...)
		}
		out[i] = customer
	}
	return out
}
