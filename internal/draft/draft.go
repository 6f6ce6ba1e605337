// Package draft governs in-progress attendance entry for one area and date:
// where the data comes from (server record, synced draft or subscription
// defaults) and whether it may be edited.
package draft

import (
	"context"
	"errors"
	"time"

	"milkrun/internal/stock"

	"github.com/shopspring/decimal"
)

// State of an attendance session.
type State string

const (
	StateNoData           State = "NO_DATA"
	StateDraft            State = "DRAFT"
	StateSubmitted        State = "SUBMITTED"
	StateEditingSubmitted State = "EDITING_SUBMITTED"
)

// ErrNotFound is returned by stores when no draft exists for a key.
var ErrNotFound = errors.New("draft not found")

// Key identifies a draft the same way attendance logs are deduplicated.
type Key struct {
	Date   string `json:"date"` // YYYY-MM-DD
	AreaID string `json:"areaId"`
}

func (k Key) String() string {
	return k.AreaID + ":" + k.Date
}

// ProductLine is a product on a customer's list with its default quantity.
type ProductLine struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name,omitempty"`
	Quantity  decimal.Decimal `json:"quantity"`
}

// Draft is an unsubmitted snapshot of attendance entry.
type Draft struct {
	TotalDispatched    string      `json:"totalDispatched"`
	ReturnedExpression string      `json:"returnedExpression"`
	Attendance         stock.Sheet `json:"attendance"`
	// ModifiedProductLists overrides the subscribed product list of a
	// customer after ad-hoc additions or removals.
	ModifiedProductLists map[string][]ProductLine `json:"modifiedProductLists,omitempty"`
	UpdatedAt            time.Time                `json:"updatedAt"`
}

// Store persists drafts.
type Store interface {
	Get(ctx context.Context, key Key) (*Draft, error)
	Save(ctx context.Context, key Key, d *Draft) error
	Delete(ctx context.Context, key Key) error
}
