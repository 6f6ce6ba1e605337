package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AttendanceLog records what was delivered in one area of one store on one
// business date. (business_date, area_id, store_id) is unique.
type AttendanceLog struct {
	ID                   uuid.UUID         `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	StoreID              uuid.UUID         `gorm:"type:uuid;not null;uniqueIndex:idx_attendance_dedup,priority:3" json:"storeId"`
	AreaID               uuid.UUID         `gorm:"type:uuid;not null;uniqueIndex:idx_attendance_dedup,priority:2;index" json:"areaId"`
	BusinessDate         string            `gorm:"type:varchar(10);not null;uniqueIndex:idx_attendance_dedup,priority:1" json:"businessDate"` // YYYY-MM-DD
	Date                 time.Time         `gorm:"type:date;not null;index" json:"date"`
	TotalDispatched      decimal.Decimal   `gorm:"type:decimal(12,3);not null;default:0" json:"totalDispatched"`
	DispatchedExpression string            `gorm:"type:varchar(255)" json:"dispatchedExpression"`
	ReturnedQuantity     decimal.Decimal   `gorm:"type:decimal(12,3);not null;default:0" json:"returnedQuantity"`
	ReturnedExpression   string            `gorm:"type:varchar(255)" json:"returnedExpression"`
	SubmittedBy          string            `gorm:"type:varchar(100)" json:"submittedBy"`
	Entries              []AttendanceEntry `gorm:"foreignKey:LogID;constraint:OnDelete:CASCADE" json:"attendance"`
	CreatedAt            time.Time         `json:"createdAt"`
	UpdatedAt            time.Time         `json:"updatedAt"`
}

// AttendanceEntry is one customer's line in a log. A customer appears at
// most once per log.
type AttendanceEntry struct {
	ID         uuid.UUID           `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"-"`
	LogID      uuid.UUID           `gorm:"type:uuid;not null;uniqueIndex:idx_attendance_entry_customer" json:"-"`
	CustomerID uuid.UUID           `gorm:"type:uuid;not null;uniqueIndex:idx_attendance_entry_customer;index" json:"customerId"`
	Position   int                 `gorm:"type:int;not null;default:0" json:"-"`
	Products   []AttendanceProduct `gorm:"foreignKey:EntryID;constraint:OnDelete:CASCADE" json:"products"`
}

// AttendanceProduct is the outcome for one product. A product appears at
// most once per entry.
type AttendanceProduct struct {
	ID        uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"-"`
	EntryID   uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_attendance_entry_product" json:"-"`
	ProductID uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_attendance_entry_product;index" json:"productId"`
	Quantity  decimal.Decimal `gorm:"type:decimal(12,3);not null;default:0" json:"quantity"`
	Status    string          `gorm:"type:varchar(20);not null" json:"status"` // delivered, not_delivered, skipped, out_of_stock
}

// EntryFor returns the entry of a customer, or nil.
func (l *AttendanceLog) EntryFor(customerID uuid.UUID) *AttendanceEntry {
	for i := range l.Entries {
		if l.Entries[i].CustomerID == customerID {
			return &l.Entries[i]
		}
	}
	return nil
}
