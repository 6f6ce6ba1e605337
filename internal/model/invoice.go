package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// PeriodKind values. Rows written before the column existed have it empty.
const (
	PeriodKindMonth = "month"
	PeriodKindRange = "range"
)

// Invoice bills one customer for one period. Periods of the same customer
// never overlap.
type Invoice struct {
	ID              uuid.UUID                        `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	BillNo          string                           `gorm:"type:varchar(60);uniqueIndex;not null" json:"billNo"`
	CustomerID      uuid.UUID                        `gorm:"type:uuid;not null;index" json:"customerId"`
	Customer        *Customer                        `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
	Period          string                           `gorm:"type:varchar(60);not null" json:"period"` // "October 2025" or "2025-10-01_to_2025-10-31"
	PeriodKind      string                           `gorm:"type:varchar(10)" json:"periodKind"`
	FromDate        *time.Time                       `gorm:"type:date;index" json:"fromDate"`
	ToDate          *time.Time                       `gorm:"type:date;index" json:"toDate"`
	Items           datatypes.JSONSlice[InvoiceLine] `gorm:"type:jsonb;not null" json:"items"`
	Subtotal        decimal.Decimal                  `gorm:"type:decimal(18,2);not null" json:"subtotal"`
	DeliveryCharges decimal.Decimal                  `gorm:"type:decimal(18,2);not null;default:0" json:"deliveryCharges"`
	GrandTotal      decimal.Decimal                  `gorm:"type:decimal(18,2);not null" json:"grandTotal"`
	Storage         StoredFile                       `gorm:"embedded;embeddedPrefix:storage_" json:"storage"`
	GeneratedBy     string                           `gorm:"type:varchar(100)" json:"generatedBy"`
	GeneratedAt     time.Time                        `gorm:"index" json:"generatedAt"`
	CreatedAt       time.Time                        `json:"createdAt"`
	UpdatedAt       time.Time                        `json:"updatedAt"`
}

// StoredFile points at the rendered PDF in object storage.
type StoredFile struct {
	PublicID     string `gorm:"type:varchar(255)" json:"publicId"`
	URL          string `gorm:"type:text" json:"url"`
	SecureURL    string `gorm:"type:text" json:"secureUrl"`
	Bytes        int64  `json:"bytes"`
	ResourceType string `gorm:"type:varchar(20)" json:"resourceType"`
	Format       string `gorm:"type:varchar(10)" json:"format"`
}

// InvoiceLine is one delivery date of an invoice.
type InvoiceLine struct {
	Date     string               `json:"date"` // YYYY-MM-DD
	Products []InvoiceLineProduct `json:"products"`
	Total    decimal.Decimal      `json:"total"`
}

// InvoiceLineProduct carries the price used at generation time.
type InvoiceLineProduct struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Quantity  decimal.Decimal `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	ItemTotal decimal.Decimal `json:"itemTotal"`
}
