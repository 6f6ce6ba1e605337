package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Customer receives daily deliveries in one area and is billed per period.
type Customer struct {
	ID             uuid.UUID              `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	StoreID        uuid.UUID              `gorm:"type:uuid;not null;index" json:"storeId"`
	AreaID         uuid.UUID              `gorm:"type:uuid;not null;index" json:"areaId"`
	Name           string                 `gorm:"type:varchar(255);not null" json:"name"`
	Address        string                 `gorm:"type:text" json:"address"`
	Phone          string                 `gorm:"type:varchar(30)" json:"phone"`
	DeliveryCost   decimal.Decimal        `gorm:"type:decimal(12,2);not null;default:0" json:"deliveryCost"` // added once per invoice
	ApartmentOrder int                    `gorm:"type:int;not null;default:0" json:"apartmentOrder"`         // position on the delivery route
	IsActive       bool                   `gorm:"default:true" json:"isActive"`
	Subscriptions  []CustomerSubscription `gorm:"foreignKey:CustomerID;constraint:OnDelete:CASCADE" json:"subscriptions"`
	CreatedAt      time.Time              `json:"createdAt"`
	UpdatedAt      time.Time              `json:"updatedAt"`
	DeletedAt      gorm.DeletedAt         `gorm:"index" json:"-"`
}

// CustomerSubscription is a product a customer takes by default every day.
type CustomerSubscription struct {
	ID         uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	CustomerID uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_subscription_product" json:"customerId"`
	ProductID  uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_subscription_product" json:"productId"`
	Product    *StoreProduct   `gorm:"foreignKey:ProductID" json:"product,omitempty"`
	Quantity   decimal.Decimal `gorm:"type:decimal(12,3);not null" json:"quantity"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}
