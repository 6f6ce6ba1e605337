package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// DeliveryStatistics summarizes delivered quantities over a date range.
type DeliveryStatistics struct {
	From           time.Time        `json:"from"`
	To             time.Time        `json:"to"`
	AttendanceLogs int64            `json:"attendanceLogs"`
	TotalQuantity  decimal.Decimal  `json:"totalQuantity"`
	TotalValue     decimal.Decimal  `json:"totalValue"` // at current prices
	InvoicedTotal  decimal.Decimal  `json:"invoicedTotal"`
	TopProducts    []ProductRanking `json:"topProducts"`
}

// ProductRanking is a product ranked by delivered quantity.
type ProductRanking struct {
	ProductID     string          `json:"productId"`
	ProductName   string          `json:"productName"`
	TotalQuantity decimal.Decimal `json:"totalQuantity"`
	TotalValue    decimal.Decimal `json:"totalValue"`
}
