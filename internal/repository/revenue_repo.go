package repository

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RevenueDataRow is the billed revenue of one period bucket.
type RevenueDataRow struct {
	Period          string          `gorm:"column:period"`
	Invoices        int64           `gorm:"column:invoices"`
	TotalBilled     decimal.Decimal `gorm:"column:total_billed"`
	DeliveryCharges decimal.Decimal `gorm:"column:delivery_charges"`
}

type RevenueRepository interface {
	// GetRevenueStatistics buckets invoices by the start of their billing
	// period. groupBy must be a DATE_TRUNC unit.
	GetRevenueStatistics(ctx context.Context, groupBy string, scope DeliveryScope) ([]RevenueDataRow, error)
}

type revenueRepository struct {
	db *gorm.DB
}

func NewRevenueRepository(db *gorm.DB) RevenueRepository {
	return &revenueRepository{db: db}
}

func (r *revenueRepository) GetRevenueStatistics(ctx context.Context, groupBy string, scope DeliveryScope) ([]RevenueDataRow, error) {
	query := `
		SELECT
			TO_CHAR(DATE_TRUNC(@unit, i.from_date), 'YYYY-MM-DD') AS period,
			COUNT(*) AS invoices,
			COALESCE(SUM(i.grand_total), 0) AS total_billed,
			COALESCE(SUM(i.delivery_charges), 0) AS delivery_charges
		FROM invoices i
		JOIN customers c ON c.id = i.customer_id
		WHERE i.from_date >= @from
		  AND i.from_date <= @to
		  AND (CAST(@store AS uuid) IS NULL OR c.store_id = @store)
		  AND (CAST(@area AS uuid) IS NULL OR c.area_id = @area)
		GROUP BY DATE_TRUNC(@unit, i.from_date)
		ORDER BY period
	`

	var rows []RevenueDataRow
	if err := GetDB(ctx, r.db).Raw(query, map[string]interface{}{
		"unit":  groupBy,
		"from":  scope.From,
		"to":    scope.To,
		"store": scope.StoreID,
		"area":  scope.AreaID,
	}).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query revenue statistics: %w", err)
	}

	return rows, nil
}
