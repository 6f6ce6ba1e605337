package repository

import (
	"context"
	"fmt"
	"time"

	"milkrun/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DeliveryScope restricts statistics to a store or an area. Nil means all.
type DeliveryScope struct {
	StoreID *uuid.UUID
	AreaID  *uuid.UUID
	From    time.Time
	To      time.Time
}

type DeliveryTotals struct {
	Logs          int64
	TotalQuantity decimal.Decimal
	TotalValue    decimal.Decimal
}

type StatisticsRepository interface {
	GetDeliveryTotals(ctx context.Context, scope DeliveryScope) (DeliveryTotals, error)
	GetTopProducts(ctx context.Context, scope DeliveryScope, limit int) ([]model.ProductRanking, error)
	GetInvoicedTotal(ctx context.Context, scope DeliveryScope) (decimal.Decimal, error)
}

type statisticsRepository struct {
	db *gorm.DB
}

func NewStatisticsRepository(db *gorm.DB) StatisticsRepository {
	return &statisticsRepository{db: db}
}

func deliveredProducts(db *gorm.DB, scope DeliveryScope) *gorm.DB {
	q := db.Table("attendance_products").
		Joins("JOIN attendance_entries ON attendance_entries.id = attendance_products.entry_id").
		Joins("JOIN attendance_logs ON attendance_logs.id = attendance_entries.log_id").
		Joins("LEFT JOIN store_products ON store_products.id = attendance_products.product_id").
		Where("attendance_products.status = ?", "delivered").
		Where("attendance_logs.date BETWEEN ? AND ?", scope.From, scope.To)
	if scope.StoreID != nil {
		q = q.Where("attendance_logs.store_id = ?", *scope.StoreID)
	}
	if scope.AreaID != nil {
		q = q.Where("attendance_logs.area_id = ?", *scope.AreaID)
	}
	return q
}

func (r *statisticsRepository) GetDeliveryTotals(ctx context.Context, scope DeliveryScope) (DeliveryTotals, error) {
	var result struct {
		Logs          int64
		TotalQuantity decimal.Decimal
		TotalValue    decimal.Decimal
	}
	if err := deliveredProducts(GetDB(ctx, r.db), scope).
		Select("COUNT(DISTINCT attendance_logs.id) AS logs, " +
			"COALESCE(SUM(attendance_products.quantity), 0) AS total_quantity, " +
			"COALESCE(SUM(attendance_products.quantity * COALESCE(store_products.price, 0)), 0) AS total_value").
		Scan(&result).Error; err != nil {
		return DeliveryTotals{}, fmt.Errorf("failed to query delivery totals: %w", err)
	}
	return DeliveryTotals{Logs: result.Logs, TotalQuantity: result.TotalQuantity, TotalValue: result.TotalValue}, nil
}

func (r *statisticsRepository) GetTopProducts(ctx context.Context, scope DeliveryScope, limit int) ([]model.ProductRanking, error) {
	var rankings []model.ProductRanking
	if err := deliveredProducts(GetDB(ctx, r.db), scope).
		Select("attendance_products.product_id AS product_id, " +
			"COALESCE(store_products.name, 'Unknown product') AS product_name, " +
			"SUM(attendance_products.quantity) AS total_quantity, " +
			"SUM(attendance_products.quantity * COALESCE(store_products.price, 0)) AS total_value").
		Group("attendance_products.product_id, store_products.name").
		Order("total_quantity DESC").
		Limit(limit).
		Scan(&rankings).Error; err != nil {
		return nil, fmt.Errorf("failed to query top products: %w", err)
	}
	return rankings, nil
}

// GetInvoicedTotal sums invoices whose range lies inside the scope dates.
func (r *statisticsRepository) GetInvoicedTotal(ctx context.Context, scope DeliveryScope) (decimal.Decimal, error) {
	var result struct {
		Total decimal.Decimal
	}
	q := GetDB(ctx, r.db).Table("invoices").
		Joins("JOIN customers ON customers.id = invoices.customer_id").
		Where("invoices.from_date >= ? AND invoices.to_date <= ?", scope.From, scope.To)
	if scope.StoreID != nil {
		q = q.Where("customers.store_id = ?", *scope.StoreID)
	}
	if scope.AreaID != nil {
		q = q.Where("customers.area_id = ?", *scope.AreaID)
	}
	if err := q.Select("COALESCE(SUM(invoices.grand_total), 0) AS total").Scan(&result).Error; err != nil {
		return decimal.Zero, fmt.Errorf("failed to query invoiced total: %w", err)
	}
	return result.Total, nil
}
