package repository

import (
	"context"

	"milkrun/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CustomerRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.Customer, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Customer, error)
	ListByArea(ctx context.Context, areaID uuid.UUID) ([]model.Customer, error)
}

type customerRepository struct {
	db *gorm.DB
}

func NewCustomerRepository(db *gorm.DB) CustomerRepository {
	return &customerRepository{db: db}
}

func (r *customerRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Customer, error) {
	var customer model.Customer
	if err := GetDB(ctx, r.db).Preload("Subscriptions").First(&customer, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &customer, nil
}

// FindByIDs includes soft deleted customers so old attendance still shows names.
func (r *customerRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Customer, error) {
	var customers []model.Customer
	if len(ids) == 0 {
		return customers, nil
	}
	if err := GetDB(ctx, r.db).Unscoped().Where("id IN ?", ids).Find(&customers).Error; err != nil {
		return nil, err
	}
	return customers, nil
}

// ListByArea returns the active customers of an area in route order with
// their subscriptions.
func (r *customerRepository) ListByArea(ctx context.Context, areaID uuid.UUID) ([]model.Customer, error) {
	var customers []model.Customer
	if err := GetDB(ctx, r.db).
		Preload("Subscriptions").
		Preload("Subscriptions.Product").
		Where("area_id = ? AND is_active = ?", areaID, true).
		Order("apartment_order ASC, name ASC").
		Find(&customers).Error; err != nil {
		return nil, err
	}
	return customers, nil
}
