package repository

import (
	"context"

	"milkrun/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ProductRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.StoreProduct, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]model.StoreProduct, error)
}

type productRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepository{db: db}
}

func (r *productRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.StoreProduct, error) {
	var product model.StoreProduct
	if err := GetDB(ctx, r.db).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// FindByIDs batch loads products for pricing. Soft deleted products are
// included; they were delivered and must still be billed.
func (r *productRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]model.StoreProduct, error) {
	var products []model.StoreProduct
	if len(ids) == 0 {
		return products, nil
	}
	if err := GetDB(ctx, r.db).Unscoped().Where("id IN ?", ids).Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}
