package repository

import (
	"context"

	"milkrun/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AreaRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.Area, error)
}

type areaRepository struct {
	db *gorm.DB
}

func NewAreaRepository(db *gorm.DB) AreaRepository {
	return &areaRepository{db: db}
}

func (r *areaRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Area, error) {
	var area model.Area
	if err := GetDB(ctx, r.db).Preload("Store").First(&area, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &area, nil
}
