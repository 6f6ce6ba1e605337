package repository

import (
	"context"
	"time"

	"milkrun/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AttendanceRepository interface {
	Create(ctx context.Context, log *model.AttendanceLog) error
	FindByKey(ctx context.Context, storeID, areaID uuid.UUID, businessDate string) (*model.AttendanceLog, error)
	ReplaceEntries(ctx context.Context, log *model.AttendanceLog) error
	ListForCustomer(ctx context.Context, customerID uuid.UUID, from, to time.Time) ([]model.AttendanceLog, error)
	ListByArea(ctx context.Context, areaID uuid.UUID, from, to time.Time, page, limit int) ([]model.AttendanceLog, int64, error)
	ListByAreaRange(ctx context.Context, areaID uuid.UUID, from, to time.Time) ([]model.AttendanceLog, error)
	DeleteByArea(ctx context.Context, areaID uuid.UUID) (int64, error)
}

type attendanceRepository struct {
	db *gorm.DB
}

func NewAttendanceRepository(db *gorm.DB) AttendanceRepository {
	return &attendanceRepository{db: db}
}

func withEntries(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Entries", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Entries.Products")
}

// Create inserts the log with its entries and products. A concurrent insert
// of the same (business_date, area_id, store_id) fails with a unique violation.
func (r *attendanceRepository) Create(ctx context.Context, log *model.AttendanceLog) error {
	return GetDB(ctx, r.db).Create(log).Error
}

func (r *attendanceRepository) FindByKey(ctx context.Context, storeID, areaID uuid.UUID, businessDate string) (*model.AttendanceLog, error) {
	var log model.AttendanceLog
	if err := withEntries(GetDB(ctx, r.db)).
		Where("store_id = ? AND area_id = ? AND business_date = ?", storeID, areaID, businessDate).
		First(&log).Error; err != nil {
		return nil, err
	}
	return &log, nil
}

// ReplaceEntries overwrites the header and every entry of an existing log.
// Callers run it inside a transaction.
func (r *attendanceRepository) ReplaceEntries(ctx context.Context, log *model.AttendanceLog) error {
	db := GetDB(ctx, r.db)

	entryIDs := db.Model(&model.AttendanceEntry{}).Select("id").Where("log_id = ?", log.ID)
	if err := db.Where("entry_id IN (?)", entryIDs).Delete(&model.AttendanceProduct{}).Error; err != nil {
		return err
	}
	if err := db.Where("log_id = ?", log.ID).Delete(&model.AttendanceEntry{}).Error; err != nil {
		return err
	}
	if err := db.Omit("Entries").Save(log).Error; err != nil {
		return err
	}
	if len(log.Entries) == 0 {
		return nil
	}
	for i := range log.Entries {
		log.Entries[i].ID = uuid.Nil
		log.Entries[i].LogID = log.ID
		for j := range log.Entries[i].Products {
			log.Entries[i].Products[j].ID = uuid.Nil
		}
	}
	return db.Create(&log.Entries).Error
}

// ListForCustomer returns logs dated within [from, to] that have an entry for
// the customer, oldest first. Only that customer's entry is loaded.
func (r *attendanceRepository) ListForCustomer(ctx context.Context, customerID uuid.UUID, from, to time.Time) ([]model.AttendanceLog, error) {
	db := GetDB(ctx, r.db)
	var logs []model.AttendanceLog

	hasEntry := db.Model(&model.AttendanceEntry{}).Select("log_id").Where("customer_id = ?", customerID)
	if err := db.
		Preload("Entries", "customer_id = ?", customerID).
		Preload("Entries.Products").
		Where("date BETWEEN ? AND ?", from, to).
		Where("id IN (?)", hasEntry).
		Order("date ASC").
		Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

func (r *attendanceRepository) ListByArea(ctx context.Context, areaID uuid.UUID, from, to time.Time, page, limit int) ([]model.AttendanceLog, int64, error) {
	var logs []model.AttendanceLog
	var total int64

	db := GetDB(ctx, r.db)
	query := db.Model(&model.AttendanceLog{}).Where("area_id = ? AND date BETWEEN ? AND ?", areaID, from, to)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := withEntries(db).
		Where("area_id = ? AND date BETWEEN ? AND ?", areaID, from, to).
		Order("date DESC").
		Offset(offset).Limit(limit).
		Find(&logs).Error; err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}

func (r *attendanceRepository) ListByAreaRange(ctx context.Context, areaID uuid.UUID, from, to time.Time) ([]model.AttendanceLog, error) {
	var logs []model.AttendanceLog
	if err := withEntries(GetDB(ctx, r.db)).
		Where("area_id = ? AND date BETWEEN ? AND ?", areaID, from, to).
		Order("date ASC").
		Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

// DeleteByArea hard deletes every log of an area with its entries.
func (r *attendanceRepository) DeleteByArea(ctx context.Context, areaID uuid.UUID) (int64, error) {
	db := GetDB(ctx, r.db)

	logIDs := db.Model(&model.AttendanceLog{}).Select("id").Where("area_id = ?", areaID)
	entryIDs := db.Model(&model.AttendanceEntry{}).Select("id").Where("log_id IN (?)", logIDs)
	if err := db.Where("entry_id IN (?)", entryIDs).Delete(&model.AttendanceProduct{}).Error; err != nil {
		return 0, err
	}
	if err := db.Where("log_id IN (?)", logIDs).Delete(&model.AttendanceEntry{}).Error; err != nil {
		return 0, err
	}
	result := db.Where("area_id = ?", areaID).Delete(&model.AttendanceLog{})
	return result.RowsAffected, result.Error
}
