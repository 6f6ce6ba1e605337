package database

import (
	"fmt"

	"milkrun/internal/config"
	"milkrun/internal/logger"
	"milkrun/internal/model"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NewConnection initializes a new connection pool using GORM
func NewConnection(cfg *config.Config) (*gorm.DB, error) {
	log := logger.WithComponent("database")

	gormCfg := &gorm.Config{
		// Maps driver unique violations to gorm.ErrDuplicatedKey.
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	}
	db, err := gorm.Open(postgres.Open(cfg.DSN()), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if cfg.DBMaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConns)
	}
	if cfg.DBMaxIdleConns >= 0 {
		sqlDB.SetMaxIdleConns(cfg.DBMaxIdleConns)
	}
	if cfg.DBConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.DBConnMaxLifetime)
	}

	if err := db.Use(otelgorm.NewPlugin()); err != nil {
		log.Warn().Err(err).Msg("failed to install otelgorm plugin")
	}

	return db, nil
}

// Migrate creates or updates the schema, including the attendance dedup index.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.Store{},
		&model.Area{},
		&model.StoreProduct{},
		&model.Customer{},
		&model.CustomerSubscription{},
		&model.AttendanceLog{},
		&model.AttendanceEntry{},
		&model.AttendanceProduct{},
		&model.Invoice{},
		&model.User{},
		&model.AuditLog{},
	)
}
