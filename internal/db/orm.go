package db

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"

	"smartmeter-poller/internal/model"
)

// driverName selects the pure-Go modernc driver instead of the cgo default.
const driverName = "sqlite"

// openORM opens a GORM SQLite connection with sane defaults.
func openORM(path string) (*gorm.DB, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

	g, err := gorm.Open(sqlite.New(sqlite.Config{DriverName: driverName, DSN: dsn}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	// SQLite allows a single writer.
	sqlDB, err := g.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	return g, nil
}

// migrateORM ensures the schema for all models exists.
func migrateORM(db *gorm.DB) error {
	return db.AutoMigrate(&model.Device{}, &model.Entity{}, &model.LatestValue{})
}

// closeORM closes the underlying SQL DB associated with the GORM connection.
func closeORM(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// upsertDevice inserts a device or refreshes its mutable columns.
func upsertDevice(ctx context.Context, db *gorm.DB, d *model.Device) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "mac"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"meter_id", "title", "host", "port", "manufacturer", "model", "firmware", "configuration_url", "updated_at",
		}),
	}).Create(d).Error
}

// insertEntities creates entities that do not exist yet and leaves the rest alone.
func insertEntities(ctx context.Context, db *gorm.DB, rows []model.Entity) error {
	if len(rows) == 0 {
		return nil
	}
	return db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
}

// upsertLatest overwrites the latest value of each entity.
func upsertLatest(ctx context.Context, db *gorm.DB, rows []model.LatestValue) error {
	if len(rows) == 0 {
		return nil
	}
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "stable_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"meter_id", "key", "value", "numeric", "available", "updated_at"}),
	}).Create(&rows).Error
}

// deleteDevice removes a device together with its entities and latest values.
func deleteDevice(ctx context.Context, db *gorm.DB, mac string) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sub := tx.Model(&model.Entity{}).Select("stable_id").Where("device_mac = ?", mac)
		if err := tx.Where("stable_id IN (?)", sub).Delete(&model.LatestValue{}).Error; err != nil {
			return err
		}
		if err := tx.Where("device_mac = ?", mac).Delete(&model.Entity{}).Error; err != nil {
			return err
		}
		return tx.Where("mac = ?", mac).Delete(&model.Device{}).Error
	})
}
