package database

import (
	"fmt"

	"github.com/Lorient94/GimnasioAdmin/internal/config"
	"github.com/Lorient94/GimnasioAdmin/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var gormDB *gorm.DB

// ConnectGorm opens the GORM connection using the configured DSN.
func ConnectGorm() (*gorm.DB, error) {
	if gormDB != nil {
		return gormDB, nil
	}

	cfg := config.GetConfig()

	db, err := gorm.Open(postgres.Open(cfg.Database.DSN), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to GORM: %w", err)
	}

	gormDB = db
	return db, nil
}

// AutoMigrate migrates all models and applies the indexes GORM tags
// cannot express.
func AutoMigrate(db *gorm.DB) error {
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`).Error; err != nil {
		return fmt.Errorf("failed to create uuid extension: %w", err)
	}

	err := db.AutoMigrate(
		&models.Client{},
		&models.ClassOffering{},
		&models.Enrollment{},
		&models.Transaction{},
		&models.Payment{},
		&models.GatewayEvent{},
	)
	if err != nil {
		return fmt.Errorf("auto migrate failed: %w", err)
	}

	// A client may hold at most one non-cancelled enrollment per class.
	// Cancelled rows stay behind as history, so a plain unique index
	// won't do.
	err = db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_enrollments_client_class_live
		ON enrollments (client_dni, class_id)
		WHERE state <> 'cancelled'
	`).Error
	if err != nil {
		return fmt.Errorf("failed to create enrollment uniqueness index: %w", err)
	}

	return nil
}
