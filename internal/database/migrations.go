package database

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/carenethq/carenet-server/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	if db == nil {
		return errors.New("nil database handle")
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.Job{},
		&models.Assignment{},
		&models.Payment{},
		&models.Escrow{},
		&models.Invoice{},
		&models.AccountLockout{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	return nil
}
