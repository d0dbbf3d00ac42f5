package database

import (
	"fmt"

	"github.com/yeremiapane/food-checkout/models"
	"github.com/yeremiapane/food-checkout/utils"
	"gorm.io/gorm"
)

// Migrate creates or updates every table. The menu_tags join table is
// registered first so its composite primary key is used.
func Migrate(db *gorm.DB) error {
	if err := db.SetupJoinTable(&models.Menu{}, "Tags", &models.MenuTag{}); err != nil {
		return fmt.Errorf("failed to setup menu_tags: %w", err)
	}

	err := db.AutoMigrate(
		&models.User{},
		&models.Address{},
		&models.Category{},
		&models.Tag{},
		&models.Menu{},
		&models.Cart{},
		&models.CartItem{},
		&models.Order{},
		&models.OrderItem{},
		&models.OrderStatusLog{},
		&models.Invoice{},
		&models.Payment{},
		&models.Refund{},
	)
	if err != nil {
		return fmt.Errorf("failed to AutoMigrate: %w", err)
	}
	utils.InfoLogger.Info("AutoMigrate completed")
	return nil
}
