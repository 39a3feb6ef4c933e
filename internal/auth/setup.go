package auth

import (
	"fmt"

	"gorm.io/gorm"
)

// Migrate creates the users table.
func Migrate(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(&User{}); err != nil {
		return fmt.Errorf("migrate auth: %w", err)
	}
	return nil
}
