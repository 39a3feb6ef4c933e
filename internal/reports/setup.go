package reports

import (
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/riddle015/riverhacks/internal/db"
)

// DefaultCategories seeds the catalog on first migration.
var DefaultCategories = []Category{
	{ID: "infrastructure", Name: "Infrastructure", Description: "Potholes, sidewalks, streetlights, signage", IconName: "construction", SeverityLevel: 3},
	{ID: "traffic", Name: "Traffic", Description: "Signals, congestion, crashes, road closures", IconName: "traffic", SeverityLevel: 3},
	{ID: "crime", Name: "Crime", Description: "Suspicious or criminal activity", IconName: "shield", SeverityLevel: 4},
	{ID: "environment", Name: "Environment", Description: "Dumping, pollution, fallen trees, flooding", IconName: "leaf", SeverityLevel: 3},
	{ID: "public_services", Name: "Public Services", Description: "Trash pickup, water, parks and facilities", IconName: "building", SeverityLevel: 2},
	{ID: "noise", Name: "Noise", Description: "Noise complaints", IconName: "volume", SeverityLevel: 2},
	{ID: "animals", Name: "Animals", Description: "Loose, injured or dead animals", IconName: "paw", SeverityLevel: 2},
	{ID: "other", Name: "Other", Description: "Anything else", IconName: "dots", SeverityLevel: 1},
}

// Migrate creates the report tables and seeds the category catalog.
func Migrate(gdb *gorm.DB) error {
	if err := db.EnsureExtensions(gdb, "postgis", "uuid-ossp"); err != nil {
		return err
	}
	if err := gdb.AutoMigrate(&Category{}, &Report{}, &ReportUpdate{}, &Vote{}); err != nil {
		return fmt.Errorf("migrate reports: %w", err)
	}
	if err := db.EnsureSpatialIndex(gdb, "reports", "location_point"); err != nil {
		return err
	}
	seed := make([]Category, len(DefaultCategories))
	for i, c := range DefaultCategories {
		c.IsActive = true
		seed[i] = c
	}
	if err := gdb.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return fmt.Errorf("seed categories: %w", err)
	}
	return nil
}
