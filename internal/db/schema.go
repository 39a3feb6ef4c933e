package db

import (
	"fmt"

	"gorm.io/gorm"
)

// EnsureExtensions creates Postgres extensions; no-op on other dialects.
func EnsureExtensions(d *gorm.DB, names ...string) error {
	if !IsPostgres(d) {
		return nil
	}
	for _, name := range names {
		if err := d.Exec(`CREATE EXTENSION IF NOT EXISTS "` + name + `"`).Error; err != nil {
			return fmt.Errorf("create extension %s: %w", name, err)
		}
	}
	return nil
}

// EnsureSpatialIndex adds a GIST index on a geography column. Postgres only.
func EnsureSpatialIndex(d *gorm.DB, table, column string) error {
	if !IsPostgres(d) {
		return nil
	}
	stmt := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS "idx_%s_%s_gist" ON "%s" USING GIST ("%s")`,
		table, column, table, column)
	if err := d.Exec(stmt).Error; err != nil {
		return fmt.Errorf("create spatial index on %s.%s: %w", table, column, err)
	}
	return nil
}
