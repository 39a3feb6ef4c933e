// Package dbtest opens throwaway databases for package tests.
package dbtest

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/riddle015/riverhacks/internal/db"
)

// SQLite opens a file-backed SQLite database in t.TempDir with foreign keys on
// and a single connection, so concurrent callers serialize the way row locks
// would on Postgres. Skips the test when the driver is unavailable (no cgo).
func SQLite(t *testing.T) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "alerthub.db")
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", path)

	cfg := db.NewGormConfig(false)
	cfg.Logger = logger.Default.LogMode(logger.Silent)
	gdb, err := gorm.Open(sqlite.Open(dsn), cfg)
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	if err := db.ApplyPool(gdb, db.PoolConfig{MaxOpenConns: 1, MaxIdleConns: 1}); err != nil {
		t.Fatalf("pool: %v", err)
	}
	if err := gdb.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	t.Cleanup(func() { _ = db.Close(gdb) })
	return gdb
}

// Postgres connects to DATABASE_URL, skipping the test when it is unset.
func Postgres(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}
	gdb, err := db.Open(dsn, false)
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	t.Cleanup(func() { _ = db.Close(gdb) })
	return gdb
}
