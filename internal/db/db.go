package db

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// PoolConfig sizes the connection pool.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

var DefaultPool = PoolConfig{
	MaxOpenConns:    20,
	MaxIdleConns:    20,
	ConnMaxLifetime: 30 * time.Minute,
}

// Open connects to Postgres and returns the handle the rest of the process shares.
// The caller owns it and must Close it at shutdown.
func Open(dsn string, verbose bool) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("open database: empty DSN")
	}

	gdb, err := gorm.Open(postgres.Open(dsn), NewGormConfig(verbose))
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := ApplyPool(gdb, DefaultPool); err != nil {
		return nil, err
	}
	return gdb, nil
}

// NewGormConfig surfaces slow queries in the process log.
func NewGormConfig(verbose bool) *gorm.Config {
	level := logger.Warn
	if verbose {
		level = logger.Info
	}
	lg := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             100 * time.Millisecond,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
			Colorful:                  verbose,
		},
	)
	return &gorm.Config{
		Logger:         lg,
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

func ApplyPool(gdb *gorm.DB, pool PoolConfig) error {
	sqlDB, err := gdb.DB()
	if err != nil {
		return fmt.Errorf("get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(pool.ConnMaxLifetime)
	return nil
}

func Close(gdb *gorm.DB) error {
	sqlDB, err := gdb.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// IsPostgres reports whether gdb talks to Postgres (PostGIS features available).
func IsPostgres(gdb *gorm.DB) bool {
	return gdb.Dialector.Name() == "postgres"
}
