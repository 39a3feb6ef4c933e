package db

import (
	"context"
	"database/sql/driver"
	"errors"
	"io"
	"net"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/riddle015/riverhacks/internal/apperr"
	"github.com/riddle015/riverhacks/internal/metrics"
)

// RetryBackoff is the base delay between retries; attempt n waits n*RetryBackoff.
var RetryBackoff = 50 * time.Millisecond

// Transient reports whether err is worth retrying: lost connections,
// serialization failures, deadlocks, lock timeouts, busy SQLite files.
func Transient(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "55P03", "57P01", "57P02", "57P03", "53300":
			return true
		}
		return strings.HasPrefix(pgErr.Code, "08")
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if pgconn.SafeToRetry(err) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}

// Retry runs fn up to attempts+1 times while it fails with a transient error.
func Retry(ctx context.Context, attempts int, op string, fn func() error) error {
	for i := 0; ; i++ {
		err := fn()
		if err == nil || i >= attempts || !Transient(err) {
			return err
		}
		metrics.StoreRetriesTotal.WithLabelValues(op).Inc()
		select {
		case <-ctx.Done():
			return err
		case <-time.After(time.Duration(i+1) * RetryBackoff):
		}
	}
}

// Classify maps a raw gorm/driver error to the application taxonomy.
// Errors that are already *apperr.Error pass through unchanged.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperr.New(apperr.KindNotFound, op+": not found", err)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return apperr.Conflict(op+": already exists", err)
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return apperr.New(apperr.KindValidation, op+": referenced record does not exist", err)
	case errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return apperr.StoreUnavailable(op+": timed out", err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return apperr.Conflict(op+": already exists", err)
		case "23503":
			return apperr.New(apperr.KindValidation, op+": referenced record does not exist", err)
		case "23502", "23514", "22P02":
			return apperr.New(apperr.KindValidation, op+": invalid value", err)
		}
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return apperr.Conflict(op+": already exists", err)
	}
	if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
		return apperr.New(apperr.KindValidation, op+": referenced record does not exist", err)
	}
	return apperr.StoreUnavailable(op, err)
}
