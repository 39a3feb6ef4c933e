package regionimport

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"
	"github.com/paulmach/orb/geojson"

	"github.com/riddle015/riverhacks/internal/logger"
	"github.com/riddle015/riverhacks/internal/regions"
)

// Open connects through the pgx database/sql driver.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, errors.New("database url is required")
	}
	conn, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("connect: %w", err)
	}
	return conn, nil
}

// Run parses cfg.FilePath and upserts every region in one transaction.
func Run(ctx context.Context, cfg Config, log *logger.Logger) (Result, error) {
	log = logger.OrNop(log)
	rows, err := ParseFile(cfg.FilePath, cfg)
	if err != nil {
		return Result{}, err
	}

	conn, err := Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return Result{}, err
	}
	defer conn.Close()

	res, err := Upsert(ctx, conn, cfg.Kind, rows, cfg.Prune)
	if err != nil {
		return res, err
	}
	log.Info("regions imported", "kind", cfg.Kind, "upserted", res.Upserted, "pruned", res.Pruned)
	return res, nil
}

// Upsert writes rows and, with prune, deletes rows whose id is not among them.
func Upsert(ctx context.Context, conn *sql.DB, kind regions.Kind, rows []Row, prune bool) (Result, error) {
	var res Result
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return res, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`
		INSERT INTO %[1]s (%[2]s, name, boundary, created_at)
		VALUES ($1, $2, ST_SetSRID(ST_Multi(ST_GeomFromGeoJSON($3)), 4326)::geography, now())
		ON CONFLICT (%[2]s) DO UPDATE
		SET name = EXCLUDED.name, boundary = EXCLUDED.boundary`,
		kind.Table(), kind.IDColumn()))
	if err != nil {
		return res, fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	ids := make([]int64, 0, len(rows))
	for _, r := range rows {
		geom, err := geojson.NewGeometry(r.Boundary.MultiPolygon()).MarshalJSON()
		if err != nil {
			return res, fmt.Errorf("encode %s: %w", r.Name, err)
		}
		if _, err := stmt.ExecContext(ctx, r.ID, r.Name, string(geom)); err != nil {
			return res, fmt.Errorf("upsert %s %d (%s): %w", kind, r.ID, r.Name, err)
		}
		ids = append(ids, int64(r.ID))
		res.Upserted++
	}

	if prune {
		n, err := pruneExcept(ctx, tx, kind, ids)
		if err != nil {
			return res, err
		}
		res.Pruned = n
	}
	return res, tx.Commit()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func pruneExcept(ctx context.Context, ex execer, kind regions.Kind, keep []int64) (int64, error) {
	out, err := ex.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE NOT (%s = ANY($1))`, kind.Table(), kind.IDColumn()),
		pq.Array(keep))
	if err != nil {
		return 0, fmt.Errorf("prune %s: %w", kind, err)
	}
	return out.RowsAffected()
}

// Prune deletes every region of kind whose id is not in keep.
func Prune(ctx context.Context, conn *sql.DB, kind regions.Kind, keep []int64) (int64, error) {
	if len(keep) == 0 {
		return 0, errors.New("refusing to prune: keep list is empty")
	}
	return pruneExcept(ctx, conn, kind, keep)
}

// Summary is a region row without its boundary.
type Summary struct {
	ID       int
	Name     string
	AreaSqKm float64
}

func List(ctx context.Context, conn *sql.DB, kind regions.Kind) ([]Summary, error) {
	rows, err := conn.QueryContext(ctx, fmt.Sprintf(
		`SELECT %s, name, COALESCE(ST_Area(boundary) / 1e6, 0) FROM %s ORDER BY 1`,
		kind.IDColumn(), kind.Table()))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var s Summary
		if err := rows.Scan(&s.ID, &s.Name, &s.AreaSqKm); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
