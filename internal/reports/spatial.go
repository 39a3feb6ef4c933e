package reports

import (
	"context"
	"fmt"
	"strings"

	"github.com/riddle015/riverhacks/internal/db"
)

// NeighborhoodCount is one neighborhood's share of the reports matching a filter.
type NeighborhoodCount struct {
	ID                 int      `gorm:"column:neighborhood_id"`
	Name               string   `gorm:"column:name"`
	ReportCount        int      `gorm:"column:report_count"`
	AvgResolutionHours *float64 `gorm:"column:avg_resolution_hours"`
}

// MonthCount is the number of matching reports created in Month ("YYYY-MM", UTC).
type MonthCount struct {
	Month       string `gorm:"column:month"`
	ReportCount int    `gorm:"column:report_count"`
}

// SpatialSQL reports whether the neighborhood join can run in PostGIS.
func (s *Store) SpatialSQL() bool { return db.IsPostgres(s.db) }

// filterSQL renders f as a condition on the reports table aliased as alias.
// The result is "TRUE" when f is empty.
func filterSQL(f Filter, alias string) (string, []interface{}) {
	var conds []string
	var args []interface{}
	col := func(name string) string { return alias + "." + name }

	if len(f.CategoryIDs) > 0 {
		conds = append(conds, col("category_id")+" IN ?")
		args = append(args, f.CategoryIDs)
	}
	if len(f.Statuses) > 0 {
		conds = append(conds, col("status")+" IN ?")
		args = append(args, f.Statuses)
	}
	if f.Start != nil {
		conds = append(conds, col("created_at")+" >= ?")
		args = append(args, f.Start.UTC())
	}
	if f.End != nil {
		conds = append(conds, col("created_at")+" < ?")
		args = append(args, f.End.UTC())
	}
	if f.CouncilDistrict != nil {
		conds = append(conds, col("council_district")+" = ?")
		args = append(args, *f.CouncilDistrict)
	}
	if len(conds) == 0 {
		return "TRUE", nil
	}
	return strings.Join(conds, " AND "), args
}

// The filter lives in the join condition so neighborhoods without matching
// reports still appear with a zero count.
const neighborhoodCountsSQL = `
SELECT n.neighborhood_id, n.name,
       COUNT(r.report_id) AS report_count,
       (AVG(EXTRACT(EPOCH FROM (r.resolved_at - r.created_at)) / 3600.0))::float8 AS avg_resolution_hours
FROM neighborhoods n
LEFT JOIN reports r
  ON ST_Covers(n.boundary, r.location_point) AND %s
GROUP BY n.neighborhood_id, n.name
ORDER BY report_count DESC, n.neighborhood_id ASC`

const monthlyCountsSQL = `
SELECT to_char(date_trunc('month', r.created_at AT TIME ZONE 'UTC'), 'YYYY-MM') AS month,
       COUNT(*) AS report_count
FROM reports r
WHERE %s
GROUP BY month
ORDER BY month ASC`

// NeighborhoodCounts joins matching reports to neighborhood polygons with
// ST_Covers, so points on a boundary count. Postgres only.
func (s *Store) NeighborhoodCounts(ctx context.Context, f Filter) ([]NeighborhoodCount, error) {
	cond, args := filterSQL(f, "r")
	query := fmt.Sprintf(neighborhoodCountsSQL, cond)

	var out []NeighborhoodCount
	err := db.Retry(ctx, s.retries, "neighborhood_counts", func() error {
		out = nil
		return s.db.WithContext(ctx).Raw(query, args...).Scan(&out).Error
	})
	if err != nil {
		return nil, db.Classify("neighborhood counts", err)
	}
	return out, nil
}

// MonthlyCounts buckets matching reports by UTC creation month. Postgres only.
func (s *Store) MonthlyCounts(ctx context.Context, f Filter) ([]MonthCount, error) {
	cond, args := filterSQL(f, "r")
	query := fmt.Sprintf(monthlyCountsSQL, cond)

	var out []MonthCount
	err := db.Retry(ctx, s.retries, "monthly_counts", func() error {
		out = nil
		return s.db.WithContext(ctx).Raw(query, args...).Scan(&out).Error
	})
	if err != nil {
		return nil, db.Classify("monthly counts", err)
	}
	return out, nil
}
