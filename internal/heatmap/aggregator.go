package heatmap

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb/geojson"
	"golang.org/x/sync/errgroup"

	"github.com/riddle015/riverhacks/internal/cache"
	"github.com/riddle015/riverhacks/internal/logger"
	"github.com/riddle015/riverhacks/internal/metrics"
	"github.com/riddle015/riverhacks/internal/regions"
	"github.com/riddle015/riverhacks/internal/reports"
)

// Source is the read side of the report store.
type Source interface {
	Points(ctx context.Context, f reports.Filter) ([]reports.Report, error)
}

// SpatialSource runs the neighborhood join and month buckets in the
// database. Sources that report SpatialSQL() == false use the in-memory join.
type SpatialSource interface {
	SpatialSQL() bool
	NeighborhoodCounts(ctx context.Context, f reports.Filter) ([]reports.NeighborhoodCount, error)
	MonthlyCounts(ctx context.Context, f reports.Filter) ([]reports.MonthCount, error)
}

// RegionSource supplies neighborhood polygons for the containment join.
type RegionSource interface {
	Neighborhoods(ctx context.Context) ([]regions.Region, error)
}

type Aggregator struct {
	src     Source
	regions RegionSource
	cache   *cache.Cache
	ttl     time.Duration
	log     *logger.Logger
}

// NewAggregator builds an aggregator. c may be nil to disable caching.
func NewAggregator(src Source, rs RegionSource, c *cache.Cache, ttl time.Duration, log *logger.Logger) *Aggregator {
	return &Aggregator{src: src, regions: rs, cache: c, ttl: ttl, log: logger.OrNop(log)}
}

const (
	nsHeatmap    = "heatmap"
	nsStatistics = "stats"
)

// HeatmapFeatures returns one point feature per matching report. Store
// failures yield the sample dataset flagged as fallback.
func (a *Aggregator) HeatmapFeatures(ctx context.Context, f reports.Filter) Result[*geojson.FeatureCollection] {
	key := cache.Key(nsHeatmap, filterKey(f))
	var cached geojson.FeatureCollection
	if a.cache.GetJSON(ctx, nsHeatmap, key, &cached) {
		return Result[*geojson.FeatureCollection]{Data: &cached}
	}

	rows, err := a.src.Points(ctx, f)
	if err != nil {
		a.log.Warn("heatmap query failed, serving sample data", "err", err)
		metrics.FallbacksTotal.WithLabelValues(nsHeatmap).Inc()
		return Result[*geojson.FeatureCollection]{Data: sampleFeatures(), Fallback: true}
	}

	fc := buildFeatures(rows)
	a.cache.SetJSON(ctx, key, fc, a.ttl)
	return Result[*geojson.FeatureCollection]{Data: fc}
}

// NeighborhoodStatistics joins matching reports to neighborhoods by
// containment and buckets them by month. The join runs in PostGIS when the
// source supports it.
func (a *Aggregator) NeighborhoodStatistics(ctx context.Context, f reports.Filter) Result[Statistics] {
	key := cache.Key(nsStatistics, filterKey(f))
	var cached Statistics
	if a.cache.GetJSON(ctx, nsStatistics, key, &cached) {
		return Result[Statistics]{Data: cached}
	}

	var stats Statistics
	var err error
	if sp, ok := a.src.(SpatialSource); ok && sp.SpatialSQL() {
		stats, err = spatialStatistics(ctx, sp, f)
	} else {
		stats, err = a.memoryStatistics(ctx, f)
	}
	if err != nil {
		return a.statisticsFallback(err)
	}

	a.cache.SetJSON(ctx, key, stats, a.ttl)
	return Result[Statistics]{Data: stats}
}

// Invalidate drops cached heatmap and statistics results. Failures are
// logged; entries then expire by TTL.
func (a *Aggregator) Invalidate(ctx context.Context) {
	for _, ns := range []string{nsHeatmap, nsStatistics} {
		if err := a.cache.Invalidate(ctx, ns); err != nil {
			a.log.Warn("cache invalidation failed", "namespace", ns, "err", err)
		}
	}
}

func spatialStatistics(ctx context.Context, sp SpatialSource, f reports.Filter) (Statistics, error) {
	var counts []reports.NeighborhoodCount
	var months []reports.MonthCount
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		counts, err = sp.NeighborhoodCounts(gctx, f)
		return err
	})
	g.Go(func() error {
		var err error
		months, err = sp.MonthlyCounts(gctx, f)
		return err
	})
	if err := g.Wait(); err != nil {
		return Statistics{}, err
	}

	stats := Statistics{
		PerNeighborhood: make([]NeighborhoodStat, 0, len(counts)),
		TimeTrend:       make([]MonthCount, 0, len(months)),
	}
	for _, c := range counts {
		stats.PerNeighborhood = append(stats.PerNeighborhood, NeighborhoodStat{
			ID:                 c.ID,
			Name:               c.Name,
			ReportCount:        c.ReportCount,
			AvgResolutionHours: c.AvgResolutionHours,
		})
	}
	for _, m := range months {
		stats.TimeTrend = append(stats.TimeTrend, MonthCount{Month: m.Month, ReportCount: m.ReportCount})
	}
	return stats, nil
}

func (a *Aggregator) memoryStatistics(ctx context.Context, f reports.Filter) (Statistics, error) {
	rows, err := a.src.Points(ctx, f)
	if err != nil {
		return Statistics{}, err
	}
	var hoods []regions.Region
	if a.regions != nil {
		if hoods, err = a.regions.Neighborhoods(ctx); err != nil {
			return Statistics{}, err
		}
	}
	return computeStatistics(rows, hoods), nil
}

func (a *Aggregator) statisticsFallback(err error) Result[Statistics] {
	a.log.Warn("statistics query failed, serving sample data", "err", err)
	metrics.FallbacksTotal.WithLabelValues(nsStatistics).Inc()
	return Result[Statistics]{Data: sampleStatistics(), Fallback: true}
}

func buildFeatures(rows []reports.Report) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, r := range rows {
		f := geojson.NewFeature(r.Location.Orb())
		f.Properties["report_id"] = r.ID.String()
		f.Properties["category_id"] = r.CategoryID
		f.Properties["severity"] = r.Severity
		f.Properties["status"] = r.Status
		f.Properties["created_at"] = r.CreatedAt.UTC().Format(time.RFC3339)
		f.Properties["resolved_at"] = nil
		if r.ResolvedAt != nil {
			f.Properties["resolved_at"] = r.ResolvedAt.UTC().Format(time.RFC3339)
		}
		f.Properties["council_district"] = nil
		if r.CouncilDistrict != nil {
			f.Properties["council_district"] = *r.CouncilDistrict
		}
		fc.Append(f)
	}
	return fc
}

func computeStatistics(rows []reports.Report, hoods []regions.Region) Statistics {
	per := make([]NeighborhoodStat, 0, len(hoods))
	for _, h := range hoods {
		stat := NeighborhoodStat{ID: h.ID, Name: h.Name}
		var total float64
		var resolved int
		for _, r := range rows {
			if !h.Boundary.Contains(r.Location) {
				continue
			}
			stat.ReportCount++
			if r.ResolvedAt != nil {
				total += r.ResolvedAt.Sub(r.CreatedAt).Hours()
				resolved++
			}
		}
		if resolved > 0 {
			avg := total / float64(resolved)
			stat.AvgResolutionHours = &avg
		}
		per = append(per, stat)
	}
	sort.SliceStable(per, func(i, j int) bool {
		if per[i].ReportCount != per[j].ReportCount {
			return per[i].ReportCount > per[j].ReportCount
		}
		return per[i].ID < per[j].ID
	})

	counts := map[string]int{}
	for _, r := range rows {
		counts[monthOf(r.CreatedAt)]++
	}
	trend := make([]MonthCount, 0, len(counts))
	for m, n := range counts {
		trend = append(trend, MonthCount{Month: m, ReportCount: n})
	}
	sort.Slice(trend, func(i, j int) bool { return trend[i].Month < trend[j].Month })

	return Statistics{PerNeighborhood: per, TimeTrend: trend}
}

// filterKey is a canonical rendering of f for cache keys.
func filterKey(f reports.Filter) string {
	cats := append([]string(nil), f.CategoryIDs...)
	sort.Strings(cats)
	sts := append([]string(nil), f.Statuses...)
	sort.Strings(sts)

	parts := []string{
		"c=" + strings.Join(cats, ","),
		"s=" + strings.Join(sts, ","),
	}
	if f.Start != nil {
		parts = append(parts, "from="+f.Start.UTC().Format(time.RFC3339))
	}
	if f.End != nil {
		parts = append(parts, "to="+f.End.UTC().Format(time.RFC3339))
	}
	if f.CouncilDistrict != nil {
		parts = append(parts, "d="+strconv.Itoa(*f.CouncilDistrict))
	}
	return strings.Join(parts, "|")
}
