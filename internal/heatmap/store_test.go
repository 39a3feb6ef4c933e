package heatmap

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/riddle015/riverhacks/internal/cache"
	"github.com/riddle015/riverhacks/internal/db/dbtest"
	"github.com/riddle015/riverhacks/internal/regions"
	"github.com/riddle015/riverhacks/internal/reports"
)

func TestNeighborhoodStatistics_RealStores(t *testing.T) {
	gdb := dbtest.SQLite(t)
	if err := regions.Migrate(gdb); err != nil {
		t.Fatalf("migrate regions: %v", err)
	}
	if err := reports.Migrate(gdb); err != nil {
		t.Fatalf("migrate reports: %v", err)
	}
	for _, n := range []regions.Neighborhood{
		{ID: 1, Name: "Downtown", Boundary: box(-97.75, 30.26, -97.73, 30.28)},
		{ID: 2, Name: "East Austin", Boundary: box(-97.72, 30.25, -97.70, 30.28)},
	} {
		if err := gdb.Create(&n).Error; err != nil {
			t.Fatal(err)
		}
	}

	ctx := context.Background()
	repo := regions.NewRepository(gdb, nil)
	if _, err := repo.Reload(ctx); err != nil {
		t.Fatalf("reload: %v", err)
	}

	clock := time.Date(2025, 4, 20, 14, 30, 0, 0, time.UTC)
	store := reports.NewStore(gdb, reports.Options{
		StrictStatus: true,
		Locator:      repo,
		Now: func() time.Time {
			clock = clock.Add(time.Hour)
			return clock
		},
	})
	agg := NewAggregator(store, repo, nil, 0, nil)

	r, err := store.CreateReport(ctx, reports.CreateInput{
		CategoryID:  "infrastructure",
		Description: "pothole on Congress Ave",
		Severity:    3,
		Longitude:   -97.7431,
		Latitude:    30.2672,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if r.Neighborhood == nil || *r.Neighborhood != "Downtown" {
		t.Errorf("expected report located in Downtown, got %v", r.Neighborhood)
	}

	res := agg.NeighborhoodStatistics(ctx, reports.Filter{})
	if res.Fallback {
		t.Fatal("healthy stores must not serve the sample dataset")
	}
	per := res.Data.PerNeighborhood
	if len(per) != 2 || per[0].Name != "Downtown" || per[0].ReportCount != 1 || per[1].ReportCount != 0 {
		t.Fatalf("unexpected per-neighborhood stats %+v", per)
	}
	if per[0].AvgResolutionHours != nil {
		t.Errorf("open report must not produce an average, got %v", *per[0].AvgResolutionHours)
	}
	if len(res.Data.TimeTrend) != 1 || res.Data.TimeTrend[0] != (MonthCount{"2025-04", 1}) {
		t.Errorf("unexpected trend %+v", res.Data.TimeTrend)
	}

	if _, err := store.AppendUpdate(ctx, r.ID.String(), reports.UpdateInput{Status: reports.StatusResolved, Comment: "filled"}); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	res = agg.NeighborhoodStatistics(ctx, reports.Filter{Statuses: []string{reports.StatusResolved}})
	if got := res.Data.PerNeighborhood[0]; got.ReportCount != 1 || got.AvgResolutionHours == nil || *got.AvgResolutionHours != 1 {
		t.Errorf("expected one resolved report after 1h, got %+v", got)
	}
}

func TestInvalidate_Redis(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set, skipping integration test")
	}
	ctx := context.Background()
	c := cache.Open(addr, os.Getenv("REDIS_PASSWORD"), 0, nil)
	defer c.Close()

	downtown := regions.Region{ID: 1, Name: "Downtown", Boundary: box(-97.75, 30.26, -97.73, 30.28)}
	src := &fakeSource{}
	agg := NewAggregator(src, fakeRegions{hoods: []regions.Region{downtown}}, c, time.Minute, nil)
	agg.Invalidate(ctx)

	if got := agg.NeighborhoodStatistics(ctx, reports.Filter{}).Data.PerNeighborhood[0].ReportCount; got != 0 {
		t.Fatalf("expected empty store, got %d", got)
	}
	src.rows = []reports.Report{report(-97.7431, 30.2672, time.Date(2025, 4, 20, 0, 0, 0, 0, time.UTC), 0)}
	if got := agg.NeighborhoodStatistics(ctx, reports.Filter{}).Data.PerNeighborhood[0].ReportCount; got != 0 {
		t.Fatalf("expected the cached result before invalidation, got %d", got)
	}

	agg.Invalidate(ctx)
	if got := agg.NeighborhoodStatistics(ctx, reports.Filter{}).Data.PerNeighborhood[0].ReportCount; got != 1 {
		t.Errorf("expected fresh statistics after invalidation, got %d", got)
	}
}
