package heatmap

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"

	"github.com/riddle015/riverhacks/internal/db/dbtest"
	"github.com/riddle015/riverhacks/internal/geo"
	"github.com/riddle015/riverhacks/internal/regions"
	"github.com/riddle015/riverhacks/internal/reports"
)

type fakeSource struct {
	rows []reports.Report
	err  error
	seen reports.Filter
}

func (f *fakeSource) Points(ctx context.Context, filter reports.Filter) ([]reports.Report, error) {
	f.seen = filter
	return f.rows, f.err
}

// fakeSpatial answers statistics through the database path and fails the
// test if rows are pulled into memory.
type fakeSpatial struct {
	t      *testing.T
	counts []reports.NeighborhoodCount
	months []reports.MonthCount
	err    error
}

func (f *fakeSpatial) Points(ctx context.Context, filter reports.Filter) ([]reports.Report, error) {
	f.t.Error("Points must not be called when the join runs in the database")
	return nil, nil
}

func (f *fakeSpatial) SpatialSQL() bool { return true }

func (f *fakeSpatial) NeighborhoodCounts(ctx context.Context, filter reports.Filter) ([]reports.NeighborhoodCount, error) {
	return f.counts, f.err
}

func (f *fakeSpatial) MonthlyCounts(ctx context.Context, filter reports.Filter) ([]reports.MonthCount, error) {
	return f.months, nil
}

type fakeRegions struct {
	hoods []regions.Region
	err   error
}

func (f fakeRegions) Neighborhoods(ctx context.Context) ([]regions.Region, error) {
	return f.hoods, f.err
}

func box(minLon, minLat, maxLon, maxLat float64) geo.Boundary {
	return geo.Boundary{{orb.Ring{
		{minLon, minLat}, {maxLon, minLat}, {maxLon, maxLat}, {minLon, maxLat}, {minLon, minLat},
	}}}
}

func report(lon, lat float64, created time.Time, resolvedAfter time.Duration) reports.Report {
	r := reports.Report{
		ID:         uuid.New(),
		CategoryID: "infrastructure",
		Severity:   3,
		Status:     reports.StatusSubmitted,
		Location:   geo.Point{Lon: lon, Lat: lat},
		CreatedAt:  created,
		UpdatedAt:  created,
	}
	if resolvedAfter > 0 {
		t := created.Add(resolvedAfter)
		r.ResolvedAt = &t
		r.Status = reports.StatusResolved
	}
	return r
}

func TestHeatmapFeatures_Live(t *testing.T) {
	created := time.Date(2025, 4, 20, 14, 30, 0, 0, time.UTC)
	district := 9
	r := report(-97.7431, 30.2672, created, 0)
	r.CouncilDistrict = &district
	src := &fakeSource{rows: []reports.Report{r}}

	res := NewAggregator(src, nil, nil, 0, nil).HeatmapFeatures(context.Background(), reports.Filter{})
	if res.Fallback {
		t.Fatal("live data must not be flagged as fallback")
	}
	if len(res.Data.Features) != 1 {
		t.Fatalf("expected 1 feature, got %d", len(res.Data.Features))
	}
	f := res.Data.Features[0]
	if pt, ok := f.Geometry.(orb.Point); !ok || pt.Lon() != -97.7431 || pt.Lat() != 30.2672 {
		t.Errorf("unexpected geometry %v", f.Geometry)
	}
	want := map[string]interface{}{
		"report_id":        r.ID.String(),
		"category_id":      "infrastructure",
		"severity":         3,
		"status":           "submitted",
		"created_at":       "2025-04-20T14:30:00Z",
		"resolved_at":      nil,
		"council_district": 9,
	}
	for k, v := range want {
		if f.Properties[k] != v {
			t.Errorf("property %s = %v, want %v", k, f.Properties[k], v)
		}
	}
}

func TestHeatmapFeatures_EmptyIsNotFallback(t *testing.T) {
	res := NewAggregator(&fakeSource{}, nil, nil, 0, nil).HeatmapFeatures(context.Background(), reports.Filter{CategoryIDs: []string{"noise"}})
	if res.Fallback {
		t.Error("empty result must not be flagged as fallback")
	}
	if len(res.Data.Features) != 0 {
		t.Errorf("expected no features, got %d", len(res.Data.Features))
	}
}

func TestHeatmapFeatures_Fallback(t *testing.T) {
	src := &fakeSource{err: errors.New("connection refused")}
	res := NewAggregator(src, nil, nil, 0, nil).HeatmapFeatures(context.Background(), reports.Filter{})
	if !res.Fallback {
		t.Fatal("store failure must be flagged as fallback")
	}
	if len(res.Data.Features) != len(sampleReports) {
		t.Errorf("expected %d sample features, got %d", len(sampleReports), len(res.Data.Features))
	}
}

func TestNeighborhoodStatistics(t *testing.T) {
	downtown := regions.Region{ID: 1, Name: "Downtown", Boundary: box(-97.75, 30.26, -97.73, 30.28)}
	east := regions.Region{ID: 2, Name: "East Austin", Boundary: box(-97.73, 30.25, -97.70, 30.28)}
	south := regions.Region{ID: 3, Name: "South Congress", Boundary: box(-97.76, 30.23, -97.74, 30.25)}

	march := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	april := time.Date(2025, 4, 2, 8, 0, 0, 0, time.UTC)
	rows := []reports.Report{
		report(-97.7431, 30.2672, march, 10*time.Hour), // downtown
		report(-97.7400, 30.2700, april, 20*time.Hour), // downtown
		report(-97.7450, 30.2650, april, 0),            // downtown, open
		report(-97.7200, 30.2600, april, 0),            // east, open
		report(-97.7300, 30.2700, april, 0),            // shared edge: both
		report(-98.5000, 29.4000, march, 0),            // outside every region
	}

	agg := NewAggregator(&fakeSource{rows: rows}, fakeRegions{hoods: []regions.Region{south, east, downtown}}, nil, 0, nil)
	res := agg.NeighborhoodStatistics(context.Background(), reports.Filter{})
	if res.Fallback {
		t.Fatal("unexpected fallback")
	}

	per := res.Data.PerNeighborhood
	if len(per) != 3 {
		t.Fatalf("expected 3 neighborhoods, got %d", len(per))
	}
	if per[0].ID != 1 || per[0].ReportCount != 4 {
		t.Errorf("expected Downtown first with 4, got %+v", per[0])
	}
	if per[0].AvgResolutionHours == nil || *per[0].AvgResolutionHours != 15 {
		t.Errorf("expected 15h average, got %v", per[0].AvgResolutionHours)
	}
	if per[1].ID != 2 || per[1].ReportCount != 2 || per[1].AvgResolutionHours != nil {
		t.Errorf("expected East Austin with 2 and no average, got %+v", per[1])
	}
	if per[2].ID != 3 || per[2].ReportCount != 0 || per[2].AvgResolutionHours != nil {
		t.Errorf("expected South Congress last with 0, got %+v", per[2])
	}

	trend := res.Data.TimeTrend
	if len(trend) != 2 || trend[0] != (MonthCount{"2025-03", 2}) || trend[1] != (MonthCount{"2025-04", 4}) {
		t.Errorf("unexpected trend %+v", trend)
	}
}

func TestNeighborhoodStatistics_TieBreaksOnID(t *testing.T) {
	a := regions.Region{ID: 7, Name: "A", Boundary: box(0, 0, 1, 1)}
	b := regions.Region{ID: 3, Name: "B", Boundary: box(2, 2, 3, 3)}
	now := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	rows := []reports.Report{report(0.5, 0.5, now, 0), report(2.5, 2.5, now, 0)}

	res := NewAggregator(&fakeSource{rows: rows}, fakeRegions{hoods: []regions.Region{a, b}}, nil, 0, nil).
		NeighborhoodStatistics(context.Background(), reports.Filter{})
	if res.Data.PerNeighborhood[0].ID != 3 || res.Data.PerNeighborhood[1].ID != 7 {
		t.Errorf("equal counts must order by id ascending, got %+v", res.Data.PerNeighborhood)
	}
}

func TestNeighborhoodStatistics_Fallback(t *testing.T) {
	cases := map[string]*Aggregator{
		"store down":   NewAggregator(&fakeSource{err: errors.New("timeout")}, fakeRegions{}, nil, 0, nil),
		"regions down": NewAggregator(&fakeSource{}, fakeRegions{err: errors.New("timeout")}, nil, 0, nil),
	}
	for name, agg := range cases {
		t.Run(name, func(t *testing.T) {
			res := agg.NeighborhoodStatistics(context.Background(), reports.Filter{})
			if !res.Fallback {
				t.Fatal("expected fallback")
			}
			if len(res.Data.PerNeighborhood) != 5 || len(res.Data.TimeTrend) != 4 {
				t.Errorf("expected the sample dataset, got %+v", res.Data)
			}
		})
	}
}

func TestNeighborhoodStatistics_DatabaseJoin(t *testing.T) {
	avg := 12.5
	src := &fakeSpatial{
		t: t,
		counts: []reports.NeighborhoodCount{
			{ID: 4, Name: "North Austin", ReportCount: 3, AvgResolutionHours: &avg},
			{ID: 1, Name: "Downtown", ReportCount: 0},
		},
		months: []reports.MonthCount{{Month: "2025-03", ReportCount: 1}, {Month: "2025-04", ReportCount: 2}},
	}
	res := NewAggregator(src, fakeRegions{err: errors.New("regions must not be read")}, nil, 0, nil).
		NeighborhoodStatistics(context.Background(), reports.Filter{})
	if res.Fallback {
		t.Fatal("unexpected fallback")
	}
	per := res.Data.PerNeighborhood
	if len(per) != 2 || per[0].ID != 4 || per[0].ReportCount != 3 || *per[0].AvgResolutionHours != 12.5 || per[1].ReportCount != 0 {
		t.Errorf("unexpected per-neighborhood stats %+v", per)
	}
	if len(res.Data.TimeTrend) != 2 || res.Data.TimeTrend[1] != (MonthCount{"2025-04", 2}) {
		t.Errorf("unexpected trend %+v", res.Data.TimeTrend)
	}

	src.err = errors.New("statement timeout")
	if res := NewAggregator(src, nil, nil, 0, nil).NeighborhoodStatistics(context.Background(), reports.Filter{}); !res.Fallback {
		t.Error("database join failure must serve the sample dataset")
	}
}

func TestInvalidate_DisabledCache(t *testing.T) {
	NewAggregator(&fakeSource{}, nil, nil, 0, nil).Invalidate(context.Background())
}

func TestFilterKey_Canonical(t *testing.T) {
	a := filterKey(reports.Filter{CategoryIDs: []string{"traffic", "crime"}, Statuses: []string{"resolved"}})
	b := filterKey(reports.Filter{CategoryIDs: []string{"crime", "traffic"}, Statuses: []string{"resolved"}})
	if a != b {
		t.Errorf("category order must not change the key: %q vs %q", a, b)
	}
	d := 3
	if filterKey(reports.Filter{CouncilDistrict: &d}) == filterKey(reports.Filter{}) {
		t.Error("district must be part of the key")
	}
}

func TestHeatmapFeatures_FilterConjunctionAgainstStore(t *testing.T) {
	ctx := context.Background()
	gdb := dbtest.SQLite(t)
	if err := reports.Migrate(gdb); err != nil {
		t.Fatal(err)
	}
	store := reports.NewStore(gdb, reports.Options{StrictStatus: true})

	mk := func(category string, resolve bool) string {
		r, err := store.CreateReport(ctx, reports.CreateInput{
			CategoryID: category, Description: "x", Severity: 2, Longitude: -97.74, Latitude: 30.27,
		})
		if err != nil {
			t.Fatal(err)
		}
		if resolve {
			if _, err := store.AppendUpdate(ctx, r.ID.String(), reports.UpdateInput{Status: reports.StatusResolved, Comment: "done"}); err != nil {
				t.Fatal(err)
			}
		}
		return r.ID.String()
	}
	want := mk("infrastructure", true)
	mk("infrastructure", false)
	mk("traffic", true)

	agg := NewAggregator(store, nil, nil, 0, nil)
	res := agg.HeatmapFeatures(ctx, reports.Filter{CategoryIDs: []string{"infrastructure"}, Statuses: []string{"resolved"}})
	if res.Fallback || len(res.Data.Features) != 1 {
		t.Fatalf("expected exactly one live feature, got %d (fallback=%v)", len(res.Data.Features), res.Fallback)
	}
	props := res.Data.Features[0].Properties
	if props["report_id"] != want || props["category_id"] != "infrastructure" || props["status"] != "resolved" {
		t.Errorf("feature does not satisfy both predicates: %v", props)
	}
	if props["resolved_at"] == nil {
		t.Error("resolved feature should carry resolved_at")
	}
}
