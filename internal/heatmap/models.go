package heatmap

import (
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Result tags aggregator output as real data or the sample dataset served
// while the store is unreachable.
type Result[T any] struct {
	Data     T
	Fallback bool
}

type NeighborhoodStat struct {
	ID                 int      `json:"neighborhood_id"`
	Name               string   `json:"neighborhood_name"`
	ReportCount        int      `json:"report_count"`
	AvgResolutionHours *float64 `json:"avg_resolution_hours"`
}

// MonthCount buckets reports by created_at month, "YYYY-MM".
type MonthCount struct {
	Month       string `json:"month"`
	ReportCount int    `json:"report_count"`
}

type Statistics struct {
	PerNeighborhood []NeighborhoodStat `json:"neighborhood_statistics"`
	TimeTrend       []MonthCount       `json:"time_trends"`
}

type statisticsResponse struct {
	Statistics
	Fallback bool `json:"fallback"`
}

type sampleReport struct {
	id         string
	category   string
	severity   int
	status     string
	lon, lat   float64
	createdAt  string
	resolvedAt string
}

var sampleReports = []sampleReport{
	{"1001", "infrastructure", 3, "submitted", -97.7431, 30.2672, "2025-04-20T14:30:00Z", ""},
	{"1002", "traffic", 4, "in_progress", -97.7501, 30.2751, "2025-04-21T09:15:00Z", ""},
	{"1003", "crime", 5, "submitted", -97.7370, 30.2629, "2025-04-22T23:45:00Z", ""},
	{"1004", "environment", 2, "resolved", -97.7531, 30.2752, "2025-04-19T13:20:00Z", "2025-04-23T10:30:00Z"},
	{"1005", "public_services", 2, "submitted", -97.7332, 30.2845, "2025-04-23T08:10:00Z", ""},
	{"1006", "noise", 3, "in_progress", -97.7601, 30.2621, "2025-04-22T22:05:00Z", ""},
	{"1007", "animals", 3, "submitted", -97.7401, 30.2702, "2025-04-23T07:30:00Z", ""},
	{"1008", "other", 1, "closed", -97.7398, 30.2583, "2025-04-20T16:45:00Z", "2025-04-21T09:30:00Z"},
}

// sampleFeatures is served when the report store cannot be queried.
func sampleFeatures() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, s := range sampleReports {
		f := geojson.NewFeature(orb.Point{s.lon, s.lat})
		f.Properties["report_id"] = s.id
		f.Properties["category_id"] = s.category
		f.Properties["severity"] = s.severity
		f.Properties["status"] = s.status
		f.Properties["created_at"] = s.createdAt
		f.Properties["resolved_at"] = nil
		if s.resolvedAt != "" {
			f.Properties["resolved_at"] = s.resolvedAt
		}
		f.Properties["council_district"] = nil
		fc.Append(f)
	}
	return fc
}

func hours(h float64) *float64 { return &h }

// sampleStatistics is served when the store or region tables cannot be queried.
func sampleStatistics() Statistics {
	return Statistics{
		PerNeighborhood: []NeighborhoodStat{
			{ID: 1, Name: "Downtown", ReportCount: 24, AvgResolutionHours: hours(36.5)},
			{ID: 2, Name: "South Congress", ReportCount: 18, AvgResolutionHours: hours(48.2)},
			{ID: 3, Name: "East Austin", ReportCount: 15, AvgResolutionHours: hours(24.8)},
			{ID: 4, Name: "North Austin", ReportCount: 12, AvgResolutionHours: hours(52.3)},
			{ID: 5, Name: "West Austin", ReportCount: 9, AvgResolutionHours: hours(38.7)},
		},
		TimeTrend: []MonthCount{
			{Month: "2025-01", ReportCount: 45},
			{Month: "2025-02", ReportCount: 52},
			{Month: "2025-03", ReportCount: 38},
			{Month: "2025-04", ReportCount: 30},
		},
	}
}

const monthLayout = "2006-01"

func monthOf(t time.Time) string { return t.UTC().Format(monthLayout) }
