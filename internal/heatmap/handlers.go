package heatmap

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/riddle015/riverhacks/internal/apperr"
	"github.com/riddle015/riverhacks/internal/reports"
	"github.com/riddle015/riverhacks/internal/respond"
)

const dateLayout = "2006-01-02"

type Handler struct {
	agg *Aggregator
}

func NewHandler(agg *Aggregator) *Handler {
	return &Handler{agg: agg}
}

// ParseFilter reads category_id, status (comma separated), start_date and
// end_date (YYYY-MM-DD, end inclusive) and council_district.
func ParseFilter(q url.Values) (reports.Filter, error) {
	var f reports.Filter
	f.CategoryIDs = splitParam(q.Get("category_id"))
	f.Statuses = splitParam(q.Get("status"))

	if raw := strings.TrimSpace(q.Get("start_date")); raw != "" {
		t, err := time.Parse(dateLayout, raw)
		if err != nil {
			return f, apperr.Validation("start_date must be YYYY-MM-DD, got %q", raw)
		}
		f.Start = &t
	}
	if raw := strings.TrimSpace(q.Get("end_date")); raw != "" {
		t, err := time.Parse(dateLayout, raw)
		if err != nil {
			return f, apperr.Validation("end_date must be YYYY-MM-DD, got %q", raw)
		}
		end := t.AddDate(0, 0, 1)
		f.End = &end
	}
	if f.Start != nil && f.End != nil && !f.Start.Before(*f.End) {
		return f, apperr.Validation("start_date must not be after end_date")
	}
	if raw := strings.TrimSpace(q.Get("council_district")); raw != "" {
		d, err := strconv.Atoi(raw)
		if err != nil {
			return f, apperr.Validation("council_district must be an integer, got %q", raw)
		}
		f.CouncilDistrict = &d
	}
	return f, nil
}

func splitParam(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func dataStatus(fallback bool) string {
	if fallback {
		return "fallback"
	}
	return "live"
}

func (h *Handler) Heatmap(w http.ResponseWriter, r *http.Request) {
	f, err := ParseFilter(r.URL.Query())
	if err != nil {
		respond.Error(w, err)
		return
	}
	res := h.agg.HeatmapFeatures(r.Context(), f)

	fc := res.Data
	if fc.ExtraMembers == nil {
		fc.ExtraMembers = geojson.Properties{}
	}
	fc.ExtraMembers["fallback"] = res.Fallback
	w.Header().Set("X-Data-Status", dataStatus(res.Fallback))
	respond.JSON(w, http.StatusOK, fc)
}

func (h *Handler) Statistics(w http.ResponseWriter, r *http.Request) {
	f, err := ParseFilter(r.URL.Query())
	if err != nil {
		respond.Error(w, err)
		return
	}
	res := h.agg.NeighborhoodStatistics(r.Context(), f)
	w.Header().Set("X-Data-Status", dataStatus(res.Fallback))
	respond.JSON(w, http.StatusOK, statisticsResponse{Statistics: res.Data, Fallback: res.Fallback})
}
