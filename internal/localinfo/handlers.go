// Package localinfo serves the read-only community feeds: news, events,
// volunteer opportunities, safe places and search context for a location.
package localinfo

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/riddle015/riverhacks/internal/apperr"
	"github.com/riddle015/riverhacks/internal/geo"
	"github.com/riddle015/riverhacks/internal/logger"
	"github.com/riddle015/riverhacks/internal/respond"
	"github.com/riddle015/riverhacks/internal/search"
	"github.com/riddle015/riverhacks/internal/search/serpapi"
)

// Places is the part of the SerpApi client that does not fit the Adapter
// shape.
type Places interface {
	SafePlaces(ctx context.Context, p geo.Point) ([]serpapi.Place, error)
	Weather(ctx context.Context, location string) (*serpapi.Weather, error)
	ReportContext(ctx context.Context, incidentType, location string) (*serpapi.ReportContext, error)
}

// Sources wires the handler. Any field may be nil; its endpoints then
// answer with empty results.
type Sources struct {
	Web       search.Adapter
	News      search.Adapter
	Feeds     search.Adapter
	Events    search.Adapter
	Volunteer search.Adapter
	Places    Places
	// Location is used when a request names none.
	Location string
	Logger   *logger.Logger
}

type Handler struct {
	src Sources
	log *logger.Logger
}

func NewHandler(src Sources) *Handler {
	if src.Location == "" {
		src.Location = "Austin, Texas"
	}
	return &Handler{src: src, log: logger.OrNop(src.Logger)}
}

func (h *Handler) location(r *http.Request) string {
	if loc := strings.TrimSpace(r.URL.Query().Get("location")); loc != "" {
		return loc
	}
	return h.src.Location
}

func nonNil(s []search.Signal) []search.Signal {
	if s == nil {
		return []search.Signal{}
	}
	return s
}

// News merges SerpApi news with the configured RSS feeds, SerpApi first.
func (h *Handler) News(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		query = "Austin news"
	}
	loc := h.location(r)

	var serp, feeds []search.Signal
	var g errgroup.Group
	g.Go(func() error {
		serp = search.FetchOrEmpty(r.Context(), h.src.News, query, loc)
		return nil
	})
	g.Go(func() error {
		feeds = search.FetchOrEmpty(r.Context(), h.src.Feeds, query, loc)
		return nil
	})
	_ = g.Wait()

	out := make([]search.Signal, 0, len(serp)+len(feeds))
	out = append(out, serp...)
	out = append(out, feeds...)
	respond.JSON(w, http.StatusOK, out)
}

func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	h.feed(w, r, h.src.Events)
}

func (h *Handler) VolunteerEvents(w http.ResponseWriter, r *http.Request) {
	h.feed(w, r, h.src.Volunteer)
}

func (h *Handler) feed(w http.ResponseWriter, r *http.Request, a search.Adapter) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	respond.JSON(w, http.StatusOK, nonNil(search.FetchOrEmpty(r.Context(), a, q, h.location(r))))
}

type contextResponse struct {
	Query    string           `json:"query"`
	Location string           `json:"location"`
	News     []search.Signal  `json:"news"`
	Web      []search.Signal  `json:"web"`
	Weather  *serpapi.Weather `json:"weather"`
}

// Context gathers news, web results and current weather for q at a
// location. Failed sources are left empty.
func (h *Handler) Context(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		respond.Error(w, apperr.Validation("missing required query parameter: q"))
		return
	}
	resp := contextResponse{Query: query, Location: h.location(r)}

	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		resp.News = search.FetchOrEmpty(ctx, h.src.News, query, resp.Location)
		return nil
	})
	g.Go(func() error {
		resp.Web = search.FetchOrEmpty(ctx, h.src.Web, query, resp.Location)
		return nil
	})
	if h.src.Places != nil {
		g.Go(func() error {
			wx, err := h.src.Places.Weather(ctx, resp.Location)
			if err != nil {
				h.log.Warn("weather lookup failed", "location", resp.Location, "err", err)
				return nil
			}
			resp.Weather = wx
			return nil
		})
	}
	_ = g.Wait()

	resp.News, resp.Web = nonNil(resp.News), nonNil(resp.Web)
	respond.JSON(w, http.StatusOK, resp)
}

// IncidentContext returns background coverage for an incident type.
func (h *Handler) IncidentContext(w http.ResponseWriter, r *http.Request) {
	kind := strings.TrimSpace(r.URL.Query().Get("type"))
	if kind == "" {
		respond.Error(w, apperr.Validation("missing required query parameter: type"))
		return
	}
	empty := &serpapi.ReportContext{
		News:            []serpapi.NewsResult{},
		WebResults:      []serpapi.OrganicResult{},
		RelatedConcerns: []serpapi.RelatedQuestion{},
	}
	if h.src.Places == nil {
		respond.JSON(w, http.StatusOK, empty)
		return
	}
	rc, err := h.src.Places.ReportContext(r.Context(), kind, h.location(r))
	if err != nil {
		h.log.Warn("incident context lookup failed", "type", kind, "err", err)
		rc = empty
	}
	respond.JSON(w, http.StatusOK, rc)
}

// SafePlaces lists shelters and emergency services near lat/lon.
func (h *Handler) SafePlaces(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, errLat := strconv.ParseFloat(strings.TrimSpace(q.Get("lat")), 64)
	lon, errLon := strconv.ParseFloat(strings.TrimSpace(q.Get("lon")), 64)
	if errLat != nil || errLon != nil {
		respond.Error(w, apperr.Validation("lat and lon must be numbers"))
		return
	}
	p, err := geo.NewPoint(lon, lat)
	if err != nil {
		respond.Error(w, err)
		return
	}

	places := []serpapi.Place{}
	if h.src.Places != nil {
		found, err := h.src.Places.SafePlaces(r.Context(), p)
		if err != nil {
			h.log.Warn("safe places lookup failed", "err", err)
		} else if found != nil {
			places = found
		}
	}
	respond.JSON(w, http.StatusOK, places)
}
