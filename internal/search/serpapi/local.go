package serpapi

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/riddle015/riverhacks/internal/geo"
)

// SafePlaceCategories are searched on Google Maps around the caller.
var SafePlaceCategories = []string{
	"Emergency shelters",
	"Police stations",
	"Fire stations",
	"Disaster relief centers",
}

type Place struct {
	Name           string   `json:"name"`
	Category       string   `json:"category"`
	Address        string   `json:"address"`
	Rating         *float64 `json:"rating"`
	Link           string   `json:"link"`
	DirectionsLink string   `json:"directions_link"`
	DistanceMiles  *float64 `json:"distance_miles"`
}

// SafePlaces searches every category concurrently and returns the places
// nearest first; places without coordinates sort last.
func (c *Client) SafePlaces(ctx context.Context, p geo.Point) ([]Place, error) {
	var (
		mu  sync.Mutex
		all []Place
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, category := range SafePlaceCategories {
		category := category
		g.Go(func() error {
			params := url.Values{}
			params.Set("q", category)
			params.Set("ll", fmt.Sprintf("@%f,%f,14z", p.Lat, p.Lon))
			params.Set("hl", "en")
			params.Set("gl", "us")
			resp, err := c.Search(gctx, "google_maps", params)
			if err != nil {
				return fmt.Errorf("%s: %w", category, err)
			}
			places := make([]Place, 0, len(resp.LocalResults))
			for _, r := range resp.LocalResults {
				places = append(places, toPlace(r, category, p))
			}
			mu.Lock()
			all = append(all, places...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(all, func(i, j int) bool {
		di, dj := all[i].DistanceMiles, all[j].DistanceMiles
		switch {
		case di == nil:
			return false
		case dj == nil:
			return true
		case *di != *dj:
			return *di < *dj
		}
		return all[i].Name < all[j].Name
	})
	return all, nil
}

func toPlace(r LocalResult, category string, from geo.Point) Place {
	pl := Place{
		Name:     r.Title,
		Category: category,
		Address:  r.Address,
		Rating:   r.Rating,
		Link:     r.Link,
	}
	if pl.Name == "" {
		pl.Name = "Unknown"
	}
	if r.GPSCoordinates != nil {
		d := geo.DistanceMiles(from, geo.Point{Lon: r.GPSCoordinates.Longitude, Lat: r.GPSCoordinates.Latitude})
		d = math.Round(d*100) / 100
		pl.DistanceMiles = &d
	}
	if pl.Link == "" && r.PlaceID != "" {
		pl.Link = "https://www.google.com/maps/place/?q=place_id:" + r.PlaceID
	}
	q := url.Values{}
	q.Set("api", "1")
	q.Set("destination", strings.TrimSpace(pl.Name))
	if r.PlaceID != "" {
		q.Set("destination_place_id", r.PlaceID)
	}
	pl.DirectionsLink = "https://www.google.com/maps/dir/?" + q.Encode()
	return pl
}

type Weather struct {
	Location      string `json:"location"`
	Temperature   string `json:"temperature"`
	Unit          string `json:"unit"`
	Description   string `json:"description"`
	Precipitation string `json:"precipitation"`
	Humidity      string `json:"humidity"`
	Wind          string `json:"wind"`
}

// Weather reads Google's weather answer box. It returns nil without error
// when Google shows no weather card.
func (c *Client) Weather(ctx context.Context, location string) (*Weather, error) {
	params := url.Values{}
	params.Set("q", location+" weather")
	params.Set("hl", "en")
	params.Set("gl", "us")
	params.Set("num", "1")

	resp, err := c.Search(ctx, "google", params)
	if err != nil {
		return nil, err
	}
	box := resp.AnswerBox
	if box == nil || (box.Temperature == "" && box.Weather == "") {
		return nil, nil
	}
	unit := string(box.Unit)
	if unit == "" {
		unit = "Fahrenheit"
	}
	return &Weather{
		Location:      location,
		Temperature:   string(box.Temperature),
		Unit:          unit,
		Description:   string(box.Weather),
		Precipitation: string(box.Precipitation),
		Humidity:      string(box.Humidity),
		Wind:          string(box.Wind),
	}, nil
}

// ReportContext is the background for an incident type: top news, top web
// results and the questions people also ask.
type ReportContext struct {
	News            []NewsResult      `json:"news"`
	WebResults      []OrganicResult   `json:"web_results"`
	RelatedConcerns []RelatedQuestion `json:"related_concerns"`
}

func (c *Client) ReportContext(ctx context.Context, incidentType, location string) (*ReportContext, error) {
	params := url.Values{}
	params.Set("q", fmt.Sprintf("%s %s safety issue", incidentType, location))
	params.Set("location", location)
	params.Set("num", "10")

	resp, err := c.Search(ctx, "google", params)
	if err != nil {
		return nil, err
	}
	out := &ReportContext{
		News:            head(resp.NewsResults, 3),
		WebResults:      head(resp.OrganicResults, 5),
		RelatedConcerns: resp.RelatedQuestions,
	}
	if out.News == nil {
		out.News = []NewsResult{}
	}
	if out.WebResults == nil {
		out.WebResults = []OrganicResult{}
	}
	if out.RelatedConcerns == nil {
		out.RelatedConcerns = []RelatedQuestion{}
	}
	return out, nil
}

func head[T any](s []T, n int) []T {
	if len(s) > n {
		return s[:n]
	}
	return s
}
