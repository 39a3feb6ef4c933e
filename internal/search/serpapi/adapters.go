package serpapi

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/riddle015/riverhacks/internal/search"
)

// Adapter names registered by this package.
const (
	NameWeb       = "web"
	NameNews      = "news"
	NameEvents    = "events"
	NameVolunteer = "volunteer"
)

const resultCount = 10

func init() {
	register := func(name string, build func(*Client, search.Config) search.Adapter) {
		search.RegisterAdapter(name, func(cfg search.Config) (search.Adapter, error) {
			if cfg.SerpAPIKey == "" {
				return nil, search.ErrMissingSerpAPIKey
			}
			return build(NewClient(cfg), cfg), nil
		})
	}
	register(NameWeb, func(c *Client, cfg search.Config) search.Adapter { return NewWebAdapter(c, cfg) })
	register(NameNews, func(c *Client, cfg search.Config) search.Adapter { return NewNewsAdapter(c, cfg) })
	register(NameEvents, func(c *Client, cfg search.Config) search.Adapter { return NewEventsAdapter(c, cfg) })
	register(NameVolunteer, func(c *Client, cfg search.Config) search.Adapter { return NewVolunteerAdapter(c, cfg) })
}

var (
	_ search.Adapter = (*WebAdapter)(nil)
	_ search.Adapter = (*NewsAdapter)(nil)
	_ search.Adapter = (*EventsAdapter)(nil)
)

// WebAdapter returns Google organic results.
type WebAdapter struct {
	client *Client
	cfg    search.Config
}

func NewWebAdapter(c *Client, cfg search.Config) *WebAdapter { return &WebAdapter{client: c, cfg: cfg} }

func (a *WebAdapter) Name() string { return NameWeb }

func (a *WebAdapter) Fetch(ctx context.Context, query, location string) ([]search.Signal, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("location", a.cfg.LocationOr(location))
	params.Set("num", strconv.Itoa(resultCount))

	resp, err := a.client.Search(ctx, "google", params)
	if err != nil {
		return nil, err
	}
	out := make([]search.Signal, 0, len(resp.OrganicResults))
	for _, r := range resp.OrganicResults {
		out = append(out, search.Signal{
			Title:     r.Title,
			Link:      r.Link,
			Snippet:   r.Snippet,
			Date:      r.Date,
			Thumbnail: r.Thumbnail,
			Source:    NameWeb,
		})
	}
	return out, nil
}

// NewsAdapter queries the google_news engine.
type NewsAdapter struct {
	client *Client
	cfg    search.Config
}

func NewNewsAdapter(c *Client, cfg search.Config) *NewsAdapter {
	return &NewsAdapter{client: c, cfg: cfg}
}

func (a *NewsAdapter) Name() string { return NameNews }

func (a *NewsAdapter) Fetch(ctx context.Context, query, location string) ([]search.Signal, error) {
	location = a.cfg.LocationOr(location)
	if strings.TrimSpace(query) == "" {
		query = location + " news"
	}
	params := url.Values{}
	params.Set("q", query)
	params.Set("location", location)
	params.Set("num", strconv.Itoa(resultCount))

	resp, err := a.client.Search(ctx, "google_news", params)
	if err != nil {
		return nil, err
	}
	out := make([]search.Signal, 0, len(resp.NewsResults))
	for _, r := range resp.NewsResults {
		out = append(out, search.Signal{
			Title:     r.Title,
			Link:      r.Link,
			Snippet:   r.Snippet,
			Date:      r.Date,
			Thumbnail: r.Thumbnail,
			Source:    NameNews,
		})
	}
	return out, nil
}

// EventsAdapter queries google_events within a date window chip.
type EventsAdapter struct {
	client       *Client
	cfg          search.Config
	name         string
	defaultQuery string
	window       string
}

// NewEventsAdapter searches this week's events.
func NewEventsAdapter(c *Client, cfg search.Config) *EventsAdapter {
	return &EventsAdapter{client: c, cfg: cfg, name: NameEvents, defaultQuery: "Events in Austin, TX", window: "date:week"}
}

// NewVolunteerAdapter searches this month's volunteer opportunities.
func NewVolunteerAdapter(c *Client, cfg search.Config) *EventsAdapter {
	return &EventsAdapter{client: c, cfg: cfg, name: NameVolunteer, defaultQuery: "Volunteer opportunities in Austin", window: "date:month"}
}

func (a *EventsAdapter) Name() string { return a.name }

func (a *EventsAdapter) Fetch(ctx context.Context, query, location string) ([]search.Signal, error) {
	if strings.TrimSpace(query) == "" {
		query = a.defaultQuery
	}
	params := url.Values{}
	params.Set("q", query)
	params.Set("location", a.cfg.LocationOr(location))
	params.Set("hl", "en")
	params.Set("gl", "us")
	params.Set("htichips", a.window)

	resp, err := a.client.Search(ctx, "google_events", params)
	if err != nil {
		return nil, err
	}
	out := make([]search.Signal, 0, len(resp.EventsResults))
	for _, r := range resp.EventsResults {
		out = append(out, search.Signal{
			Title:     r.Title,
			Link:      r.Link,
			Snippet:   r.Description,
			Date:      r.Date.When,
			Address:   strings.Join(r.Address, ", "),
			Thumbnail: r.Thumbnail,
			Source:    a.name,
		})
	}
	return out, nil
}
