package serpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/riddle015/riverhacks/internal/logger"
	"github.com/riddle015/riverhacks/internal/search"
)

// Client is an HTTP client for the SerpApi search endpoint.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	log        *logger.Logger
}

// NewClient creates a client from the adapter config. The limiter in cfg is
// shared, not copied.
func NewClient(cfg search.Config) *Client {
	base := cfg.SerpAPIURL
	if base == "" {
		base = search.DefaultSerpAPIURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		apiKey:     cfg.SerpAPIKey,
		baseURL:    base,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    cfg.Limiter,
		log:        logger.OrNop(cfg.Logger),
	}
}

// Search runs one query. engine selects the SerpApi engine ("google",
// "google_news", "google_events", "google_maps").
func (c *Client) Search(ctx context.Context, engine string, params url.Values) (*Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	q := url.Values{}
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	q.Set("engine", engine)
	logged := map[string]interface{}{"engine": engine, "q": q.Get("q")}
	q.Set("api_key", c.apiKey)

	fullURL := fmt.Sprintf("%s?%s", c.baseURL, q.Encode())
	start := time.Now()
	search.LogRequest(c.log, engine, "GET", c.baseURL, logged)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("serpapi request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("serpapi status %d", resp.StatusCode)
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode serpapi: %w", err)
	}
	if out.Error != "" && !isEmptyResultError(out.Error) {
		return nil, errors.New("serpapi: " + out.Error)
	}
	search.LogResponse(c.log, engine, resp.StatusCode, time.Since(start),
		len(out.OrganicResults)+len(out.NewsResults)+len(out.EventsResults)+len(out.LocalResults))
	return &out, nil
}

// SerpApi reports a query with no hits through the error field.
func isEmptyResultError(msg string) bool {
	return msg == "Google hasn't returned any results for this query."
}
