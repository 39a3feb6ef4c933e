package search

import (
	"errors"
	"time"

	"golang.org/x/time/rate"

	"github.com/riddle015/riverhacks/internal/config"
	"github.com/riddle015/riverhacks/internal/logger"
)

// DefaultSerpAPIURL is the SerpApi search endpoint.
const DefaultSerpAPIURL = "https://serpapi.com/search"

// Config is shared by every adapter constructor.
type Config struct {
	SerpAPIKey string
	SerpAPIURL string

	// Location is used when a caller passes no location hint.
	Location string
	Timeout  time.Duration
	Feeds    []string

	// Limiter is shared by all SerpApi adapters built from this config so the
	// account-wide request rate holds.
	Limiter *rate.Limiter
	Logger  *logger.Logger
}

// NewConfig derives adapter settings from the application config.
func NewConfig(app config.Config, log *logger.Logger) Config {
	rps := app.SerpAPIRPS
	if rps <= 0 {
		rps = 1
	}
	return Config{
		SerpAPIKey: app.SerpAPIKey,
		SerpAPIURL: DefaultSerpAPIURL,
		Location:   app.DefaultLocation,
		Timeout:    app.AdapterTimeout,
		Feeds:      app.NewsFeeds,
		Limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		Logger:     logger.OrNop(log),
	}
}

// Validate checks settings common to every adapter. Adapter specific
// requirements are checked by their constructors.
func (c Config) Validate() error {
	if c.Timeout <= 0 {
		return errors.New("adapter timeout must be positive")
	}
	return nil
}

// LocationOr returns location, or the configured default when blank.
func (c Config) LocationOr(location string) string {
	if location != "" {
		return location
	}
	if c.Location != "" {
		return c.Location
	}
	return "Austin, Texas"
}
