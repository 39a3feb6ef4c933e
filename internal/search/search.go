package search

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrMissingSerpAPIKey = errors.New("SERPAPI_API_KEY environment variable is required for serpapi adapters")
	ErrNoFeeds           = errors.New("NEWS_FEEDS must list at least one feed URL for the rss adapter")
	ErrUnknownAdapter    = errors.New("unknown search adapter")
)

// Signal is one external search hit. It is never persisted.
type Signal struct {
	Title     string `json:"title"`
	Link      string `json:"link"`
	Snippet   string `json:"snippet"`
	Date      string `json:"date,omitempty"`
	Address   string `json:"address,omitempty"`
	Thumbnail string `json:"thumbnail,omitempty"`
	Source    string `json:"source,omitempty"`
}

// Adapter is implemented by every external data source.
type Adapter interface {
	// Name identifies the adapter in logs, metrics and cache keys.
	Name() string

	// Fetch returns the signals for query near location. An empty result is
	// not an error; failures are reported as apperr.AdapterUnavailable.
	Fetch(ctx context.Context, query, location string) ([]Signal, error)
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]func(Config) (Adapter, error))
)

// RegisterAdapter registers a constructor under name. Called from init() in
// each adapter package.
func RegisterAdapter(name string, constructor func(Config) (Adapter, error)) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = constructor
}

// NewAdapter builds the named adapter, wrapped with timeout, metrics and
// logging.
func NewAdapter(name string, cfg Config) (Adapter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	registryMu.RLock()
	constructor, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAdapter, name)
	}

	a, err := constructor(cfg)
	if err != nil {
		return nil, err
	}
	return Instrument(a, cfg.Timeout, cfg.Logger), nil
}

// Names lists registered adapters, sorted.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// FetchOrEmpty treats any adapter failure as "no signal".
func FetchOrEmpty(ctx context.Context, a Adapter, query, location string) []Signal {
	if a == nil {
		return nil
	}
	signals, err := a.Fetch(ctx, query, location)
	if err != nil {
		return nil
	}
	return signals
}
