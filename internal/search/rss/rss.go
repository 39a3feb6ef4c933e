// Package rss adapts local news RSS/Atom feeds to the search.Adapter interface.
package rss

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/riddle015/riverhacks/internal/logger"
	"github.com/riddle015/riverhacks/internal/search"
)

const (
	Name       = "rss"
	maxPerFeed = 20
)

func init() {
	search.RegisterAdapter(Name, func(cfg search.Config) (search.Adapter, error) {
		if len(cfg.Feeds) == 0 {
			return nil, search.ErrNoFeeds
		}
		return NewAdapter(cfg.Feeds, cfg.Logger), nil
	})
}

var _ search.Adapter = (*Adapter)(nil)

// Adapter reads every configured feed and keeps items that mention a query term.
type Adapter struct {
	feeds  []string
	parser *gofeed.Parser
	log    *logger.Logger
}

func NewAdapter(feeds []string, log *logger.Logger) *Adapter {
	return &Adapter{feeds: feeds, parser: gofeed.NewParser(), log: logger.OrNop(log)}
}

func (a *Adapter) Name() string { return Name }

// Fetch ignores location: the feeds are already local. It fails only when
// every feed fails.
func (a *Adapter) Fetch(ctx context.Context, query, location string) ([]search.Signal, error) {
	terms := strings.Fields(strings.ToLower(query))

	var out []search.Signal
	var errs []error
	for _, feedURL := range a.feeds {
		feed, err := a.parser.ParseURLWithContext(feedURL, ctx)
		if err != nil {
			search.LogError(a.log, Name, "parse "+feedURL, err)
			errs = append(errs, err)
			continue
		}
		source := feed.Title
		if source == "" {
			source = sourceName(feedURL)
		}

		kept := 0
		for _, item := range feed.Items {
			if kept >= maxPerFeed {
				break
			}
			s, ok := toSignal(item, source)
			if !ok || !mentions(s, terms) {
				continue
			}
			out = append(out, s)
			kept++
		}
	}
	if len(errs) == len(a.feeds) && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

func toSignal(item *gofeed.Item, source string) (search.Signal, bool) {
	link := item.Link
	if link == "" {
		link = item.GUID
	}
	title := strings.TrimSpace(item.Title)
	if link == "" || title == "" {
		return search.Signal{}, false
	}

	s := search.Signal{Title: title, Link: link, Source: source}
	switch {
	case item.Description != "":
		s.Snippet = stripHTML(item.Description)
	case item.Content != "":
		s.Snippet = stripHTML(item.Content)
	}
	if item.PublishedParsed != nil {
		s.Date = item.PublishedParsed.UTC().Format(time.RFC3339)
	} else if item.UpdatedParsed != nil {
		s.Date = item.UpdatedParsed.UTC().Format(time.RFC3339)
	}
	if item.Image != nil {
		s.Thumbnail = item.Image.URL
	}
	return s, true
}

// mentions reports whether any term occurs in the title or snippet. No
// terms matches everything.
func mentions(s search.Signal, terms []string) bool {
	if len(terms) == 0 {
		return true
	}
	hay := strings.ToLower(s.Title + " " + s.Snippet)
	for _, t := range terms {
		if strings.Contains(hay, t) {
			return true
		}
	}
	return false
}

func stripHTML(text string) string {
	var b strings.Builder
	inTag := false
	for _, r := range text {
		switch {
		case r == '<':
			inTag = true
			b.WriteRune(' ')
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	s := strings.NewReplacer(
		"&nbsp;", " ", "&amp;", "&", "&lt;", "<", "&gt;", ">", "&quot;", `"`, "&#39;", "'",
	).Replace(b.String())
	return strings.Join(strings.Fields(s), " ")
}

func sourceName(feedURL string) string {
	u, err := url.Parse(feedURL)
	if err != nil || u.Hostname() == "" {
		return feedURL
	}
	host := strings.ToLower(u.Hostname())
	for _, prefix := range []string{"www.", "rss.", "feeds."} {
		host = strings.TrimPrefix(host, prefix)
	}
	return host
}
