package scoring

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/riddle015/riverhacks/internal/geo"
	"github.com/riddle015/riverhacks/internal/logger"
	"github.com/riddle015/riverhacks/internal/reports"
	"github.com/riddle015/riverhacks/internal/search"
)

// IncidentQuery is the web search behind the community alert feed.
const IncidentQuery = "Austin crash OR Austin flood OR Austin fire OR Austin shooting OR Austin accident OR Austin emergency"

const (
	contextNewsLimit = 3
	contextWebLimit  = 5
)

// NearbySource is the read query the scorer needs from the report store.
type NearbySource interface {
	Nearby(ctx context.Context, center geo.Point, since time.Time, meters float64) ([]reports.NearbyReport, error)
}

type Options struct {
	// Window and RadiusMeters bound local duplicate candidates.
	Window       time.Duration
	RadiusMeters float64
	Web          search.Adapter
	News         search.Adapter
	Logger       *logger.Logger
	Now          func() time.Time
}

// Scorer produces advisory duplicate and context signals. It never fails a
// caller: store and adapter errors degrade to empty sections.
type Scorer struct {
	store  NearbySource
	web    search.Adapter
	news   search.Adapter
	window time.Duration
	radius float64
	log    *logger.Logger
	now    func() time.Time
}

func NewScorer(store NearbySource, opts Options) *Scorer {
	if opts.Window <= 0 {
		opts.Window = 48 * time.Hour
	}
	if opts.RadiusMeters <= 0 {
		opts.RadiusMeters = 200
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Scorer{
		store:  store,
		web:    opts.Web,
		news:   opts.News,
		window: opts.Window,
		radius: opts.RadiusMeters,
		log:    logger.OrNop(opts.Logger),
		now:    opts.Now,
	}
}

// FindLocalDuplicates returns reports within meters of p created in the last
// within, nearest first.
func (s *Scorer) FindLocalDuplicates(ctx context.Context, description string, p geo.Point, within time.Duration, meters float64) ([]reports.NearbyReport, error) {
	return s.store.Nearby(ctx, p, s.now().Add(-within), meters)
}

type Context struct {
	News []search.Signal `json:"news"`
	Web  []search.Signal `json:"web"`
}

type Advisory struct {
	LocalDuplicates    []reports.NearbyReport `json:"local_duplicates"`
	ExternalDuplicates []search.Signal        `json:"external_duplicates"`
	SeverityHint       *Severity              `json:"severity_hint"`
	Context            Context                `json:"context"`
}

// Check gathers local duplicates, external duplicates and news context
// concurrently. exclude drops one report id from the local duplicates.
func (s *Scorer) Check(ctx context.Context, description string, p geo.Point, exclude *uuid.UUID) *Advisory {
	adv := &Advisory{
		LocalDuplicates:    []reports.NearbyReport{},
		ExternalDuplicates: []search.Signal{},
		Context:            Context{News: []search.Signal{}, Web: []search.Signal{}},
	}
	if sev, ok := ClassifySeverityKeyword(description); ok {
		adv.SeverityHint = &sev
	}

	var g errgroup.Group
	if s.store != nil {
		g.Go(func() error {
			local, err := s.FindLocalDuplicates(ctx, description, p, s.window, s.radius)
			if err != nil {
				s.log.Warn("local duplicate lookup failed", "err", err)
				return nil
			}
			for _, n := range local {
				if exclude != nil && n.Report.ID == *exclude {
					continue
				}
				adv.LocalDuplicates = append(adv.LocalDuplicates, n)
			}
			return nil
		})
	}
	if s.web != nil {
		g.Go(func() error {
			web := search.FetchOrEmpty(ctx, s.web, description, "")
			if dups := ScoreExternalDuplicates(description, web); dups != nil {
				adv.ExternalDuplicates = dups
			}
			if len(web) > 0 {
				adv.Context.Web = limit(web, contextWebLimit)
			}
			return nil
		})
	}
	if s.news != nil {
		g.Go(func() error {
			if news := search.FetchOrEmpty(ctx, s.news, description, ""); len(news) > 0 {
				adv.Context.News = limit(news, contextNewsLimit)
			}
			return nil
		})
	}
	_ = g.Wait()
	return adv
}

// Advise adapts Check to the report handler's advisor hook.
func (s *Scorer) Advise(ctx context.Context, description string, p geo.Point, exclude *uuid.UUID) interface{} {
	return s.Check(ctx, description, p, exclude)
}

// Alerts runs the incident query and classifies the hits.
func (s *Scorer) Alerts(ctx context.Context) []Alert {
	return DetectAlerts(search.FetchOrEmpty(ctx, s.web, IncidentQuery, ""))
}

func limit(s []search.Signal, n int) []search.Signal {
	if len(s) > n {
		return s[:n]
	}
	return s
}

var _ reports.Advisor = (*Scorer)(nil)
