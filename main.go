package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"gorm.io/gorm"

	"github.com/riddle015/riverhacks/internal/auth"
	"github.com/riddle015/riverhacks/internal/cache"
	"github.com/riddle015/riverhacks/internal/config"
	"github.com/riddle015/riverhacks/internal/db"
	"github.com/riddle015/riverhacks/internal/heatmap"
	"github.com/riddle015/riverhacks/internal/localinfo"
	"github.com/riddle015/riverhacks/internal/logger"
	"github.com/riddle015/riverhacks/internal/metrics"
	"github.com/riddle015/riverhacks/internal/middleware"
	"github.com/riddle015/riverhacks/internal/regions"
	"github.com/riddle015/riverhacks/internal/reports"
	"github.com/riddle015/riverhacks/internal/respond"
	"github.com/riddle015/riverhacks/internal/scoring"
	"github.com/riddle015/riverhacks/internal/search"
	"github.com/riddle015/riverhacks/internal/search/rss"
	"github.com/riddle015/riverhacks/internal/search/serpapi"
)

const searchCacheTTL = 10 * time.Minute

func RootHandler(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusOK, map[string]string{
		"message":   "AustinAlertHub API is up",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// buildAdapter returns nil when the adapter is not configured.
func buildAdapter(name string, cfg search.Config, c *cache.Cache, log *logger.Logger) search.Adapter {
	a, err := search.NewAdapter(name, cfg)
	if err != nil {
		log.Warn("search adapter disabled", "adapter", name, "reason", err)
		return nil
	}
	return search.Cached(a, c, searchCacheTTL)
}

func main() {
	_ = godotenv.Load(".env.local")

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logger.New(cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", "err", err)
	}
	respond.SetDebug(!cfg.IsProduction())

	gdb, err := db.Open(cfg.DatabaseURL, !cfg.IsProduction())
	if err != nil {
		log.Fatal("failed to connect to database", "err", err)
	}
	defer db.Close(gdb)

	migrations := []struct {
		name string
		run  func(*gorm.DB) error
	}{
		{"regions", regions.Migrate},
		{"reports", reports.Migrate},
		{"auth", auth.Migrate},
	}
	for _, m := range migrations {
		if err := m.run(gdb); err != nil {
			log.Fatal("migration failed", "module", m.name, "err", err)
		}
	}

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	regionRepo := regions.NewRepository(gdb, log)
	if _, err := regionRepo.Reload(startCtx); err != nil {
		log.Warn("region tables unavailable, geo context disabled until next reload", "err", err)
	}

	rc := cache.Open(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, log)
	defer rc.Close()
	if rc.Enabled() {
		if err := rc.Ping(startCtx); err != nil {
			log.Warn("redis unreachable, continuing with cache misses", "addr", cfg.RedisAddr, "err", err)
		}
	}
	cancelStart()

	gateway, err := auth.NewGateway(gdb, auth.Options{
		Secret:  cfg.JWTSecret,
		TTL:     cfg.AccessTokenTTL,
		Retries: cfg.StoreRetries,
		Logger:  log,
	})
	if err != nil {
		log.Fatal("auth gateway", "err", err)
	}

	store := reports.NewStore(gdb, reports.Options{
		StrictStatus: cfg.StrictStatus,
		Retries:      cfg.StoreRetries,
		Locator:      regionRepo,
		Logger:       log,
	})

	scfg := search.NewConfig(cfg, log)
	web := buildAdapter(serpapi.NameWeb, scfg, rc, log)
	news := buildAdapter(serpapi.NameNews, scfg, rc, log)
	src := localinfo.Sources{
		Web:       web,
		News:      news,
		Feeds:     buildAdapter(rss.Name, scfg, rc, log),
		Events:    buildAdapter(serpapi.NameEvents, scfg, rc, log),
		Volunteer: buildAdapter(serpapi.NameVolunteer, scfg, rc, log),
		Location:  cfg.DefaultLocation,
		Logger:    log,
	}
	if cfg.SerpAPIKey != "" {
		src.Places = serpapi.NewClient(scfg)
	}
	log.Info("search adapters registered", "adapters", search.Names())

	scorer := scoring.NewScorer(store, scoring.Options{
		Window:       cfg.DuplicateWindow,
		RadiusMeters: cfg.DuplicateRadiusMeters,
		Web:          web,
		News:         news,
		Logger:       log,
	})
	agg := heatmap.NewAggregator(store, regionRepo, rc, cfg.StatsCacheTTL, log)
	store.OnChange(agg.Invalidate)

	reportHandler := reports.NewHandler(store, scorer, cfg.AdapterTimeout, log)
	infoHandler := localinfo.NewHandler(src)
	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Logger)
	r.Use(middleware.Metrics)
	r.Use(middleware.CORS(cfg.CORSOrigins))

	r.Get("/", RootHandler)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(chimiddleware.Timeout(60 * time.Second))
		r.Use(limiter.Middleware)

		r.Mount("/auth", auth.SetupRoutes(auth.NewHandler(gateway)))
		r.Mount("/reports", reports.SetupRoutes(reportHandler, gateway))
		r.Mount("/categories", reports.SetupCategoryRoutes(reportHandler))
		r.Mount("/heatmap", heatmap.SetupRoutes(heatmap.NewHandler(agg)))
		r.Mount("/alerts", scoring.SetupRoutes(scoring.NewHandler(scorer)))
		r.Mount("/serpapi", localinfo.SetupSerpAPIRoutes(infoHandler))
		r.Mount("/context", localinfo.SetupContextRoutes(infoHandler))
		r.Mount("/safe-places", localinfo.SetupSafePlaceRoutes(infoHandler))
	})

	srv := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go regionRepo.Refresh(ctx, cfg.RegionReloadInterval)

	go func() {
		log.Info("server listening", "port", cfg.Port, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", "err", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "err", err)
	}
}
