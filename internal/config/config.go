package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
)

var (
	ErrMissingDatabaseURL = errors.New("DATABASE_URL environment variable is required")
	ErrMissingJWTSecret   = errors.New("JWT_SECRET_KEY environment variable is required in production")
)

// DefaultCORSOrigins covers the dashboard dev servers.
var DefaultCORSOrigins = []string{
	"http://localhost:5173",
	"http://localhost:3000",
}

const devJWTSecret = "alerthub-dev-secret"

// Config holds everything the server and the CLI read at startup.
type Config struct {
	Port        string
	Env         string
	DatabaseURL string

	JWTSecret      string
	AccessTokenTTL time.Duration

	SerpAPIKey      string
	SerpAPIRPS      float64
	NewsFeeds       []string
	DefaultLocation string
	AdapterTimeout  time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	StatsCacheTTL time.Duration

	// RegionReloadInterval refreshes the region snapshot; 0 disables it.
	RegionReloadInterval time.Duration

	StrictStatus bool
	StoreRetries int

	CORSOrigins    []string
	RateLimitRPS   float64
	RateLimitBurst int

	DuplicateWindow       time.Duration
	DuplicateRadiusMeters float64
}

// fileConfig is the YAML overlay shape. Durations are Go duration strings.
type fileConfig struct {
	Port            string   `yaml:"port"`
	Env             string   `yaml:"env"`
	DatabaseURL     string   `yaml:"database_url"`
	AccessTokenTTL  string   `yaml:"access_token_ttl"`
	SerpAPIRPS      float64  `yaml:"serpapi_rps"`
	NewsFeeds       []string `yaml:"news_feeds"`
	DefaultLocation string   `yaml:"default_location"`
	AdapterTimeout  string   `yaml:"adapter_timeout"`
	RedisAddr       string   `yaml:"redis_addr"`
	RedisDB         int      `yaml:"redis_db"`
	StatsCacheTTL   string   `yaml:"stats_cache_ttl"`
	RegionReload    string   `yaml:"region_reload_interval"`
	StrictStatus    *bool    `yaml:"strict_status"`
	StoreRetries    *int     `yaml:"store_retries"`
	CORSOrigins     []string `yaml:"cors_origins"`
	RateLimitRPS    float64  `yaml:"rate_limit_rps"`
	RateLimitBurst  int      `yaml:"rate_limit_burst"`
	Duplicates      struct {
		Window       string  `yaml:"window"`
		RadiusMeters float64 `yaml:"radius_meters"`
	} `yaml:"duplicates"`
}

func Defaults() Config {
	return Config{
		Port:                  "5050",
		Env:                   "dev",
		AccessTokenTTL:        24 * time.Hour,
		SerpAPIRPS:            1,
		DefaultLocation:       "Austin, Texas",
		AdapterTimeout:        4 * time.Second,
		StatsCacheTTL:         5 * time.Minute,
		RegionReloadInterval:  10 * time.Minute,
		StrictStatus:          true,
		StoreRetries:          3,
		CORSOrigins:           append([]string(nil), DefaultCORSOrigins...),
		RateLimitRPS:          20,
		RateLimitBurst:        40,
		DuplicateWindow:       48 * time.Hour,
		DuplicateRadiusMeters: 200,
	}
}

// Load applies, in order: defaults, the YAML file named by ALERTHUB_CONFIG (if any),
// then environment variables.
//
// Environment variables:
//   - PORT, APP_ENV ("dev" or "prod"), DATABASE_URL
//   - JWT_SECRET_KEY, ACCESS_TOKEN_TTL
//   - SERPAPI_API_KEY, SERPAPI_RPS, NEWS_FEEDS (comma separated), DEFAULT_LOCATION, ADAPTER_TIMEOUT
//   - REDIS_ADDR, REDIS_PASSWORD, REDIS_DB, STATS_CACHE_TTL, REGION_RELOAD_INTERVAL
//   - STRICT_STATUS, STORE_RETRIES
//   - CORS_ORIGINS (comma separated), RATE_LIMIT_RPS, RATE_LIMIT_BURST
//   - DUPLICATE_WINDOW, DUPLICATE_RADIUS_METERS
func Load() (Config, error) {
	cfg := Defaults()
	if path := strings.TrimSpace(os.Getenv("ALERTHUB_CONFIG")); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return cfg, err
		}
	}
	if err := cfg.applyEnv(os.Getenv); err != nil {
		return cfg, err
	}
	if cfg.JWTSecret == "" && !cfg.IsProduction() {
		cfg.JWTSecret = devJWTSecret
	}
	return cfg, nil
}

func (c Config) IsProduction() bool {
	switch strings.ToLower(c.Env) {
	case "prod", "production":
		return true
	}
	return false
}

// Validate checks the settings the server cannot start without.
func (c Config) Validate() error {
	if c.DatabaseURL == "" {
		return ErrMissingDatabaseURL
	}
	if c.IsProduction() && (c.JWTSecret == "" || c.JWTSecret == devJWTSecret) {
		return ErrMissingJWTSecret
	}
	if c.StoreRetries < 0 {
		return fmt.Errorf("STORE_RETRIES must be >= 0, got %d", c.StoreRetries)
	}
	if c.RateLimitRPS <= 0 || c.SerpAPIRPS <= 0 {
		return errors.New("rate limits must be positive")
	}
	if c.DuplicateRadiusMeters <= 0 {
		return errors.New("DUPLICATE_RADIUS_METERS must be positive")
	}
	return nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	return c.applyYAML(data)
}

func (c *Config) applyYAML(data []byte) error {
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	setString(&c.Port, fc.Port)
	setString(&c.Env, fc.Env)
	setString(&c.DatabaseURL, fc.DatabaseURL)
	setString(&c.DefaultLocation, fc.DefaultLocation)
	setString(&c.RedisAddr, fc.RedisAddr)
	if fc.SerpAPIRPS > 0 {
		c.SerpAPIRPS = fc.SerpAPIRPS
	}
	if len(fc.NewsFeeds) > 0 {
		c.NewsFeeds = fc.NewsFeeds
	}
	if fc.RedisDB > 0 {
		c.RedisDB = fc.RedisDB
	}
	if fc.StrictStatus != nil {
		c.StrictStatus = *fc.StrictStatus
	}
	if fc.StoreRetries != nil {
		c.StoreRetries = *fc.StoreRetries
	}
	if len(fc.CORSOrigins) > 0 {
		c.CORSOrigins = fc.CORSOrigins
	}
	if fc.RateLimitRPS > 0 {
		c.RateLimitRPS = fc.RateLimitRPS
	}
	if fc.RateLimitBurst > 0 {
		c.RateLimitBurst = fc.RateLimitBurst
	}
	if fc.Duplicates.RadiusMeters > 0 {
		c.DuplicateRadiusMeters = fc.Duplicates.RadiusMeters
	}

	durations := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"access_token_ttl", fc.AccessTokenTTL, &c.AccessTokenTTL},
		{"adapter_timeout", fc.AdapterTimeout, &c.AdapterTimeout},
		{"stats_cache_ttl", fc.StatsCacheTTL, &c.StatsCacheTTL},
		{"region_reload_interval", fc.RegionReload, &c.RegionReloadInterval},
		{"duplicates.window", fc.Duplicates.Window, &c.DuplicateWindow},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("config %s: %w", d.name, err)
		}
		*d.dst = v
	}
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	get := func(k string) string { return strings.TrimSpace(getenv(k)) }

	setString(&c.Port, get("PORT"))
	setString(&c.Env, get("APP_ENV"))
	setString(&c.DatabaseURL, get("DATABASE_URL"))
	setString(&c.JWTSecret, get("JWT_SECRET_KEY"))
	setString(&c.SerpAPIKey, get("SERPAPI_API_KEY"))
	setString(&c.DefaultLocation, get("DEFAULT_LOCATION"))
	setString(&c.RedisAddr, get("REDIS_ADDR"))
	setString(&c.RedisPassword, get("REDIS_PASSWORD"))
	if v := get("NEWS_FEEDS"); v != "" {
		c.NewsFeeds = splitList(v)
	}
	if v := get("CORS_ORIGINS"); v != "" {
		c.CORSOrigins = splitList(v)
	}

	var errs []error
	parseDuration := func(key string, dst *time.Duration) {
		if v := get(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}
	parseFloat := func(key string, dst *float64) {
		if v := get(key); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = f
		}
	}
	parseInt := func(key string, dst *int) {
		if v := get(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}

	parseDuration("ACCESS_TOKEN_TTL", &c.AccessTokenTTL)
	parseDuration("ADAPTER_TIMEOUT", &c.AdapterTimeout)
	parseDuration("STATS_CACHE_TTL", &c.StatsCacheTTL)
	parseDuration("REGION_RELOAD_INTERVAL", &c.RegionReloadInterval)
	parseDuration("DUPLICATE_WINDOW", &c.DuplicateWindow)
	parseFloat("SERPAPI_RPS", &c.SerpAPIRPS)
	parseFloat("RATE_LIMIT_RPS", &c.RateLimitRPS)
	parseFloat("DUPLICATE_RADIUS_METERS", &c.DuplicateRadiusMeters)
	parseInt("REDIS_DB", &c.RedisDB)
	parseInt("STORE_RETRIES", &c.StoreRetries)
	parseInt("RATE_LIMIT_BURST", &c.RateLimitBurst)

	if v := get("STRICT_STATUS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("STRICT_STATUS: %w", err))
		} else {
			c.StrictStatus = b
		}
	}
	return errors.Join(errs...)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
