// Package config loads and validates environment variables at startup.
// Fail-fast: if a required variable is missing or malformed, Load returns an
// error and the process exits.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

// Default job board pages scraped by the discovery service.
var DefaultScrapeSources = []string{
	"https://www.kariyer.net/is-ilanlari",
	"https://www.yenibiris.com/is-ilanlari",
	"https://www.secretcv.com/is-ilanlari",
}

// Default search engine sitemap ping endpoints.
var DefaultPingEndpoints = []string{
	"https://www.google.com/ping",
	"https://www.bing.com/ping",
	"https://webmaster.yandex.com/ping",
}

// Config holds all runtime configuration shared by the listing and discovery
// services and the CLI.
type Config struct {
	Port          string
	GRPCPort      string
	DiscoveryPort string
	DatabaseURL   string
	RedisURL      string
	LogLevel      string
	LogPretty     bool

	SiteURL      string // e.g. "https://isilanlarim.org", no trailing slash
	BuildHookURL string // optional static-site rebuild hook, POSTed after refresh
	PingEnabled  bool
	PingEngines  []string

	TimeZone        string
	ScrapeSchedule  string
	SitemapSchedule string
	SweepSchedule   string

	ScrapeSources      []string
	ScrapeDelay        time.Duration // pause between requests to different hosts
	ScrapeMaxPerSource int
	HTTPTimeout        time.Duration

	AdminEmail  string // contact address stamped on scraped listings
	AdminUserID string // owner id of scraped listings

	PYTRBaseURL    string
	PYTRMerchantID string
	PYTRAPIKey     string
	PaymentReturn  string // where the gateway redirects after success
	PaymentCancel  string // where the gateway redirects after cancel
}

// Load reads environment variables (after an optional .env file) and returns
// a validated Config.
func Load() (*Config, error) {
	// Missing .env is the normal production case.
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}

	site := strings.TrimRight(getenv("SITE_URL", "https://isilanlarim.org"), "/")

	delay, err := duration("SCRAPE_DELAY", 2*time.Second)
	if err != nil {
		return nil, err
	}
	timeout, err := duration("HTTP_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, err
	}
	perSource, err := positiveInt("SCRAPE_MAX_PER_SOURCE", 2)
	if err != nil {
		return nil, err
	}
	pingEnabled, err := boolean("PING_ENABLED", true)
	if err != nil {
		return nil, err
	}
	pretty, err := boolean("LOG_PRETTY", false)
	if err != nil {
		return nil, err
	}

	tz := getenv("TZ_NAME", "Europe/Istanbul")
	if _, err := time.LoadLocation(tz); err != nil {
		return nil, fmt.Errorf("TZ_NAME %q: %w", tz, err)
	}

	return &Config{
		Port:          getenv("LISTING_PORT", "8080"),
		GRPCPort:      getenv("GRPC_PORT", "8090"),
		DiscoveryPort: getenv("DISCOVERY_PORT", "8081"),
		DatabaseURL:   dbURL,
		RedisURL:      redisURL,
		LogLevel:      getenv("LOG_LEVEL", "info"),
		LogPretty:     pretty,

		SiteURL:      site,
		BuildHookURL: os.Getenv("BUILD_HOOK_URL"),
		PingEnabled:  pingEnabled,
		PingEngines:  list("PING_ENGINES", DefaultPingEndpoints),

		TimeZone:        tz,
		ScrapeSchedule:  getenv("SCRAPE_SCHEDULE", "0 9,17 * * *"),
		SitemapSchedule: getenv("SITEMAP_SCHEDULE", "0 10 * * *"),
		SweepSchedule:   getenv("PROMOTION_SWEEP_SCHEDULE", "@every 1h"),

		ScrapeSources:      list("SCRAPE_SOURCES", DefaultScrapeSources),
		ScrapeDelay:        delay,
		ScrapeMaxPerSource: perSource,
		HTTPTimeout:        timeout,

		AdminEmail:  getenv("ADMIN_EMAIL", "info@isilanlarim.org"),
		AdminUserID: getenv("ADMIN_USER_ID", "ADMIN_USER_ID"),

		PYTRBaseURL:    getenv("PYTR_BASE_URL", "https://api.pytr.com/v1"),
		PYTRMerchantID: os.Getenv("PYTR_MERCHANT_ID"),
		PYTRAPIKey:     os.Getenv("PYTR_API_KEY"),
		PaymentReturn:  getenv("PAYMENT_RETURN_URL", site+"/odeme/basarili"),
		PaymentCancel:  getenv("PAYMENT_CANCEL_URL", site+"/odeme/iptal"),
	}, nil
}

// Location returns the scheduler time zone; Load has already validated it.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func list(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return append([]string(nil), def...)
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func duration(key string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("%s must be a non-negative duration, got %q", key, s)
	}
	return d, nil
}

func positiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 1 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", key, s)
	}
	return v, nil
}

func boolean(key string, def bool) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean, got %q", key, s)
	}
	return v, nil
}
