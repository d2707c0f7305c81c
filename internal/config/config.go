package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ReseedPolicy controls what a repeated seeding run does to rows that
// already exist for the same (region_code, data_year).
type ReseedPolicy string

const (
	// ReseedPreserve refreshes boundary columns but only overwrites metric
	// columns on rows that are still purely synthetic.
	ReseedPreserve ReseedPolicy = "preserve"
	// ReseedOverwrite replaces every column, including enriched metrics.
	ReseedOverwrite ReseedPolicy = "overwrite"
	// ReseedSkip leaves existing rows untouched.
	ReseedSkip ReseedPolicy = "skip"
)

const (
	DefaultCountryBoundariesURL = "https://raw.githubusercontent.com/nvkelso/natural-earth-vector/master/geojson/ne_110m_admin_0_countries.geojson"
	DefaultRegionBoundariesURL  = "https://raw.githubusercontent.com/nvkelso/natural-earth-vector/master/geojson/ne_10m_admin_1_states_provinces.geojson"
	DefaultWorldBankBaseURL     = "https://api.worldbank.org/v2"
	DefaultOpenAQBaseURL        = "https://api.openaq.org/v2"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	DatabaseURL     string
	Port            string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Seeding
	SeedYears            []int
	CountryBoundariesURL string
	RegionBoundariesURL  string
	ProfilesPath         string
	ReseedPolicy         ReseedPolicy
	BoundaryTimeout      time.Duration

	// External sources
	WorldBankBaseURL string
	OpenAQBaseURL    string
	OpenAQAPIKey     string
	SourceTimeout    time.Duration

	// Enrichment
	EnrichBatchSize     int
	EnrichDelay         time.Duration
	EnrichLease         time.Duration
	EnrichRegionTimeout time.Duration
	EnrichConcurrency   int

	// CII recompute
	RecomputeChunkSize int
	RecomputePause     time.Duration
	RecomputeInterval  time.Duration

	// Source response cache; disabled when RedisAddr is empty.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	AirQualityCountries []string
	AirQualityLookback  time.Duration

	// Browser origins allowed to call the API.
	CORSOrigins []string
	// Bearer token required on /pipeline; empty leaves it open.
	PipelineToken string
}

// Load reads .env.local if present, then configuration from environment
// variables, applying defaults where unset.
func Load() (*Config, error) {
	_ = godotenv.Load(".env.local")
	return FromEnv()
}

// FromEnv builds a Config from the current process environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		Port:                 envOrDefault("PORT", "5050"),
		LogLevel:             envOrDefault("LOG_LEVEL", "info"),
		LogFormat:            envOrDefault("LOG_FORMAT", "json"),
		CountryBoundariesURL: envOrDefault("COUNTRY_BOUNDARIES_URL", DefaultCountryBoundariesURL),
		RegionBoundariesURL:  envOrDefault("REGION_BOUNDARIES_URL", DefaultRegionBoundariesURL),
		ProfilesPath:         os.Getenv("PROFILES_PATH"),
		WorldBankBaseURL:     strings.TrimRight(envOrDefault("WORLDBANK_BASE_URL", DefaultWorldBankBaseURL), "/"),
		OpenAQBaseURL:        strings.TrimRight(envOrDefault("OPENAQ_BASE_URL", DefaultOpenAQBaseURL), "/"),
		OpenAQAPIKey:         os.Getenv("OPENAQ_API_KEY"),
		RedisAddr:            os.Getenv("REDIS_ADDR"),
		RedisPassword:        os.Getenv("REDIS_PASSWORD"),
		PipelineToken:        os.Getenv("PIPELINE_TOKEN"),
	}

	var err error
	if cfg.ShutdownTimeout, err = parseDuration("SHUTDOWN_TIMEOUT", "10s", false); err != nil {
		return nil, err
	}
	if cfg.SourceTimeout, err = parseDuration("SOURCE_TIMEOUT", "30s", false); err != nil {
		return nil, err
	}
	if cfg.BoundaryTimeout, err = parseDuration("BOUNDARY_TIMEOUT", "5m", false); err != nil {
		return nil, err
	}
	if cfg.AirQualityLookback, err = parseDuration("AIRQUALITY_LOOKBACK", "168h", false); err != nil {
		return nil, err
	}
	if cfg.EnrichDelay, err = parseDuration("ENRICH_DELAY", "1s", true); err != nil {
		return nil, err
	}
	if cfg.EnrichLease, err = parseDuration("ENRICH_LEASE", "10m", false); err != nil {
		return nil, err
	}
	if cfg.EnrichRegionTimeout, err = parseDuration("ENRICH_REGION_TIMEOUT", "60s", false); err != nil {
		return nil, err
	}
	if cfg.RecomputePause, err = parseDuration("RECOMPUTE_PAUSE", "100ms", true); err != nil {
		return nil, err
	}
	if cfg.RecomputeInterval, err = parseDuration("RECOMPUTE_INTERVAL", "0s", true); err != nil {
		return nil, err
	}
	if cfg.CacheTTL, err = parseDuration("CACHE_TTL", "24h", false); err != nil {
		return nil, err
	}

	if cfg.EnrichBatchSize, err = parseInt("ENRICH_BATCH_SIZE", 20, 1, 500); err != nil {
		return nil, err
	}
	if cfg.EnrichConcurrency, err = parseInt("ENRICH_CONCURRENCY", 1, 1, 32); err != nil {
		return nil, err
	}
	if cfg.RecomputeChunkSize, err = parseInt("RECOMPUTE_CHUNK_SIZE", 100, 1, 5000); err != nil {
		return nil, err
	}
	if cfg.RedisDB, err = parseInt("REDIS_DB", 0, 0, 15); err != nil {
		return nil, err
	}

	if cfg.SeedYears, err = parseYears(envOrDefault("SEED_YEARS", "2020,2021,2022,2023,2024")); err != nil {
		return nil, err
	}

	switch p := ReseedPolicy(strings.ToLower(envOrDefault("RESEED_POLICY", string(ReseedPreserve)))); p {
	case ReseedPreserve, ReseedOverwrite, ReseedSkip:
		cfg.ReseedPolicy = p
	default:
		return nil, fmt.Errorf("invalid RESEED_POLICY %q: want preserve, overwrite or skip", p)
	}

	cfg.AirQualityCountries = parseList(strings.ToUpper(envOrDefault("AIRQUALITY_COUNTRIES", "DE,PL,FR,ES,IT,GR,RO,BG,GB,NL,SE,PT")))
	cfg.CORSOrigins = parseList(envOrDefault("CORS_ORIGINS", "http://localhost:5173"))

	return cfg, nil
}

// Validate checks settings that are only required by the server and the
// database-backed commands.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

// parseDuration reads a duration variable. Zero is accepted only when
// allowZero is set; negative values are always rejected.
func parseDuration(key, fallback string, allowZero bool) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, fallback))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d < 0 || (d == 0 && !allowZero) {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return d, nil
}

func parseInt(key string, fallback, minVal, maxVal int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if n < minVal || n > maxVal {
		return 0, fmt.Errorf("invalid %s: must be between %d and %d", key, minVal, maxVal)
	}
	return n, nil
}

func parseYears(s string) ([]int, error) {
	var years []int
	for _, part := range parseList(s) {
		y, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid SEED_YEARS entry %q: %w", part, err)
		}
		if y < 2000 || y > 2100 {
			return nil, fmt.Errorf("invalid SEED_YEARS entry %d: must be between 2000 and 2100", y)
		}
		years = append(years, y)
	}
	if len(years) == 0 {
		return nil, errors.New("SEED_YEARS must list at least one year")
	}
	return years, nil
}

func parseList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
