package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "5050", cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, []int{2020, 2021, 2022, 2023, 2024}, cfg.SeedYears)
	assert.Equal(t, ReseedPreserve, cfg.ReseedPolicy)
	assert.Equal(t, DefaultCountryBoundariesURL, cfg.CountryBoundariesURL)
	assert.Equal(t, DefaultWorldBankBaseURL, cfg.WorldBankBaseURL)
	assert.Equal(t, 30*time.Second, cfg.SourceTimeout)
	assert.Equal(t, 20, cfg.EnrichBatchSize)
	assert.Equal(t, time.Second, cfg.EnrichDelay)
	assert.Equal(t, 10*time.Minute, cfg.EnrichLease)
	assert.Equal(t, 1, cfg.EnrichConcurrency)
	assert.Equal(t, 100, cfg.RecomputeChunkSize)
	assert.Equal(t, 100*time.Millisecond, cfg.RecomputePause)
	assert.Zero(t, cfg.RecomputeInterval)
	assert.Empty(t, cfg.RedisAddr)
	assert.Equal(t, 24*time.Hour, cfg.CacheTTL)
	assert.Len(t, cfg.AirQualityCountries, 12)
	assert.Equal(t, 7*24*time.Hour, cfg.AirQualityLookback)
	assert.Equal(t, 5*time.Minute, cfg.BoundaryTimeout)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.CORSOrigins)
	assert.Empty(t, cfg.PipelineToken)
}

func TestFromEnv_CustomEnv(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SEED_YEARS", "2022, 2023")
	t.Setenv("RESEED_POLICY", "Overwrite")
	t.Setenv("WORLDBANK_BASE_URL", "http://localhost:9000/")
	t.Setenv("ENRICH_BATCH_SIZE", "5")
	t.Setenv("ENRICH_DELAY", "0s")
	t.Setenv("ENRICH_CONCURRENCY", "4")
	t.Setenv("RECOMPUTE_INTERVAL", "6h")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("AIRQUALITY_COUNTRIES", "de, FR")
	t.Setenv("CORS_ORIGINS", "https://cii.example.org, http://localhost:3000")
	t.Setenv("PIPELINE_TOKEN", "s3cret")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, []int{2022, 2023}, cfg.SeedYears)
	assert.Equal(t, ReseedOverwrite, cfg.ReseedPolicy)
	assert.Equal(t, "http://localhost:9000", cfg.WorldBankBaseURL)
	assert.Equal(t, 5, cfg.EnrichBatchSize)
	assert.Zero(t, cfg.EnrichDelay)
	assert.Equal(t, 4, cfg.EnrichConcurrency)
	assert.Equal(t, 6*time.Hour, cfg.RecomputeInterval)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, 2, cfg.RedisDB)
	assert.Equal(t, []string{"DE", "FR"}, cfg.AirQualityCountries)
	assert.Equal(t, []string{"https://cii.example.org", "http://localhost:3000"}, cfg.CORSOrigins)
	assert.Equal(t, "s3cret", cfg.PipelineToken)
}

func TestFromEnv_InvalidValues(t *testing.T) {
	tests := []struct {
		key, value, want string
	}{
		{"SHUTDOWN_TIMEOUT", "not-a-duration", "SHUTDOWN_TIMEOUT"},
		{"SHUTDOWN_TIMEOUT", "-1s", "SHUTDOWN_TIMEOUT"},
		{"SOURCE_TIMEOUT", "0s", "SOURCE_TIMEOUT"},
		{"BOUNDARY_TIMEOUT", "soon", "BOUNDARY_TIMEOUT"},
		{"ENRICH_BATCH_SIZE", "0", "ENRICH_BATCH_SIZE"},
		{"ENRICH_BATCH_SIZE", "abc", "ENRICH_BATCH_SIZE"},
		{"RECOMPUTE_CHUNK_SIZE", "99999", "RECOMPUTE_CHUNK_SIZE"},
		{"SEED_YEARS", "1999", "SEED_YEARS"},
		{"SEED_YEARS", "twenty", "SEED_YEARS"},
		{"SEED_YEARS", " , ", "SEED_YEARS"},
		{"RESEED_POLICY", "clobber", "RESEED_POLICY"},
		{"REDIS_DB", "16", "REDIS_DB"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := FromEnv()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_RequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	cfg, err := FromEnv()
	require.NoError(t, err)

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")

	cfg.DatabaseURL = "postgres://localhost/cii"
	assert.NoError(t, cfg.Validate())
}
