// Package sources defines the external data sources consumed by the
// enrichment and ingestion jobs and the HTTP plumbing they share.
package sources

import (
	"context"
)

// Tags recorded in a region's data_sources once a source contributed.
const (
	TagWorldBank = "World Bank"
	TagOpenAQ    = "OpenAQ"
)

// Pollutant identifiers accepted by AirQuality sources.
const (
	PollutantPM25 = "pm25"
	PollutantNO2  = "no2"
)

// Demographics are the demographic/economic statistics for one country and
// year. Each value may be absent.
type Demographics struct {
	Population             *float64 `json:"population,omitempty"`
	GDPPerCapita           *float64 `json:"gdp_per_capita,omitempty"`
	UrbanPopulationPercent *float64 `json:"urban_population_percent,omitempty"`
}

// IsEmpty reports whether no statistic was returned.
func (d Demographics) IsEmpty() bool {
	return d.Population == nil && d.GDPPerCapita == nil && d.UrbanPopulationPercent == nil
}

// DemographicsSource returns population, GDP per capita and urbanization.
type DemographicsSource interface {
	// Tag is the data_sources tag recorded when this source contributed.
	Tag() string
	FetchDemographics(ctx context.Context, code string, year int) (Demographics, error)
}

// AirQualitySource returns raw measurement values; aggregation is the caller's job.
type AirQualitySource interface {
	Tag() string
	FetchMeasurements(ctx context.Context, code, pollutant string) ([]float64, error)
}

// ClimateSource returns average annual precipitation in mm, or nil when unknown.
type ClimateSource interface {
	Tag() string
	FetchPrecipitation(ctx context.Context, code string, year int) (*float64, error)
}
