package regions

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrValidation wraps every record validation failure.
var ErrValidation = errors.New("invalid region record")

const (
	MinYear = 2000
	MaxYear = 2100
)

var codePattern = regexp.MustCompile(`^[A-Z]{2}(-[A-Z0-9]{1,4})?$`)

// Validate checks the record against the stored schema and returns every
// violation joined into one error.
func (r *Record) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if !codePattern.MatchString(r.RegionCode) {
		fail("region_code %q is not XX or XX-SUB", r.RegionCode)
	}
	if _, ok := ParseType(string(r.RegionType)); !ok {
		fail("region_type %q is not country or region", r.RegionType)
	}
	if r.RegionType == TypeCountry && ParentCode(r.RegionCode) != r.RegionCode {
		fail("country region_code %q has a subdivision suffix", r.RegionCode)
	}
	if r.DataYear < MinYear || r.DataYear > MaxYear {
		fail("data_year %d outside [%d, %d]", r.DataYear, MinYear, MaxYear)
	}
	if r.LastUpdated.IsZero() {
		fail("last_updated is not set")
	}
	if len(r.DataSources) == 0 {
		fail("data_sources is empty")
	}

	unit := func(name string, v *float64) {
		if v != nil && (*v < 0 || *v > 1) {
			fail("%s %v outside [0, 1]", name, *v)
		}
	}
	nonNegative := func(name string, v *float64) {
		if v != nil && *v < 0 {
			fail("%s %v is negative", name, *v)
		}
	}

	m := r.Metrics
	nonNegative("population", m.Population)
	nonNegative("gdp_per_capita", m.GDPPerCapita)
	nonNegative("air_quality_pm25", m.AirQualityPM25)
	nonNegative("air_quality_no2", m.AirQualityNO2)
	nonNegative("internet_speed_download", m.InternetSpeedDownload)
	nonNegative("internet_speed_upload", m.InternetSpeedUpload)
	nonNegative("precipitation_avg", m.PrecipitationAvg)
	if v := m.UrbanPopulationPercent; v != nil && (*v < 0 || *v > 100) {
		fail("urban_population_percent %v outside [0, 100]", *v)
	}
	if v := m.TemperatureAvg; v != nil && (*v < -90 || *v > 60) {
		fail("temperature_avg %v outside [-90, 60]", *v)
	}
	unit("drought_index", m.DroughtIndex)
	unit("flood_risk_score", m.FloodRiskScore)
	unit("climate_risk_score", m.ClimateRiskScore)
	unit("infrastructure_score", m.InfrastructureScore)
	unit("socioeconomic_score", m.SocioeconomicScore)

	s := r.Scores
	unit("cii_score", s.CIIScore)
	unit("climate_risk_component", s.ClimateRiskComponent)
	unit("infrastructure_gap_component", s.InfrastructureGapComponent)
	unit("socioeconomic_vuln_component", s.SocioeconomicVulnComponent)
	unit("air_quality_component", s.AirQualityComponent)

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w %s/%d: %w", ErrValidation, r.RegionCode, r.DataYear, errors.Join(errs...))
}
