package regions

import (
	"slices"
	"time"

	"github.com/lib/pq"
)

// RegionType distinguishes country rows from sub-national rows.
type RegionType string

const (
	TypeCountry RegionType = "country"
	TypeRegion  RegionType = "region"
)

// ParseType accepts "country" or "region".
func ParseType(s string) (RegionType, bool) {
	switch RegionType(s) {
	case TypeCountry, TypeRegion:
		return RegionType(s), true
	}
	return "", false
}

// TagSynthetic marks placeholder data that has not been replaced by a real source.
const TagSynthetic = "Synthetic"

const TableName = "climate_inequality_regions"

// Metrics are the raw per-region inputs. A nil field means "not known".
type Metrics struct {
	Population             *float64 `json:"population"`
	GDPPerCapita           *float64 `json:"gdp_per_capita" gorm:"column:gdp_per_capita"`
	UrbanPopulationPercent *float64 `json:"urban_population_percent"`
	AirQualityPM25         *float64 `json:"air_quality_pm25" gorm:"column:air_quality_pm25"`
	AirQualityNO2          *float64 `json:"air_quality_no2" gorm:"column:air_quality_no2"`
	InternetSpeedDownload  *float64 `json:"internet_speed_download"`
	InternetSpeedUpload    *float64 `json:"internet_speed_upload"`
	TemperatureAvg         *float64 `json:"temperature_avg"`
	PrecipitationAvg       *float64 `json:"precipitation_avg"`
	DroughtIndex           *float64 `json:"drought_index"`
	FloodRiskScore         *float64 `json:"flood_risk_score"`
	ClimateRiskScore       *float64 `json:"climate_risk_score"`
	InfrastructureScore    *float64 `json:"infrastructure_score"`
	SocioeconomicScore     *float64 `json:"socioeconomic_score"`
}

// Scores are the derived index values written by the CII engine.
type Scores struct {
	CIIScore                   *float64 `json:"cii_score" gorm:"column:cii_score"`
	ClimateRiskComponent       *float64 `json:"climate_risk_component"`
	InfrastructureGapComponent *float64 `json:"infrastructure_gap_component"`
	SocioeconomicVulnComponent *float64 `json:"socioeconomic_vuln_component"`
	AirQualityComponent        *float64 `json:"air_quality_component"`
}

// Record is one row per (region_code, data_year).
type Record struct {
	ID             uint64         `json:"id" gorm:"primaryKey"`
	RegionCode     string         `json:"region_code" gorm:"not null;uniqueIndex:idx_region_code_year"`
	RegionType     RegionType     `json:"region_type" gorm:"type:text;not null;index"`
	Country        string         `json:"country"`
	RegionName     string         `json:"region_name"`
	DataYear       int            `json:"data_year" gorm:"not null;uniqueIndex:idx_region_code_year;index"`
	Geometry       Boundary       `json:"geometry,omitempty"`
	Centroid       Point          `json:"centroid"`
	Metrics        `gorm:"embedded"`
	Scores         `gorm:"embedded"`
	DataSources    pq.StringArray `json:"data_sources" gorm:"type:text[];not null"`
	LeaseExpiresAt *time.Time     `json:"-" gorm:"index"`
	LastUpdated    time.Time      `json:"last_updated" gorm:"not null"`
}

func (Record) TableName() string { return TableName }

// IsSynthetic reports whether the record still carries the placeholder tag.
func (r *Record) IsSynthetic() bool {
	return slices.Contains(r.DataSources, TagSynthetic)
}

// IsPurelySynthetic reports whether the source set is exactly {Synthetic}.
func (r *Record) IsPurelySynthetic() bool {
	return len(r.DataSources) == 1 && r.DataSources[0] == TagSynthetic
}

// ParentCode returns the country part of a region code ("DE-BY" -> "DE").
func ParentCode(code string) string {
	for i := 0; i < len(code); i++ {
		if code[i] == '-' {
			return code[:i]
		}
	}
	return code
}

// Merge copies every non-nil field of patch into m.
func (m *Metrics) Merge(patch Metrics) {
	set := func(dst **float64, src *float64) {
		if src != nil {
			v := *src
			*dst = &v
		}
	}
	set(&m.Population, patch.Population)
	set(&m.GDPPerCapita, patch.GDPPerCapita)
	set(&m.UrbanPopulationPercent, patch.UrbanPopulationPercent)
	set(&m.AirQualityPM25, patch.AirQualityPM25)
	set(&m.AirQualityNO2, patch.AirQualityNO2)
	set(&m.InternetSpeedDownload, patch.InternetSpeedDownload)
	set(&m.InternetSpeedUpload, patch.InternetSpeedUpload)
	set(&m.TemperatureAvg, patch.TemperatureAvg)
	set(&m.PrecipitationAvg, patch.PrecipitationAvg)
	set(&m.DroughtIndex, patch.DroughtIndex)
	set(&m.FloodRiskScore, patch.FloodRiskScore)
	set(&m.ClimateRiskScore, patch.ClimateRiskScore)
	set(&m.InfrastructureScore, patch.InfrastructureScore)
	set(&m.SocioeconomicScore, patch.SocioeconomicScore)
}

// Columns returns the column -> value map of the non-nil fields.
func (m Metrics) Columns() map[string]any {
	out := map[string]any{}
	add := func(col string, v *float64) {
		if v != nil {
			out[col] = *v
		}
	}
	add("population", m.Population)
	add("gdp_per_capita", m.GDPPerCapita)
	add("urban_population_percent", m.UrbanPopulationPercent)
	add("air_quality_pm25", m.AirQualityPM25)
	add("air_quality_no2", m.AirQualityNO2)
	add("internet_speed_download", m.InternetSpeedDownload)
	add("internet_speed_upload", m.InternetSpeedUpload)
	add("temperature_avg", m.TemperatureAvg)
	add("precipitation_avg", m.PrecipitationAvg)
	add("drought_index", m.DroughtIndex)
	add("flood_risk_score", m.FloodRiskScore)
	add("climate_risk_score", m.ClimateRiskScore)
	add("infrastructure_score", m.InfrastructureScore)
	add("socioeconomic_score", m.SocioeconomicScore)
	return out
}

// IsEmpty reports whether no metric is set.
func (m Metrics) IsEmpty() bool { return len(m.Columns()) == 0 }

// Columns returns every score column, nil values included, so a recompute
// clears components that are no longer computable.
func (s Scores) Columns() map[string]any {
	val := func(v *float64) any {
		if v == nil {
			return nil
		}
		return *v
	}
	return map[string]any{
		"cii_score":                    val(s.CIIScore),
		"climate_risk_component":       val(s.ClimateRiskComponent),
		"infrastructure_gap_component": val(s.InfrastructureGapComponent),
		"socioeconomic_vuln_component": val(s.SocioeconomicVulnComponent),
		"air_quality_component":        val(s.AirQualityComponent),
	}
}

// metricColumns and scoreColumns list the stored column names in a fixed order.
var metricColumns = []string{
	"population", "gdp_per_capita", "urban_population_percent",
	"air_quality_pm25", "air_quality_no2",
	"internet_speed_download", "internet_speed_upload",
	"temperature_avg", "precipitation_avg", "drought_index", "flood_risk_score",
	"climate_risk_score", "infrastructure_score", "socioeconomic_score",
}

var scoreColumns = []string{
	"cii_score", "climate_risk_component", "infrastructure_gap_component",
	"socioeconomic_vuln_component", "air_quality_component",
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }
