// Package cii computes the Climate Inequality Index and its four components
// from whatever raw metrics a region record carries.
package cii

import (
	"github.com/EmpoweredVote/cii-backend/internal/regions"
)

// Component weights. Missing components have their weight redistributed
// over the present ones.
const (
	WeightClimateRisk       = 0.30
	WeightInfrastructureGap = 0.25
	WeightSocioeconomic     = 0.25
	WeightAirQuality        = 0.20

	// MinComponents is the evidence gate: with fewer computable components
	// every output is null.
	MinComponents = 2
)

const (
	temperatureCeiling = 40.0    // °C
	downloadCeiling    = 100.0   // Mbps
	gdpCeiling         = 50000.0 // USD per capita
	pm25Ceiling        = 35.0    // µg/m³
	no2Ceiling         = 40.0    // µg/m³
)

// Compute derives the component scores and composite. Components that have
// no inputs are nil; if fewer than MinComponents are computable every field
// is nil. All values are clamped to [0, 1].
func Compute(m regions.Metrics) regions.Scores {
	climate := ClimateRisk(m)
	infra := InfrastructureGap(m)
	socio := SocioeconomicVulnerability(m)
	air := AirQuality(m)

	var sum, weights float64
	present := 0
	for _, c := range []struct {
		v *float64
		w float64
	}{
		{climate, WeightClimateRisk},
		{infra, WeightInfrastructureGap},
		{socio, WeightSocioeconomic},
		{air, WeightAirQuality},
	} {
		if c.v == nil {
			continue
		}
		sum += c.w * *c.v
		weights += c.w
		present++
	}
	if present < MinComponents {
		return regions.Scores{}
	}

	composite := clamp01(sum / weights)
	return regions.Scores{
		CIIScore:                   &composite,
		ClimateRiskComponent:       climate,
		InfrastructureGapComponent: infra,
		SocioeconomicVulnComponent: socio,
		AirQualityComponent:        air,
	}
}

// ClimateRisk averages temperature, drought, flood, precipitation
// extremity and any pre-existing climate risk score.
func ClimateRisk(m regions.Metrics) *float64 {
	var a averager
	if m.TemperatureAvg != nil {
		a.add(*m.TemperatureAvg / temperatureCeiling)
	}
	a.addPtr(m.DroughtIndex)
	a.addPtr(m.FloodRiskScore)
	if m.PrecipitationAvg != nil {
		a.add(PrecipitationExtremity(*m.PrecipitationAvg))
	}
	a.addPtr(m.ClimateRiskScore)
	return a.mean()
}

// PrecipitationExtremity scores annual precipitation in mm: both very dry
// and very wet totals are penalized, 800-2000 mm is the optimal band.
func PrecipitationExtremity(mm float64) float64 {
	switch {
	case mm < 400:
		return 0.8
	case mm < 800:
		return 0.4
	case mm <= 2000:
		return 0
	case mm <= 3000:
		return 0.3
	default:
		return 0.7
	}
}

// InfrastructureGap averages the inverse infrastructure score and the
// download speed gap against a 100 Mbps ceiling.
func InfrastructureGap(m regions.Metrics) *float64 {
	var a averager
	if m.InfrastructureScore != nil {
		a.add(1 - *m.InfrastructureScore)
	}
	if m.InternetSpeedDownload != nil {
		a.add(1 - *m.InternetSpeedDownload/downloadCeiling)
	}
	return a.mean()
}

// SocioeconomicVulnerability averages the pre-existing socioeconomic
// score, a GDP term and the urbanization term.
func SocioeconomicVulnerability(m regions.Metrics) *float64 {
	var a averager
	a.addPtr(m.SocioeconomicScore)
	if m.GDPPerCapita != nil {
		a.add(1 - *m.GDPPerCapita/gdpCeiling)
	}
	if m.UrbanPopulationPercent != nil {
		a.add(UrbanizationVulnerability(*m.UrbanPopulationPercent))
	}
	return a.mean()
}

// UrbanizationVulnerability penalizes both low (<30%) and high (>80%)
// urbanization.
func UrbanizationVulnerability(pct float64) float64 {
	switch {
	case pct < 30:
		return (30 - pct) / 30
	case pct > 80:
		return (pct - 80) / 20
	default:
		return 0
	}
}

// AirQuality averages PM2.5 and NO2 risk over whichever is present.
func AirQuality(m regions.Metrics) *float64 {
	var a averager
	if m.AirQualityPM25 != nil {
		a.add(*m.AirQualityPM25 / pm25Ceiling)
	}
	if m.AirQualityNO2 != nil {
		a.add(*m.AirQualityNO2 / no2Ceiling)
	}
	return a.mean()
}

// averager clamps each signal to [0, 1] and averages what was added.
type averager struct {
	sum float64
	n   int
}

func (a *averager) add(v float64) {
	a.sum += clamp01(v)
	a.n++
}

func (a *averager) addPtr(v *float64) {
	if v != nil {
		a.add(*v)
	}
}

func (a *averager) mean() *float64 {
	if a.n == 0 {
		return nil
	}
	v := clamp01(a.sum / float64(a.n))
	return &v
}

func clamp01(v float64) float64 {
	return min(max(v, 0), 1)
}
