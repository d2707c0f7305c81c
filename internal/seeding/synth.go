package seeding

import (
	"hash/fnv"
	"math"
	"math/rand/v2"
	"strconv"

	"github.com/EmpoweredVote/cii-backend/internal/regions"
	"github.com/EmpoweredVote/cii-backend/internal/stats"
)

// driftBaseYear is the year the baselines describe.
const driftBaseYear = 2020

// jitterFraction bounds the per-value deviation from the baseline.
const jitterFraction = 0.10

type incomeBaseline struct {
	gdp, infrastructure, download, urban, socioeconomic float64
}

type climateBaseline struct {
	temperature, precipitation, drought, flood, risk float64
}

type pollutionBaseline struct {
	pm25, no2 float64
}

var incomeBaselines = map[IncomeTier]incomeBaseline{
	IncomeHigh:        {gdp: 45000, infrastructure: 0.85, download: 120, urban: 80, socioeconomic: 0.2},
	IncomeUpperMiddle: {gdp: 12000, infrastructure: 0.65, download: 60, urban: 65, socioeconomic: 0.4},
	IncomeLowerMiddle: {gdp: 4000, infrastructure: 0.45, download: 25, urban: 45, socioeconomic: 0.6},
	IncomeLow:         {gdp: 1000, infrastructure: 0.25, download: 8, urban: 30, socioeconomic: 0.8},
}

var climateBaselines = map[ClimateZone]climateBaseline{
	ClimateTropical:    {temperature: 26, precipitation: 1800, drought: 0.3, flood: 0.6, risk: 0.6},
	ClimateArid:        {temperature: 24, precipitation: 250, drought: 0.7, flood: 0.2, risk: 0.6},
	ClimateTemperate:   {temperature: 12, precipitation: 850, drought: 0.3, flood: 0.35, risk: 0.35},
	ClimateContinental: {temperature: 7, precipitation: 600, drought: 0.35, flood: 0.3, risk: 0.4},
	ClimatePolar:       {temperature: -2, precipitation: 500, drought: 0.15, flood: 0.2, risk: 0.3},
}

var pollutionBaselines = map[PollutionLevel]pollutionBaseline{
	PollutionLow:      {pm25: 7, no2: 10},
	PollutionModerate: {pm25: 15, no2: 20},
	PollutionHigh:     {pm25: 45, no2: 35},
}

// Synthesize derives placeholder metrics for one region and year from its
// profile. The output is a pure function of its arguments: the same region
// and year always yield the same values.
func Synthesize(code string, t regions.RegionType, year int, p Profile) regions.Metrics {
	inc := incomeBaselines[p.Income]
	cli := climateBaselines[p.Climate]
	pol := pollutionBaselines[p.Pollution]

	rng := jitterSource(code, year)
	jitter := func(v float64) float64 {
		return v * (1 + (rng.Float64()*2-1)*jitterFraction)
	}
	years := float64(year - driftBaseYear)

	population := 25e6
	if t == regions.TypeRegion {
		population = 3e6
	}
	population *= math.Pow(1.01, years)

	download := inc.download * math.Pow(1.08, years)

	m := regions.Metrics{
		Population:             regions.Float(math.Round(jitter(population))),
		GDPPerCapita:           round2(nonNegative(jitter(inc.gdp * math.Pow(1.02, years)))),
		UrbanPopulationPercent: round2(clamp(jitter(inc.urban+0.3*years), 0, 100)),
		AirQualityPM25:         round2(nonNegative(jitter(pol.pm25 * math.Pow(0.99, years)))),
		AirQualityNO2:          round2(nonNegative(jitter(pol.no2 * math.Pow(0.99, years)))),
		InternetSpeedDownload:  round2(nonNegative(jitter(download))),
		InternetSpeedUpload:    round2(nonNegative(jitter(download * 0.4))),
		TemperatureAvg:         round2(clamp(jitter(cli.temperature)+0.02*years, -90, 60)),
		PrecipitationAvg:       round2(nonNegative(jitter(cli.precipitation))),
		DroughtIndex:           round2(unit(jitter(cli.drought))),
		FloodRiskScore:         round2(unit(jitter(cli.flood))),
		ClimateRiskScore:       round2(unit(jitter(cli.risk + 0.005*years))),
		InfrastructureScore:    round2(unit(jitter(inc.infrastructure + 0.005*years))),
		SocioeconomicScore:     round2(unit(jitter(inc.socioeconomic))),
	}
	return m
}

// jitterSource seeds a generator from FNV-64a of the code and year.
func jitterSource(code string, year int) *rand.Rand {
	h := fnv.New64a()
	h.Write([]byte(code))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(year)))
	seed := h.Sum64()
	return rand.New(rand.NewPCG(seed, seed>>1|1))
}

func clamp(v, lo, hi float64) float64 { return math.Min(math.Max(v, lo), hi) }

func unit(v float64) float64 { return clamp(v, 0, 1) }

func nonNegative(v float64) float64 { return math.Max(v, 0) }

func round2(v float64) *float64 { return regions.Float(stats.Round(v, 2)) }
