package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "cii"

// Metrics holds the Prometheus collectors for the seeding, enrichment and
// aggregation jobs.
type Metrics struct {
	// Seeding
	SeedFeatures      *prometheus.CounterVec // labels: region_type, outcome={written,skipped,unmapped,bad_geometry,invalid,write_error}
	SeedRunsTotal     *prometheus.CounterVec // labels: region_type, outcome={success,error}
	SeedBatchDuration prometheus.Histogram

	// External sources
	SourceRequests *prometheus.CounterVec   // labels: source, outcome={success,error,empty}
	SourceDuration *prometheus.HistogramVec // labels: source
	SourceCache    *prometheus.CounterVec   // labels: source, result={hit,miss}

	// Enrichment
	EnrichedRegions *prometheus.CounterVec // labels: outcome={enriched,failed,no_data}
	EnrichRemaining *prometheus.GaugeVec   // labels: region_type

	// CII recompute
	CIIRegions        *prometheus.CounterVec // labels: outcome={computed,skipped,failed}
	RecomputeDuration prometheus.Histogram
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.SeedFeatures,
		m.SeedRunsTotal,
		m.SeedBatchDuration,
		m.SourceRequests,
		m.SourceDuration,
		m.SourceCache,
		m.EnrichedRegions,
		m.EnrichRemaining,
		m.CIIRegions,
		m.RecomputeDuration,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		SeedFeatures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "seed_features_total",
			Help:      "Boundary features processed by the seed loader, by outcome.",
		}, []string{"region_type", "outcome"}),
		SeedRunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "seed_runs_total",
			Help:      "Seeding invocations by region type and outcome.",
		}, []string{"region_type", "outcome"}),
		SeedBatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "seed_batch_duration_seconds",
			Help:      "Duration of one seed chunk including writes and the progress update.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		SourceRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_requests_total",
			Help:      "External data source requests by source and outcome.",
		}, []string{"source", "outcome"}),
		SourceDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_request_duration_seconds",
			Help:      "External data source request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"source"}),
		SourceCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_cache_total",
			Help:      "Source response cache lookups by source and result.",
		}, []string{"source", "result"}),
		EnrichedRegions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrichment_regions_total",
			Help:      "Regions processed by the enrichment engine, by outcome.",
		}, []string{"outcome"}),
		EnrichRemaining: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "enrichment_remaining",
			Help:      "Synthetic regions remaining after the last enrichment batch.",
		}, []string{"region_type"}),
		CIIRegions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cii_regions_total",
			Help:      "Regions visited by the CII recompute job, by outcome.",
		}, []string{"outcome"}),
		RecomputeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cii_recompute_duration_seconds",
			Help:      "Duration of a full CII recompute invocation.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
	}
}
