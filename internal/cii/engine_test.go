package cii

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/EmpoweredVote/cii-backend/internal/config"
	"github.com/EmpoweredVote/cii-backend/internal/observability"
	"github.com/EmpoweredVote/cii-backend/internal/regions"
	"github.com/jonboulle/clockwork"
	"github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func put(t *testing.T, s *regions.MemoryStore, code string, sources []string, m regions.Metrics) uint64 {
	t.Helper()
	rec := &regions.Record{
		RegionCode:  code,
		RegionType:  regions.TypeCountry,
		DataYear:    2022,
		Metrics:     m,
		DataSources: pq.StringArray(sources),
		LastUpdated: now,
	}
	_, err := s.UpsertSeed(context.Background(), rec, config.ReseedPreserve)
	require.NoError(t, err)
	return rec.ID
}

func threeComponents() regions.Metrics {
	return regions.Metrics{ClimateRiskScore: f(0.5), InfrastructureScore: f(0.8), SocioeconomicScore: f(0.2)}
}

func TestRecompute(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(now)
	store := regions.NewMemoryStore(clock)

	put(t, store, "DE", []string{"World Bank"}, threeComponents())
	put(t, store, "FR", []string{regions.TagSynthetic, "OpenAQ"}, regions.Metrics{AirQualityPM25: f(17.5), AirQualityNO2: f(20)})
	put(t, store, "PL", []string{regions.TagSynthetic}, threeComponents())

	metrics := observability.NewMetricsForTesting()
	e := NewEngine(store, EngineConfig{ChunkSize: 100}, clock, observability.DiscardLogger(), metrics)

	sum, err := e.Recompute(ctx, 2022, "")
	require.NoError(t, err)
	assert.Equal(t, Summary{Year: 2022, Computed: 1, Skipped: 1, Total: 2}, sum)

	de, err := store.Get(ctx, "DE", 2022)
	require.NoError(t, err)
	require.NotNil(t, de.CIIScore)
	assert.InDelta(t, 0.3125, *de.CIIScore, 1e-12)

	fr, err := store.Get(ctx, "FR", 2022)
	require.NoError(t, err)
	assert.Nil(t, fr.CIIScore)

	pl, err := store.Get(ctx, "PL", 2022)
	require.NoError(t, err)
	assert.Nil(t, pl.CIIScore, "purely synthetic rows are not touched")

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CIIRegions.WithLabelValues("computed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CIIRegions.WithLabelValues("skipped")))
}

func TestRecompute_ClearsStaleScores(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(now)
	store := regions.NewMemoryStore(clock)
	id := put(t, store, "DE", []string{"World Bank"}, regions.Metrics{AirQualityPM25: f(10)})
	require.NoError(t, store.UpdateScores(ctx, id, regions.Scores{CIIScore: f(0.9)}))

	e := NewEngine(store, EngineConfig{}, clock, observability.DiscardLogger(), observability.NewMetricsForTesting())
	_, err := e.Recompute(ctx, 2022, regions.TypeCountry)
	require.NoError(t, err)

	de, err := store.Get(ctx, "DE", 2022)
	require.NoError(t, err)
	assert.Nil(t, de.CIIScore)
}

func TestRecompute_PausesBetweenChunks(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	clock := clockwork.NewFakeClockAt(now)
	store := regions.NewMemoryStore(clock)
	for _, code := range []string{"AT", "BE", "CH", "DE", "ES"} {
		put(t, store, code, []string{"World Bank"}, threeComponents())
	}

	e := NewEngine(store, EngineConfig{ChunkSize: 2, Pause: time.Second}, clock, observability.DiscardLogger(), observability.NewMetricsForTesting())

	done := make(chan Summary, 1)
	go func() {
		sum, err := e.Recompute(ctx, 2022, "")
		assert.NoError(t, err)
		done <- sum
	}()

	// three chunks: two pauses
	for range 2 {
		require.NoError(t, clock.BlockUntilContext(ctx, 1))
		clock.Advance(time.Second)
	}

	select {
	case sum := <-done:
		assert.Equal(t, 5, sum.Computed)
		assert.Equal(t, 5, sum.Total)
	case <-ctx.Done():
		t.Fatal("recompute did not finish")
	}
}

type failingStore struct {
	*regions.MemoryStore
	listErr   error
	updateErr error
}

func (s *failingStore) ListForRecompute(ctx context.Context, year int, t regions.RegionType, afterID uint64, limit int) ([]regions.Record, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.MemoryStore.ListForRecompute(ctx, year, t, afterID, limit)
}

func (s *failingStore) UpdateScores(ctx context.Context, id uint64, sc regions.Scores) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	return s.MemoryStore.UpdateScores(ctx, id, sc)
}

func TestRecompute_Failures(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(now)
	mem := regions.NewMemoryStore(clock)
	put(t, mem, "DE", []string{"World Bank"}, threeComponents())
	put(t, mem, "FR", []string{"World Bank"}, threeComponents())

	e := NewEngine(&failingStore{MemoryStore: mem, updateErr: errors.New("connection reset")},
		EngineConfig{}, clock, observability.DiscardLogger(), observability.NewMetricsForTesting())
	sum, err := e.Recompute(ctx, 2022, "")
	require.NoError(t, err, "per-region failures are not fatal")
	assert.Equal(t, 2, sum.Failed)
	assert.Equal(t, 0, sum.Computed)

	e = NewEngine(&failingStore{MemoryStore: mem, listErr: errors.New("relation does not exist")},
		EngineConfig{}, clock, observability.DiscardLogger(), observability.NewMetricsForTesting())
	_, err = e.Recompute(ctx, 2022, "")
	assert.ErrorContains(t, err, "relation does not exist")
}
