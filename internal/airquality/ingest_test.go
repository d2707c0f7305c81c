package airquality

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/EmpoweredVote/cii-backend/internal/config"
	"github.com/EmpoweredVote/cii-backend/internal/observability"
	"github.com/EmpoweredVote/cii-backend/internal/regions"
	"github.com/EmpoweredVote/cii-backend/internal/sources"
	"github.com/jonboulle/clockwork"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	values map[string][]float64 // key: code/pollutant
	errs   map[string]error
	codes  []string
}

func (f *fakeSource) Tag() string { return sources.TagOpenAQ }

func (f *fakeSource) FetchMeasurements(_ context.Context, code, pollutant string) ([]float64, error) {
	f.codes = append(f.codes, code)
	if err := f.errs[code+"/"+pollutant]; err != nil {
		return nil, err
	}
	return f.values[code+"/"+pollutant], nil
}

func seedYears(t *testing.T, store *regions.MemoryStore, code string, years ...int) {
	t.Helper()
	for _, y := range years {
		_, err := store.UpsertSeed(context.Background(), &regions.Record{
			RegionCode:  code,
			RegionType:  regions.TypeCountry,
			DataYear:    y,
			DataSources: pq.StringArray{regions.TagSynthetic},
			LastUpdated: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		}, config.ReseedPreserve)
		require.NoError(t, err)
	}
}

func TestRun(t *testing.T) {
	ctx := context.Background()
	store := regions.NewMemoryStore(clockwork.NewFakeClock())
	seedYears(t, store, "DE", 2022, 2023)
	seedYears(t, store, "PL", 2023)
	seedYears(t, store, "FR", 2023)

	src := &fakeSource{
		values: map[string][]float64{
			"DE/pm25": {10.004, 11, 12},
			"DE/no2":  {20},
			"PL/pm25": {30},
		},
		errs: map[string]error{
			"FR/pm25": errors.New("429"),
			"FR/no2":  errors.New("429"),
			"PL/no2":  errors.New("503"),
		},
	}
	sum, err := NewIngester(store, src, observability.DiscardLogger()).Run(ctx, []string{"de", "PL", "FR", "IT"})
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Successful)
	assert.Equal(t, 1, sum.Failed)
	assert.Equal(t, []string{"IT"}, sum.NoData)

	for _, y := range []int{2022, 2023} {
		rec, err := store.Get(ctx, "DE", y)
		require.NoError(t, err)
		assert.Equal(t, 11.0, *rec.AirQualityPM25, "rounded to 2 decimals")
		assert.Equal(t, 20.0, *rec.AirQualityNO2)
		assert.True(t, rec.IsSynthetic(), "source tags are left alone")
	}

	pl, err := store.Get(ctx, "PL", 2023)
	require.NoError(t, err)
	assert.Equal(t, 30.0, *pl.AirQualityPM25)
	assert.Nil(t, pl.AirQualityNO2)

	fr, err := store.Get(ctx, "FR", 2023)
	require.NoError(t, err)
	assert.Nil(t, fr.AirQualityPM25)
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	src := &fakeSource{}
	_, err := NewIngester(regions.NewMemoryStore(clockwork.NewFakeClock()), src, observability.DiscardLogger()).Run(ctx, []string{"DE"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, src.codes)
}
