package openaq

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/EmpoweredVote/cii-backend/internal/observability"
	"github.com/EmpoweredVote/cii-backend/internal/sources"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchMeasurements(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/measurements", r.URL.Path)
		assert.Equal(t, "DE", q.Get("country"))
		assert.Equal(t, sources.PollutantPM25, q.Get("parameter"))
		assert.Equal(t, "2026-02-22", q.Get("date_from"))
		assert.Equal(t, "2026-03-01", q.Get("date_to"))
		assert.Equal(t, "10000", q.Get("limit"))
		assert.Equal(t, "key-123", r.Header.Get("X-API-Key"))
		_, _ = w.Write([]byte(`{"meta":{"found":3},"results":[{"value":12.5},{"value":null},{"value":8}]}`))
	}))
	defer srv.Close()

	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC))
	hc := sources.NewHTTPClient(5*time.Second, observability.DiscardLogger(), observability.NewMetricsForTesting())
	c := NewClient(hc, srv.URL, "key-123", clock)

	values, err := c.FetchMeasurements(context.Background(), "DE", sources.PollutantPM25)
	require.NoError(t, err)
	assert.Equal(t, []float64{12.5, 8}, values)
}

func TestFetchMeasurements_NoKeyNoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("X-API-Key"))
		assert.Equal(t, "2026-02-28", r.URL.Query().Get("date_from"))
		_, _ = w.Write([]byte(`{"results":[]}`))
	}))
	defer srv.Close()

	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC))
	hc := sources.NewHTTPClient(5*time.Second, observability.DiscardLogger(), observability.NewMetricsForTesting())
	c := NewClient(hc, srv.URL, "", clock).WithLookback(24 * time.Hour)

	values, err := c.FetchMeasurements(context.Background(), "IS", sources.PollutantNO2)
	require.NoError(t, err)
	assert.Empty(t, values)
}

func TestFetchMeasurements_Error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	hc := sources.NewHTTPClient(5*time.Second, observability.DiscardLogger(), observability.NewMetricsForTesting())
	c := NewClient(hc, srv.URL, "", clockwork.NewRealClock())

	_, err := c.FetchMeasurements(context.Background(), "DE", sources.PollutantPM25)
	var se *sources.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusTooManyRequests, se.Code)
}
