package regions

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/EmpoweredVote/cii-backend/internal/config"
	"github.com/EmpoweredVote/cii-backend/internal/observability"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	s := NewMemoryStore(clockwork.NewFakeClockAt(testNow))
	for _, rec := range []*Record{
		seedRecord("DE", TypeCountry, 2022),
		seedRecord("DE", TypeCountry, 2023),
		seedRecord("DE-BY", TypeRegion, 2022),
	} {
		_, err := s.UpsertSeed(context.Background(), rec, config.ReseedPreserve)
		require.NoError(t, err)
	}
	srv := httptest.NewServer(SetupRoutes(NewHandler(s, observability.DiscardLogger())))
	t.Cleanup(srv.Close)
	return srv
}

func TestListRegions(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/?year=2022&type=country")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var recs []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&recs))
	require.Len(t, recs, 1)
	assert.Equal(t, "DE", recs[0]["region_code"])
	assert.NotContains(t, recs[0], "geometry")
}

func TestListRegions_BadParams(t *testing.T) {
	srv := newTestServer(t)

	for _, q := range []string{"?year=abc", "?type=planet", "?limit=-1"} {
		resp, err := http.Get(srv.URL + "/" + q)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, q)
	}
}

func TestGetRegion(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/de-by?year=2022")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var rec map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rec))
	assert.Equal(t, "DE-BY", rec["region_code"])
	assert.Contains(t, rec, "geometry")

	resp2, err := http.Get(srv.URL + "/FR?year=2022")
	require.NoError(t, err)
	resp2.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp2.StatusCode)

	resp3, err := http.Get(srv.URL + "/DE")
	require.NoError(t, err)
	resp3.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp3.StatusCode)
}

func TestLocateRegion(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/locate?lon=1&lat=1&year=2022")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var recs []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&recs))
	require.Len(t, recs, 2)
	assert.Equal(t, "DE", recs[0]["region_code"], "countries first")
	assert.Equal(t, "DE-BY", recs[1]["region_code"])

	resp2, err := http.Get(srv.URL + "/locate?lon=50&lat=50&year=2022")
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.Equal(t, http.StatusOK, resp2.StatusCode)
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&recs))
	assert.Empty(t, recs)
}

func TestLocateRegion_BadParams(t *testing.T) {
	srv := newTestServer(t)

	for _, q := range []string{"?lat=1&year=2022", "?lon=200&lat=1&year=2022", "?lon=1&lat=1"} {
		resp, err := http.Get(srv.URL + "/locate" + q)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, q)
	}
}
