package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/EmpoweredVote/cii-backend/internal/cii"
	"github.com/EmpoweredVote/cii-backend/internal/enrichment"
	"github.com/EmpoweredVote/cii-backend/internal/geo"
	"github.com/EmpoweredVote/cii-backend/internal/observability"
	"github.com/EmpoweredVote/cii-backend/internal/progress"
	"github.com/EmpoweredVote/cii-backend/internal/regions"
	"github.com/EmpoweredVote/cii-backend/internal/seeding"
	"github.com/EmpoweredVote/cii-backend/internal/sources"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const countries = `{"type":"FeatureCollection","features":[
 {"type":"Feature","properties":{"ISO_A3":"DEU","NAME":"Germany"},
  "geometry":{"type":"Polygon","coordinates":[[[6,47],[15,47],[15,55],[6,55],[6,47]]]}}]}`

const subdivisions = `{"type":"FeatureCollection","features":[
 {"type":"Feature","properties":{"iso_3166_2":"DE-BY","name":"Bayern","admin":"Germany"},
  "geometry":{"type":"Polygon","coordinates":[[[9,47],[13,47],[13,50],[9,50],[9,47]]]}}]}`

type stubBoundaries struct {
	data string
	err  error
}

func (s stubBoundaries) Fetch(context.Context) (*geo.FeatureCollection, error) {
	if s.err != nil {
		return nil, s.err
	}
	return geo.DecodeFeatureCollection(strings.NewReader(s.data))
}

type stubDemographics struct{}

func (stubDemographics) Tag() string { return sources.TagWorldBank }

func (stubDemographics) FetchDemographics(context.Context, string, int) (sources.Demographics, error) {
	return sources.Demographics{GDPPerCapita: regions.Float(48000)}, nil
}

type testServer struct {
	handler http.Handler
	store   *regions.MemoryStore
}

func newTestServer(t *testing.T, countrySource seeding.BoundarySource) testServer {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	log := observability.DiscardLogger()
	metrics := observability.NewMetricsForTesting()
	store := regions.NewMemoryStore(clock)
	profiles, err := seeding.LoadProfiles("")
	require.NoError(t, err)

	loader := seeding.NewLoader(store, countrySource, stubBoundaries{data: subdivisions},
		geo.DefaultCodeTable(), profiles, seeding.LoaderConfig{Years: []int{2022}}, clock, log, metrics)
	enricher := enrichment.NewEngine(store, enrichment.Sources{Demographics: stubDemographics{}},
		enrichment.Config{BatchSize: 20, Lease: time.Minute}, log, metrics)
	recomputer := cii.NewEngine(store, cii.EngineConfig{ChunkSize: 100}, clock, log, metrics)
	coord := progress.NewCoordinator(progress.NewMemoryStore(), clock, log)

	return testServer{
		handler: SetupRoutes(NewHandler(loader, enricher, recomputer, coord, log)),
		store:   store,
	}
}

func (s testServer) do(t *testing.T, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, httptest.NewRequest(method, target, nil))
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func TestPipeline_EndToEnd(t *testing.T) {
	s := newTestServer(t, stubBoundaries{data: countries})

	rr := s.do(t, http.MethodGet, "/progress")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = s.do(t, http.MethodPost, "/seed/countries")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	seeded := decode[seeding.Summary](t, rr)
	assert.Equal(t, 1, seeded.Written)
	assert.NotEqual(t, uuid.Nil, seeded.RunID)

	rr = s.do(t, http.MethodPost, "/seed/regions?run_id="+seeded.RunID.String())
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, 1, decode[seeding.Summary](t, rr).Written)

	rr = s.do(t, http.MethodGet, "/progress")
	require.Equal(t, http.StatusOK, rr.Code)
	rec := decode[progress.Record](t, rr)
	assert.Equal(t, progress.StatusCompleted, rec.Status)
	assert.Equal(t, seeded.RunID, rec.ID)

	rr = s.do(t, http.MethodGet, "/progress/"+seeded.RunID.String())
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = s.do(t, http.MethodPost, "/enrich?year=2022")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	batch := decode[enrichment.BatchResult](t, rr)
	assert.Equal(t, 1, batch.Enriched)
	assert.True(t, batch.Complete)

	rr = s.do(t, http.MethodPost, "/recompute?year=2022&type=country")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	sum := decode[cii.Summary](t, rr)
	assert.Equal(t, 1, sum.Total)
	assert.Equal(t, 1, sum.Computed)
}

func TestPipeline_BadRequests(t *testing.T) {
	s := newTestServer(t, stubBoundaries{data: countries})

	tests := []struct {
		name   string
		method string
		target string
		want   int
	}{
		{"enrich without year", http.MethodPost, "/enrich", http.StatusBadRequest},
		{"enrich bad year", http.MethodPost, "/enrich?year=abc", http.StatusBadRequest},
		{"enrich year out of range", http.MethodPost, "/enrich?year=1999", http.StatusBadRequest},
		{"enrich bad type", http.MethodPost, "/enrich?year=2022&type=planet", http.StatusBadRequest},
		{"recompute bad type", http.MethodPost, "/recompute?year=2022&type=x", http.StatusBadRequest},
		{"regions bad run id", http.MethodPost, "/seed/regions?run_id=nope", http.StatusBadRequest},
		{"regions unknown run", http.MethodPost, "/seed/regions?run_id=" + uuid.NewString(), http.StatusNotFound},
		{"progress bad id", http.MethodGet, "/progress/nope", http.StatusBadRequest},
		{"progress unknown id", http.MethodGet, "/progress/" + uuid.NewString(), http.StatusNotFound},
		{"wrong method", http.MethodGet, "/enrich?year=2022", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := s.do(t, tt.method, tt.target)
			assert.Equal(t, tt.want, rr.Code, rr.Body.String())
		})
	}
}

func TestPipeline_SeedRegionsWithoutRunStartsOne(t *testing.T) {
	s := newTestServer(t, stubBoundaries{data: countries})

	rr := s.do(t, http.MethodPost, "/seed/regions")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	_, err := s.store.Get(context.Background(), "DE-BY", 2022)
	assert.NoError(t, err)
}

func TestPipeline_SeedFailureReportsError(t *testing.T) {
	s := newTestServer(t, stubBoundaries{err: errors.New("dial tcp: i/o timeout")})

	rr := s.do(t, http.MethodPost, "/seed/countries")
	assert.Equal(t, http.StatusBadGateway, rr.Code)

	var body struct {
		Error  string          `json:"error"`
		Result seeding.Summary `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Contains(t, body.Error, "i/o timeout")
	assert.NotEqual(t, uuid.Nil, body.Result.RunID)
	assert.Zero(t, body.Result.Features)
}
