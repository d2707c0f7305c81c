package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/EmpoweredVote/cii-backend/internal/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPClient_GetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Equal(t, "secret", r.Header.Get("X-API-Key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"value": 42}`))
	}))
	defer srv.Close()

	metrics := observability.NewMetricsForTesting()
	c := NewHTTPClient(5*time.Second, observability.DiscardLogger(), metrics)

	var out struct {
		Value int `json:"value"`
	}
	err := c.GetJSON(context.Background(), "test", srv.URL, url.Values{"format": {"json"}}, http.Header{"X-API-Key": {"secret"}}, &out)
	require.NoError(t, err)
	assert.Equal(t, 42, out.Value)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SourceRequests.WithLabelValues("test", "success")))
}

func TestHTTPClient_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "no such country", http.StatusNotFound)
	}))
	defer srv.Close()

	metrics := observability.NewMetricsForTesting()
	c := NewHTTPClient(5*time.Second, observability.DiscardLogger(), metrics)

	_, err := c.Get(context.Background(), "test", srv.URL, nil, nil)
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "no such country")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SourceRequests.WithLabelValues("test", "error")))
}

func TestHTTPClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := NewHTTPClient(50*time.Millisecond, observability.DiscardLogger(), observability.NewMetricsForTesting())
	_, err := c.Get(context.Background(), "test", srv.URL, nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestHTTPClient_DecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html>`))
	}))
	defer srv.Close()

	c := NewHTTPClient(time.Second, observability.DiscardLogger(), observability.NewMetricsForTesting())
	var out map[string]any
	err := c.GetJSON(context.Background(), "test", srv.URL, nil, nil, &out)
	assert.ErrorContains(t, err, "decode test response")
}
