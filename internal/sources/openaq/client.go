// Package openaq reads raw air-quality measurements from the OpenAQ v2 API.
package openaq

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/EmpoweredVote/cii-backend/internal/sources"
	"github.com/jonboulle/clockwork"
)

const (
	// DefaultLookback is the measurement window ending now.
	DefaultLookback = 7 * 24 * time.Hour
	pageLimit       = 10000
)

// Client implements sources.AirQualitySource.
type Client struct {
	http     *sources.HTTPClient
	baseURL  string
	apiKey   string
	lookback time.Duration
	clock    clockwork.Clock
}

func NewClient(http *sources.HTTPClient, baseURL, apiKey string, clock clockwork.Clock) *Client {
	return &Client{
		http:     http,
		baseURL:  baseURL,
		apiKey:   apiKey,
		lookback: DefaultLookback,
		clock:    clock,
	}
}

// WithLookback returns a copy of the client using a different window.
func (c *Client) WithLookback(d time.Duration) *Client {
	cp := *c
	cp.lookback = d
	return &cp
}

func (c *Client) Tag() string { return sources.TagOpenAQ }

type measurementsResponse struct {
	Results []struct {
		Value *float64 `json:"value"`
	} `json:"results"`
}

// FetchMeasurements returns every non-null measurement value of the
// pollutant for the country within the lookback window.
func (c *Client) FetchMeasurements(ctx context.Context, code, pollutant string) ([]float64, error) {
	end := c.clock.Now().UTC()
	start := end.Add(-c.lookback)
	params := url.Values{
		"country":   {code},
		"parameter": {pollutant},
		"date_from": {start.Format("2006-01-02")},
		"date_to":   {end.Format("2006-01-02")},
		"limit":     {strconv.Itoa(pageLimit)},
		"order_by":  {"datetime"},
	}
	var header http.Header
	if c.apiKey != "" {
		header = http.Header{"X-API-Key": {c.apiKey}}
	}

	var resp measurementsResponse
	if err := c.http.GetJSON(ctx, "openaq", c.baseURL+"/measurements", params, header, &resp); err != nil {
		return nil, err
	}

	values := make([]float64, 0, len(resp.Results))
	for _, r := range resp.Results {
		if r.Value != nil {
			values = append(values, *r.Value)
		}
	}
	if len(values) == 0 {
		c.http.RecordEmpty("openaq")
	}
	return values, nil
}

var _ sources.AirQualitySource = (*Client)(nil)
