// Package worldbank reads country indicators from the World Bank v2 API.
package worldbank

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/EmpoweredVote/cii-backend/internal/regions"
	"github.com/EmpoweredVote/cii-backend/internal/sources"
)

// Indicator codes.
const (
	IndicatorPopulation    = "SP.POP.TOTL"
	IndicatorGDPPerCapita  = "NY.GDP.PCAP.CD"
	IndicatorUrbanPercent  = "SP.URB.TOTL.IN.ZS"
	IndicatorPrecipitation = "AG.LND.PRCP.MM"
)

// firstYear bounds how far back a missing value may be filled from.
const firstYear = regions.MinYear

// Client implements sources.DemographicsSource and sources.ClimateSource.
type Client struct {
	http    *sources.HTTPClient
	baseURL string
}

func NewClient(http *sources.HTTPClient, baseURL string) *Client {
	return &Client{http: http, baseURL: baseURL}
}

func (c *Client) Tag() string { return sources.TagWorldBank }

// Latest returns the most recent non-null value of the indicator at or
// before year, or nil if the series has none.
func (c *Client) Latest(ctx context.Context, code, indicator string, year int) (*float64, error) {
	endpoint := fmt.Sprintf("%s/country/%s/indicator/%s", c.baseURL, url.PathEscape(code), indicator)
	params := url.Values{
		"format":   {"json"},
		"date":     {fmt.Sprintf("%d:%d", firstYear, year)},
		"per_page": {"200"},
	}

	body, err := c.http.Get(ctx, "worldbank", endpoint, params, nil)
	if err != nil {
		return nil, err
	}
	points, err := decode(body)
	if err != nil {
		return nil, fmt.Errorf("worldbank %s %s: %w", code, indicator, err)
	}

	var best *observation
	for i := range points {
		p := &points[i]
		if p.Value == nil {
			continue
		}
		y, err := strconv.Atoi(p.Date)
		if err != nil || y > year {
			continue
		}
		if best == nil || y > best.year {
			p.year = y
			best = p
		}
	}
	if best == nil {
		c.http.RecordEmpty("worldbank")
		return nil, nil
	}
	v := *best.Value
	return &v, nil
}

// FetchDemographics looks up the three demographic indicators. Indicators
// that fail are left empty; an error is returned only when all three fail.
func (c *Client) FetchDemographics(ctx context.Context, code string, year int) (sources.Demographics, error) {
	var d sources.Demographics
	var errs []error
	for _, f := range []struct {
		indicator string
		dst       **float64
	}{
		{IndicatorPopulation, &d.Population},
		{IndicatorGDPPerCapita, &d.GDPPerCapita},
		{IndicatorUrbanPercent, &d.UrbanPopulationPercent},
	} {
		v, err := c.Latest(ctx, code, f.indicator, year)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		*f.dst = v
	}
	if len(errs) == 3 {
		return d, errors.Join(errs...)
	}
	return d, nil
}

// FetchPrecipitation returns average annual precipitation in mm.
func (c *Client) FetchPrecipitation(ctx context.Context, code string, year int) (*float64, error) {
	return c.Latest(ctx, code, IndicatorPrecipitation, year)
}

// The v2 API answers with a two-element array [paging, observations], or a
// one-element array carrying an error message.
type observation struct {
	Date  string   `json:"date"`
	Value *float64 `json:"value"`
	year  int
}

type apiMessage struct {
	Message []struct {
		ID    string `json:"id"`
		Key   string `json:"key"`
		Value string `json:"value"`
	} `json:"message"`
}

func decode(body []byte) ([]observation, error) {
	var parts []json.RawMessage
	if err := json.Unmarshal(body, &parts); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(parts) == 0 {
		return nil, nil
	}
	if len(parts) == 1 {
		var msg apiMessage
		if err := json.Unmarshal(parts[0], &msg); err == nil && len(msg.Message) > 0 {
			m := msg.Message[0]
			return nil, fmt.Errorf("api error %s: %s: %s", m.ID, m.Key, m.Value)
		}
		return nil, nil
	}
	var points []observation
	if string(parts[1]) == "null" {
		return nil, nil
	}
	if err := json.Unmarshal(parts[1], &points); err != nil {
		return nil, fmt.Errorf("decode observations: %w", err)
	}
	return points, nil
}

var (
	_ sources.DemographicsSource = (*Client)(nil)
	_ sources.ClimateSource      = (*Client)(nil)
)
