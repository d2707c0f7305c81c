package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/EmpoweredVote/cii-backend/internal/observability"
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Source string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Source, e.Code, e.Body)
}

// IsNotFound reports whether err is a 404 from a source.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusNotFound
}

// HTTPClient performs GET requests with a per-call timeout, structured
// logging and request metrics.
type HTTPClient struct {
	http    *http.Client
	timeout time.Duration
	log     *slog.Logger
	metrics *observability.Metrics
}

func NewHTTPClient(timeout time.Duration, log *slog.Logger, metrics *observability.Metrics) *HTTPClient {
	return &HTTPClient{
		http:    &http.Client{},
		timeout: timeout,
		log:     log.With("component", "sources"),
		metrics: metrics,
	}
}

// Get issues a GET and returns the response body. The caller's context
// bounds the request as well as the client timeout.
func (c *HTTPClient) Get(ctx context.Context, source, endpoint string, params url.Values, header http.Header) ([]byte, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	full := endpoint
	if len(params) > 0 {
		full += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, full, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")

	logged := map[string]any{}
	for k := range params {
		if k != "api_key" {
			logged[k] = params.Get(k)
		}
	}
	LogRequest(c.log, source, http.MethodGet, endpoint, logged)

	start := time.Now()
	resp, err := c.http.Do(req)
	c.metrics.SourceDuration.WithLabelValues(source).Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.SourceRequests.WithLabelValues(source, "error").Inc()
		LogError(c.log, source, "request", err)
		return nil, fmt.Errorf("%s request: %w", source, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.metrics.SourceRequests.WithLabelValues(source, "error").Inc()
		return nil, fmt.Errorf("%s read body: %w", source, err)
	}
	LogResponse(c.log, source, resp.StatusCode, time.Since(start), len(body))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.metrics.SourceRequests.WithLabelValues(source, "error").Inc()
		snippet := string(body)
		if len(snippet) > 256 {
			snippet = snippet[:256]
		}
		err := &StatusError{Source: source, Code: resp.StatusCode, Body: snippet}
		LogError(c.log, source, "request", err)
		return nil, err
	}
	c.metrics.SourceRequests.WithLabelValues(source, "success").Inc()
	return body, nil
}

// GetJSON issues a GET and decodes the JSON body into out.
func (c *HTTPClient) GetJSON(ctx context.Context, source, endpoint string, params url.Values, header http.Header, out any) error {
	body, err := c.Get(ctx, source, endpoint, params, header)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		LogError(c.log, source, "decode", err)
		return fmt.Errorf("decode %s response: %w", source, err)
	}
	return nil
}

// RecordEmpty counts a successful call that carried no usable data.
func (c *HTTPClient) RecordEmpty(source string) {
	c.metrics.SourceRequests.WithLabelValues(source, "empty").Inc()
}
