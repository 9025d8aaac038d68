package fleettop

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Fetcher retrieves one chart from one agent
type Fetcher interface {
	Fetch(ctx context.Context, baseURL string, query ChartQuery, window Window) (Reading, error)
}

// ChartFetcher queries the netdata data API. One attempt per call, no retries.
type ChartFetcher struct {
	client  *http.Client
	metrics *PollMetrics
}

type FetcherOption func(*ChartFetcher)

// WithHTTPClient replaces the HTTP client, its Timeout is kept as is
func WithHTTPClient(c *http.Client) FetcherOption {
	return func(f *ChartFetcher) {
		f.client = c
	}
}

// WithTimeout sets the per request timeout
func WithTimeout(d time.Duration) FetcherOption {
	return func(f *ChartFetcher) {
		if d > 0 {
			f.client.Timeout = d
		}
	}
}

// WithFetchMetrics records every request in m
func WithFetchMetrics(m *PollMetrics) FetcherOption {
	return func(f *ChartFetcher) {
		f.metrics = m
	}
}

func NewChartFetcher(opts ...FetcherOption) *ChartFetcher {
	f := &ChartFetcher{
		client: &http.Client{Timeout: DefaultRequestTimeout},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// DataURL builds the query URL for one chart
func DataURL(baseURL string, query ChartQuery, window Window) (string, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/") + DataPath)
	if err != nil {
		return "", fmt.Errorf("invalid base url %q: %w", baseURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid base url %q: scheme and host are required", baseURL)
	}
	params := url.Values{}
	params.Set("after", strconv.Itoa(window.After))
	params.Set("points", strconv.Itoa(window.Points))
	params.Set("group", window.group())
	params.Set("chart", query.ChartID)
	u.RawQuery = params.Encode()
	return u.String(), nil
}

// Fetch returns a TimeSeries for series windows and a Sample for scalar ones
func (f *ChartFetcher) Fetch(ctx context.Context, baseURL string, query ChartQuery, window Window) (Reading, error) {
	if window.Scalar() {
		s, err := f.FetchScalar(ctx, baseURL, query, window)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	ts, err := f.FetchSeries(ctx, baseURL, query, window)
	if err != nil {
		return nil, err
	}
	return ts, nil
}

// FetchSeries returns every row of the response as (time, value) pairs
func (f *ChartFetcher) FetchSeries(ctx context.Context, baseURL string, query ChartQuery, window Window) (TimeSeries, error) {
	start := time.Now()
	fr, rawURL, err := f.do(ctx, baseURL, query, window)
	var ts TimeSeries
	if err == nil {
		ts = fr.series()
	}
	err = annotate(err, query.ChartID, rawURL)
	f.metrics.observeFetch(query.ChartID, err, time.Since(start))
	return ts, err
}

// FetchScalar returns the value of the last row of the response
func (f *ChartFetcher) FetchScalar(ctx context.Context, baseURL string, query ChartQuery, window Window) (Sample, error) {
	start := time.Now()
	fr, rawURL, err := f.do(ctx, baseURL, query, window)
	var s Sample
	if err == nil {
		s, err = fr.last()
	}
	err = annotate(err, query.ChartID, rawURL)
	f.metrics.observeFetch(query.ChartID, err, time.Since(start))
	return s, err
}

// annotate fills in the chart and URL on a FetchError
func annotate(err error, chart, rawURL string) error {
	var fe *FetchError
	if errors.As(err, &fe) {
		fe.Chart = chart
		if fe.URL == "" {
			fe.URL = rawURL
		}
	}
	return err
}

func (f *ChartFetcher) do(ctx context.Context, baseURL string, query ChartQuery, window Window) (frame, string, error) {
	rawURL, err := DataURL(baseURL, query, window)
	if err != nil {
		return frame{}, baseURL, &FetchError{Kind: KindNetwork, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return frame{}, rawURL, &FetchError{Kind: KindNetwork, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return frame{}, rawURL, &FetchError{Kind: KindNetwork, Err: err}
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		excerpt := strings.TrimSpace(string(body))
		if len(excerpt) > maxErrorBodyBytes {
			excerpt = excerpt[:maxErrorBodyBytes]
		}
		return frame{}, rawURL, &FetchError{
			Kind:       KindHTTPStatus,
			StatusCode: resp.StatusCode,
			Body:       excerpt,
		}
	}
	if readErr != nil {
		return frame{}, rawURL, &FetchError{Kind: KindNetwork, Err: fmt.Errorf("read body: %w", readErr)}
	}

	fr, err := decodeFrame(body, query.ValueLabel)
	if err != nil {
		return frame{}, rawURL, err
	}
	return fr, rawURL, nil
}
