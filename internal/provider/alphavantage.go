package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/trogers1052/price-ingest/internal/apperror"
	"github.com/trogers1052/price-ingest/internal/models"
)

const (
	function       = "TIME_SERIES_DAILY"
	seriesKey      = "Time Series (Daily)"
	defaultTimeout = 10 * time.Second
	maxErrorBody   = 512
)

// Fetcher returns a symbol's full daily series
type Fetcher interface {
	FetchDailySeries(ctx context.Context, symbol string) (models.DailySeries, error)
}

// Client fetches TIME_SERIES_DAILY from Alpha Vantage. It never retries;
// callers decide what to do with each error kind.
type Client struct {
	apiKey      string
	urlTemplate string
	client      *http.Client
	timeout     time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.client = c }
}

// WithTimeout bounds every request. It applies to the default client and to
// one given through WithHTTPClient, in either order.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) {
		if d > 0 {
			cl.timeout = d
		}
	}
}

// NewClient creates a client for the given URL template. The template may
// reference {symbol} and {apikey}.
func NewClient(apiKey, urlTemplate string, opts ...Option) *Client {
	c := &Client{
		apiKey:      apiKey,
		urlTemplate: urlTemplate,
		client:      &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	if c.timeout > 0 {
		hc := *c.client
		hc.Timeout = c.timeout
		c.client = &hc
	}
	return c
}

// RequestURL expands the template for symbol and guarantees the function,
// symbol and apikey query parameters are present.
func (c *Client) RequestURL(symbol string) (string, error) {
	raw := strings.NewReplacer(
		"{symbol}", url.QueryEscape(symbol),
		"{apikey}", url.QueryEscape(c.apiKey),
	).Replace(c.urlTemplate)

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid provider url template: %w", err)
	}

	q := u.Query()
	if q.Get("function") == "" {
		q.Set("function", function)
	}
	if q.Get("symbol") == "" {
		q.Set("symbol", symbol)
	}
	if q.Get("apikey") == "" {
		q.Set("apikey", c.apiKey)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// FetchDailySeries returns the provider's series for symbol keyed by date
// string. Values are decoded but not interpreted.
func (c *Client) FetchDailySeries(ctx context.Context, symbol string) (models.DailySeries, error) {
	reqURL, err := c.RequestURL(symbol)
	if err != nil {
		return nil, apperror.NewFetchError(apperror.MalformedResponse, symbol, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, apperror.NewFetchError(apperror.Transport, symbol, fmt.Errorf("failed to build request: %w", err))
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, apperror.NewFetchError(apperror.Transport, symbol, fmt.Errorf("error making request to Alpha Vantage: %w", scrubURLError(err)))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, apperror.NewFetchError(apperror.RateLimited, symbol, fmt.Errorf("status code %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, apperror.NewFetchError(apperror.Transport, symbol, fmt.Errorf("Alpha Vantage API error (status code %d): %s", resp.StatusCode, string(body)))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperror.NewFetchError(apperror.Transport, symbol, fmt.Errorf("failed to read response body: %w", err))
	}

	return decodeSeries(symbol, body)
}

func decodeSeries(symbol string, body []byte) (models.DailySeries, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		return nil, apperror.NewFetchError(apperror.MalformedResponse, symbol, fmt.Errorf("error decoding Alpha Vantage response: %w", err))
	}

	raw, ok := top[seriesKey]
	if !ok {
		return nil, missingSeries(symbol, top)
	}

	var series models.DailySeries
	if err := json.Unmarshal(raw, &series); err != nil {
		return nil, apperror.NewFetchError(apperror.MalformedResponse, symbol, fmt.Errorf("error decoding %q: %w", seriesKey, err))
	}
	for date, q := range series {
		q.Date = date
		series[date] = q
	}
	return series, nil
}

// missingSeries classifies a body without the series key. Alpha Vantage
// reports throttling with a 200 and a "Note" or "Information" message.
func missingSeries(symbol string, top map[string]json.RawMessage) error {
	for _, key := range []string{"Note", "Information"} {
		if msg, ok := top[key]; ok {
			return apperror.NewFetchError(apperror.RateLimited, symbol, fmt.Errorf("provider %s: %s", strings.ToLower(key), message(msg)))
		}
	}
	if msg, ok := top["Error Message"]; ok {
		return apperror.NewFetchError(apperror.MalformedResponse, symbol, fmt.Errorf("provider error: %s", message(msg)))
	}
	return apperror.NewFetchError(apperror.MalformedResponse, symbol, fmt.Errorf("response has no %q key", seriesKey))
}

func message(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return string(raw)
	}
	return s
}

// scrubURLError drops the request URL, which carries the API key
func scrubURLError(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return ue.Err
	}
	return err
}
