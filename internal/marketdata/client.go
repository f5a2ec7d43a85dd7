// Package marketdata fetches option minute aggregates from the Polygon REST API
// for days whose flat file is missing.
package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/eddiefleurent/zerotheta/internal/models"
)

const (
	// DefaultBaseURL is the public Polygon REST endpoint.
	DefaultBaseURL = "https://api.polygon.io"

	// Max 50k results per request
	maxLimit = 50000
)

// APIError is a non-2xx response.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d: %s", e.Status, e.Body)
}

// Permanent reports 4xx responses other than 429, which retrying cannot fix.
func (e *APIError) Permanent() bool {
	return e.Status >= 400 && e.Status < 500 && e.Status != http.StatusTooManyRequests
}

// AggregatesFetcher returns a ticker's 1-minute bars within [from, to].
type AggregatesFetcher interface {
	MinuteAggregates(ctx context.Context, ticker string, from, to time.Time) ([]models.Bar, error)
}

// Client is a minimal Polygon aggregates client.
type Client struct {
	client      *http.Client
	rateLimiter *rate.Limiter
	baseURL     string
	apiKey      string
	logger      logrus.FieldLogger
}

// NewClient creates a client. An empty baseURL selects DefaultBaseURL.
func NewClient(baseURL, apiKey string, timeout time.Duration, logger logrus.FieldLogger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Client{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		logger:  logger,
	}
}

// WithRateLimit caps outgoing requests at perSecond with the given burst.
// A non-positive perSecond removes the limit.
func (c *Client) WithRateLimit(perSecond float64, burst int) *Client {
	if perSecond <= 0 {
		c.rateLimiter = nil
		return c
	}
	if burst < 1 {
		burst = 1
	}
	c.rateLimiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	return c
}

// WithHTTPClient swaps the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.client = hc
	return c
}

// MinuteAggregates implements AggregatesFetcher, following next_url pages.
func (c *Client) MinuteAggregates(ctx context.Context, ticker string, from, to time.Time) ([]models.Bar, error) {
	endpoint, err := c.aggregatesURL(ticker, from.UnixMilli(), to.UnixMilli())
	if err != nil {
		return nil, err
	}

	var bars []models.Bar
	for endpoint != "" {
		var page aggregatesResponse
		if err := c.getJSON(ctx, endpoint, &page); err != nil {
			return nil, fmt.Errorf("aggregates %s: %w", ticker, err)
		}
		switch page.Status {
		case "OK", "DELAYED":
		default:
			return nil, fmt.Errorf("aggregates %s: API status not OK: %s", ticker, page.Status)
		}
		for _, r := range page.Results {
			bars = append(bars, r.toBar())
		}
		endpoint = ""
		if page.NextURL != "" {
			endpoint, err = c.withKey(page.NextURL)
			if err != nil {
				return nil, err
			}
		}
	}
	c.logger.WithFields(logrus.Fields{"ticker": ticker, "bars": len(bars)}).Debug("Fetched option aggregates")
	return bars, nil
}

func (c *Client) aggregatesURL(ticker string, fromMillis, toMillis int64) (string, error) {
	raw := fmt.Sprintf("%s/v2/aggs/ticker/%s/range/1/minute/%d/%d", c.baseURL, url.PathEscape(ticker), fromMillis, toMillis)
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse URL: %w", err)
	}
	q := u.Query()
	q.Set("adjusted", "true")
	q.Set("limit", strconv.Itoa(maxLimit))
	q.Set("sort", "asc")
	q.Set("apiKey", c.apiKey)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Client) withKey(next string) (string, error) {
	u, err := url.Parse(next)
	if err != nil {
		return "", fmt.Errorf("parse next_url: %w", err)
	}
	q := u.Query()
	q.Set("apiKey", c.apiKey)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	if c.rateLimiter != nil {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return err
	}
	req.Header.Add("Accept", "application/json")
	req.Header.Add("User-Agent", "zerotheta/1.0 (+polygon)")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.WithError(err).Debug("Failed to close response body")
		}
	}()

	if resp.StatusCode != http.StatusOK {
		body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if err != nil {
			return &APIError{Status: resp.StatusCode, Body: "failed to read error body"}
		}
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			return &APIError{Status: resp.StatusCode, Body: fmt.Sprintf("%s (retry-after: %s)", string(body), ra)}
		}
		return &APIError{Status: resp.StatusCode, Body: string(body)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return fmt.Errorf("parse JSON: %w", err)
	}
	return nil
}

// Ensure Client implements AggregatesFetcher at compile time.
var _ AggregatesFetcher = (*Client)(nil)
