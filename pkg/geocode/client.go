// Package geocode resolves free-text place names to coordinates via the
// Nominatim search API.
package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/liability-cli/internal/resilience"
)

const (
	defaultBaseURL   = "https://nominatim.openstreetmap.org"
	defaultUserAgent = "liability-cli/1.0"
	defaultTimeout   = 10 * time.Second
)

// ErrNoResult is returned when the search API has no match for the query.
var ErrNoResult = eris.New("geocode: no result")

// Client resolves a place name to at most one coordinate pair.
type Client interface {
	Search(ctx context.Context, query string) (*Result, error)
}

// Result is the first match returned for a query.
type Result struct {
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	DisplayName string  `json:"display_name,omitempty"`
	Source      string  `json:"source"` // "nominatim" or "cache"
}

// Option configures the Nominatim client.
type Option func(*nominatim)

// WithBaseURL overrides the Nominatim endpoint root.
func WithBaseURL(u string) Option {
	return func(n *nominatim) {
		if u != "" {
			n.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithUserAgent sets the User-Agent header required by the Nominatim usage policy.
func WithUserAgent(ua string) Option {
	return func(n *nominatim) {
		if ua != "" {
			n.userAgent = ua
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(n *nominatim) {
		n.httpClient = hc
	}
}

// WithTimeout bounds each Search call, retries included.
func WithTimeout(d time.Duration) Option {
	return func(n *nominatim) {
		if d > 0 {
			n.timeout = d
		}
	}
}

// WithRateLimit sets the maximum requests per second. Nominatim allows 1.
func WithRateLimit(rps float64) Option {
	return func(n *nominatim) {
		if rps > 0 {
			burst := int(rps)
			if burst < 1 {
				burst = 1
			}
			n.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

// WithMaxAttempts sets how many times a transient failure is attempted.
func WithMaxAttempts(n int) Option {
	return func(c *nominatim) {
		if n > 0 {
			c.retry.MaxAttempts = n
		}
	}
}

type nominatim struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	timeout    time.Duration
	limiter    *rate.Limiter
	retry      resilience.RetryConfig
}

// NewClient creates a Nominatim-backed Client.
func NewClient(opts ...Option) Client {
	n := &nominatim{
		baseURL:    defaultBaseURL,
		userAgent:  defaultUserAgent,
		httpClient: &http.Client{},
		timeout:    defaultTimeout,
		limiter:    rate.NewLimiter(1, 1),
		retry:      resilience.SingleAttempt(),
	}
	for _, opt := range opts {
		opt(n)
	}
	n.retry.OnRetry = resilience.RetryLogger("nominatim")
	return n
}

// nominatimRecord is one element of the search response array.
// Coordinates arrive as decimal strings.
type nominatimRecord struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Search geocodes query and returns the first record. All work, including
// retries and rate-limit waits, happens under a single timeout.
func (n *nominatim) Search(ctx context.Context, query string) (*Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, eris.Wrap(ErrNoResult, "empty query")
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	result, err := resilience.Retry(ctx, n.retry, func(ctx context.Context) (*Result, error) {
		return n.search(ctx, query)
	})
	if err != nil {
		return nil, err
	}

	zap.L().Debug("geocode: resolved",
		zap.String("query", query),
		zap.Float64("lat", result.Latitude),
		zap.Float64("lon", result.Longitude),
	)
	return result, nil
}

func (n *nominatim) search(ctx context.Context, query string) (*Result, error) {
	if err := n.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geocode: rate limit")
	}

	params := url.Values{
		"q":      {query},
		"format": {"json"},
		"limit":  {"1"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: build request")
	}
	req.Header.Set("User-Agent", n.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		statusErr := eris.Errorf("geocode: nominatim returned status %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(statusErr, resp.StatusCode)
		}
		return nil, statusErr
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: read body")
	}

	var records []nominatimRecord
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, eris.Wrap(err, "geocode: parse response")
	}
	if len(records) == 0 {
		return nil, eris.Wrapf(ErrNoResult, "query %q", query)
	}

	first := records[0]
	lat, err := strconv.ParseFloat(strings.TrimSpace(first.Lat), 64)
	if err != nil {
		return nil, eris.Wrapf(err, "geocode: parse lat %q", first.Lat)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(first.Lon), 64)
	if err != nil {
		return nil, eris.Wrapf(err, "geocode: parse lon %q", first.Lon)
	}

	return &Result{
		Latitude:    lat,
		Longitude:   lon,
		DisplayName: first.DisplayName,
		Source:      "nominatim",
	}, nil
}
