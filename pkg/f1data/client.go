// Package f1data serves Formula 1 schedules and session results from the
// public Jolpica/Ergast feed, with optional caching between refreshes.
package f1data

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the Jolpica mirror of the retired Ergast API.
	DefaultBaseURL = "https://api.jolpi.ca/ergast/f1"

	defaultTimeout  = 15 * time.Second
	defaultCacheTTL = 10 * time.Minute

	// firstSeason is the oldest season the catalog exposes.
	firstSeason = 2018
)

// Client fetches season data over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	cache      Cache
	cacheTTL   time.Duration
	log        *zap.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL overrides the feed endpoint.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient supplies a custom HTTP client.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithRateLimit sets the request rate limit (requests per second and burst).
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithCache stores feed responses in cache for ttl.
func WithCache(cache Cache, ttl time.Duration) ClientOption {
	return func(c *Client) {
		c.cache = cache
		if ttl > 0 {
			c.cacheTTL = ttl
		}
	}
}

// WithLogger attaches a logger for cache diagnostics.
func WithLogger(log *zap.Logger) ClientOption {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// NewClient creates a feed client. The default rate limit stays under the
// public mirror's published quota.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter:  rate.NewLimiter(3, 2),
		cacheTTL: defaultCacheTTL,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Schedule returns every round of the given season in calendar order.
func (c *Client) Schedule(ctx context.Context, year int) ([]Event, error) {
	key := fmt.Sprintf("f1:schedule:%d", year)
	var events []Event
	if c.cached(ctx, key, &events) {
		return events, nil
	}

	var envelope mrDataEnvelope
	if err := c.get(ctx, fmt.Sprintf("/%d.json", year), &envelope); err != nil {
		return nil, err
	}
	events = make([]Event, 0, len(envelope.MRData.RaceTable.Races))
	for _, race := range envelope.MRData.RaceTable.Races {
		if ev, ok := race.toEvent(); ok {
			events = append(events, ev)
		}
	}
	c.store(ctx, key, events)
	return events, nil
}

// Qualifying returns the qualifying classification for one round. Rounds
// that have not run yet come back empty.
func (c *Client) Qualifying(ctx context.Context, year, round int) ([]QualifyingResult, error) {
	key := fmt.Sprintf("f1:qualifying:%d:%d", year, round)
	var results []QualifyingResult
	if c.cached(ctx, key, &results) {
		return results, nil
	}

	var envelope mrDataEnvelope
	if err := c.get(ctx, fmt.Sprintf("/%d/%d/qualifying.json", year, round), &envelope); err != nil {
		return nil, err
	}
	results = []QualifyingResult{}
	for _, race := range envelope.MRData.RaceTable.Races {
		for _, q := range race.QualifyingResults {
			if r, ok := q.toResult(); ok {
				results = append(results, r)
			}
		}
	}
	c.store(ctx, key, results)
	return results, nil
}

// AvailableYears lists the seasons the feed is queried for, oldest first.
func (c *Client) AvailableYears() []int {
	current := time.Now().Year()
	years := make([]int, 0, current-firstSeason+1)
	for y := firstSeason; y <= current; y++ {
		years = append(years, y)
	}
	return years
}

func (c *Client) cached(ctx context.Context, key string, dst any) bool {
	if c.cache == nil {
		return false
	}
	hit, err := c.cache.Get(ctx, key, dst)
	if err != nil {
		c.log.Debug("feed cache read failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return hit
}

func (c *Client) store(ctx context.Context, key string, v any) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Set(ctx, key, v, c.cacheTTL); err != nil {
		c.log.Debug("feed cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *Client) get(ctx context.Context, path string, result any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("f1 get %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("f1 get %s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
