// Package strava implements the fitness data source client. All calls
// carry a per-rider bearer token supplied by the external OAuth
// collaborator; an expired token is fatal for the current operation.
package strava

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/switchbacklabs/towers-tt/internal/conf"
	"github.com/switchbacklabs/towers-tt/internal/errors"
	"github.com/switchbacklabs/towers-tt/internal/logging"
)

// Package-level logger specific to the strava service
var (
	logger          *slog.Logger
	serviceLevelVar = new(slog.LevelVar)
	closeLogger     func() error
)

func init() {
	var err error
	serviceLevelVar.Set(slog.LevelDebug)

	logger, closeLogger, err = logging.NewFileLogger("logs/strava.log", "strava", serviceLevelVar)
	if err != nil {
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: serviceLevelVar})
		logger = slog.New(fbHandler).With("service", "strava")
		closeLogger = func() error { return nil }
	}
}

// Config holds client configuration.
type Config struct {
	BaseURL     string
	Timeout     time.Duration
	CacheTTL    time.Duration
	RateLimitMS int
	PerPage     int
	Retry       RetryPolicy
}

// DefaultConfig returns sensible client defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL:     "https://www.strava.com/api/v3",
		Timeout:     30 * time.Second,
		CacheTTL:    time.Hour,
		RateLimitMS: 100,
		PerPage:     200,
		Retry:       DefaultRetryPolicy(),
	}
}

// ConfigFromSettings builds a client Config from application settings.
func ConfigFromSettings(s *conf.StravaSettings) Config {
	cfg := DefaultConfig()
	if s.BaseURL != "" {
		cfg.BaseURL = s.BaseURL
	}
	if s.Timeout > 0 {
		cfg.Timeout = s.Timeout
	}
	if s.CacheTTL > 0 {
		cfg.CacheTTL = s.CacheTTL
	}
	if s.RateLimitMS > 0 {
		cfg.RateLimitMS = s.RateLimitMS
	}
	if s.PerPage > 0 {
		cfg.PerPage = s.PerPage
	}
	if s.Retry.MaxAttempts > 0 {
		cfg.Retry = RetryPolicy{
			MaxAttempts: s.Retry.MaxAttempts,
			Backoff:     LinearBackoff(time.Duration(s.Retry.BackoffSeconds) * time.Second),
		}
	}
	return cfg
}

// Client provides methods for interacting with the fitness API.
type Client struct {
	config      Config
	httpClient  *http.Client
	detailCache *cache.Cache
	rateLimiter *time.Ticker
	mu          sync.Mutex
	lastRequest time.Time

	metrics struct {
		apiCalls    int64
		cacheHits   int64
		cacheMisses int64
		apiErrors   int64
		mu          sync.RWMutex
	}
}

// NewClient creates a new API client.
func NewClient(config Config) (*Client, error) {
	if config.BaseURL == "" {
		config.BaseURL = DefaultConfig().BaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	if config.CacheTTL == 0 {
		config.CacheTTL = DefaultConfig().CacheTTL
	}
	if config.RateLimitMS == 0 {
		config.RateLimitMS = DefaultConfig().RateLimitMS
	}
	if config.PerPage == 0 {
		config.PerPage = DefaultConfig().PerPage
	}
	if config.Retry.MaxAttempts == 0 {
		config.Retry = DefaultRetryPolicy()
	}

	client := &Client{
		config:      config,
		httpClient:  &http.Client{Timeout: config.Timeout},
		detailCache: cache.New(config.CacheTTL, config.CacheTTL*2),
		rateLimiter: time.NewTicker(time.Duration(config.RateLimitMS) * time.Millisecond),
	}

	logger.Info("strava client initialized",
		"base_url", config.BaseURL,
		"cache_ttl", config.CacheTTL,
		"rate_limit_ms", config.RateLimitMS,
		"per_page", config.PerPage)

	return client, nil
}

// Close cleans up client resources.
func (c *Client) Close() {
	c.rateLimiter.Stop()
	if closeLogger != nil {
		if err := closeLogger(); err != nil {
			logging.Error("error closing strava logger", "error", err)
		}
	}
}

// ListActivityIDs returns the ids of the rider's activities whose start
// time falls within [start, end], exhausting pagination until a short
// page signals the end.
func (c *Client) ListActivityIDs(ctx context.Context, accessToken string, start, end time.Time) ([]int64, error) {
	var ids []int64
	for page := 1; ; page++ {
		url := fmt.Sprintf("%s/athlete/activities?after=%d&before=%d&page=%d&per_page=%d",
			c.config.BaseURL, start.Unix(), end.Unix(), page, c.config.PerPage)

		var activities []SummaryActivity
		err := c.config.Retry.Do(ctx, func() error {
			return c.doRequest(ctx, accessToken, url, &activities)
		})
		if err != nil {
			return nil, err
		}

		for i := range activities {
			ids = append(ids, activities[i].ID)
		}
		if len(activities) < c.config.PerPage {
			break
		}
	}
	return ids, nil
}

// GetActivityDetail fetches one activity with all segment efforts
// included. Details are immutable upstream, so results are cached.
func (c *Client) GetActivityDetail(ctx context.Context, accessToken string, activityID int64) (*DetailedActivity, error) {
	cacheKey := fmt.Sprintf("activity:%d", activityID)
	if cached, found := c.detailCache.Get(cacheKey); found {
		if detail, ok := cached.(*DetailedActivity); ok {
			c.metrics.mu.Lock()
			c.metrics.cacheHits++
			c.metrics.mu.Unlock()
			return detail, nil
		}
	}
	c.metrics.mu.Lock()
	c.metrics.cacheMisses++
	c.metrics.mu.Unlock()

	url := fmt.Sprintf("%s/activities/%d?include_all_efforts=true", c.config.BaseURL, activityID)

	var detail DetailedActivity
	err := c.config.Retry.Do(ctx, func() error {
		return c.doRequest(ctx, accessToken, url, &detail)
	})
	if err != nil {
		return nil, err
	}

	c.detailCache.Set(cacheKey, &detail, cache.DefaultExpiration)
	return &detail, nil
}

// ListSegmentEffortHistory pages through the rider's historical efforts
// on one segment since the given date. The athlete-scoped endpoint is
// tried first; on total failure the per-segment listing filtered by
// athlete is used instead.
func (c *Client) ListSegmentEffortHistory(ctx context.Context, accessToken string, athleteID, segmentID int64, since time.Time) ([]SegmentEffort, error) {
	efforts, primaryErr := c.pageEfforts(ctx, accessToken, func(page int) string {
		return fmt.Sprintf("%s/athletes/%d/segment_efforts?segment_id=%d&start_date_local=%s&page=%d&per_page=%d",
			c.config.BaseURL, athleteID, segmentID,
			since.UTC().Format(time.RFC3339), page, c.config.PerPage)
	})
	if primaryErr == nil {
		return efforts, nil
	}

	logger.Warn("primary effort-history endpoint failed, trying per-segment fallback",
		"athlete_id", athleteID,
		"segment_id", segmentID,
		"error", primaryErr.Error())

	efforts, fallbackErr := c.pageEfforts(ctx, accessToken, func(page int) string {
		return fmt.Sprintf("%s/segments/%d/all_efforts?athlete_id=%d&start_date_local=%s&page=%d&per_page=%d",
			c.config.BaseURL, segmentID, athleteID,
			since.UTC().Format(time.RFC3339), page, c.config.PerPage)
	})
	if fallbackErr != nil {
		return nil, errors.Newf("both effort-history endpoints failed: %w", errors.Join(primaryErr, fallbackErr)).
			Component("strava").
			Category(errors.CategoryNetwork).
			Context("athlete_id", athleteID).
			Context("segment_id", segmentID).
			Build()
	}
	return efforts, nil
}

// pageEfforts iterates one effort-listing endpoint page by page until a
// short or empty page.
func (c *Client) pageEfforts(ctx context.Context, accessToken string, urlForPage func(page int) string) ([]SegmentEffort, error) {
	var all []SegmentEffort
	for page := 1; ; page++ {
		var efforts []SegmentEffort
		err := c.config.Retry.Do(ctx, func() error {
			return c.doRequest(ctx, accessToken, urlForPage(page), &efforts)
		})
		if err != nil {
			return nil, err
		}
		all = append(all, efforts...)
		if len(efforts) < c.config.PerPage {
			break
		}
	}
	return all, nil
}

// doRequest performs one GET with rate limiting and bearer auth, decoding
// the JSON response into result.
func (c *Client) doRequest(ctx context.Context, accessToken, url string, result any) error {
	c.mu.Lock()
	<-c.rateLimiter.C
	c.lastRequest = time.Now()
	c.mu.Unlock()

	c.metrics.mu.Lock()
	c.metrics.apiCalls++
	c.metrics.mu.Unlock()

	reqCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return errors.Newf("failed to create HTTP request: %w", err).
			Category(errors.CategoryNetwork).
			Context("url", url).
			Component("strava").
			Build()
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.countError()
		logger.Error("API request failed", "url", url, "error", err)
		return errors.Newf("HTTP request failed: %w", err).
			Category(errors.CategoryNetwork).
			Context("url", url).
			Component("strava").
			Build()
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		c.countError()
		return errors.Newf("failed to read response body: %w", err).
			Category(errors.CategoryNetwork).
			Context("url", url).
			Context("status_code", resp.StatusCode).
			Component("strava").
			Build()
	}

	if resp.StatusCode >= 400 {
		c.countError()
		var apiErr Error
		_ = json.Unmarshal(bodyBytes, &apiErr)
		apiErr.Status = resp.StatusCode

		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			logger.Error("API authentication failed",
				"status_code", resp.StatusCode,
				"url", url,
				"message", "rider token expired or revoked, re-authentication required")
		} else {
			logger.Warn("API error response",
				"status_code", resp.StatusCode,
				"url", url,
				"api_message", apiErr.Message)
		}

		msg := apiErr.Message
		if msg == "" {
			msg = string(bodyBytes)
		}
		return errors.Newf("API error (status %d): %s", resp.StatusCode, msg).
			Category(categoryForStatus(resp.StatusCode)).
			Context("status_code", resp.StatusCode).
			Context("url", url).
			Component("strava").
			Build()
	}

	if result != nil {
		if err := json.Unmarshal(bodyBytes, result); err != nil {
			logger.Error("failed to parse API response",
				"url", url,
				"response_size", len(bodyBytes),
				"error", err)
			return errors.Newf("failed to parse response: %w", err).
				Category(errors.CategoryParsing).
				Context("url", url).
				Component("strava").
				Build()
		}
	}

	return nil
}

func (c *Client) countError() {
	c.metrics.mu.Lock()
	c.metrics.apiErrors++
	c.metrics.mu.Unlock()
}

// Metrics represents client performance counters.
type Metrics struct {
	APICalls    int64 `json:"api_calls"`
	CacheHits   int64 `json:"cache_hits"`
	CacheMisses int64 `json:"cache_misses"`
	APIErrors   int64 `json:"api_errors"`
}

// GetMetrics returns current client counters.
func (c *Client) GetMetrics() Metrics {
	c.metrics.mu.RLock()
	defer c.metrics.mu.RUnlock()
	return Metrics{
		APICalls:    c.metrics.apiCalls,
		CacheHits:   c.metrics.cacheHits,
		CacheMisses: c.metrics.cacheMisses,
		APIErrors:   c.metrics.apiErrors,
	}
}

// categoryForStatus maps an HTTP status code to an error category. 401
// and 403 mean the rider's token is expired or revoked; those are never
// retried.
func categoryForStatus(statusCode int) errors.ErrorCategory {
	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return errors.CategoryTokenExpired
	case http.StatusTooManyRequests:
		return errors.CategoryRateLimit
	case http.StatusNotFound:
		return errors.CategoryNotFound
	default:
		return errors.CategoryNetwork
	}
}
