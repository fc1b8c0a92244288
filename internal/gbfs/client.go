// Package gbfs polls a General Bikeshare Feed Specification system and
// writes station metadata and availability snapshots to the stores.
package gbfs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"station-forecast-lab/internal/observability"
)

// Default configuration values.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0
)

// Feed names.
const (
	FeedStationInformation = "station_information"
	FeedStationStatus      = "station_status"
)

// Client fetches the station feeds over HTTP.
type Client struct {
	infoURL     string
	statusURL   string
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *Client) {
		c.retryDelay = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// NewClient creates a client for the two feed URLs.
func NewClient(stationInfoURL, stationStatusURL string, opts ...ClientOption) *Client {
	c := &Client{
		infoURL:     stationInfoURL,
		statusURL:   stationStatusURL,
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchSnapshot fetches both feeds concurrently.
func (c *Client) FetchSnapshot(ctx context.Context) (*Snapshot, error) {
	var (
		info   envelope[StationInfo]
		status envelope[StationStatus]
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.fetch(ctx, FeedStationInformation, c.infoURL, &info)
	})
	g.Go(func() error {
		return c.fetch(ctx, FeedStationStatus, c.statusURL, &status)
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fetch station data: %w", err)
	}

	return &Snapshot{
		Stations:    info.Data.Stations,
		Statuses:    status.Data.Stations,
		LastUpdated: status.LastUpdated.Time(),
	}, nil
}

// fetch GETs url into target with retries and exponential backoff.
func (c *Client) fetch(ctx context.Context, feed, url string, target any) error {
	start := time.Now()
	defer func() { observability.RecordFeedLatency(feed, time.Since(start).Seconds()) }()

	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("%s: create request: %w", feed, err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("%s: http request: %w", feed, err)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("%s: read response: %w", feed, err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
			lastErr = fmt.Errorf("%s: status %d", feed, resp.StatusCode)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			// client errors are not retried
			return fmt.Errorf("%s: unexpected status %d", feed, resp.StatusCode)
		}

		if err := json.Unmarshal(body, target); err != nil {
			return fmt.Errorf("%s: decode: %w", feed, err)
		}
		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}
