package geocode

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"media-index/internal/logging"
	"media-index/internal/metrics"
)

// Config configures the reverse-geocoding client.
type Config struct {
	BaseURL    string
	UserAgent  string
	Interval   time.Duration
	Timeout    time.Duration
	MaxRetries int
}

// DefaultConfig returns settings matching the public Nominatim usage policy.
func DefaultConfig() Config {
	return Config{
		BaseURL:    "https://nominatim.openstreetmap.org",
		UserAgent:  "media-index/1.0",
		Interval:   time.Second,
		Timeout:    10 * time.Second,
		MaxRetries: 3,
	}
}

// Client performs rate-limited reverse-geocoding requests.
type Client struct {
	http       *resty.Client
	gate       *Gate
	maxRetries int

	// sleep waits out the backoff between attempts; replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient creates a client from cfg. Zero fields fall back to
// DefaultConfig values, except Interval: zero disables the gate.
func NewClient(cfg Config) *Client {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}

	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetHeader("User-Agent", cfg.UserAgent).
		SetHeader("Accept", "application/json").
		SetTimeout(cfg.Timeout).
		SetRetryCount(0)

	return &Client{
		http:       httpClient,
		gate:       NewGate(cfg.Interval),
		maxRetries: cfg.MaxRetries,
		sleep:      sleepContext,
	}
}

// Reverse resolves coordinates to a location. Rate-limit responses and
// timeouts are retried with exponential backoff (1s, 2s, 4s, ...); any other
// failure returns ErrUnavailable immediately.
func (c *Client) Reverse(ctx context.Context, lat, lon float64) (Location, error) {
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		loc, retry, err := c.reverseOnce(ctx, lat, lon)
		if err == nil {
			return loc, nil
		}
		if !retry || ctx.Err() != nil {
			logging.Debug("Reverse geocoding %.5f,%.5f failed: %v", lat, lon, err)
			return Location{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}

		if attempt == c.maxRetries-1 {
			break
		}
		backoff := time.Duration(math.Pow(2, float64(attempt))) * time.Second
		logging.Debug("Reverse geocoding %.5f,%.5f retrying in %v (attempt %d/%d): %v",
			lat, lon, backoff, attempt+1, c.maxRetries, err)
		if err := c.sleep(ctx, backoff); err != nil {
			return Location{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}

	logging.Warn("Reverse geocoding %.5f,%.5f gave up after %d attempts", lat, lon, c.maxRetries)
	return Location{}, ErrUnavailable
}

// reverseOnce performs a single gated request. retry reports whether the
// failure is worth another attempt.
func (c *Client) reverseOnce(ctx context.Context, lat, lon float64) (loc Location, retry bool, err error) {
	if err := c.gate.Wait(ctx); err != nil {
		return Location{}, false, err
	}

	start := time.Now()
	var res nominatimResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"lat":            strconv.FormatFloat(lat, 'f', -1, 64),
			"lon":            strconv.FormatFloat(lon, 'f', -1, 64),
			"format":         "json",
			"addressdetails": "1",
			"zoom":           "18",
		}).
		SetResult(&res).
		ForceContentType("application/json").
		Get("/reverse")
	metrics.GeocodeRequestDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		if isTimeout(err) {
			metrics.GeocodeRequestsTotal.WithLabelValues("timeout").Inc()
			return Location{}, true, fmt.Errorf("request timed out: %w", err)
		}
		metrics.GeocodeRequestsTotal.WithLabelValues("error").Inc()
		return Location{}, false, fmt.Errorf("request failed: %w", err)
	}

	switch {
	case resp.StatusCode() == http.StatusTooManyRequests:
		metrics.GeocodeRequestsTotal.WithLabelValues("rate_limited").Inc()
		return Location{}, true, errors.New("rate limited by geocoding service")
	case resp.StatusCode() != http.StatusOK:
		metrics.GeocodeRequestsTotal.WithLabelValues("error").Inc()
		return Location{}, false, fmt.Errorf("geocoding service returned status %d", resp.StatusCode())
	case res.Error != "":
		metrics.GeocodeRequestsTotal.WithLabelValues("error").Inc()
		return Location{}, false, fmt.Errorf("geocoding service error: %s", res.Error)
	}

	metrics.GeocodeRequestsTotal.WithLabelValues("success").Inc()
	return res.location(), false, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
