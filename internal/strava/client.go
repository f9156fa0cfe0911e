package strava

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/oauth2"
)

const (
	BaseURL = "https://www.strava.com/api/v3"
	WebURL  = "https://www.strava.com"
)

// ErrNotFound is returned when Strava has no such resource (e.g. an activity
// without streams or an original file).
var ErrNotFound = errors.New("strava resource not found")

// APIError is a non-200 response from Strava.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d: %s", e.StatusCode, e.Body)
}

// Temporary reports whether retrying the request may succeed.
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Client is a Strava API client
type Client struct {
	httpClient  *http.Client
	rateLimiter *RateLimiter
	baseURL     string
	webURL      string
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a different API root.
func WithBaseURL(apiURL, webURL string) Option {
	return func(c *Client) {
		c.baseURL = apiURL
		c.webURL = webURL
	}
}

// WithRateLimiter replaces the default Strava rate limiter.
func WithRateLimiter(r *RateLimiter) Option {
	return func(c *Client) { c.rateLimiter = r }
}

// NewClient creates a new Strava API client
func NewClient(tokenSource oauth2.TokenSource, opts ...Option) *Client {
	c := &Client{
		httpClient:  oauth2.NewClient(context.Background(), tokenSource),
		rateLimiter: NewRateLimiter(),
		baseURL:     BaseURL,
		webURL:      WebURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetActivities fetches activities with pagination
// Returns activities after 'after' timestamp, up to 'perPage' results
func (c *Client) GetActivities(ctx context.Context, after time.Time, page, perPage int) ([]Activity, error) {
	params := url.Values{}
	if !after.IsZero() {
		params.Set("after", strconv.FormatInt(after.Unix(), 10))
	}
	params.Set("page", strconv.Itoa(page))
	params.Set("per_page", strconv.Itoa(perPage))

	resp, err := c.get(ctx, c.baseURL+"/athlete/activities", params)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var activities []Activity
	if err := json.NewDecoder(resp.Body).Decode(&activities); err != nil {
		return nil, fmt.Errorf("decoding activities: %w", err)
	}

	return activities, nil
}

// GetActivityStreams fetches detailed stream data for an activity
func (c *Client) GetActivityStreams(ctx context.Context, activityID int64) (*Streams, error) {
	params := url.Values{}
	params.Set("keys", "time,latlng,altitude,velocity_smooth,heartrate,cadence,watts,distance")
	params.Set("key_by_type", "true")

	resp, err := c.get(ctx, fmt.Sprintf("%s/activities/%d/streams", c.baseURL, activityID), params)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var streams Streams
	if err := json.NewDecoder(resp.Body).Decode(&streams); err != nil {
		return nil, fmt.Errorf("decoding streams: %w", err)
	}

	return &streams, nil
}

// GetActivityExport downloads the original file (usually FIT) the activity
// was uploaded from.
func (c *Client) GetActivityExport(ctx context.Context, activityID int64) ([]byte, error) {
	resp, err := c.get(ctx, fmt.Sprintf("%s/activities/%d/export_original", c.webURL, activityID), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading export: %w", err)
	}
	return data, nil
}

// RateLimitStatus returns the current rate limit status
func (c *Client) RateLimitStatus() (shortRemaining, dailyRemaining int) {
	return c.rateLimiter.Status()
}

func (c *Client) get(ctx context.Context, reqURL string, params url.Values) (*http.Response, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	// Update rate limiter from response headers
	c.rateLimiter.UpdateFromHeaders(resp.Header)

	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	return resp, nil
}
