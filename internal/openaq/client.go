package openaq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const DefaultBaseURL = "https://api.openaq.org/v3"

var ErrMissingAPIKey = errors.New("openaq: api key is required")

// APIError is returned for any non-2xx response.
type APIError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("openaq %s returned %d: %s", e.URL, e.StatusCode, e.Body)
}

type Client struct {
	apiKey  string
	baseURL string
	h       *http.Client
	logger  *slog.Logger
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient replaces the underlying client. The caller keeps ownership
// of its transport; Close still releases idle connections.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.h = h }
}

// WithTimeout sets a per-request timeout. Zero keeps the client default.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.h.Timeout = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func New(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	c := &Client{
		apiKey:  apiKey,
		baseURL: DefaultBaseURL,
		h:       &http.Client{},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if _, err := url.Parse(c.baseURL); err != nil {
		return nil, fmt.Errorf("openaq: base url %q: %w", c.baseURL, err)
	}
	return c, nil
}

// ListLocations returns the sensor-bearing locations within q.Radius of q.Center.
// Only the first page is requested.
func (c *Client) ListLocations(ctx context.Context, q Query) ([]Location, error) {
	params := url.Values{}
	params.Set("coordinates", formatCoord(q.Center.Latitude)+","+formatCoord(q.Center.Longitude))
	params.Set("radius", strconv.Itoa(q.Radius))

	var out []Location
	if err := c.get(ctx, "/locations", params, &out); err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}
	return out, nil
}

// LatestByLocation returns the most recent measurement of every sensor at the location.
func (c *Client) LatestByLocation(ctx context.Context, locationID int) ([]Measurement, error) {
	var out []Measurement
	path := "/locations/" + strconv.Itoa(locationID) + "/latest"
	if err := c.get(ctx, path, nil, &out); err != nil {
		return nil, fmt.Errorf("latest for location %d: %w", locationID, err)
	}
	return out, nil
}

// Close releases idle connections held by the client.
func (c *Client) Close() {
	c.h.CloseIdleConnections()
}

type envelope struct {
	Results json.RawMessage `json:"results"`
}

func (c *Client) get(ctx context.Context, path string, params url.Values, results any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)

	start := time.Now()
	resp, err := c.h.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Warn("close response body", "url", u, "error", err)
		}
	}()

	c.logger.Debug("openaq request",
		"url", u,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{StatusCode: resp.StatusCode, URL: u, Body: string(b)}
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if len(env.Results) == 0 || string(env.Results) == "null" {
		return fmt.Errorf("response from %s has no results", u)
	}
	if err := json.Unmarshal(env.Results, results); err != nil {
		return fmt.Errorf("decode results: %w", err)
	}
	return nil
}

func formatCoord(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
