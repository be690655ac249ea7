// Package ghl reads CRM data (contacts, conversations, calendars, users) from
// the GoHighLevel REST API.
package ghl

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

	"github.com/wolfman30/practice-hub/pkg/logging"
)

const (
	defaultBaseURL    = "https://services.leadconnectorhq.com"
	defaultAPIVersion = "2021-07-28"
	defaultTimeout    = 15 * time.Second
	defaultUserAgent  = "practice-hub/0.1"
	maxErrorBody      = 4 << 10
)

// ErrNotConfigured is returned when the client has no API key or location.
var ErrNotConfigured = errors.New("ghl: client not configured")

// Config controls how the client talks to GoHighLevel.
type Config struct {
	BaseURL    string
	APIKey     string
	LocationID string
	Version    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *logging.Logger
}

// Client wraps the GoHighLevel read endpoints. Responses are returned as raw
// JSON so callers can forward them without re-encoding.
type Client struct {
	baseURL    string
	apiKey     string
	locationID string
	version    string
	httpClient *http.Client
	logger     *logging.Logger
}

// APIError is a non-2xx response from GoHighLevel.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ghl: api error %d: %s", e.StatusCode, e.Body)
}

// New creates a Client. Missing credentials are not an error here; requests
// fail with ErrNotConfigured instead so the API can still boot without them.
func New(cfg Config) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	version := strings.TrimSpace(cfg.Version)
	if version == "" {
		version = defaultAPIVersion
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     strings.TrimSpace(cfg.APIKey),
		locationID: strings.TrimSpace(cfg.LocationID),
		version:    version,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Configured reports whether credentials are present.
func (c *Client) Configured() bool {
	return c != nil && c.apiKey != "" && c.locationID != ""
}

// ListContacts returns contacts for the location. query may carry filters
// such as "query", "limit" or "startAfterId".
func (c *Client) ListContacts(ctx context.Context, query url.Values) (json.RawMessage, error) {
	return c.get(ctx, "/contacts/", c.withLocation(query))
}

// SearchConversations searches conversations for the location.
func (c *Client) SearchConversations(ctx context.Context, query url.Values) (json.RawMessage, error) {
	return c.get(ctx, "/conversations/search", c.withLocation(query))
}

// ListCalendars returns the location's calendars.
func (c *Client) ListCalendars(ctx context.Context) (json.RawMessage, error) {
	return c.get(ctx, "/calendars/", c.withLocation(nil))
}

// ListUsers returns the location's staff users.
func (c *Client) ListUsers(ctx context.Context) (json.RawMessage, error) {
	return c.get(ctx, "/users/", c.withLocation(nil))
}

func (c *Client) withLocation(query url.Values) url.Values {
	q := url.Values{}
	for k, v := range query {
		q[k] = append([]string(nil), v...)
	}
	q.Set("locationId", c.locationID)
	return q
}

func (c *Client) get(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	fullURL := c.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("ghl: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Version", c.version)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", defaultUserAgent)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("ghl: http error: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("ghl: read response: %w", err)
	}
	c.logger.Debug("ghl request", "path", path, "status", resp.StatusCode, "duration_ms", time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body := string(data)
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Body: body}
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("ghl: %s returned invalid json", path)
	}
	return json.RawMessage(data), nil
}
