// Package profile provides the client for CampusPe user profile lookups.
//
// The flow only uses it to decide how to word the job-description prompt; a
// lookup failure or a negative result never blocks flow progression.
package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// DefaultRequestTimeout bounds a single lookup request.
const DefaultRequestTimeout = 10 * time.Second

// Opts holds configuration options for the profile client.
type Opts struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// Option defines a configuration option for the profile client.
type Option func(*Opts)

// WithBaseURL sets the platform API base URL.
func WithBaseURL(u string) Option {
	return func(o *Opts) { o.BaseURL = u }
}

// WithAPIKey sets the bearer token sent with lookup requests.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithHTTPClient overrides the HTTP client used for lookups.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) { o.HTTPClient = c }
}

// Client queries the platform's profile store.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a profile client from the provided options.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("platform base URL must be provided")
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: DefaultRequestTimeout}
	}
	return &Client{baseURL: cfg.BaseURL, apiKey: cfg.APIKey, httpClient: cfg.HTTPClient}, nil
}

// Exists reports whether a registered profile exists for the email.
func (c *Client) Exists(ctx context.Context, email string) (bool, error) {
	endpoint := fmt.Sprintf("%s/api/students/exists?email=%s", c.baseURL, url.QueryEscape(email))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, fmt.Errorf("failed to build profile lookup request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("profile lookup request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("profile lookup returned status %d", resp.StatusCode)
	}

	var body struct {
		Exists bool `json:"exists"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, fmt.Errorf("failed to decode profile lookup response: %w", err)
	}
	slog.Debug("Profile lookup completed", "email", email, "exists", body.Exists)
	return body.Exists, nil
}
