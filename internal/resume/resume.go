// Package resume provides the client for the CampusPe resume generation service.
//
// Generation is an opaque, potentially slow, fallible operation. The client
// walks an ordered chain of generation endpoints: the primary endpoint first,
// then each fallback in sequence, retrying transient failures per endpoint.
// The first endpoint that produces a successful result wins.
package resume

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/CampusPe/ResumeBot/internal/models"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
)

// Client configuration defaults.
const (
	// DefaultRequestTimeout bounds a single generation request. Generation
	// can take tens of seconds, so this is deliberately generous.
	DefaultRequestTimeout = 90 * time.Second
	// DefaultRetryMaxElapsed bounds the retry budget per endpoint.
	DefaultRetryMaxElapsed = 30 * time.Second
)

// Opts holds configuration options for the generation client.
type Opts struct {
	Endpoint          string
	FallbackEndpoints []string
	APIKey            string
	HTTPClient        *http.Client
}

// Option defines a configuration option for the generation client.
type Option func(*Opts)

// WithEndpoint sets the primary generation endpoint URL.
func WithEndpoint(url string) Option {
	return func(o *Opts) { o.Endpoint = url }
}

// WithFallbackEndpoints sets the ordered fallback endpoints tried after the primary.
func WithFallbackEndpoints(urls ...string) Option {
	return func(o *Opts) { o.FallbackEndpoints = urls }
}

// WithAPIKey sets the bearer token sent with generation requests.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithHTTPClient overrides the HTTP client used for generation requests.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) { o.HTTPClient = c }
}

// Client calls the platform's resume generation endpoints.
type Client struct {
	endpoints  []string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a generation client from the provided options.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("generation endpoint must be provided")
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: DefaultRequestTimeout}
	}
	endpoints := append([]string{cfg.Endpoint}, cfg.FallbackEndpoints...)
	slog.Debug("Resume client created", "endpoints", len(endpoints), "apiKey_set", cfg.APIKey != "")
	return &Client{
		endpoints:  endpoints,
		apiKey:     cfg.APIKey,
		httpClient: cfg.HTTPClient,
	}, nil
}

// Generate runs the generation request through the endpoint chain. Each
// request carries a correlation ID so backend logs can be matched to one
// conversation attempt. The last failure is returned when every endpoint
// fails.
func (c *Client) Generate(ctx context.Context, req models.GenerationRequest) (models.GenerationResult, error) {
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return models.GenerationResult{}, fmt.Errorf("failed to marshal generation request: %w", err)
	}

	var lastErr error
	for i, endpoint := range c.endpoints {
		slog.Debug("Resume client trying endpoint", "index", i, "requestID", req.RequestID)
		result, err := c.generateAt(ctx, endpoint, payload)
		if err == nil {
			slog.Info("Resume generation succeeded", "endpoint_index", i, "requestID", req.RequestID, "file", result.FileName)
			return result, nil
		}
		lastErr = err
		slog.Warn("Resume generation endpoint failed", "endpoint_index", i, "requestID", req.RequestID, "error", err)
		if ctx.Err() != nil {
			break
		}
	}
	return models.GenerationResult{}, fmt.Errorf("all generation endpoints failed: %w", lastErr)
}

// generateAt posts the request to one endpoint, retrying transient failures.
func (c *Client) generateAt(ctx context.Context, endpoint string, payload []byte) (models.GenerationResult, error) {
	var result models.GenerationResult
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to build generation request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("generation request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return fmt.Errorf("generation service returned status %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("generation service rejected request: status %d", resp.StatusCode))
		}
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode generation response: %w", err))
		}
		return nil
	}

	policy := backoff.WithContext(newGenerationBackoff(), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return models.GenerationResult{}, err
	}
	// A clean "success: false" is a definitive answer, not a transport
	// failure; it is surfaced as a result so the flow can relay the reported
	// reason instead of trying the next endpoint.
	return result, nil
}

// newGenerationBackoff builds the per-endpoint retry policy.
func newGenerationBackoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 1 * time.Second
	b.MaxInterval = 8 * time.Second
	b.MaxElapsedTime = DefaultRetryMaxElapsed
	return b
}
