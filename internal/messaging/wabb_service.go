// Package messaging provides the WABB webhook-automation delivery service.
//
// WABB relays outbound WhatsApp messages through a webhook catch URL and
// delivers inbound messages to our /webhook endpoint, which emits them into
// this service's responses channel.
package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/CampusPe/ResumeBot/internal/models"
	"github.com/cenkalti/backoff/v4"
)

// WABB client configuration defaults.
const (
	// DefaultWABBTimeout bounds a single relay request.
	DefaultWABBTimeout = 15 * time.Second
	// DefaultWABBMaxElapsed bounds the total retry budget for one send.
	DefaultWABBMaxElapsed = 45 * time.Second
)

// WABBOpts holds configuration options for the WABB service.
type WABBOpts struct {
	WebhookURL string
	HTTPClient *http.Client
}

// WABBOption defines a configuration option for the WABB service.
type WABBOption func(*WABBOpts)

// WithWebhookURL sets the WABB webhook-automation catch URL.
func WithWebhookURL(url string) WABBOption {
	return func(o *WABBOpts) { o.WebhookURL = url }
}

// WithHTTPClient overrides the HTTP client used for relay requests.
func WithHTTPClient(c *http.Client) WABBOption {
	return func(o *WABBOpts) { o.HTTPClient = c }
}

// WABBService implements Service by POSTing outbound messages to the WABB
// relay. Transient relay failures are retried with capped exponential backoff.
type WABBService struct {
	webhookURL string
	httpClient *http.Client
	receipts   chan models.Receipt
	responses  chan models.Response
	mu         sync.RWMutex
	stopped    bool
}

// NewWABBService creates a WABB-backed messaging service.
func NewWABBService(opts ...WABBOption) (*WABBService, error) {
	var cfg WABBOpts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.WebhookURL == "" {
		return nil, fmt.Errorf("WABB webhook URL must be provided")
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: DefaultWABBTimeout}
	}
	slog.Debug("WABBService created", "webhookURL_set", cfg.WebhookURL != "")
	return &WABBService{
		webhookURL: cfg.WebhookURL,
		httpClient: cfg.HTTPClient,
		receipts:   make(chan models.Receipt, DefaultChannelBufferSize),
		responses:  make(chan models.Response, DefaultChannelBufferSize),
	}, nil
}

// ValidateAndCanonicalizeRecipient reduces a recipient to digits and validates it.
func (s *WABBService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	canonical, err := CanonicalizePhoneNumber(recipient)
	if err != nil {
		slog.Debug("WABBService recipient validation failed", "error", err, "recipient", recipient)
		return "", err
	}
	return canonical, nil
}

// Start is a no-op: inbound WABB messages arrive via the HTTP webhook.
func (s *WABBService) Start(ctx context.Context) error {
	return nil
}

// Stop closes channels and stops the service.
func (s *WABBService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	s.stopped = true
	close(s.receipts)
	close(s.responses)
	slog.Info("WABBService stopped and channels closed")
	return nil
}

// SendMessage relays a message through the WABB webhook and emits a receipt.
func (s *WABBService) SendMessage(ctx context.Context, to string, body string) error {
	s.mu.RLock()
	if s.stopped {
		s.mu.RUnlock()
		return ErrServiceStopped
	}
	s.mu.RUnlock()

	canonicalTo, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		slog.Error("WABBService SendMessage validation error", "error", err, "to", to)
		return err
	}
	if body == "" {
		return models.ErrEmptyMessage
	}

	payload, err := json.Marshal(models.WebhookMessage{Phone: canonicalTo, Message: body})
	if err != nil {
		return fmt.Errorf("failed to marshal WABB payload: %w", err)
	}

	operation := func() error {
		return s.relay(ctx, payload)
	}
	policy := backoff.WithContext(newRelayBackoff(), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		slog.Error("WABBService relay failed after retries", "error", err, "to", canonicalTo)
		s.safeEmitReceipt(models.Receipt{To: canonicalTo, Status: models.MessageStatusFailed, Time: time.Now().Unix()})
		return fmt.Errorf("failed to send message to %s: %w", canonicalTo, err)
	}

	s.safeEmitReceipt(models.Receipt{To: canonicalTo, Status: models.MessageStatusSent, Time: time.Now().Unix()})
	slog.Debug("WABBService message relayed", "to", canonicalTo, "body_length", len(body))
	return nil
}

// relay performs one POST to the catch URL. 4xx responses are permanent.
func (s *WABBService) relay(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("failed to build WABB request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("WABB relay request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return backoff.Permanent(fmt.Errorf("WABB relay rejected request: status %d", resp.StatusCode))
	default:
		return fmt.Errorf("WABB relay returned status %d", resp.StatusCode)
	}
}

// EmitResponse pushes an inbound webhook message into the responses channel.
// Called by the HTTP layer when WABB delivers a user message.
func (s *WABBService) EmitResponse(response models.Response) {
	s.mu.RLock()
	stopped := s.stopped
	s.mu.RUnlock()
	if stopped {
		slog.Warn("WABBService dropping inbound response (service stopped)", "from", response.From)
		return
	}

	select {
	case s.responses <- response:
		slog.Debug("WABBService emitted inbound response", "from", response.From)
	case <-time.After(DefaultChannelTimeout):
		slog.Warn("WABBService responses channel blocked, dropping message", "from", response.From)
	}
}

// Receipts returns the channel of delivery receipts.
func (s *WABBService) Receipts() <-chan models.Receipt {
	return s.receipts
}

// Responses returns the channel of inbound user messages.
func (s *WABBService) Responses() <-chan models.Response {
	return s.responses
}

func (s *WABBService) safeEmitReceipt(receipt models.Receipt) {
	s.mu.RLock()
	stopped := s.stopped
	s.mu.RUnlock()
	if stopped {
		return
	}
	select {
	case s.receipts <- receipt:
	case <-time.After(DefaultChannelTimeout):
	}
}

// newRelayBackoff builds the retry policy for relay sends.
func newRelayBackoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = DefaultWABBMaxElapsed
	return b
}
