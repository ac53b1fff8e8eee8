// Package twiliowhatsapp wraps the Twilio API for WhatsApp delivery in ResumeBot.
package twiliowhatsapp

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// Sender is the minimal send surface used by the messaging service.
type Sender interface {
	SendMessage(ctx context.Context, to string, body string) error
}

// Opts holds configuration options for the Twilio WhatsApp client.
type Opts struct {
	AccountSID string
	AuthToken  string
	FromWhats  string
}

// Option defines a configuration option for the Twilio WhatsApp client.
type Option func(*Opts)

// WithAccountSID sets the Twilio account SID.
func WithAccountSID(sid string) Option {
	return func(o *Opts) { o.AccountSID = sid }
}

// WithAuthToken sets the Twilio auth token.
func WithAuthToken(token string) Option {
	return func(o *Opts) { o.AuthToken = token }
}

// WithFromNumber sets the sending WhatsApp number ("whatsapp:+1234567890").
func WithFromNumber(from string) Option {
	return func(o *Opts) { o.FromWhats = from }
}

// Client wraps the Twilio REST API for WhatsApp.
type Client struct {
	client    *twilio.RestClient
	fromWhats string
}

// NewClient creates a Twilio WhatsApp client, falling back to TWILIO_* env
// variables for any option not provided.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.AccountSID == "" {
		cfg.AccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	}
	if cfg.AuthToken == "" {
		cfg.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	}
	if cfg.FromWhats == "" {
		cfg.FromWhats = os.Getenv("TWILIO_FROM_NUMBER")
	}
	slog.Debug("Twilio client config loaded",
		"AccountSID_set", cfg.AccountSID != "",
		"AuthToken_set", cfg.AuthToken != "",
		"FromWhats_set", cfg.FromWhats != "")

	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, fmt.Errorf("account SID and auth token must be provided")
	}
	if cfg.FromWhats == "" {
		return nil, fmt.Errorf("from number must be provided")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return &Client{client: client, fromWhats: cfg.FromWhats}, nil
}

// SendMessage sends a WhatsApp message using the Twilio API.
func (c *Client) SendMessage(ctx context.Context, to string, body string) error {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo("whatsapp:+" + to)
	params.SetFrom(c.fromWhats)
	params.SetBody(body)

	_, err := c.client.Api.CreateMessage(params)
	if err != nil {
		slog.Error("Twilio SendMessage failed", "to", to, "error", err)
		return fmt.Errorf("failed to send message to %s: %w", to, err)
	}
	slog.Debug("Twilio message sent", "to", to)
	return nil
}

// MockClient records sent messages for tests.
type MockClient struct {
	SentMessages []SentMessage
}

// SentMessage is one recorded outbound message.
type SentMessage struct {
	To   string
	Body string
}

// NewMockClient creates an empty mock sender.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// SendMessage records the message.
func (m *MockClient) SendMessage(ctx context.Context, to string, body string) error {
	m.SentMessages = append(m.SentMessages, SentMessage{To: to, Body: body})
	return nil
}
