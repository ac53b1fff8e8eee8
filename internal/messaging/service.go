// Package messaging provides pluggable WhatsApp message delivery for ResumeBot.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/CampusPe/ResumeBot/internal/models"
)

// Constants for messaging service configuration
const (
	// DefaultChannelBufferSize defines the default buffer size for receipt and response channels
	DefaultChannelBufferSize = 100
	// DefaultChannelTimeout defines the default timeout for non-blocking channel operations
	DefaultChannelTimeout = 1 * time.Second
	// MinPhoneNumberDigits is the minimum digit count for a canonical phone number
	MinPhoneNumberDigits = 6
)

// ErrServiceStopped is returned when sending through a stopped service.
var ErrServiceStopped = errors.New("messaging service stopped")

var phoneNumberRegex = regexp.MustCompile(`[^0-9]`)

// Service defines a pluggable message delivery abstraction.
// It supports sending messages and provides channels for receipt and response events.
type Service interface {
	// ValidateAndCanonicalizeRecipient validates and canonicalizes a recipient identifier.
	// Returns the canonicalized recipient and an error if validation fails.
	ValidateAndCanonicalizeRecipient(recipient string) (string, error)

	// SendMessage sends a message to a recipient.
	SendMessage(ctx context.Context, to string, body string) error

	// Start begins any background processing (e.g., polling for events).
	Start(ctx context.Context) error

	// Stop stops background processing and cleans up resources.
	Stop() error

	// Receipts returns a channel of receipt events (sent, delivered, read).
	Receipts() <-chan models.Receipt

	// Responses returns a channel of incoming user messages.
	Responses() <-chan models.Response
}

// CanonicalizePhoneNumber strips non-digits and validates the result. All
// services share this rule: any inbound formatting is tolerated, storage and
// delivery use digits only.
func CanonicalizePhoneNumber(recipient string) (string, error) {
	if recipient == "" {
		return "", fmt.Errorf("recipient cannot be empty")
	}
	canonical := phoneNumberRegex.ReplaceAllString(recipient, "")
	if canonical == "" {
		return "", fmt.Errorf("invalid phone number: no digits found in recipient %q", recipient)
	}
	if len(canonical) < MinPhoneNumberDigits {
		return "", fmt.Errorf("invalid phone number: %q is too short (minimum %d digits required)", canonical, MinPhoneNumberDigits)
	}
	return canonical, nil
}
