package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/CampusPe/ResumeBot/internal/models"
	"github.com/CampusPe/ResumeBot/internal/twiliowhatsapp"
)

// TwilioService implements the Service interface using the Twilio API.
type TwilioService struct {
	client    twiliowhatsapp.Sender
	receipts  chan models.Receipt
	responses chan models.Response
	mu        sync.RWMutex
	stopped   bool
}

// NewTwilioService creates a new TwilioService wrapping the given sender.
func NewTwilioService(client twiliowhatsapp.Sender) *TwilioService {
	return &TwilioService{
		client:    client,
		receipts:  make(chan models.Receipt, DefaultChannelBufferSize),
		responses: make(chan models.Response, DefaultChannelBufferSize),
	}
}

// ValidateAndCanonicalizeRecipient reduces a recipient to digits and validates it.
func (s *TwilioService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return CanonicalizePhoneNumber(recipient)
}

// Start is a no-op: inbound Twilio messages arrive via the form webhook.
func (s *TwilioService) Start(ctx context.Context) error {
	return nil
}

// Stop closes channels and stops the service.
func (s *TwilioService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	s.stopped = true
	close(s.receipts)
	close(s.responses)
	return nil
}

// SendMessage sends a message via Twilio and emits a receipt.
func (s *TwilioService) SendMessage(ctx context.Context, to string, body string) error {
	s.mu.RLock()
	if s.stopped {
		s.mu.RUnlock()
		return ErrServiceStopped
	}
	s.mu.RUnlock()

	canonicalTo, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		slog.Error("TwilioService SendMessage validation error", "error", err, "to", to)
		return err
	}

	if err := s.client.SendMessage(ctx, canonicalTo, body); err != nil {
		s.safeEmitReceipt(models.Receipt{To: canonicalTo, Status: models.MessageStatusFailed, Time: time.Now().Unix()})
		return err
	}
	s.safeEmitReceipt(models.Receipt{To: canonicalTo, Status: models.MessageStatusSent, Time: time.Now().Unix()})
	return nil
}

// Receipts returns the channel for sent message receipts.
func (s *TwilioService) Receipts() <-chan models.Receipt {
	return s.receipts
}

// Responses returns the channel for incoming messages.
func (s *TwilioService) Responses() <-chan models.Response {
	return s.responses
}

// WebhookHandler handles inbound Twilio webhook requests. It parses incoming
// form-encoded messages and emits them into the Responses() channel.
func (s *TwilioService) WebhookHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		slog.Error("Failed to parse Twilio webhook form", "error", err)
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	from := r.FormValue("From")
	body := r.FormValue("Body")
	name := r.FormValue("ProfileName")
	if from == "" || body == "" {
		slog.Warn("Twilio webhook missing fields", "from_set", from != "", "body_set", body != "")
		http.Error(w, "Missing required fields", http.StatusBadRequest)
		return
	}

	slog.Info("Inbound WhatsApp message from Twilio", "from", from, "body_length", len(body))
	s.safeEmitResponse(models.Response{
		From: from,
		Name: name,
		Body: body,
		Time: time.Now().Unix(),
	})

	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

func (s *TwilioService) safeEmitReceipt(receipt models.Receipt) {
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

func (s *TwilioService) safeEmitResponse(response models.Response) {
	s.mu.RLock()
	stopped := s.stopped
	s.mu.RUnlock()
	if stopped {
		slog.Warn("TwilioService dropping inbound response (service stopped)", "from", response.From)
		return
	}
	select {
	case s.responses <- response:
		slog.Debug("TwilioService emitted inbound response", "from", response.From)
	case <-time.After(DefaultChannelTimeout):
		slog.Warn("TwilioService responses channel blocked, dropping message", "from", response.From)
	}
}
