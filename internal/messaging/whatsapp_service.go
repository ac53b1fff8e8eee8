package messaging

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/CampusPe/ResumeBot/internal/models"
	"github.com/CampusPe/ResumeBot/internal/whatsapp"
	"go.mau.fi/whatsmeow/types/events"
)

// WhatsAppService implements Service using the Whatsmeow-based whatsapp client.
// Inbound messages and receipts arrive as whatsmeow events instead of webhooks.
type WhatsAppService struct {
	client    whatsapp.Sender
	waClient  *whatsapp.Client // full client for event handling, nil for mocks
	receipts  chan models.Receipt
	responses chan models.Response
	mu        sync.RWMutex
	stopped   bool
}

// NewWhatsAppService creates a new WhatsAppService wrapping the given sender.
func NewWhatsAppService(client whatsapp.Sender) *WhatsAppService {
	service := &WhatsAppService{
		client:    client,
		receipts:  make(chan models.Receipt, DefaultChannelBufferSize),
		responses: make(chan models.Response, DefaultChannelBufferSize),
	}
	if waClient, ok := client.(*whatsapp.Client); ok {
		service.waClient = waClient
		slog.Debug("WhatsAppService created with full client for event handling")
	} else {
		slog.Debug("WhatsAppService created with interface client (likely mock)")
	}
	return service
}

// ValidateAndCanonicalizeRecipient reduces a recipient to digits and validates it.
func (s *WhatsAppService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return CanonicalizePhoneNumber(recipient)
}

// Start begins event handling when a full client is available.
func (s *WhatsAppService) Start(ctx context.Context) error {
	if s.waClient != nil {
		go s.handleEvents(ctx)
		slog.Debug("WhatsAppService event handler started")
	}
	return nil
}

// Stop closes channels and stops the service.
func (s *WhatsAppService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	s.stopped = true
	close(s.receipts)
	close(s.responses)
	slog.Info("WhatsAppService stopped and channels closed")
	return nil
}

// SendMessage sends a message and emits a sent receipt.
func (s *WhatsAppService) SendMessage(ctx context.Context, to string, body string) error {
	s.mu.RLock()
	if s.stopped {
		s.mu.RUnlock()
		return ErrServiceStopped
	}
	s.mu.RUnlock()

	canonicalTo, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		slog.Error("WhatsAppService SendMessage validation error", "error", err, "to", to)
		return err
	}

	if err := s.client.SendMessage(ctx, canonicalTo, body); err != nil {
		slog.Error("WhatsAppService SendMessage error", "error", err, "to", canonicalTo)
		return err
	}
	s.safeEmitReceipt(models.Receipt{To: canonicalTo, Status: models.MessageStatusSent, Time: time.Now().Unix()})
	return nil
}

// Receipts returns a channel of receipt events.
func (s *WhatsAppService) Receipts() <-chan models.Receipt {
	return s.receipts
}

// Responses returns a channel of incoming response events.
func (s *WhatsAppService) Responses() <-chan models.Response {
	return s.responses
}

// handleEvents registers the whatsmeow event handler and feeds channels.
func (s *WhatsAppService) handleEvents(ctx context.Context) {
	if s.waClient == nil || s.waClient.GetClient() == nil {
		slog.Error("WhatsAppService handleEvents: no client available")
		return
	}

	s.waClient.GetClient().AddEventHandler(func(evt interface{}) {
		switch v := evt.(type) {
		case *events.Message:
			s.handleIncomingMessage(v)
		case *events.Receipt:
			s.handleMessageReceipt(v)
		}
	})

	<-ctx.Done()
	slog.Debug("WhatsAppService handleEvents stopping due to context cancellation")
}

// handleIncomingMessage processes incoming text messages from users.
func (s *WhatsAppService) handleIncomingMessage(evt *events.Message) {
	if evt.Message == nil {
		return
	}

	var messageText string
	if evt.Message.Conversation != nil {
		messageText = *evt.Message.Conversation
	} else if evt.Message.ExtendedTextMessage != nil && evt.Message.ExtendedTextMessage.Text != nil {
		messageText = *evt.Message.ExtendedTextMessage.Text
	} else {
		// Skip non-text messages (images, audio, etc.)
		slog.Debug("WhatsAppService ignoring non-text message", "from", evt.Info.Sender.String())
		return
	}

	response := models.Response{
		From: evt.Info.Sender.User,
		Name: evt.Info.PushName,
		Body: messageText,
		Time: evt.Info.Timestamp.Unix(),
	}

	select {
	case s.responses <- response:
		slog.Debug("WhatsAppService incoming message forwarded", "from", response.From)
	case <-time.After(DefaultChannelTimeout):
		slog.Warn("WhatsAppService responses channel blocked, dropping message", "from", response.From)
	}
}

// handleMessageReceipt processes delivery and read receipts.
func (s *WhatsAppService) handleMessageReceipt(evt *events.Receipt) {
	var status models.MessageStatus
	switch evt.Type {
	case events.ReceiptTypeDelivered:
		status = models.MessageStatusDelivered
	case events.ReceiptTypeRead:
		status = models.MessageStatusRead
	default:
		return
	}

	receipt := models.Receipt{
		To:     evt.MessageSource.Sender.User,
		Status: status,
		Time:   evt.Timestamp.Unix(),
	}

	select {
	case s.receipts <- receipt:
	case <-time.After(DefaultChannelTimeout):
		slog.Warn("WhatsAppService receipts channel blocked, dropping receipt", "to", receipt.To)
	}
}

func (s *WhatsAppService) safeEmitReceipt(receipt models.Receipt) {
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
