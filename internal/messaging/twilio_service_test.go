package messaging

import (
	"context"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/CampusPe/ResumeBot/internal/models"
	"github.com/CampusPe/ResumeBot/internal/twiliowhatsapp"
)

func TestTwilioServiceSendMessage(t *testing.T) {
	mock := twiliowhatsapp.NewMockClient()
	svc := NewTwilioService(mock)

	if err := svc.SendMessage(context.Background(), "+91 98765-43210", "hello"); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if len(mock.SentMessages) != 1 {
		t.Fatalf("expected 1 sent message, got %d", len(mock.SentMessages))
	}
	if mock.SentMessages[0].To != "919876543210" {
		t.Errorf("expected canonical recipient, got %q", mock.SentMessages[0].To)
	}

	select {
	case receipt := <-svc.Receipts():
		if receipt.Status != models.MessageStatusSent {
			t.Errorf("expected sent receipt, got %s", receipt.Status)
		}
	default:
		t.Error("expected a receipt after send")
	}
}

func TestTwilioServiceWebhookHandler(t *testing.T) {
	svc := NewTwilioService(twiliowhatsapp.NewMockClient())

	form := url.Values{}
	form.Set("From", "whatsapp:+919876543210")
	form.Set("Body", "resume")
	form.Set("ProfileName", "Jane")
	req := httptest.NewRequest("POST", "/webhook/twilio", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()

	svc.WebhookHandler(rec, req)
	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	select {
	case resp := <-svc.Responses():
		if resp.Body != "resume" || resp.Name != "Jane" {
			t.Errorf("response mismatch: %+v", resp)
		}
	default:
		t.Error("expected emitted response from webhook")
	}
}

func TestTwilioServiceWebhookHandlerRejectsMissingFields(t *testing.T) {
	svc := NewTwilioService(twiliowhatsapp.NewMockClient())

	form := url.Values{}
	form.Set("Body", "resume")
	req := httptest.NewRequest("POST", "/webhook/twilio", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()

	svc.WebhookHandler(rec, req)
	if rec.Code != 400 {
		t.Errorf("expected 400 for missing From, got %d", rec.Code)
	}
}

func TestTwilioServiceStoppedSendFails(t *testing.T) {
	svc := NewTwilioService(twiliowhatsapp.NewMockClient())
	if err := svc.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := svc.SendMessage(context.Background(), "919876543210", "hello"); err != ErrServiceStopped {
		t.Errorf("expected ErrServiceStopped, got %v", err)
	}
}
