package messaging

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/CampusPe/ResumeBot/internal/models"
)

func TestWABBServiceRequiresWebhookURL(t *testing.T) {
	if _, err := NewWABBService(); err == nil {
		t.Error("expected error without webhook URL")
	}
}

func TestWABBServiceSendMessageRelaysPayload(t *testing.T) {
	var received models.WebhookMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected JSON content type, got %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("failed to decode relay payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	svc, err := NewWABBService(WithWebhookURL(server.URL))
	if err != nil {
		t.Fatalf("NewWABBService failed: %v", err)
	}

	if err := svc.SendMessage(context.Background(), "+1 (555) 123-4567", "hello"); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if received.Phone != "15551234567" {
		t.Errorf("expected canonical phone, got %q", received.Phone)
	}
	if received.Message != "hello" {
		t.Errorf("expected message body, got %q", received.Message)
	}

	select {
	case receipt := <-svc.Receipts():
		if receipt.Status != models.MessageStatusSent {
			t.Errorf("expected sent receipt, got %s", receipt.Status)
		}
	default:
		t.Error("expected a receipt after a successful send")
	}
}

func TestWABBServiceRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	svc, err := NewWABBService(WithWebhookURL(server.URL))
	if err != nil {
		t.Fatalf("NewWABBService failed: %v", err)
	}
	if err := svc.SendMessage(context.Background(), "15551234567", "hello"); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if calls.Load() < 2 {
		t.Errorf("expected a retry after 502, got %d calls", calls.Load())
	}
}

func TestWABBServiceClientErrorsAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	svc, err := NewWABBService(WithWebhookURL(server.URL))
	if err != nil {
		t.Fatalf("NewWABBService failed: %v", err)
	}
	if err := svc.SendMessage(context.Background(), "15551234567", "hello"); err == nil {
		t.Fatal("expected error for 400 response")
	}
	if calls.Load() != 1 {
		t.Errorf("expected exactly 1 call for a permanent failure, got %d", calls.Load())
	}

	select {
	case receipt := <-svc.Receipts():
		if receipt.Status != models.MessageStatusFailed {
			t.Errorf("expected failed receipt, got %s", receipt.Status)
		}
	default:
		t.Error("expected a failed receipt")
	}
}

func TestWABBServiceValidatesInput(t *testing.T) {
	svc, err := NewWABBService(WithWebhookURL("http://localhost:0/unused"))
	if err != nil {
		t.Fatalf("NewWABBService failed: %v", err)
	}
	if err := svc.SendMessage(context.Background(), "no digits", "hello"); err == nil {
		t.Error("expected error for recipient without digits")
	}
	if err := svc.SendMessage(context.Background(), "15551234567", ""); err != models.ErrEmptyMessage {
		t.Errorf("expected ErrEmptyMessage, got %v", err)
	}
}

func TestWABBServiceStop(t *testing.T) {
	svc, err := NewWABBService(WithWebhookURL("http://localhost:0/unused"))
	if err != nil {
		t.Fatalf("NewWABBService failed: %v", err)
	}
	if err := svc.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	// Stop is idempotent.
	if err := svc.Stop(); err != nil {
		t.Fatalf("repeat Stop failed: %v", err)
	}
	if err := svc.SendMessage(context.Background(), "15551234567", "hello"); err != ErrServiceStopped {
		t.Errorf("expected ErrServiceStopped, got %v", err)
	}
	// Emitting after stop is a no-op, not a panic.
	svc.EmitResponse(models.Response{From: "15551234567", Body: "late"})
}

func TestWABBServiceEmitResponseDelivery(t *testing.T) {
	svc, err := NewWABBService(WithWebhookURL("http://localhost:0/unused"))
	if err != nil {
		t.Fatalf("NewWABBService failed: %v", err)
	}
	svc.EmitResponse(models.Response{From: "15551234567", Name: "Jane", Body: "resume"})

	select {
	case resp := <-svc.Responses():
		if resp.From != "15551234567" || resp.Body != "resume" {
			t.Errorf("response mismatch: %+v", resp)
		}
	default:
		t.Error("expected emitted response on channel")
	}
}

func TestCanonicalizePhoneNumber(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"+91 98765-43210", "919876543210", false},
		{"(555) 123-4567", "5551234567", false},
		{"12345", "", true},
		{"no digits", "", true},
		{"", "", true},
	}
	for _, tc := range cases {
		got, err := CanonicalizePhoneNumber(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("CanonicalizePhoneNumber(%q): expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("CanonicalizePhoneNumber(%q) failed: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("CanonicalizePhoneNumber(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
